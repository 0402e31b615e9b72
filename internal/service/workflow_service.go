package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ims-backend/internal/model"
	"ims-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type SubmitItemInput struct {
	StockItemID       string `json:"stock_item_id"`
	CustomDescription string `json:"custom_description"`
	Quantity          int    `json:"quantity" binding:"required,gt=0"`
	UnitCostEstimate  string `json:"unit_cost_estimate"`
}

type SubmitRequestInput struct {
	UnitID       string            `json:"unit_id" binding:"required"`
	Purpose      string            `json:"purpose" binding:"required"`
	IsReturnable bool              `json:"is_returnable"`
	Items        []SubmitItemInput `json:"items" binding:"required,min=1,dive"`
}

type SubmitResult struct {
	RequestID          uuid.UUID `json:"request_id"`
	EnvelopeID         uuid.UUID `json:"envelope_id"`
	AssignedApproverID uuid.UUID `json:"assigned_approver_id"`
}

type DecisionInput struct {
	ItemID            string `json:"item_id" binding:"required"`
	Kind              string `json:"kind" binding:"required"`
	AllocatedQuantity *int   `json:"allocated_quantity"`
	Reason            string `json:"reason"`
}

type DecideResult struct {
	OverallStatus  model.EnvelopeStatus `json:"overall_status"`
	NextApproverID *uuid.UUID           `json:"next_approver_id,omitempty"`
}

type ResubmitItemInput struct {
	ItemID            string `json:"item_id" binding:"required"`
	Quantity          int    `json:"quantity" binding:"required,gt=0"`
	CustomDescription string `json:"custom_description"`
	UnitCostEstimate  string `json:"unit_cost_estimate"`
}

type ResubmitResult struct {
	NewEnvelopeID      uuid.UUID `json:"new_envelope_id"`
	AssignedApproverID uuid.UUID `json:"assigned_approver_id"`
}

type DecisionView struct {
	ItemID            uuid.UUID  `json:"item_id"`
	StockItemID       *uuid.UUID `json:"stock_item_id,omitempty"`
	Description       string     `json:"description"`
	RequestedQuantity int        `json:"requested_quantity"`
	Decision          string     `json:"decision"`
	AllocatedQuantity *int       `json:"allocated_quantity,omitempty"`
	Reason            string     `json:"reason,omitempty"`
}

type EnvelopeView struct {
	ID            uuid.UUID      `json:"id"`
	RequestID     uuid.UUID      `json:"request_id"`
	Sequence      int            `json:"sequence"`
	Status        string         `json:"status"`
	RequesterName string         `json:"requester_name"`
	Purpose       string         `json:"purpose"`
	EstimatedCost string         `json:"estimated_cost"`
	SubmittedAt   string         `json:"submitted_at"`
	Decisions     []DecisionView `json:"decisions"`
}

type RequestDetail struct {
	Request  *model.Request          `json:"request"`
	Envelope *model.ApprovalEnvelope `json:"envelope,omitempty"`
	History  []model.ApprovalHistory `json:"history"`
}

// EventBroadcaster pushes workflow events to connected dashboards.
type EventBroadcaster interface {
	BroadcastEvent(event string, data map[string]interface{})
}

// --- Interface ---

// WorkflowService is the approval workflow engine façade: it accepts a
// requester's submission, an approver's decision batch, or an
// edit-and-resubmit, and drives the hierarchy resolver, the per-item
// state machine, the stock ledger, and the aggregator transactionally.
type WorkflowService interface {
	SubmitRequest(ctx context.Context, requesterID string, input SubmitRequestInput) (*SubmitResult, error)
	ListPending(ctx context.Context, approverID string, page, limit int) ([]EnvelopeView, int64, error)
	Decide(ctx context.Context, envelopeID, approverID string, decisions []DecisionInput) (*DecideResult, error)
	Resubmit(ctx context.Context, requestID, requesterID string, editedItems []ResubmitItemInput) (*ResubmitResult, error)
	GetRequest(ctx context.Context, requestID string) (*RequestDetail, error)
	EnvelopeHistory(ctx context.Context, envelopeID string) ([]model.ApprovalHistory, error)
	ListMyRequests(ctx context.Context, requesterID string, page, limit int) ([]model.Request, int64, error)
}

type workflowService struct {
	requestRepo  repository.RequestRepository
	envelopeRepo repository.EnvelopeRepository
	stockRepo    repository.StockRepository
	historyRepo  repository.HistoryRepository
	resolver     HierarchyResolver
	ledger       StockLedger
	txManager    repository.TransactionManager
	hub          EventBroadcaster
}

func NewWorkflowService(
	requestRepo repository.RequestRepository,
	envelopeRepo repository.EnvelopeRepository,
	stockRepo repository.StockRepository,
	historyRepo repository.HistoryRepository,
	resolver HierarchyResolver,
	ledger StockLedger,
	txManager repository.TransactionManager,
	hub EventBroadcaster,
) WorkflowService {
	return &workflowService{
		requestRepo:  requestRepo,
		envelopeRepo: envelopeRepo,
		stockRepo:    stockRepo,
		historyRepo:  historyRepo,
		resolver:     resolver,
		ledger:       ledger,
		txManager:    txManager,
		hub:          hub,
	}
}

// --- Submit ---

func (s *workflowService) SubmitRequest(ctx context.Context, requesterID string, input SubmitRequestInput) (*SubmitResult, error) {
	requester, err := uuid.Parse(requesterID)
	if err != nil {
		return nil, fmt.Errorf("invalid requester id: %w", err)
	}
	unitID, err := uuid.Parse(input.UnitID)
	if err != nil {
		return nil, fmt.Errorf("invalid unit id: %w", err)
	}

	// Resolve routing up front: an unrouteable request is rejected at the
	// boundary, never persisted.
	approverID, err := s.resolver.NextApprover(ctx, unitID, nil)
	if err != nil {
		return nil, err
	}

	var result SubmitResult
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		now := time.Now()
		request := &model.Request{
			RequesterID:  requester,
			UnitID:       unitID,
			Purpose:      input.Purpose,
			IsReturnable: input.IsReturnable,
			SubmittedAt:  now,
		}

		descs := make([]string, 0, len(input.Items))
		for _, in := range input.Items {
			item, desc, buildErr := s.buildRequestItem(txCtx, in)
			if buildErr != nil {
				return buildErr
			}
			request.Items = append(request.Items, *item)
			descs = append(descs, desc)
		}

		if createErr := s.requestRepo.Create(txCtx, request); createErr != nil {
			return fmt.Errorf("failed to create request: %w", createErr)
		}

		envelope := &model.ApprovalEnvelope{
			RequestID:         request.ID,
			Sequence:          1,
			CurrentApproverID: approverID,
			SubmittedBy:       requester,
			Status:            model.EnvelopePending,
			SubmittedAt:       now,
		}
		if createErr := s.envelopeRepo.Create(txCtx, envelope); createErr != nil {
			return fmt.Errorf("failed to create envelope: %w", createErr)
		}

		for i := range request.Items {
			if createErr := s.envelopeRepo.CreateDecision(txCtx, snapshotDecision(envelope.ID, &request.Items[i], descs[i])); createErr != nil {
				return fmt.Errorf("failed to create item decision: %w", createErr)
			}
		}

		history := &model.ApprovalHistory{
			RequestID:  request.ID,
			EnvelopeID: &envelope.ID,
			ActorID:    requester,
			Action:     model.ActionSubmitted,
			Comment:    input.Purpose,
		}
		if logErr := s.historyRepo.Log(txCtx, history); logErr != nil {
			return fmt.Errorf("failed to write approval history: %w", logErr)
		}

		result = SubmitResult{
			RequestID:          request.ID,
			EnvelopeID:         envelope.ID,
			AssignedApproverID: approverID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("request_submitted", map[string]interface{}{
		"request_id":  result.RequestID.String(),
		"envelope_id": result.EnvelopeID.String(),
		"approver_id": result.AssignedApproverID.String(),
	})

	return &result, nil
}

func (s *workflowService) buildRequestItem(ctx context.Context, in SubmitItemInput) (*model.RequestItem, string, error) {
	if (in.StockItemID == "") == (in.CustomDescription == "") {
		return nil, "", errors.New("each item needs either a catalog reference or a custom description, not both")
	}

	item := &model.RequestItem{RequestedQuantity: in.Quantity}
	desc := in.CustomDescription

	if in.StockItemID != "" {
		stockID, err := uuid.Parse(in.StockItemID)
		if err != nil {
			return nil, "", fmt.Errorf("invalid stock item id: %w", err)
		}
		stockItem, err := s.stockRepo.FindItem(ctx, stockID)
		if err != nil {
			return nil, "", fmt.Errorf("unknown stock item %s: %w", stockID, err)
		}
		item.StockItemID = &stockID
		desc = stockItem.Name
	} else {
		item.CustomDescription = in.CustomDescription
	}

	if in.UnitCostEstimate != "" {
		cost, err := decimal.NewFromString(in.UnitCostEstimate)
		if err != nil {
			return nil, "", fmt.Errorf("invalid unit cost estimate: %w", err)
		}
		item.UnitCostEstimate = cost
	}

	return item, desc, nil
}

func itemDescription(item *model.RequestItem) string {
	if item.StockItem != nil {
		return item.StockItem.Name
	}
	return item.CustomDescription
}

// snapshotDecision copies item identity and quantity into the envelope so
// later edits to the request never rewrite an earlier pass.
func snapshotDecision(envelopeID uuid.UUID, item *model.RequestItem, desc string) *model.ApprovalItemDecision {
	return &model.ApprovalItemDecision{
		EnvelopeID:        envelopeID,
		RequestItemID:     item.ID,
		StockItemID:       item.StockItemID,
		ItemDescription:   desc,
		RequestedQuantity: item.RequestedQuantity,
		Decision:          model.ItemPending,
	}
}

// --- ListPending ---

func (s *workflowService) ListPending(ctx context.Context, approverID string, page, limit int) ([]EnvelopeView, int64, error) {
	approver, err := uuid.Parse(approverID)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid approver id: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	envelopes, total, err := s.envelopeRepo.ListPendingByApprover(ctx, approver, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list pending envelopes: %w", err)
	}

	views := make([]EnvelopeView, 0, len(envelopes))
	for i := range envelopes {
		views = append(views, toEnvelopeView(&envelopes[i]))
	}
	return views, total, nil
}

func toEnvelopeView(env *model.ApprovalEnvelope) EnvelopeView {
	view := EnvelopeView{
		ID:          env.ID,
		RequestID:   env.RequestID,
		Sequence:    env.Sequence,
		Status:      string(env.Status),
		SubmittedAt: env.SubmittedAt.Format(time.RFC3339),
	}

	estimated := decimal.Zero
	if env.Request != nil {
		view.Purpose = env.Request.Purpose
		if env.Request.Requester != nil {
			view.RequesterName = env.Request.Requester.Username
		}
		for _, item := range env.Request.Items {
			estimated = estimated.Add(item.UnitCostEstimate.Mul(decimal.NewFromInt(int64(item.RequestedQuantity))))
		}
	}
	view.EstimatedCost = estimated.StringFixed(2)

	for _, d := range env.Decisions {
		view.Decisions = append(view.Decisions, DecisionView{
			ItemID:            d.RequestItemID,
			StockItemID:       d.StockItemID,
			Description:       d.ItemDescription,
			RequestedQuantity: d.RequestedQuantity,
			Decision:          string(d.Decision),
			AllocatedQuantity: d.AllocatedQuantity,
			Reason:            d.Reason,
		})
	}

	return view
}

// --- Decide ---

func (s *workflowService) Decide(ctx context.Context, envelopeID, approverID string, decisions []DecisionInput) (*DecideResult, error) {
	envID, err := uuid.Parse(envelopeID)
	if err != nil {
		return nil, fmt.Errorf("invalid envelope id: %w", err)
	}
	approver, err := uuid.Parse(approverID)
	if err != nil {
		return nil, fmt.Errorf("invalid approver id: %w", err)
	}
	if len(decisions) == 0 {
		return nil, errors.New("decision batch is empty")
	}

	var result DecideResult
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// Row lock on the envelope serializes racing deciders: the loser
		// re-reads after commit and fails the assignment check below.
		env, findErr := s.envelopeRepo.FindByIDForUpdate(txCtx, envID)
		if findErr != nil {
			return fmt.Errorf("envelope not found: %w", findErr)
		}

		if env.CurrentApproverID != approver {
			return ErrNotCurrentApprover
		}
		if env.Status != model.EnvelopePending || env.SupersededAt != nil {
			return ErrEnvelopeClosed
		}

		request, findErr := s.requestRepo.FindByID(txCtx, env.RequestID)
		if findErr != nil {
			return fmt.Errorf("request not found: %w", findErr)
		}

		rows, decErr := s.envelopeRepo.Decisions(txCtx, env.ID)
		if decErr != nil {
			return fmt.Errorf("failed to load item decisions: %w", decErr)
		}
		byItem := make(map[uuid.UUID]*model.ApprovalItemDecision, len(rows))
		for i := range rows {
			byItem[rows[i].RequestItemID] = &rows[i]
		}

		now := time.Now()
		for _, in := range decisions {
			if applyErr := s.applyDecision(txCtx, env, request, byItem, in, approver, now); applyErr != nil {
				return applyErr
			}
		}

		overall := AggregateStatus(rows)
		result.OverallStatus = overall

		switch overall {
		case model.EnvelopeReturned:
			env.Status = model.EnvelopeReturned
			env.DecidedAt = &now
			if histErr := s.logAction(txCtx, env, approver, model.ActionReturned, firstReason(decisions)); histErr != nil {
				return histErr
			}

		case model.EnvelopeForwarded:
			next, routeErr := s.resolver.NextApprover(txCtx, request.UnitID, &approver)
			if routeErr != nil {
				return routeErr
			}
			// The envelope continues under the next approver; only the
			// forwarded items reopen, decided items stay frozen.
			for i := range rows {
				if rows[i].Decision == model.ItemForwarded {
					rows[i].Decision = model.ItemPending
					rows[i].DecidedBy = nil
					rows[i].DecidedAt = nil
					if updErr := s.envelopeRepo.UpdateDecision(txCtx, &rows[i]); updErr != nil {
						return fmt.Errorf("failed to reopen forwarded item: %w", updErr)
					}
				}
			}
			env.CurrentApproverID = next
			env.Status = model.EnvelopePending
			result.NextApproverID = &next
			if histErr := s.logAction(txCtx, env, approver, model.ActionForwarded, firstReason(decisions)); histErr != nil {
				return histErr
			}

		case model.EnvelopeApproved, model.EnvelopeApprovedWithErrata:
			env.Status = overall
			env.DecidedAt = &now
			if commitErr := s.settleReservations(txCtx, env, approver, true); commitErr != nil {
				return commitErr
			}
			if histErr := s.logAction(txCtx, env, approver, model.ActionApproved, ""); histErr != nil {
				return histErr
			}

		case model.EnvelopeRejected:
			env.Status = model.EnvelopeRejected
			env.DecidedAt = &now
			if releaseErr := s.settleReservations(txCtx, env, approver, false); releaseErr != nil {
				return releaseErr
			}
			if histErr := s.logAction(txCtx, env, approver, model.ActionRejected, firstReason(decisions)); histErr != nil {
				return histErr
			}

		case model.EnvelopePending:
			// Partial batch: the envelope stays in the approver's queue.
		}

		if updErr := s.envelopeRepo.Update(txCtx, env); updErr != nil {
			return fmt.Errorf("failed to update envelope: %w", updErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("envelope_decided", map[string]interface{}{
		"envelope_id":    envelopeID,
		"overall_status": string(result.OverallStatus),
	})

	return &result, nil
}

// applyDecision runs the per-item state machine: only PENDING items accept
// a decision, and an APPROVED_FROM_STOCK transition requires a successful
// reservation.
func (s *workflowService) applyDecision(
	ctx context.Context,
	env *model.ApprovalEnvelope,
	request *model.Request,
	byItem map[uuid.UUID]*model.ApprovalItemDecision,
	in DecisionInput,
	approver uuid.UUID,
	now time.Time,
) error {
	itemID, err := uuid.Parse(in.ItemID)
	if err != nil {
		return fmt.Errorf("invalid item id %q: %w", in.ItemID, err)
	}

	kind := model.ItemDecision(in.Kind)
	if !model.ValidDecision(kind) {
		return itemErr(itemID, ErrInvalidDecision)
	}

	row, ok := byItem[itemID]
	if !ok {
		return itemErr(itemID, ErrItemNotFound)
	}
	if row.Decision != model.ItemPending {
		return itemErr(itemID, ErrItemAlreadyDecided)
	}
	if kind.RequiresReason() && in.Reason == "" {
		return itemErr(itemID, ErrReasonRequired)
	}

	if kind.IsApproval() {
		qty := row.RequestedQuantity
		if in.AllocatedQuantity != nil {
			qty = *in.AllocatedQuantity
		}
		if qty <= 0 || qty > row.RequestedQuantity {
			return itemErr(itemID, fmt.Errorf("allocated quantity %d out of range (requested %d)", qty, row.RequestedQuantity))
		}

		if kind == model.ItemApprovedFromStock {
			if row.StockItemID == nil {
				return itemErr(itemID, fmt.Errorf("custom items cannot be approved from stock: %w", ErrInvalidDecision))
			}
			reservation, resErr := s.ledger.Reserve(ctx, ReserveInput{
				StockItemID:   *row.StockItemID,
				RequestID:     request.ID,
				RequestItemID: row.RequestItemID,
				EnvelopeID:    env.ID,
				Quantity:      qty,
			})
			if resErr != nil {
				return resErr
			}
			row.ReservationID = &reservation.ID
		}
		row.AllocatedQuantity = &qty
	} else {
		row.AllocatedQuantity = nil
	}

	row.Decision = kind
	row.Reason = in.Reason
	row.DecidedBy = &approver
	row.DecidedAt = &now

	if err := s.envelopeRepo.UpdateDecision(ctx, row); err != nil {
		return fmt.Errorf("failed to persist item decision: %w", err)
	}
	return nil
}

// settleReservations commits (on approval) or releases (on rejection)
// every active reservation held for the request, including holds carried
// over from earlier passes.
func (s *workflowService) settleReservations(ctx context.Context, env *model.ApprovalEnvelope, actor uuid.UUID, commit bool) error {
	reservations, err := s.stockRepo.ActiveReservationsByRequest(ctx, env.RequestID)
	if err != nil {
		return fmt.Errorf("failed to load reservations: %w", err)
	}
	if len(reservations) == 0 {
		return nil
	}

	action := model.ActionStockReleased
	for _, res := range reservations {
		if commit {
			action = model.ActionStockCommitted
			if err := s.ledger.Commit(ctx, res.ID, actor); err != nil {
				return err
			}
		} else {
			if err := s.ledger.Release(ctx, res.ID, actor); err != nil {
				return err
			}
		}
	}

	return s.logAction(ctx, env, actor, action, fmt.Sprintf("%d reservation(s)", len(reservations)))
}

func (s *workflowService) logAction(ctx context.Context, env *model.ApprovalEnvelope, actor uuid.UUID, action, comment string) error {
	entry := &model.ApprovalHistory{
		RequestID:  env.RequestID,
		EnvelopeID: &env.ID,
		ActorID:    actor,
		Action:     action,
		Comment:    comment,
	}
	if err := s.historyRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write approval history: %w", err)
	}
	return nil
}

func firstReason(decisions []DecisionInput) string {
	for _, d := range decisions {
		if d.Reason != "" {
			return d.Reason
		}
	}
	return ""
}

// --- Resubmit ---

func (s *workflowService) Resubmit(ctx context.Context, requestID, requesterID string, editedItems []ResubmitItemInput) (*ResubmitResult, error) {
	reqID, err := uuid.Parse(requestID)
	if err != nil {
		return nil, fmt.Errorf("invalid request id: %w", err)
	}
	requester, err := uuid.Parse(requesterID)
	if err != nil {
		return nil, fmt.Errorf("invalid requester id: %w", err)
	}

	var result ResubmitResult
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		request, findErr := s.requestRepo.FindByIDWithItems(txCtx, reqID)
		if findErr != nil {
			return fmt.Errorf("request not found: %w", findErr)
		}
		if request.RequesterID != requester {
			return ErrNotRequestOwner
		}

		env, liveErr := s.envelopeRepo.FindLiveByRequestForUpdate(txCtx, reqID)
		if liveErr != nil {
			if errors.Is(liveErr, gorm.ErrRecordNotFound) {
				return ErrNotInReturnedState
			}
			return fmt.Errorf("failed to load envelope: %w", liveErr)
		}
		if env.Status != model.EnvelopeReturned {
			return ErrNotInReturnedState
		}

		prior, decErr := s.envelopeRepo.Decisions(txCtx, env.ID)
		if decErr != nil {
			return fmt.Errorf("failed to load prior decisions: %w", decErr)
		}
		priorByItem := make(map[uuid.UUID]*model.ApprovalItemDecision, len(prior))
		for i := range prior {
			priorByItem[prior[i].RequestItemID] = &prior[i]
		}

		itemsByID := make(map[uuid.UUID]*model.RequestItem, len(request.Items))
		for i := range request.Items {
			itemsByID[request.Items[i].ID] = &request.Items[i]
		}

		for _, edit := range editedItems {
			if applyErr := s.applyEdit(txCtx, itemsByID, priorByItem, edit); applyErr != nil {
				return applyErr
			}
		}

		approverID, routeErr := s.resolver.NextApprover(txCtx, request.UnitID, nil)
		if routeErr != nil {
			return routeErr
		}

		now := time.Now()
		env.SupersededAt = &now
		if updErr := s.envelopeRepo.Update(txCtx, env); updErr != nil {
			return fmt.Errorf("failed to supersede envelope: %w", updErr)
		}

		newEnv := &model.ApprovalEnvelope{
			RequestID:         request.ID,
			Sequence:          env.Sequence + 1,
			CurrentApproverID: approverID,
			SubmittedBy:       requester,
			Status:            model.EnvelopePending,
			SubmittedAt:       now,
		}
		if createErr := s.envelopeRepo.Create(txCtx, newEnv); createErr != nil {
			return fmt.Errorf("failed to create envelope: %w", createErr)
		}

		// Items approved in a prior pass are frozen: their decisions are
		// copied verbatim. Everything else starts a fresh PENDING pass.
		for i := range request.Items {
			item := &request.Items[i]
			decision := snapshotDecision(newEnv.ID, item, itemDescription(item))
			if old, ok := priorByItem[item.ID]; ok && old.Decision.IsApproval() {
				decision.Decision = old.Decision
				decision.AllocatedQuantity = old.AllocatedQuantity
				decision.Reason = old.Reason
				decision.ReservationID = old.ReservationID
				decision.DecidedBy = old.DecidedBy
				decision.DecidedAt = old.DecidedAt
				decision.RequestedQuantity = old.RequestedQuantity
			}
			if createErr := s.envelopeRepo.CreateDecision(txCtx, decision); createErr != nil {
				return fmt.Errorf("failed to create item decision: %w", createErr)
			}
		}

		if histErr := s.logAction(txCtx, newEnv, requester, model.ActionResubmitted, ""); histErr != nil {
			return histErr
		}

		result = ResubmitResult{
			NewEnvelopeID:      newEnv.ID,
			AssignedApproverID: approverID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("request_resubmitted", map[string]interface{}{
		"request_id":  requestID,
		"envelope_id": result.NewEnvelopeID.String(),
		"approver_id": result.AssignedApproverID.String(),
	})

	return &result, nil
}

// applyEdit mutates one request item during a returned cycle. Items
// already approved in a prior pass are frozen and reject edits.
func (s *workflowService) applyEdit(
	ctx context.Context,
	itemsByID map[uuid.UUID]*model.RequestItem,
	priorByItem map[uuid.UUID]*model.ApprovalItemDecision,
	edit ResubmitItemInput,
) error {
	itemID, err := uuid.Parse(edit.ItemID)
	if err != nil {
		return fmt.Errorf("invalid item id %q: %w", edit.ItemID, err)
	}

	item, ok := itemsByID[itemID]
	if !ok {
		return itemErr(itemID, ErrItemNotFound)
	}
	if old, exists := priorByItem[itemID]; exists && old.Decision.IsApproval() {
		return itemErr(itemID, ErrItemAlreadyDecided)
	}

	item.RequestedQuantity = edit.Quantity
	if edit.CustomDescription != "" && item.StockItemID == nil {
		item.CustomDescription = edit.CustomDescription
	}
	if edit.UnitCostEstimate != "" {
		cost, parseErr := decimal.NewFromString(edit.UnitCostEstimate)
		if parseErr != nil {
			return fmt.Errorf("invalid unit cost estimate: %w", parseErr)
		}
		item.UnitCostEstimate = cost
	}

	if err := s.requestRepo.UpdateItem(ctx, item); err != nil {
		return fmt.Errorf("failed to update request item: %w", err)
	}
	return nil
}

// --- Queries ---

func (s *workflowService) GetRequest(ctx context.Context, requestID string) (*RequestDetail, error) {
	reqID, err := uuid.Parse(requestID)
	if err != nil {
		return nil, fmt.Errorf("invalid request id: %w", err)
	}

	request, err := s.requestRepo.FindByIDWithItems(ctx, reqID)
	if err != nil {
		return nil, fmt.Errorf("request not found: %w", err)
	}

	detail := &RequestDetail{Request: request}

	if env, liveErr := s.envelopeRepo.FindLiveByRequest(ctx, reqID); liveErr == nil {
		full, loadErr := s.envelopeRepo.FindByID(ctx, env.ID)
		if loadErr != nil {
			return nil, fmt.Errorf("failed to load envelope: %w", loadErr)
		}
		detail.Envelope = full
	}

	history, err := s.historyRepo.ListByRequest(ctx, reqID)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval history: %w", err)
	}
	detail.History = history

	return detail, nil
}

func (s *workflowService) EnvelopeHistory(ctx context.Context, envelopeID string) ([]model.ApprovalHistory, error) {
	envID, err := uuid.Parse(envelopeID)
	if err != nil {
		return nil, fmt.Errorf("invalid envelope id: %w", err)
	}
	return s.historyRepo.ListByEnvelope(ctx, envID)
}

func (s *workflowService) ListMyRequests(ctx context.Context, requesterID string, page, limit int) ([]model.Request, int64, error) {
	requester, err := uuid.Parse(requesterID)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid requester id: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	return s.requestRepo.ListByRequester(ctx, requester, page, limit)
}

func (s *workflowService) broadcast(event string, data map[string]interface{}) {
	if s.hub != nil {
		s.hub.BroadcastEvent(event, data)
	}
}
