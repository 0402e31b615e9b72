package service

import (
	"context"
	"sync"
	"testing"

	"ims-backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// itemIDByStock maps the submitted request's items back to their IDs,
// keyed by catalog item (custom items keyed by uuid.Nil).
func (f *workflowFixture) itemIDByStock(t *testing.T, requestID uuid.UUID) map[uuid.UUID]string {
	t.Helper()
	detail, err := f.workflow.GetRequest(context.Background(), requestID.String())
	require.NoError(t, err)

	out := make(map[uuid.UUID]string)
	for _, item := range detail.Request.Items {
		key := uuid.Nil
		if item.StockItemID != nil {
			key = *item.StockItemID
		}
		out[key] = item.ID.String()
	}
	return out
}

func TestSubmitRequestOpensFirstEnvelope(t *testing.T) {
	f := newWorkflowFixture(t)

	result := f.submit(t, []SubmitItemInput{
		f.stockItemInput(f.laptop.ID.String(), 2),
		{CustomDescription: "standing desk", Quantity: 1, UnitCostEstimate: "350.00"},
	})

	assert.Equal(t, f.supervisor.ID, result.AssignedApproverID)

	env := f.reloadEnvelope(t, result.EnvelopeID)
	assert.Equal(t, model.EnvelopePending, env.Status)
	assert.Equal(t, 1, env.Sequence)
	assert.Equal(t, f.supervisor.ID, env.CurrentApproverID)
	require.Len(t, env.Decisions, 2)
	for _, d := range env.Decisions {
		assert.Equal(t, model.ItemPending, d.Decision)
	}

	history, err := f.historyRepo.ListByRequest(context.Background(), result.RequestID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.ActionSubmitted, history[0].Action)
}

func TestSubmitRequestNoApproverConfigured(t *testing.T) {
	f := newWorkflowFixture(t)

	orphan := model.OrgUnit{Name: "Unstaffed"}
	require.NoError(t, f.db.Create(&orphan).Error)

	_, err := f.workflow.SubmitRequest(context.Background(), f.requester.ID.String(), SubmitRequestInput{
		UnitID:  orphan.ID.String(),
		Purpose: "anything",
		Items:   []SubmitItemInput{f.stockItemInput(f.laptop.ID.String(), 1)},
	})
	assert.ErrorIs(t, err, ErrNoApproverConfigured)

	// Nothing persisted.
	var count int64
	require.NoError(t, f.db.Model(&model.Request{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubmitRequestItemNeedsExactlyOneSource(t *testing.T) {
	f := newWorkflowFixture(t)

	_, err := f.workflow.SubmitRequest(context.Background(), f.requester.ID.String(), SubmitRequestInput{
		UnitID:  f.unit.ID.String(),
		Purpose: "bad item",
		Items: []SubmitItemInput{
			{StockItemID: f.laptop.ID.String(), CustomDescription: "also custom", Quantity: 1},
		},
	})
	assert.Error(t, err)
}

func TestDecideAllApprovedCommitsStock(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	result := f.submit(t, []SubmitItemInput{f.stockItemInput(f.laptop.ID.String(), 2)})
	items := f.itemIDByStock(t, result.RequestID)

	decide, err := f.workflow.Decide(ctx, result.EnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
		{ItemID: items[f.laptop.ID], Kind: string(model.ItemApprovedFromStock)},
	})
	require.NoError(t, err)
	assert.Equal(t, model.EnvelopeApproved, decide.OverallStatus)
	assert.Nil(t, decide.NextApproverID)

	item := f.reloadStockItem(t, f.laptop.ID)
	assert.Equal(t, 3, item.OnHandQuantity)
	assert.Equal(t, 3, item.AvailableQuantity)

	env := f.reloadEnvelope(t, result.EnvelopeID)
	assert.Equal(t, model.EnvelopeApproved, env.Status)
	require.NotNil(t, env.DecidedAt)
	require.Len(t, env.Decisions, 1)
	require.NotNil(t, env.Decisions[0].AllocatedQuantity)
	assert.Equal(t, 2, *env.Decisions[0].AllocatedQuantity)
}

func TestDecideMixedApprovalAndRejection(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	result := f.submit(t, []SubmitItemInput{
		f.stockItemInput(f.laptop.ID.String(), 1),
		f.stockItemInput(f.cable.ID.String(), 4),
	})
	items := f.itemIDByStock(t, result.RequestID)

	decide, err := f.workflow.Decide(ctx, result.EnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
		{ItemID: items[f.laptop.ID], Kind: string(model.ItemApprovedFromStock)},
		{ItemID: items[f.cable.ID], Kind: string(model.ItemRejected), Reason: "not needed"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.EnvelopeApprovedWithErrata, decide.OverallStatus)

	// The approved hold commits, the rejected line never held anything.
	laptop := f.reloadStockItem(t, f.laptop.ID)
	assert.Equal(t, 4, laptop.OnHandQuantity)
	cable := f.reloadStockItem(t, f.cable.ID)
	assert.Equal(t, 10, cable.AvailableQuantity)
}

func TestDecideReasonRequired(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	result := f.submit(t, []SubmitItemInput{f.stockItemInput(f.laptop.ID.String(), 1)})
	items := f.itemIDByStock(t, result.RequestID)

	for _, kind := range []model.ItemDecision{model.ItemRejected, model.ItemReturned} {
		_, err := f.workflow.Decide(ctx, result.EnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
			{ItemID: items[f.laptop.ID], Kind: string(kind)},
		})
		assert.ErrorIs(t, err, ErrReasonRequired, "kind %s", kind)
	}

	// Envelope untouched.
	env := f.reloadEnvelope(t, result.EnvelopeID)
	assert.Equal(t, model.ItemPending, env.Decisions[0].Decision)
}

func TestDecideNotCurrentApprover(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	result := f.submit(t, []SubmitItemInput{f.stockItemInput(f.laptop.ID.String(), 1)})
	items := f.itemIDByStock(t, result.RequestID)

	_, err := f.workflow.Decide(ctx, result.EnvelopeID.String(), f.director.ID.String(), []DecisionInput{
		{ItemID: items[f.laptop.ID], Kind: string(model.ItemApprovedFromStock)},
	})
	assert.ErrorIs(t, err, ErrNotCurrentApprover)
}

func TestDecideBatchIsAllOrNothing(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	result := f.submit(t, []SubmitItemInput{
		f.stockItemInput(f.laptop.ID.String(), 2),
		f.stockItemInput(f.cable.ID.String(), 99),
	})
	items := f.itemIDByStock(t, result.RequestID)

	// Second line exceeds cable stock; the whole batch must roll back,
	// including the successful laptop reservation.
	_, err := f.workflow.Decide(ctx, result.EnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
		{ItemID: items[f.laptop.ID], Kind: string(model.ItemApprovedFromStock)},
		{ItemID: items[f.cable.ID], Kind: string(model.ItemApprovedFromStock)},
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	var itemError *ItemError
	require.ErrorAs(t, err, &itemError)

	laptop := f.reloadStockItem(t, f.laptop.ID)
	assert.Equal(t, 5, laptop.AvailableQuantity, "rolled-back reservation must restore the hold")

	env := f.reloadEnvelope(t, result.EnvelopeID)
	assert.Equal(t, model.EnvelopePending, env.Status)
	for _, d := range env.Decisions {
		assert.Equal(t, model.ItemPending, d.Decision)
	}
}

func TestDecideItemTwiceFails(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	result := f.submit(t, []SubmitItemInput{
		f.stockItemInput(f.laptop.ID.String(), 1),
		f.stockItemInput(f.cable.ID.String(), 1),
	})
	items := f.itemIDByStock(t, result.RequestID)

	_, err := f.workflow.Decide(ctx, result.EnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
		{ItemID: items[f.laptop.ID], Kind: string(model.ItemApprovedFromStock)},
	})
	require.NoError(t, err)

	_, err = f.workflow.Decide(ctx, result.EnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
		{ItemID: items[f.laptop.ID], Kind: string(model.ItemRejected), Reason: "changed my mind"},
	})
	assert.ErrorIs(t, err, ErrItemAlreadyDecided)
}

func TestDecideConcurrentDoubleSubmit(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	result := f.submit(t, []SubmitItemInput{f.stockItemInput(f.laptop.ID.String(), 2)})
	items := f.itemIDByStock(t, result.RequestID)

	// Two racing submissions of the same approval batch. The envelope row
	// serializes them; the loser finds the envelope already closed.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.workflow.Decide(ctx, result.EnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
				{ItemID: items[f.laptop.ID], Kind: string(model.ItemApprovedFromStock)},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, ErrEnvelopeClosed)
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)

	// Exactly one deduction.
	item := f.reloadStockItem(t, f.laptop.ID)
	assert.Equal(t, 3, item.OnHandQuantity)
	assert.Equal(t, 3, item.AvailableQuantity)

	env := f.reloadEnvelope(t, result.EnvelopeID)
	assert.Equal(t, model.EnvelopeApproved, env.Status)
}

func TestDecideCustomItemCannotComeFromStock(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	result := f.submit(t, []SubmitItemInput{
		{CustomDescription: "ergonomic chair", Quantity: 1},
	})
	items := f.itemIDByStock(t, result.RequestID)

	_, err := f.workflow.Decide(ctx, result.EnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
		{ItemID: items[uuid.Nil], Kind: string(model.ItemApprovedFromStock)},
	})
	assert.ErrorIs(t, err, ErrInvalidDecision)

	// Procurement approval is the valid path for custom items.
	decide, err := f.workflow.Decide(ctx, result.EnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
		{ItemID: items[uuid.Nil], Kind: string(model.ItemApprovedProcurement)},
	})
	require.NoError(t, err)
	assert.Equal(t, model.EnvelopeApproved, decide.OverallStatus)
}

func TestDecideForwardReassignsEnvelope(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	result := f.submit(t, []SubmitItemInput{
		f.stockItemInput(f.laptop.ID.String(), 1),
		f.stockItemInput(f.cable.ID.String(), 2),
	})
	items := f.itemIDByStock(t, result.RequestID)

	decide, err := f.workflow.Decide(ctx, result.EnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
		{ItemID: items[f.cable.ID], Kind: string(model.ItemApprovedFromStock)},
		{ItemID: items[f.laptop.ID], Kind: string(model.ItemForwarded), Reason: "above my limit"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.EnvelopeForwarded, decide.OverallStatus)
	require.NotNil(t, decide.NextApproverID)
	assert.Equal(t, f.director.ID, *decide.NextApproverID)

	env := f.reloadEnvelope(t, result.EnvelopeID)
	assert.Equal(t, model.EnvelopePending, env.Status, "same envelope continues under the next approver")
	assert.Equal(t, f.director.ID, env.CurrentApproverID)

	// The forwarded item reopened; the approved one stays frozen.
	for _, d := range env.Decisions {
		if d.StockItemID != nil && *d.StockItemID == f.laptop.ID {
			assert.Equal(t, model.ItemPending, d.Decision)
		} else {
			assert.Equal(t, model.ItemApprovedFromStock, d.Decision)
		}
	}

	// The old approver lost their seat.
	_, err = f.workflow.Decide(ctx, result.EnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
		{ItemID: items[f.laptop.ID], Kind: string(model.ItemRejected), Reason: "no"},
	})
	assert.ErrorIs(t, err, ErrNotCurrentApprover)

	// Director approves the reopened item, closing the pass.
	final, err := f.workflow.Decide(ctx, result.EnvelopeID.String(), f.director.ID.String(), []DecisionInput{
		{ItemID: items[f.laptop.ID], Kind: string(model.ItemApprovedFromStock)},
	})
	require.NoError(t, err)
	assert.Equal(t, model.EnvelopeApproved, final.OverallStatus)

	laptop := f.reloadStockItem(t, f.laptop.ID)
	assert.Equal(t, 4, laptop.OnHandQuantity)
	cable := f.reloadStockItem(t, f.cable.ID)
	assert.Equal(t, 8, cable.OnHandQuantity)
}

func TestReturnedKeepsReservationsAndResubmitCarriesApprovals(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	result := f.submit(t, []SubmitItemInput{
		f.stockItemInput(f.laptop.ID.String(), 2),
		f.stockItemInput(f.cable.ID.String(), 4),
	})
	items := f.itemIDByStock(t, result.RequestID)

	// Approve laptops, return the cable line for clarification.
	decide, err := f.workflow.Decide(ctx, result.EnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
		{ItemID: items[f.laptop.ID], Kind: string(model.ItemApprovedFromStock)},
		{ItemID: items[f.cable.ID], Kind: string(model.ItemReturned), Reason: "specify cable length"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.EnvelopeReturned, decide.OverallStatus)

	// The laptop hold survives the return: reserved, not committed.
	laptop := f.reloadStockItem(t, f.laptop.ID)
	assert.Equal(t, 3, laptop.AvailableQuantity)
	assert.Equal(t, 5, laptop.OnHandQuantity)

	// Editing the approved laptop line is refused, it is frozen.
	_, err = f.workflow.Resubmit(ctx, result.RequestID.String(), f.requester.ID.String(), []ResubmitItemInput{
		{ItemID: items[f.laptop.ID], Quantity: 3},
	})
	assert.ErrorIs(t, err, ErrItemAlreadyDecided)

	// Edit the returned line and resubmit.
	resubmit, err := f.workflow.Resubmit(ctx, result.RequestID.String(), f.requester.ID.String(), []ResubmitItemInput{
		{ItemID: items[f.cable.ID], Quantity: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, f.supervisor.ID, resubmit.AssignedApproverID)

	// Old envelope superseded, new one live at the next sequence.
	oldEnv := f.reloadEnvelope(t, result.EnvelopeID)
	assert.NotNil(t, oldEnv.SupersededAt)

	newEnv := f.reloadEnvelope(t, resubmit.NewEnvelopeID)
	assert.Equal(t, 2, newEnv.Sequence)
	assert.Equal(t, model.EnvelopePending, newEnv.Status)
	require.Len(t, newEnv.Decisions, 2)
	for _, d := range newEnv.Decisions {
		if d.StockItemID != nil && *d.StockItemID == f.laptop.ID {
			assert.Equal(t, model.ItemApprovedFromStock, d.Decision, "approved item carries over frozen")
			assert.NotNil(t, d.ReservationID)
		} else {
			assert.Equal(t, model.ItemPending, d.Decision)
			assert.Equal(t, 2, d.RequestedQuantity, "edited quantity snapshots into the new pass")
		}
	}

	// Approving the remaining line closes the request and commits both holds.
	final, err := f.workflow.Decide(ctx, resubmit.NewEnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
		{ItemID: items[f.cable.ID], Kind: string(model.ItemApprovedFromStock)},
	})
	require.NoError(t, err)
	assert.Equal(t, model.EnvelopeApproved, final.OverallStatus)

	laptop = f.reloadStockItem(t, f.laptop.ID)
	assert.Equal(t, 3, laptop.OnHandQuantity)
	cable := f.reloadStockItem(t, f.cable.ID)
	assert.Equal(t, 8, cable.OnHandQuantity)
	assert.Equal(t, 8, cable.AvailableQuantity)
}

func TestRejectAfterReturnCommitsFrozenApproval(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	result := f.submit(t, []SubmitItemInput{
		f.stockItemInput(f.laptop.ID.String(), 2),
		f.stockItemInput(f.cable.ID.String(), 1),
	})
	items := f.itemIDByStock(t, result.RequestID)

	// First pass: approve laptops, return the cable.
	_, err := f.workflow.Decide(ctx, result.EnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
		{ItemID: items[f.laptop.ID], Kind: string(model.ItemApprovedFromStock)},
		{ItemID: items[f.cable.ID], Kind: string(model.ItemReturned), Reason: "why a cable"},
	})
	require.NoError(t, err)

	resubmit, err := f.workflow.Resubmit(ctx, result.RequestID.String(), f.requester.ID.String(), nil)
	require.NoError(t, err)

	// Second pass: reject the reopened cable. The frozen laptop approval
	// keeps the aggregate at approved-with-exceptions, which is terminal,
	// so the laptop hold commits.
	final, err := f.workflow.Decide(ctx, resubmit.NewEnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
		{ItemID: items[f.cable.ID], Kind: string(model.ItemRejected), Reason: "not justified"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.EnvelopeApprovedWithErrata, final.OverallStatus)

	laptop := f.reloadStockItem(t, f.laptop.ID)
	assert.Equal(t, 3, laptop.OnHandQuantity)
	cable := f.reloadStockItem(t, f.cable.ID)
	assert.Equal(t, 10, cable.AvailableQuantity)
}

func TestDecideOnClosedEnvelope(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	result := f.submit(t, []SubmitItemInput{f.stockItemInput(f.laptop.ID.String(), 1)})
	items := f.itemIDByStock(t, result.RequestID)

	_, err := f.workflow.Decide(ctx, result.EnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
		{ItemID: items[f.laptop.ID], Kind: string(model.ItemApprovedFromStock)},
	})
	require.NoError(t, err)

	_, err = f.workflow.Decide(ctx, result.EnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
		{ItemID: items[f.laptop.ID], Kind: string(model.ItemRejected), Reason: "too late"},
	})
	assert.ErrorIs(t, err, ErrEnvelopeClosed)
}

func TestResubmitGuards(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	result := f.submit(t, []SubmitItemInput{f.stockItemInput(f.laptop.ID.String(), 1)})

	// Not returned yet.
	_, err := f.workflow.Resubmit(ctx, result.RequestID.String(), f.requester.ID.String(), nil)
	assert.ErrorIs(t, err, ErrNotInReturnedState)

	items := f.itemIDByStock(t, result.RequestID)
	_, err = f.workflow.Decide(ctx, result.EnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
		{ItemID: items[f.laptop.ID], Kind: string(model.ItemReturned), Reason: "rework"},
	})
	require.NoError(t, err)

	// Only the owner may resubmit.
	_, err = f.workflow.Resubmit(ctx, result.RequestID.String(), f.supervisor.ID.String(), nil)
	assert.ErrorIs(t, err, ErrNotRequestOwner)
}

func TestListPendingShowsOnlyAssignedEnvelopes(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	first := f.submit(t, []SubmitItemInput{f.stockItemInput(f.laptop.ID.String(), 1)})
	f.submit(t, []SubmitItemInput{f.stockItemInput(f.cable.ID.String(), 1)})

	queue, total, err := f.workflow.ListPending(ctx, f.supervisor.ID.String(), 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, queue, 2)
	assert.Equal(t, "alice", queue[0].RequesterName)

	// Director has nothing until something is forwarded.
	_, total, err = f.workflow.ListPending(ctx, f.director.ID.String(), 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)

	// Deciding the first request removes it from the queue.
	items := f.itemIDByStock(t, first.RequestID)
	_, err = f.workflow.Decide(ctx, first.EnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
		{ItemID: items[f.laptop.ID], Kind: string(model.ItemApprovedFromStock)},
	})
	require.NoError(t, err)

	_, total, err = f.workflow.ListPending(ctx, f.supervisor.ID.String(), 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestGetRequestDetail(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	result := f.submit(t, []SubmitItemInput{f.stockItemInput(f.laptop.ID.String(), 1)})

	detail, err := f.workflow.GetRequest(ctx, result.RequestID.String())
	require.NoError(t, err)
	require.NotNil(t, detail.Request)
	require.NotNil(t, detail.Envelope)
	assert.Equal(t, result.EnvelopeID, detail.Envelope.ID)
	assert.Len(t, detail.History, 1)

	history, err := f.workflow.EnvelopeHistory(ctx, result.EnvelopeID.String())
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestPartialBatchKeepsEnvelopePending(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	result := f.submit(t, []SubmitItemInput{
		f.stockItemInput(f.laptop.ID.String(), 1),
		f.stockItemInput(f.cable.ID.String(), 1),
	})
	items := f.itemIDByStock(t, result.RequestID)

	decide, err := f.workflow.Decide(ctx, result.EnvelopeID.String(), f.supervisor.ID.String(), []DecisionInput{
		{ItemID: items[f.laptop.ID], Kind: string(model.ItemApprovedFromStock)},
	})
	require.NoError(t, err)
	assert.Equal(t, model.EnvelopePending, decide.OverallStatus)

	// Hold taken, nothing committed yet.
	laptop := f.reloadStockItem(t, f.laptop.ID)
	assert.Equal(t, 4, laptop.AvailableQuantity)
	assert.Equal(t, 5, laptop.OnHandQuantity)

	env := f.reloadEnvelope(t, result.EnvelopeID)
	assert.Equal(t, model.EnvelopePending, env.Status)
}
