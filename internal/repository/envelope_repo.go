package repository

import (
	"context"

	"ims-backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EnvelopeRepository interface {
	Create(ctx context.Context, env *model.ApprovalEnvelope) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalEnvelope, error)
	// FindByIDForUpdate locks the envelope row for the duration of the
	// surrounding transaction so racing deciders serialize on it.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ApprovalEnvelope, error)
	FindLiveByRequest(ctx context.Context, requestID uuid.UUID) (*model.ApprovalEnvelope, error)
	FindLiveByRequestForUpdate(ctx context.Context, requestID uuid.UUID) (*model.ApprovalEnvelope, error)
	ListPendingByApprover(ctx context.Context, approverID uuid.UUID, page, limit int) ([]model.ApprovalEnvelope, int64, error)
	Update(ctx context.Context, env *model.ApprovalEnvelope) error
	Decisions(ctx context.Context, envelopeID uuid.UUID) ([]model.ApprovalItemDecision, error)
	CreateDecision(ctx context.Context, d *model.ApprovalItemDecision) error
	UpdateDecision(ctx context.Context, d *model.ApprovalItemDecision) error
}

type envelopeRepository struct {
	db *gorm.DB
}

func NewEnvelopeRepository(db *gorm.DB) EnvelopeRepository {
	return &envelopeRepository{db: db}
}

func (r *envelopeRepository) Create(ctx context.Context, env *model.ApprovalEnvelope) error {
	return GetDB(ctx, r.db).Create(env).Error
}

func (r *envelopeRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalEnvelope, error) {
	var env model.ApprovalEnvelope
	if err := GetDB(ctx, r.db).Preload("Decisions").First(&env, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &env, nil
}

func (r *envelopeRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ApprovalEnvelope, error) {
	var env model.ApprovalEnvelope
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&env, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &env, nil
}

// live = non-terminal and not superseded; at most one such envelope exists
// per request.
func (r *envelopeRepository) FindLiveByRequest(ctx context.Context, requestID uuid.UUID) (*model.ApprovalEnvelope, error) {
	return r.findLive(GetDB(ctx, r.db), requestID)
}

func (r *envelopeRepository) FindLiveByRequestForUpdate(ctx context.Context, requestID uuid.UUID) (*model.ApprovalEnvelope, error) {
	return r.findLive(GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), requestID)
}

func (r *envelopeRepository) findLive(db *gorm.DB, requestID uuid.UUID) (*model.ApprovalEnvelope, error) {
	var env model.ApprovalEnvelope
	err := db.
		Where("request_id = ? AND superseded_at IS NULL", requestID).
		Where("status IN ?", []model.EnvelopeStatus{model.EnvelopePending, model.EnvelopeReturned, model.EnvelopeForwarded}).
		Order("sequence DESC").
		First(&env).Error
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func (r *envelopeRepository) ListPendingByApprover(ctx context.Context, approverID uuid.UUID, page, limit int) ([]model.ApprovalEnvelope, int64, error) {
	var envelopes []model.ApprovalEnvelope
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.ApprovalEnvelope{}).
		Where("current_approver_id = ? AND status = ? AND superseded_at IS NULL", approverID, model.EnvelopePending)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Decisions").
		Preload("Request").
		Preload("Request.Items").
		Preload("Request.Requester").
		Where("current_approver_id = ? AND status = ? AND superseded_at IS NULL", approverID, model.EnvelopePending).
		Order("submitted_at ASC").
		Offset(offset).Limit(limit).
		Find(&envelopes).Error; err != nil {
		return nil, 0, err
	}

	return envelopes, total, nil
}

func (r *envelopeRepository) Update(ctx context.Context, env *model.ApprovalEnvelope) error {
	return GetDB(ctx, r.db).Omit("Decisions", "Request", "CurrentApprover").Save(env).Error
}

func (r *envelopeRepository) Decisions(ctx context.Context, envelopeID uuid.UUID) ([]model.ApprovalItemDecision, error) {
	var decisions []model.ApprovalItemDecision
	if err := GetDB(ctx, r.db).
		Where("envelope_id = ?", envelopeID).
		Order("created_at ASC").
		Find(&decisions).Error; err != nil {
		return nil, err
	}
	return decisions, nil
}

func (r *envelopeRepository) CreateDecision(ctx context.Context, d *model.ApprovalItemDecision) error {
	return GetDB(ctx, r.db).Create(d).Error
}

func (r *envelopeRepository) UpdateDecision(ctx context.Context, d *model.ApprovalItemDecision) error {
	return GetDB(ctx, r.db).Save(d).Error
}
