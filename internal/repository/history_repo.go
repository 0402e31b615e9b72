package repository

import (
	"context"

	"ims-backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryRepository appends to the approval audit trail. Write-once: there
// is deliberately no update or delete.
type HistoryRepository interface {
	Log(ctx context.Context, entry *model.ApprovalHistory) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.ApprovalHistory, error)
	ListByEnvelope(ctx context.Context, envelopeID uuid.UUID) ([]model.ApprovalHistory, error)
}

type historyRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Log(ctx context.Context, entry *model.ApprovalHistory) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *historyRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.ApprovalHistory, error) {
	var entries []model.ApprovalHistory
	if err := GetDB(ctx, r.db).
		Preload("Actor").
		Where("request_id = ?", requestID).
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *historyRepository) ListByEnvelope(ctx context.Context, envelopeID uuid.UUID) ([]model.ApprovalHistory, error) {
	var entries []model.ApprovalHistory
	if err := GetDB(ctx, r.db).
		Preload("Actor").
		Where("envelope_id = ?", envelopeID).
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
