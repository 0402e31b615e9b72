package repository

import (
	"context"

	"ims-backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequestRepository interface {
	Create(ctx context.Context, req *model.Request) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error)
	FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Request, error)
	ListByRequester(ctx context.Context, requesterID uuid.UUID, page, limit int) ([]model.Request, int64, error)
	UpdateItem(ctx context.Context, item *model.RequestItem) error
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *model.Request) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var req model.Request
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var req model.Request
	if err := GetDB(ctx, r.db).
		Preload("Items").
		Preload("Items.StockItem").
		Preload("Requester").
		First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) ListByRequester(ctx context.Context, requesterID uuid.UUID, page, limit int) ([]model.Request, int64, error) {
	var requests []model.Request
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Request{}).Where("requester_id = ?", requesterID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Items").
		Where("requester_id = ?", requesterID).
		Order("submitted_at DESC").
		Offset(offset).Limit(limit).
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *requestRepository) UpdateItem(ctx context.Context, item *model.RequestItem) error {
	return GetDB(ctx, r.db).Save(item).Error
}
