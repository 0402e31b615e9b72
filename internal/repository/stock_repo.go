package repository

import (
	"context"
	"time"

	"ims-backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockRepository interface {
	FindItem(ctx context.Context, id uuid.UUID) (*model.StockItem, error)
	FindItemForUpdate(ctx context.Context, id uuid.UUID) (*model.StockItem, error)
	ListItems(ctx context.Context, page, limit int) ([]model.StockItem, int64, error)
	CreateItem(ctx context.Context, item *model.StockItem) error
	// DecrementAvailable is the atomic compare-and-decrement backing stock
	// reservation: it succeeds (returns true) only if available_quantity
	// covers qty at the moment of the update.
	DecrementAvailable(ctx context.Context, itemID uuid.UUID, qty int) (bool, error)
	IncrementAvailable(ctx context.Context, itemID uuid.UUID, qty int) error
	AddStock(ctx context.Context, itemID uuid.UUID, qty int) error
	DecrementOnHand(ctx context.Context, itemID uuid.UUID, qty int) error

	CreateReservation(ctx context.Context, res *model.StockReservation) error
	FindReservation(ctx context.Context, id uuid.UUID) (*model.StockReservation, error)
	FindReservationForUpdate(ctx context.Context, id uuid.UUID) (*model.StockReservation, error)
	ActiveReservationsByRequest(ctx context.Context, requestID uuid.UUID) ([]model.StockReservation, error)
	ListActiveOlderThan(ctx context.Context, cutoff time.Time) ([]model.StockReservation, error)
	UpdateReservation(ctx context.Context, res *model.StockReservation) error

	CreateTransaction(ctx context.Context, tx *model.StockTransaction) error
	ListTransactionsByItem(ctx context.Context, itemID uuid.UUID, limit int) ([]model.StockTransaction, error)
}

type stockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) StockRepository {
	return &stockRepository{db: db}
}

func (r *stockRepository) FindItem(ctx context.Context, id uuid.UUID) (*model.StockItem, error) {
	var item model.StockItem
	if err := GetDB(ctx, r.db).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *stockRepository) FindItemForUpdate(ctx context.Context, id uuid.UUID) (*model.StockItem, error) {
	var item model.StockItem
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *stockRepository) ListItems(ctx context.Context, page, limit int) ([]model.StockItem, int64, error) {
	var items []model.StockItem
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.StockItem{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("item_code ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *stockRepository) CreateItem(ctx context.Context, item *model.StockItem) error {
	return GetDB(ctx, r.db).Create(item).Error
}

func (r *stockRepository) DecrementAvailable(ctx context.Context, itemID uuid.UUID, qty int) (bool, error) {
	result := GetDB(ctx, r.db).Model(&model.StockItem{}).
		Where("id = ? AND available_quantity >= ?", itemID, qty).
		UpdateColumn("available_quantity", gorm.Expr("available_quantity - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *stockRepository) IncrementAvailable(ctx context.Context, itemID uuid.UUID, qty int) error {
	return GetDB(ctx, r.db).Model(&model.StockItem{}).
		Where("id = ?", itemID).
		UpdateColumn("available_quantity", gorm.Expr("available_quantity + ?", qty)).Error
}

func (r *stockRepository) AddStock(ctx context.Context, itemID uuid.UUID, qty int) error {
	return GetDB(ctx, r.db).Model(&model.StockItem{}).
		Where("id = ?", itemID).
		UpdateColumns(map[string]interface{}{
			"on_hand_quantity":   gorm.Expr("on_hand_quantity + ?", qty),
			"available_quantity": gorm.Expr("available_quantity + ?", qty),
		}).Error
}

func (r *stockRepository) DecrementOnHand(ctx context.Context, itemID uuid.UUID, qty int) error {
	return GetDB(ctx, r.db).Model(&model.StockItem{}).
		Where("id = ?", itemID).
		UpdateColumn("on_hand_quantity", gorm.Expr("on_hand_quantity - ?", qty)).Error
}

func (r *stockRepository) CreateReservation(ctx context.Context, res *model.StockReservation) error {
	return GetDB(ctx, r.db).Create(res).Error
}

func (r *stockRepository) FindReservation(ctx context.Context, id uuid.UUID) (*model.StockReservation, error) {
	var res model.StockReservation
	if err := GetDB(ctx, r.db).First(&res, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *stockRepository) FindReservationForUpdate(ctx context.Context, id uuid.UUID) (*model.StockReservation, error) {
	var res model.StockReservation
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&res, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *stockRepository) ActiveReservationsByRequest(ctx context.Context, requestID uuid.UUID) ([]model.StockReservation, error) {
	var reservations []model.StockReservation
	if err := GetDB(ctx, r.db).
		Where("request_id = ? AND status = ?", requestID, model.ReservationActive).
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *stockRepository) ListActiveOlderThan(ctx context.Context, cutoff time.Time) ([]model.StockReservation, error) {
	var reservations []model.StockReservation
	if err := GetDB(ctx, r.db).
		Preload("StockItem").
		Where("status = ? AND created_at < ?", model.ReservationActive, cutoff).
		Order("created_at ASC").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *stockRepository) UpdateReservation(ctx context.Context, res *model.StockReservation) error {
	return GetDB(ctx, r.db).Omit("StockItem").Save(res).Error
}

func (r *stockRepository) CreateTransaction(ctx context.Context, tx *model.StockTransaction) error {
	return GetDB(ctx, r.db).Create(tx).Error
}

func (r *stockRepository) ListTransactionsByItem(ctx context.Context, itemID uuid.UUID, limit int) ([]model.StockTransaction, error) {
	var txs []model.StockTransaction
	if err := GetDB(ctx, r.db).
		Where("stock_item_id = ?", itemID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}
