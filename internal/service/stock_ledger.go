package service

import (
	"context"
	"fmt"
	"time"

	"ims-backend/internal/model"
	"ims-backend/internal/repository"

	"github.com/google/uuid"
)

// ReserveInput identifies the stock hold to take for one approved item.
type ReserveInput struct {
	StockItemID   uuid.UUID
	RequestID     uuid.UUID
	RequestItemID uuid.UUID
	EnvelopeID    uuid.UUID
	Quantity      int
}

// StockLedger exposes atomic reserve/commit/release over stock quantities.
// Reserve holds available quantity without writing a ledger entry; Commit
// writes the permanent OUT entry when the request reaches a terminal
// approved state; Release restores the hold.
type StockLedger interface {
	Reserve(ctx context.Context, in ReserveInput) (*model.StockReservation, error)
	Commit(ctx context.Context, reservationID uuid.UUID, actorID uuid.UUID) error
	Release(ctx context.Context, reservationID uuid.UUID, actorID uuid.UUID) error

	// Receive records stock intake: an IN ledger entry raising both
	// on-hand and available quantity.
	Receive(ctx context.Context, stockItemID uuid.UUID, qty int, actorID uuid.UUID, note string) (*model.StockItem, error)

	// StaleReservations lists active reservations older than maxAge for
	// manual intervention. The ledger never auto-releases: pulling stock
	// out from under an in-flight approval is an operator decision.
	StaleReservations(ctx context.Context, maxAge time.Duration) ([]model.StockReservation, error)

	// Catalog surface
	ListItems(ctx context.Context, page, limit int) ([]model.StockItem, int64, error)
	CreateItem(ctx context.Context, item *model.StockItem) error
	ItemTransactions(ctx context.Context, stockItemID uuid.UUID, limit int) ([]model.StockTransaction, error)
}

type stockLedger struct {
	stockRepo repository.StockRepository
	txManager repository.TransactionManager
}

func NewStockLedger(stockRepo repository.StockRepository, txManager repository.TransactionManager) StockLedger {
	return &stockLedger{stockRepo: stockRepo, txManager: txManager}
}

// Reserve decrements available quantity with a conditional update, so of
// two racing reservations for the last unit exactly one succeeds. The
// caller is expected to already be inside a transaction; Reserve works
// either way because the repository resolves the handle from context.
func (l *stockLedger) Reserve(ctx context.Context, in ReserveInput) (*model.StockReservation, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("reservation quantity must be positive, got %d", in.Quantity)
	}

	ok, err := l.stockRepo.DecrementAvailable(ctx, in.StockItemID, in.Quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to decrement available stock: %w", err)
	}
	if !ok {
		return nil, itemErr(in.RequestItemID, ErrInsufficientStock)
	}

	reservation := &model.StockReservation{
		StockItemID:   in.StockItemID,
		RequestID:     in.RequestID,
		RequestItemID: in.RequestItemID,
		EnvelopeID:    in.EnvelopeID,
		Quantity:      in.Quantity,
		Status:        model.ReservationActive,
	}
	if err := l.stockRepo.CreateReservation(ctx, reservation); err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	return reservation, nil
}

func (l *stockLedger) Commit(ctx context.Context, reservationID uuid.UUID, actorID uuid.UUID) error {
	return l.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		res, err := l.stockRepo.FindReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return fmt.Errorf("reservation not found: %w", err)
		}
		if res.Status != model.ReservationActive {
			return fmt.Errorf("reservation %s is already %s", res.ID, res.Status)
		}

		item, err := l.stockRepo.FindItemForUpdate(txCtx, res.StockItemID)
		if err != nil {
			return fmt.Errorf("stock item not found: %w", err)
		}

		if err := l.stockRepo.DecrementOnHand(txCtx, res.StockItemID, res.Quantity); err != nil {
			return fmt.Errorf("failed to deduct on-hand stock: %w", err)
		}

		ledger := &model.StockTransaction{
			StockItemID:     res.StockItemID,
			RequestID:       &res.RequestID,
			RequestItemID:   &res.RequestItemID,
			TransactionType: model.TxTypeOut,
			QuantityChanged: -res.Quantity,
			StockAfter:      item.OnHandQuantity - res.Quantity,
			PerformedBy:     &actorID,
			Note:            "Stock issued for approved request",
		}
		if err := l.stockRepo.CreateTransaction(txCtx, ledger); err != nil {
			return fmt.Errorf("failed to record stock transaction: %w", err)
		}

		res.Status = model.ReservationCommitted
		if err := l.stockRepo.UpdateReservation(txCtx, res); err != nil {
			return fmt.Errorf("failed to update reservation: %w", err)
		}
		return nil
	})
}

func (l *stockLedger) Release(ctx context.Context, reservationID uuid.UUID, actorID uuid.UUID) error {
	return l.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		res, err := l.stockRepo.FindReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return fmt.Errorf("reservation not found: %w", err)
		}
		if res.Status != model.ReservationActive {
			return fmt.Errorf("reservation %s is already %s", res.ID, res.Status)
		}

		if err := l.stockRepo.IncrementAvailable(txCtx, res.StockItemID, res.Quantity); err != nil {
			return fmt.Errorf("failed to restore available stock: %w", err)
		}

		res.Status = model.ReservationReleased
		if err := l.stockRepo.UpdateReservation(txCtx, res); err != nil {
			return fmt.Errorf("failed to update reservation: %w", err)
		}
		return nil
	})
}

func (l *stockLedger) Receive(ctx context.Context, stockItemID uuid.UUID, qty int, actorID uuid.UUID, note string) (*model.StockItem, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("intake quantity must be positive, got %d", qty)
	}

	var updated *model.StockItem
	err := l.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		item, err := l.stockRepo.FindItemForUpdate(txCtx, stockItemID)
		if err != nil {
			return fmt.Errorf("stock item not found: %w", err)
		}

		if err := l.stockRepo.AddStock(txCtx, stockItemID, qty); err != nil {
			return fmt.Errorf("failed to add stock: %w", err)
		}

		ledger := &model.StockTransaction{
			StockItemID:     stockItemID,
			TransactionType: model.TxTypeIn,
			QuantityChanged: qty,
			StockAfter:      item.OnHandQuantity + qty,
			PerformedBy:     &actorID,
			Note:            note,
		}
		if err := l.stockRepo.CreateTransaction(txCtx, ledger); err != nil {
			return fmt.Errorf("failed to record stock transaction: %w", err)
		}

		updated, err = l.stockRepo.FindItem(txCtx, stockItemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (l *stockLedger) StaleReservations(ctx context.Context, maxAge time.Duration) ([]model.StockReservation, error) {
	cutoff := time.Now().Add(-maxAge)
	return l.stockRepo.ListActiveOlderThan(ctx, cutoff)
}

func (l *stockLedger) ListItems(ctx context.Context, page, limit int) ([]model.StockItem, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return l.stockRepo.ListItems(ctx, page, limit)
}

func (l *stockLedger) CreateItem(ctx context.Context, item *model.StockItem) error {
	if item.AvailableQuantity == 0 {
		item.AvailableQuantity = item.OnHandQuantity
	}
	return l.stockRepo.CreateItem(ctx, item)
}

func (l *stockLedger) ItemTransactions(ctx context.Context, stockItemID uuid.UUID, limit int) ([]model.StockTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.stockRepo.ListTransactionsByItem(ctx, stockItemID, limit)
}
