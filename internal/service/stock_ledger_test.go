package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"ims-backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reserveInput(item model.StockItem, qty int) ReserveInput {
	return ReserveInput{
		StockItemID:   item.ID,
		RequestID:     uuid.New(),
		RequestItemID: uuid.New(),
		EnvelopeID:    uuid.New(),
		Quantity:      qty,
	}
}

func TestReserveHoldsAvailableNotOnHand(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	res, err := f.ledger.Reserve(ctx, reserveInput(f.laptop, 3))
	require.NoError(t, err)
	assert.Equal(t, model.ReservationActive, res.Status)

	item := f.reloadStockItem(t, f.laptop.ID)
	assert.Equal(t, 2, item.AvailableQuantity)
	assert.Equal(t, 5, item.OnHandQuantity, "on-hand only moves at commit")
}

func TestReserveInsufficientStock(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Reserve(ctx, reserveInput(f.laptop, 6))
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// Failed reservation must not move quantities.
	item := f.reloadStockItem(t, f.laptop.ID)
	assert.Equal(t, 5, item.AvailableQuantity)
}

func TestReserveSequentialContention(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	// Two holds compete for 5 units: the first takes 4, the second asks for
	// 2 and must lose.
	_, err := f.ledger.Reserve(ctx, reserveInput(f.laptop, 4))
	require.NoError(t, err)

	_, err = f.ledger.Reserve(ctx, reserveInput(f.laptop, 2))
	assert.ErrorIs(t, err, ErrInsufficientStock)

	item := f.reloadStockItem(t, f.laptop.ID)
	assert.Equal(t, 1, item.AvailableQuantity)
}

func TestReserveConcurrentContention(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	// Two goroutines race for 5 units, 3 each. The conditional decrement
	// guarantees exactly one winner whatever the interleaving.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Reserve(ctx, reserveInput(f.laptop, 3))
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
			require.ErrorIs(t, err, ErrInsufficientStock)
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)

	item := f.reloadStockItem(t, f.laptop.ID)
	assert.Equal(t, 2, item.AvailableQuantity)
	assert.Equal(t, 5, item.OnHandQuantity)
}

func TestCommitWritesLedgerAndDeductsOnHand(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	res, err := f.ledger.Reserve(ctx, reserveInput(f.laptop, 2))
	require.NoError(t, err)

	require.NoError(t, f.ledger.Commit(ctx, res.ID, f.supervisor.ID))

	item := f.reloadStockItem(t, f.laptop.ID)
	assert.Equal(t, 3, item.OnHandQuantity)
	assert.Equal(t, 3, item.AvailableQuantity)

	var reservation model.StockReservation
	require.NoError(t, f.db.First(&reservation, "id = ?", res.ID).Error)
	assert.Equal(t, model.ReservationCommitted, reservation.Status)

	txs, err := f.ledger.ItemTransactions(ctx, f.laptop.ID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, model.TxTypeOut, txs[0].TransactionType)
	assert.Equal(t, -2, txs[0].QuantityChanged)
	assert.Equal(t, 3, txs[0].StockAfter)
}

func TestCommitIsNotRepeatable(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	res, err := f.ledger.Reserve(ctx, reserveInput(f.laptop, 1))
	require.NoError(t, err)

	require.NoError(t, f.ledger.Commit(ctx, res.ID, f.supervisor.ID))
	assert.Error(t, f.ledger.Commit(ctx, res.ID, f.supervisor.ID))
	assert.Error(t, f.ledger.Release(ctx, res.ID, f.supervisor.ID))

	// One deduction only.
	item := f.reloadStockItem(t, f.laptop.ID)
	assert.Equal(t, 4, item.OnHandQuantity)
}

func TestReleaseRestoresAvailable(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	res, err := f.ledger.Reserve(ctx, reserveInput(f.laptop, 3))
	require.NoError(t, err)

	require.NoError(t, f.ledger.Release(ctx, res.ID, f.supervisor.ID))

	item := f.reloadStockItem(t, f.laptop.ID)
	assert.Equal(t, 5, item.AvailableQuantity)
	assert.Equal(t, 5, item.OnHandQuantity)

	// No OUT entry: the hold never became an issue.
	txs, err := f.ledger.ItemTransactions(ctx, f.laptop.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestReceiveRaisesBothQuantities(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	item, err := f.ledger.Receive(ctx, f.laptop.ID, 7, f.supervisor.ID, "quarterly procurement")
	require.NoError(t, err)
	assert.Equal(t, 12, item.OnHandQuantity)
	assert.Equal(t, 12, item.AvailableQuantity)

	txs, err := f.ledger.ItemTransactions(ctx, f.laptop.ID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, model.TxTypeIn, txs[0].TransactionType)
	assert.Equal(t, 7, txs[0].QuantityChanged)
}

func TestStaleReservations(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	res, err := f.ledger.Reserve(ctx, reserveInput(f.laptop, 1))
	require.NoError(t, err)

	// Fresh hold is not stale.
	stale, err := f.ledger.StaleReservations(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, stale)

	// Age the row and it shows up; nothing is auto-released.
	require.NoError(t, f.db.Model(&model.StockReservation{}).
		Where("id = ?", res.ID).
		UpdateColumn("created_at", time.Now().Add(-48*time.Hour)).Error)

	stale, err = f.ledger.StaleReservations(ctx, time.Hour)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, model.ReservationActive, stale[0].Status)
}
