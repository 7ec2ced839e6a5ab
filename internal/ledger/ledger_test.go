package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"commerce-core/internal/models"
	"commerce-core/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adjustOnce(t *testing.T, ms *store.MemStore, lg *Ledger, req AdjustRequest) *models.Movement {
	t.Helper()
	var movement *models.Movement
	err := ms.WithTx(context.Background(), func(tx store.Tx) error {
		var err error
		movement, err = lg.Adjust(context.Background(), tx, req)
		return err
	})
	require.NoError(t, err)
	return movement
}

func TestAdjustMovementInvariants(t *testing.T) {
	ms := store.NewMemStore()
	pid := ms.AddProduct(models.Product{SKU: "SKU-1", Name: "Widget", Price: 100}, 0, nil, nil)
	lg := New()
	ctx := context.Background()

	in := adjustOnce(t, ms, lg, AdjustRequest{
		ProductID: pid, Quantity: 7, Direction: models.DirectionIn,
		Reason: "restock", ReferenceType: models.ReferenceAdjustment,
	})
	assert.Equal(t, 0, in.PreviousStock)
	assert.Equal(t, 7, in.NewStock)
	assert.Equal(t, models.DirectionIn, in.Direction)

	out := adjustOnce(t, ms, lg, AdjustRequest{
		ProductID: pid, Quantity: 3, Direction: models.DirectionOut,
		Reason: "correction", ReferenceType: models.ReferenceAdjustment,
	})
	assert.Equal(t, 7, out.PreviousStock)
	assert.Equal(t, 4, out.NewStock)

	ps, err := ms.ProductStock(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 4, ps.Stock)

	movements, err := ms.ProductMovements(ctx, pid)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	for _, m := range movements {
		switch m.Direction {
		case models.DirectionIn:
			assert.Equal(t, m.PreviousStock+m.Quantity, m.NewStock)
		case models.DirectionOut:
			assert.Equal(t, m.PreviousStock-m.Quantity, m.NewStock)
		}
	}
}

func TestAdjustInsufficientStock(t *testing.T) {
	ms := store.NewMemStore()
	pid := ms.AddProduct(models.Product{SKU: "SKU-1", Name: "Widget", Price: 100}, 5, nil, nil)
	lg := New()
	ctx := context.Background()

	err := ms.WithTx(ctx, func(tx store.Tx) error {
		_, err := lg.Adjust(ctx, tx, AdjustRequest{
			ProductID: pid, Quantity: 6, Direction: models.DirectionOut,
			Reason: "order created", ReferenceID: 1, ReferenceType: models.ReferenceOrder,
		})
		return err
	})

	var insufficient *models.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, pid, insufficient.ProductID)
	assert.Equal(t, 6, insufficient.Requested)
	assert.Equal(t, 5, insufficient.Available)

	// no mutation survives the rejection
	ps, err := ms.ProductStock(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 5, ps.Stock)

	movements, err := ms.ProductMovements(ctx, pid)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestAdjustRejectsBadInput(t *testing.T) {
	ms := store.NewMemStore()
	pid := ms.AddProduct(models.Product{SKU: "SKU-1", Name: "Widget", Price: 100}, 5, nil, nil)
	lg := New()
	ctx := context.Background()

	err := ms.WithTx(ctx, func(tx store.Tx) error {
		_, err := lg.Adjust(ctx, tx, AdjustRequest{
			ProductID: pid, Quantity: 0, Direction: models.DirectionIn,
			Reason: "restock", ReferenceType: models.ReferenceAdjustment,
		})
		return err
	})
	assert.Error(t, err)

	err = ms.WithTx(ctx, func(tx store.Tx) error {
		_, err := lg.Adjust(ctx, tx, AdjustRequest{
			ProductID: pid, Quantity: 1, Direction: models.Direction("SIDEWAYS"),
			Reason: "restock", ReferenceType: models.ReferenceAdjustment,
		})
		return err
	})
	assert.Error(t, err)
}

func TestAdjustUnknownProduct(t *testing.T) {
	ms := store.NewMemStore()
	lg := New()
	ctx := context.Background()

	err := ms.WithTx(ctx, func(tx store.Tx) error {
		_, err := lg.Adjust(ctx, tx, AdjustRequest{
			ProductID: 999, Quantity: 1, Direction: models.DirectionIn,
			Reason: "restock", ReferenceType: models.ReferenceAdjustment,
		})
		return err
	})

	var notFound *models.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRestoreReturnsOutstandingQuantities(t *testing.T) {
	ms := store.NewMemStore()
	pidA := ms.AddProduct(models.Product{SKU: "SKU-A", Name: "A", Price: 100}, 10, nil, nil)
	pidB := ms.AddProduct(models.Product{SKU: "SKU-B", Name: "B", Price: 100}, 10, nil, nil)
	lg := New()
	ctx := context.Background()

	const orderID = 42
	err := ms.WithTx(ctx, func(tx store.Tx) error {
		for _, req := range []AdjustRequest{
			{ProductID: pidA, Quantity: 3, Direction: models.DirectionOut, Reason: "order created", ReferenceID: orderID, ReferenceType: models.ReferenceOrder},
			{ProductID: pidB, Quantity: 2, Direction: models.DirectionOut, Reason: "order created", ReferenceID: orderID, ReferenceType: models.ReferenceOrder},
		} {
			if _, err := lg.Adjust(ctx, tx, req); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	var restored []models.Movement
	err = ms.WithTx(ctx, func(tx store.Tx) error {
		var err error
		restored, err = lg.Restore(ctx, tx, orderID, models.ReferenceOrder, "order cancelled")
		return err
	})
	require.NoError(t, err)
	require.Len(t, restored, 2)

	psA, _ := ms.ProductStock(ctx, pidA)
	psB, _ := ms.ProductStock(ctx, pidB)
	assert.Equal(t, 10, psA.Stock)
	assert.Equal(t, 10, psB.Stock)

	// a second restore finds nothing outstanding
	err = ms.WithTx(ctx, func(tx store.Tx) error {
		again, err := lg.Restore(ctx, tx, orderID, models.ReferenceOrder, "order cancelled")
		assert.Empty(t, again)
		return err
	})
	require.NoError(t, err)

	psA, _ = ms.ProductStock(ctx, pidA)
	assert.Equal(t, 10, psA.Stock)
}

func TestRestoreAccountsForPriorReturns(t *testing.T) {
	ms := store.NewMemStore()
	pid := ms.AddProduct(models.Product{SKU: "SKU-1", Name: "Widget", Price: 100}, 10, nil, nil)
	lg := New()
	ctx := context.Background()

	const orderID = 7
	err := ms.WithTx(ctx, func(tx store.Tx) error {
		if _, err := lg.Adjust(ctx, tx, AdjustRequest{
			ProductID: pid, Quantity: 5, Direction: models.DirectionOut,
			Reason: "order created", ReferenceID: orderID, ReferenceType: models.ReferenceOrder,
		}); err != nil {
			return err
		}
		// partial return already on the books
		_, err := lg.Adjust(ctx, tx, AdjustRequest{
			ProductID: pid, Quantity: 2, Direction: models.DirectionIn,
			Reason: "partial return", ReferenceID: orderID, ReferenceType: models.ReferenceOrder,
		})
		return err
	})
	require.NoError(t, err)

	err = ms.WithTx(ctx, func(tx store.Tx) error {
		restored, err := lg.Restore(ctx, tx, orderID, models.ReferenceOrder, "order cancelled")
		if err != nil {
			return err
		}
		require.Len(t, restored, 1)
		assert.Equal(t, 3, restored[0].Quantity)
		return nil
	})
	require.NoError(t, err)

	ps, _ := ms.ProductStock(ctx, pid)
	assert.Equal(t, 10, ps.Stock)
}

func TestConcurrentOutAdjustmentsSingleUnit(t *testing.T) {
	ms := store.NewMemStore()
	pid := ms.AddProduct(models.Product{SKU: "SKU-1", Name: "Widget", Price: 100}, 1, nil, nil)
	lg := New()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- ms.WithTx(ctx, func(tx store.Tx) error {
				_, err := lg.Adjust(ctx, tx, AdjustRequest{
					ProductID: pid, Quantity: 1, Direction: models.DirectionOut,
					Reason: "order created", ReferenceID: 1, ReferenceType: models.ReferenceOrder,
				})
				return err
			})
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *models.InsufficientStockError
		require.True(t, errors.As(err, &insufficient), "unexpected error: %v", err)
		rejected++
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)

	ps, err := ms.ProductStock(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 0, ps.Stock)

	movements, err := ms.ProductMovements(ctx, pid)
	require.NoError(t, err)
	assert.Len(t, movements, 1)
}
