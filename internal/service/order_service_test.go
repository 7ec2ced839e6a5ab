package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"commerce-core/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderTransitionTable(t *testing.T) {
	statuses := []models.OrderStatus{
		models.OrderStatusPending,
		models.OrderStatusProcessing,
		models.OrderStatusCompleted,
		models.OrderStatusCancelled,
	}
	allowed := map[models.OrderStatus][]models.OrderStatus{
		models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusCompleted, models.OrderStatusCancelled},
		models.OrderStatusProcessing: {models.OrderStatusCompleted, models.OrderStatusCancelled},
		models.OrderStatusCompleted:  {},
		models.OrderStatusCancelled:  {},
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, orderTransitionAllowed(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	pidA := env.ms.AddProduct(models.Product{SKU: "SKU-A", Name: "Widget", Price: 1000}, 10, nil, nil)
	pidB := env.ms.AddProduct(models.Product{SKU: "SKU-B", Name: "Gadget", Price: 500}, 10, nil, nil)

	order, err := env.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerName: "Alice",
		Discount:     200,
		Items: []OrderItemRequest{
			{ProductID: pidA, Quantity: 2},
			{ProductID: pidB, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, int64(2500), order.Subtotal)
	assert.Equal(t, int64(200), order.Discount)
	assert.Equal(t, int64(2300), order.Total)
	assert.NotEmpty(t, order.OrderNumber)

	psA, _ := env.ms.ProductStock(ctx, pidA)
	psB, _ := env.ms.ProductStock(ctx, pidB)
	assert.Equal(t, 8, psA.Stock)
	assert.Equal(t, 9, psB.Stock)

	_, items, err := env.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	movements, err := env.ms.MovementsByReference(ctx, order.ID, models.ReferenceOrder)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, models.DirectionOut, m.Direction)
		assert.Equal(t, "order created", m.Reason)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	pid := env.ms.AddProduct(models.Product{SKU: "SKU-1", Name: "Widget", Price: 100}, 10, nil, nil)

	cases := []struct {
		name string
		req  CreateOrderRequest
	}{
		{"no items", CreateOrderRequest{CustomerName: "Alice"}},
		{"zero quantity", CreateOrderRequest{CustomerName: "Alice", Items: []OrderItemRequest{{ProductID: pid, Quantity: 0}}}},
		{"duplicate product", CreateOrderRequest{CustomerName: "Alice", Items: []OrderItemRequest{
			{ProductID: pid, Quantity: 1}, {ProductID: pid, Quantity: 2},
		}}},
		{"negative discount", CreateOrderRequest{CustomerName: "Alice", Discount: -1, Items: []OrderItemRequest{{ProductID: pid, Quantity: 1}}}},
		{"discount exceeds subtotal", CreateOrderRequest{CustomerName: "Alice", Discount: 1000, Items: []OrderItemRequest{{ProductID: pid, Quantity: 1}}}},
		{"unknown product", CreateOrderRequest{CustomerName: "Alice", Items: []OrderItemRequest{{ProductID: 999, Quantity: 1}}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.orders.CreateOrder(ctx, &tc.req)
			var validation *models.ValidationError
			assert.ErrorAs(t, err, &validation)
		})
	}

	// nothing leaked out of the rejected attempts
	ps, _ := env.ms.ProductStock(ctx, pid)
	assert.Equal(t, 10, ps.Stock)
}

func TestCreateOrderInsufficientStockAllOrNothing(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	pidA := env.ms.AddProduct(models.Product{SKU: "SKU-A", Name: "Widget", Price: 100}, 10, nil, nil)
	pidB := env.ms.AddProduct(models.Product{SKU: "SKU-B", Name: "Gadget", Price: 100}, 1, nil, nil)

	_, err := env.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerName: "Alice",
		Items: []OrderItemRequest{
			{ProductID: pidA, Quantity: 3},
			{ProductID: pidB, Quantity: 2},
		},
	})

	var insufficient *models.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, pidB, insufficient.ProductID)

	// first item's decrement must not survive the abort
	psA, _ := env.ms.ProductStock(ctx, pidA)
	psB, _ := env.ms.ProductStock(ctx, pidB)
	assert.Equal(t, 10, psA.Stock)
	assert.Equal(t, 1, psB.Stock)

	movesA, _ := env.ms.ProductMovements(ctx, pidA)
	assert.Empty(t, movesA)

	// no post-commit effect fired
	assert.Empty(t, env.sink.orderCreated)
	assert.Zero(t, env.sink.stockAdjustedCount())
	assert.Empty(t, env.cache.invalidated())
}

func TestCancelOrderRestoresStock(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	pid := env.ms.AddProduct(models.Product{SKU: "SKU-1", Name: "Widget", Price: 100}, 10, nil, nil)

	first, err := env.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerName: "Alice",
		Items:        []OrderItemRequest{{ProductID: pid, Quantity: 4}},
	})
	require.NoError(t, err)

	// unrelated movement on the same product
	_, err = env.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerName: "Bob",
		Items:        []OrderItemRequest{{ProductID: pid, Quantity: 2}},
	})
	require.NoError(t, err)

	ps, _ := env.ms.ProductStock(ctx, pid)
	require.Equal(t, 4, ps.Stock)

	cancelled, err := env.orders.CancelOrder(ctx, first.ID, "customer changed mind")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, "customer changed mind", cancelled.CancelReason)

	// only the cancelled order's quantity comes back
	ps, _ = env.ms.ProductStock(ctx, pid)
	assert.Equal(t, 8, ps.Stock)

	movements, _ := env.ms.MovementsByReference(ctx, first.ID, models.ReferenceOrder)
	require.Len(t, movements, 2)
	assert.Equal(t, models.DirectionOut, movements[0].Direction)
	assert.Equal(t, models.DirectionIn, movements[1].Direction)
	assert.Equal(t, 4, movements[1].Quantity)
	assert.Equal(t, "order cancelled", movements[1].Reason)
}

func TestCancelOrderTwice(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	pid := env.ms.AddProduct(models.Product{SKU: "SKU-1", Name: "Widget", Price: 100}, 10, nil, nil)

	order, err := env.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerName: "Alice",
		Items:        []OrderItemRequest{{ProductID: pid, Quantity: 3}},
	})
	require.NoError(t, err)

	_, err = env.orders.CancelOrder(ctx, order.ID, "first")
	require.NoError(t, err)

	_, err = env.orders.CancelOrder(ctx, order.ID, "second")
	var transition *models.InvalidTransitionError
	require.ErrorAs(t, err, &transition)

	// no double restore
	ps, _ := env.ms.ProductStock(ctx, pid)
	assert.Equal(t, 10, ps.Stock)
}

func TestTerminalOrderRejectsAllTransitions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	pid := env.ms.AddProduct(models.Product{SKU: "SKU-1", Name: "Widget", Price: 100}, 10, nil, nil)

	order, err := env.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerName: "Alice",
		Items:        []OrderItemRequest{{ProductID: pid, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = env.orders.Transition(ctx, order.ID, models.OrderStatusCompleted)
	require.NoError(t, err)

	for _, target := range []models.OrderStatus{
		models.OrderStatusPending,
		models.OrderStatusProcessing,
		models.OrderStatusCompleted,
		models.OrderStatusCancelled,
	} {
		_, err := env.orders.Transition(ctx, order.ID, target)
		var transition *models.InvalidTransitionError
		assert.ErrorAs(t, err, &transition, "target %s", target)
	}

	// completing keeps the decrement
	ps, _ := env.ms.ProductStock(ctx, pid)
	assert.Equal(t, 9, ps.Stock)
}

func TestCancelFromProcessingRestoresStock(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	pid := env.ms.AddProduct(models.Product{SKU: "SKU-1", Name: "Widget", Price: 100}, 5, nil, nil)

	order, err := env.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerName: "Alice",
		Items:        []OrderItemRequest{{ProductID: pid, Quantity: 5}},
	})
	require.NoError(t, err)

	_, err = env.orders.Transition(ctx, order.ID, models.OrderStatusProcessing)
	require.NoError(t, err)

	_, err = env.orders.CancelOrder(ctx, order.ID, "supplier delay")
	require.NoError(t, err)

	ps, _ := env.ms.ProductStock(ctx, pid)
	assert.Equal(t, 5, ps.Stock)
}

func TestSoftDeleteRestoresAndHidesOrder(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	pid := env.ms.AddProduct(models.Product{SKU: "SKU-1", Name: "Widget", Price: 100}, 10, nil, nil)

	order, err := env.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerName: "Alice",
		Items:        []OrderItemRequest{{ProductID: pid, Quantity: 4}},
	})
	require.NoError(t, err)

	require.NoError(t, env.orders.SoftDelete(ctx, order.ID))

	ps, _ := env.ms.ProductStock(ctx, pid)
	assert.Equal(t, 10, ps.Stock)

	_, _, err = env.orders.GetOrder(ctx, order.ID)
	var notFound *models.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	_, err = env.orders.Transition(ctx, order.ID, models.OrderStatusProcessing)
	assert.ErrorAs(t, err, &notFound)

	// movement history survives the delete
	movements, _ := env.ms.MovementsByReference(ctx, order.ID, models.ReferenceOrder)
	assert.Len(t, movements, 2)
}

func TestSoftDeleteCompletedOrderKeepsStock(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	pid := env.ms.AddProduct(models.Product{SKU: "SKU-1", Name: "Widget", Price: 100}, 10, nil, nil)

	order, err := env.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerName: "Alice",
		Items:        []OrderItemRequest{{ProductID: pid, Quantity: 4}},
	})
	require.NoError(t, err)

	_, err = env.orders.Transition(ctx, order.ID, models.OrderStatusCompleted)
	require.NoError(t, err)

	require.NoError(t, env.orders.SoftDelete(ctx, order.ID))

	ps, _ := env.ms.ProductStock(ctx, pid)
	assert.Equal(t, 6, ps.Stock)
}

func TestCreateOrderPostCommitEffects(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	pid := env.ms.AddProduct(models.Product{SKU: "SKU-1", Name: "Widget", Price: 250}, 10, nil, nil)

	order, err := env.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerName: "Alice",
		Items:        []OrderItemRequest{{ProductID: pid, Quantity: 2}},
	})
	require.NoError(t, err)

	require.Len(t, env.sink.orderCreated, 1)
	created := env.sink.orderCreated[0]
	assert.Equal(t, order.ID, created.OrderID)
	assert.Equal(t, int64(500), created.Total)
	require.Len(t, created.Items, 1)
	assert.Equal(t, pid, created.Items[0].ProductID)

	require.Len(t, env.sink.stockAdjusted, 1)
	assert.Equal(t, 10, env.sink.stockAdjusted[0].PreviousStock)
	assert.Equal(t, 8, env.sink.stockAdjusted[0].NewStock)

	assert.Equal(t, []int64{pid}, env.cache.invalidated())
}

func TestHookFailuresDoNotFailOperation(t *testing.T) {
	env := newTestEnv()
	env.sink.fail = errors.New("broker down")
	env.cache.fail = errors.New("redis down")
	ctx := context.Background()
	pid := env.ms.AddProduct(models.Product{SKU: "SKU-1", Name: "Widget", Price: 100}, 10, nil, nil)

	order, err := env.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerName: "Alice",
		Items:        []OrderItemRequest{{ProductID: pid, Quantity: 1}},
	})
	require.NoError(t, err)

	// the committed state is intact despite both hooks failing
	got, _, err := env.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)

	ps, _ := env.ms.ProductStock(ctx, pid)
	assert.Equal(t, 9, ps.Stock)
}

func TestConcurrentOrdersSingleUnit(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	pid := env.ms.AddProduct(models.Product{SKU: "SKU-1", Name: "Widget", Price: 100}, 1, nil, nil)

	const workers = 12
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.orders.CreateOrder(ctx, &CreateOrderRequest{
				CustomerName: "Alice",
				Items:        []OrderItemRequest{{ProductID: pid, Quantity: 1}},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *models.InsufficientStockError
		require.True(t, errors.As(err, &insufficient), "unexpected error: %v", err)
	}

	assert.Equal(t, 1, succeeded)
	ps, _ := env.ms.ProductStock(ctx, pid)
	assert.Equal(t, 0, ps.Stock)
	assert.Equal(t, 1, env.sink.stockAdjustedCount())
}

func TestMovementLedgerMatchesStock(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	const initial = 20
	pid := env.ms.AddProduct(models.Product{SKU: "SKU-1", Name: "Widget", Price: 100}, initial, nil, nil)

	first, err := env.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerName: "Alice",
		Items:        []OrderItemRequest{{ProductID: pid, Quantity: 6}},
	})
	require.NoError(t, err)

	_, err = env.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerName: "Bob",
		Items:        []OrderItemRequest{{ProductID: pid, Quantity: 3}},
	})
	require.NoError(t, err)

	_, err = env.orders.CancelOrder(ctx, first.ID, "changed mind")
	require.NoError(t, err)

	_, err = env.stock.Adjust(ctx, AdjustStockRequest{
		ProductID: pid, Quantity: 5, Direction: models.DirectionIn, Reason: "restock",
	})
	require.NoError(t, err)

	movements, err := env.ms.ProductMovements(ctx, pid)
	require.NoError(t, err)

	signed := 0
	for _, m := range movements {
		switch m.Direction {
		case models.DirectionIn:
			assert.Equal(t, m.PreviousStock+m.Quantity, m.NewStock)
			signed += m.Quantity
		case models.DirectionOut:
			assert.Equal(t, m.PreviousStock-m.Quantity, m.NewStock)
			signed -= m.Quantity
		}
	}

	ps, _ := env.ms.ProductStock(ctx, pid)
	assert.Equal(t, initial+signed, ps.Stock)
	assert.Equal(t, 16, ps.Stock)
}
