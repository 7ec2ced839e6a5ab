package service

import (
	"context"
	"sync"

	"commerce-core/internal/ledger"
	"commerce-core/internal/models"
	"commerce-core/internal/store"
)

func intp(v int) *int { return &v }

// captureSink records published events so tests can assert on post-commit
// output. When fail is set every publish returns it.
type captureSink struct {
	mu   sync.Mutex
	fail error

	orderCreated   []*models.OrderCreatedEvent
	orderStatus    []*models.OrderStatusChangedEvent
	bookingStatus  []*models.BookingStatusChangedEvent
	stockAdjusted  []*models.StockAdjustedEvent
	alertsRaised   []*models.AlertRaisedEvent
	alertsResolved []*models.AlertResolvedEvent
}

func (c *captureSink) PublishOrderCreated(ctx context.Context, e *models.OrderCreatedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.orderCreated = append(c.orderCreated, e)
	return nil
}

func (c *captureSink) PublishOrderStatusChanged(ctx context.Context, e *models.OrderStatusChangedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.orderStatus = append(c.orderStatus, e)
	return nil
}

func (c *captureSink) PublishBookingStatusChanged(ctx context.Context, e *models.BookingStatusChangedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.bookingStatus = append(c.bookingStatus, e)
	return nil
}

func (c *captureSink) PublishStockAdjusted(ctx context.Context, e *models.StockAdjustedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.stockAdjusted = append(c.stockAdjusted, e)
	return nil
}

func (c *captureSink) PublishAlertRaised(ctx context.Context, e *models.AlertRaisedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.alertsRaised = append(c.alertsRaised, e)
	return nil
}

func (c *captureSink) PublishAlertResolved(ctx context.Context, e *models.AlertResolvedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.alertsResolved = append(c.alertsResolved, e)
	return nil
}

func (c *captureSink) stockAdjustedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stockAdjusted)
}

// captureCache records invalidation batches.
type captureCache struct {
	mu      sync.Mutex
	fail    error
	batches [][]int64
}

func (c *captureCache) InvalidateProducts(ctx context.Context, productIDs []int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.batches = append(c.batches, append([]int64(nil), productIDs...))
	return nil
}

func (c *captureCache) invalidated() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []int64
	for _, batch := range c.batches {
		out = append(out, batch...)
	}
	return out
}

type testEnv struct {
	ms    *store.MemStore
	sink  *captureSink
	cache *captureCache
	coord *Coordinator

	orders   *OrderService
	bookings *BookingService
	stock    *StockService
	alerts   *AlertService
}

// newTestEnv wires services over a MemStore. Alert evaluation is not hooked
// into the coordinator so tests stay deterministic; alert tests call Evaluate
// directly.
func newTestEnv() *testEnv {
	ms := store.NewMemStore()
	sink := &captureSink{}
	cache := &captureCache{}
	coord := NewCoordinator(ms, sink, cache)
	lg := ledger.New()

	return &testEnv{
		ms:       ms,
		sink:     sink,
		cache:    cache,
		coord:    coord,
		orders:   NewOrderService(ms, lg, coord),
		bookings: NewBookingService(ms, coord),
		stock:    NewStockService(ms, lg, coord, nil),
		alerts:   NewAlertService(ms, sink),
	}
}
