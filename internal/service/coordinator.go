package service

import (
	"context"
	"time"

	"commerce-core/internal/models"
	"commerce-core/internal/store"
	"commerce-core/internal/util"

	"go.uber.org/zap"
)

// EventSink receives domain events after a transaction commits. Publishing is
// fire-and-forget: failures are logged, never surfaced to the caller.
type EventSink interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishBookingStatusChanged(ctx context.Context, event *models.BookingStatusChangedEvent) error
	PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error
	PublishAlertRaised(ctx context.Context, event *models.AlertRaisedEvent) error
	PublishAlertResolved(ctx context.Context, event *models.AlertResolvedEvent) error
}

// CacheInvalidator drops cached reads for products whose stock changed.
type CacheInvalidator interface {
	InvalidateProducts(ctx context.Context, productIDs []int64) error
}

// PostCommit collects the downstream work a transaction schedules: products
// whose caches must be invalidated and events to publish. Nothing in it runs
// unless the transaction commits.
type PostCommit struct {
	productIDs []int64
	seen       map[int64]bool
	publishes  []func(context.Context, EventSink) error
}

// TouchProduct marks a product's stock as changed in this transaction.
func (pc *PostCommit) TouchProduct(productID int64) {
	if pc.seen == nil {
		pc.seen = make(map[int64]bool)
	}
	if pc.seen[productID] {
		return
	}
	pc.seen[productID] = true
	pc.productIDs = append(pc.productIDs, productID)
}

// Publish schedules an event for after commit.
func (pc *PostCommit) Publish(fn func(context.Context, EventSink) error) {
	pc.publishes = append(pc.publishes, fn)
}

// Coordinator wraps ledger and state-machine mutations in a single database
// transaction and fans out the non-transactional side effects after commit:
// cache invalidation, event publishing, and alert re-evaluation. Side-effect
// failures never roll back or mask the committed change.
type Coordinator struct {
	store  store.Store
	events EventSink
	cache  CacheInvalidator
	alerts *AlertService
	logger *zap.Logger

	alertTimeout time.Duration
}

// NewCoordinator creates a coordinator. events, cache and alerts may be nil;
// the corresponding hook is then skipped.
func NewCoordinator(st store.Store, events EventSink, cache CacheInvalidator) *Coordinator {
	return &Coordinator{
		store:        st,
		events:       events,
		cache:        cache,
		logger:       util.GetLogger(),
		alertTimeout: 30 * time.Second,
	}
}

// SetAlertService wires in post-commit alert evaluation. Separate from the
// constructor because the alert service is built after the coordinator.
func (c *Coordinator) SetAlertService(alerts *AlertService) {
	c.alerts = alerts
}

// Run executes fn inside one transaction and, only if it commits, runs the
// collected post-commit hooks. On error the transaction is fully rolled back
// and no downstream effect fires.
func (c *Coordinator) Run(ctx context.Context, fn func(tx store.Tx, pc *PostCommit) error) error {
	pc := &PostCommit{}

	start := time.Now()
	err := c.store.WithTx(ctx, func(tx store.Tx) error {
		return fn(tx, pc)
	})
	util.TransactionLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		return err
	}

	c.afterCommit(ctx, pc)
	return nil
}

func (c *Coordinator) afterCommit(ctx context.Context, pc *PostCommit) {
	if c.cache != nil && len(pc.productIDs) > 0 {
		if err := c.cache.InvalidateProducts(ctx, pc.productIDs); err != nil {
			util.PostCommitFailuresTotal.WithLabelValues("cache").Inc()
			c.logger.Error("cache invalidation failed",
				zap.Int64s("product_ids", pc.productIDs), zap.Error(err))
		}
	}

	if c.events != nil {
		for _, publish := range pc.publishes {
			if err := publish(ctx, c.events); err != nil {
				util.PostCommitFailuresTotal.WithLabelValues("publish").Inc()
				c.logger.Error("event publish failed", zap.Error(err))
			}
		}
	}

	if c.alerts != nil && len(pc.productIDs) > 0 {
		productIDs := append([]int64(nil), pc.productIDs...)
		go func() {
			// detached from the request context: alert evaluation is advisory
			// and must not be cancelled by the caller going away
			ctx, cancel := context.WithTimeout(context.Background(), c.alertTimeout)
			defer cancel()
			for _, productID := range productIDs {
				if _, err := c.alerts.Evaluate(ctx, productID); err != nil {
					util.PostCommitFailuresTotal.WithLabelValues("alerts").Inc()
					c.logger.Error("alert evaluation failed",
						zap.Int64("product_id", productID), zap.Error(err))
				}
			}
		}()
	}
}
