package worker

import (
	"context"
	"time"

	"commerce-core/internal/broker"
	"commerce-core/internal/models"
	"commerce-core/internal/service"
	"commerce-core/internal/util"

	"go.uber.org/zap"
)

// AlertWorker re-evaluates a product's alerts whenever a StockAdjusted event
// arrives. This is the decoupled async path: the mutating request never waits
// on alert evaluation, and a missed in-process evaluation is caught here.
type AlertWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewAlertWorker creates a new alert worker
func NewAlertWorker(consumer *broker.Consumer, alerts *service.AlertService) *AlertWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnStockAdjusted(func(ctx context.Context, event *models.StockAdjustedEvent) error {
		_, err := alerts.Evaluate(ctx, event.ProductID)
		return err
	})

	return &AlertWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start starts the worker
func (w *AlertWorker) Start(ctx context.Context) error {
	w.logger.Info("starting alert worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AlertWorker) Stop() error {
	w.logger.Info("stopping alert worker")
	return w.consumer.Close()
}

// SweepWorker periodically re-evaluates every product, catching alerts whose
// triggering events were lost.
type SweepWorker struct {
	alerts   *service.AlertService
	interval time.Duration
	logger   *zap.Logger
}

// NewSweepWorker creates a new sweep worker
func NewSweepWorker(alerts *service.AlertService, interval time.Duration) *SweepWorker {
	return &SweepWorker{
		alerts:   alerts,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Start runs the sweep loop until the context is cancelled.
func (w *SweepWorker) Start(ctx context.Context) {
	w.logger.Info("starting alert sweep worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sweep worker stopping")
			return
		case <-ticker.C:
			if err := w.alerts.Sweep(ctx); err != nil {
				w.logger.Error("alert sweep failed", zap.Error(err))
			}
		}
	}
}
