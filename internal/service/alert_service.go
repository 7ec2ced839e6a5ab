package service

import (
	"context"
	"time"

	"commerce-core/internal/models"
	"commerce-core/internal/store"
	"commerce-core/internal/util"

	"go.uber.org/zap"
)

// AlertActionKind discriminates evaluator decisions
type AlertActionKind string

const (
	AlertActionCreate  AlertActionKind = "CREATE"
	AlertActionResolve AlertActionKind = "RESOLVE"
)

// AlertAction is one decision produced by evaluating a product's stock
// against its thresholds and currently-unresolved alerts.
type AlertAction struct {
	Kind      AlertActionKind
	Type      models.AlertType
	AlertID   int64 // set for RESOLVE
	Threshold int   // set for CREATE
}

// EvaluateStock diffs the stock level against thresholds and open alerts.
// Creation rules:
//   - stock == 0: an unresolved OUT_OF_STOCK must exist; LOW_STOCK creation
//     is skipped at zero to avoid a redundant alert.
//   - 0 < stock <= lowStockThreshold (when set): unresolved LOW_STOCK.
//   - stock >= maxStock (when set): unresolved OVERSTOCK.
//
// An open alert is resolved only when its own condition no longer holds:
// an existing LOW_STOCK stays open while stock sits at zero, since stock has
// not moved back above the threshold.
func EvaluateStock(ps models.ProductStock, unresolved []models.Alert) []AlertAction {
	lowHolds := ps.LowStockThreshold != nil && ps.Stock <= *ps.LowStockThreshold
	holds := map[models.AlertType]bool{
		models.AlertOutOfStock: ps.Stock == 0,
		models.AlertLowStock:   lowHolds,
		models.AlertOverstock:  ps.MaxStock != nil && ps.Stock >= *ps.MaxStock,
	}

	create := make(map[models.AlertType]int)
	if ps.Stock == 0 {
		create[models.AlertOutOfStock] = 0
	} else if lowHolds {
		create[models.AlertLowStock] = *ps.LowStockThreshold
	}
	if holds[models.AlertOverstock] {
		create[models.AlertOverstock] = *ps.MaxStock
	}

	open := make(map[models.AlertType]models.Alert, len(unresolved))
	for _, a := range unresolved {
		open[a.Type] = a
	}

	var actions []AlertAction
	for _, alertType := range []models.AlertType{models.AlertOutOfStock, models.AlertLowStock, models.AlertOverstock} {
		threshold, wanted := create[alertType]
		existing, exists := open[alertType]
		switch {
		case wanted && !exists:
			actions = append(actions, AlertAction{
				Kind:      AlertActionCreate,
				Type:      alertType,
				Threshold: threshold,
			})
		case exists && !holds[alertType]:
			actions = append(actions, AlertAction{
				Kind:    AlertActionResolve,
				Type:    alertType,
				AlertID: existing.ID,
			})
		}
	}
	return actions
}

// AlertService applies evaluator decisions to the alert store. Evaluation is
// advisory and always runs outside the mutating transaction.
type AlertService struct {
	store  store.Store
	events EventSink
	logger *zap.Logger
	now    func() time.Time
}

// NewAlertService creates a new alert service. events may be nil.
func NewAlertService(st store.Store, events EventSink) *AlertService {
	return &AlertService{
		store:  st,
		events: events,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// Evaluate re-checks one product and applies the resulting actions.
func (s *AlertService) Evaluate(ctx context.Context, productID int64) ([]AlertAction, error) {
	ps, err := s.store.ProductStock(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.evaluate(ctx, *ps)
}

func (s *AlertService) evaluate(ctx context.Context, ps models.ProductStock) ([]AlertAction, error) {
	unresolved, err := s.store.UnresolvedAlerts(ctx, ps.ProductID)
	if err != nil {
		return nil, err
	}

	actions := EvaluateStock(ps, unresolved)
	for _, action := range actions {
		switch action.Kind {
		case AlertActionCreate:
			alert := &models.Alert{
				ProductID:    ps.ProductID,
				Type:         action.Type,
				Threshold:    action.Threshold,
				CurrentStock: ps.Stock,
			}
			if err := s.store.InsertAlert(ctx, alert); err != nil {
				return nil, err
			}
			if alert.ID == 0 {
				// concurrent evaluation already created it
				continue
			}
			util.AlertsCreatedTotal.WithLabelValues(string(action.Type)).Inc()
			s.logger.Info("stock alert created",
				zap.Int64("product_id", ps.ProductID),
				zap.String("type", string(action.Type)),
				zap.Int("stock", ps.Stock))
			s.publishRaised(ctx, alert)

		case AlertActionResolve:
			if err := s.store.ResolveAlert(ctx, action.AlertID, s.now()); err != nil {
				return nil, err
			}
			util.AlertsResolvedTotal.WithLabelValues(string(action.Type)).Inc()
			s.logger.Info("stock alert auto-resolved",
				zap.Int64("product_id", ps.ProductID),
				zap.String("type", string(action.Type)))
			s.publishResolved(ctx, action.AlertID, ps.ProductID, action.Type)
		}
	}
	return actions, nil
}

// Sweep re-evaluates every product. Used by the periodic worker and as an
// administrative catch-up.
func (s *AlertService) Sweep(ctx context.Context) error {
	stocks, err := s.store.ProductStocks(ctx)
	if err != nil {
		return err
	}
	for _, ps := range stocks {
		if _, err := s.evaluate(ctx, ps); err != nil {
			s.logger.Error("sweep evaluation failed",
				zap.Int64("product_id", ps.ProductID), zap.Error(err))
		}
	}
	return nil
}

// Resolve marks an alert resolved administratively.
func (s *AlertService) Resolve(ctx context.Context, alertID int64) error {
	alert, err := s.store.AlertByID(ctx, alertID)
	if err != nil {
		return err
	}
	if err := s.store.ResolveAlert(ctx, alertID, s.now()); err != nil {
		return err
	}
	util.AlertsResolvedTotal.WithLabelValues(string(alert.Type)).Inc()
	s.publishResolved(ctx, alertID, alert.ProductID, alert.Type)
	return nil
}

// Unresolved lists open alerts for a product.
func (s *AlertService) Unresolved(ctx context.Context, productID int64) ([]models.Alert, error) {
	return s.store.UnresolvedAlerts(ctx, productID)
}

func (s *AlertService) publishRaised(ctx context.Context, alert *models.Alert) {
	if s.events == nil {
		return
	}
	err := s.events.PublishAlertRaised(ctx, &models.AlertRaisedEvent{
		AlertID:      alert.ID,
		ProductID:    alert.ProductID,
		AlertType:    alert.Type,
		Threshold:    alert.Threshold,
		CurrentStock: alert.CurrentStock,
	})
	if err != nil {
		util.PostCommitFailuresTotal.WithLabelValues("publish").Inc()
		s.logger.Error("alert event publish failed", zap.Error(err))
	}
}

func (s *AlertService) publishResolved(ctx context.Context, alertID, productID int64, alertType models.AlertType) {
	if s.events == nil {
		return
	}
	err := s.events.PublishAlertResolved(ctx, &models.AlertResolvedEvent{
		AlertID:   alertID,
		ProductID: productID,
		AlertType: alertType,
	})
	if err != nil {
		util.PostCommitFailuresTotal.WithLabelValues("publish").Inc()
		s.logger.Error("alert event publish failed", zap.Error(err))
	}
}
