package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"commerce-core/internal/ledger"
	"commerce-core/internal/models"
	"commerce-core/internal/store"
	"commerce-core/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService drives the order lifecycle. Status edges are enforced by an
// exhaustive transition table and every edge with stock side effects runs its
// ledger calls in the same transaction as the status write.
type OrderService struct {
	store  store.Store
	ledger *ledger.Ledger
	coord  *Coordinator
	logger *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(st store.Store, lg *ledger.Ledger, coord *Coordinator) *OrderService {
	return &OrderService{
		store:  st,
		ledger: lg,
		coord:  coord,
		logger: util.GetLogger(),
	}
}

// orderTransitionAllowed is the order transition table. The switch is
// exhaustive over source statuses so adding a status forces this site to be
// revisited.
func orderTransitionAllowed(from, to models.OrderStatus) bool {
	switch from {
	case models.OrderStatusPending:
		return to == models.OrderStatusProcessing ||
			to == models.OrderStatusCompleted ||
			to == models.OrderStatusCancelled
	case models.OrderStatusProcessing:
		return to == models.OrderStatusCompleted ||
			to == models.OrderStatusCancelled
	case models.OrderStatusCompleted, models.OrderStatusCancelled:
		return false
	}
	return false
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	CustomerName  string             `json:"customer_name" binding:"required"`
	CustomerEmail string             `json:"customer_email,omitempty"`
	Discount      int64              `json:"discount,omitempty"`
	Items         []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

func (req *CreateOrderRequest) validate() error {
	if len(req.Items) == 0 {
		return &models.ValidationError{Reason: "order must contain at least one item"}
	}
	if req.Discount < 0 {
		return &models.ValidationError{Reason: "discount cannot be negative"}
	}
	seen := make(map[int64]bool, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return &models.ValidationError{Reason: fmt.Sprintf("quantity for product %d must be at least 1", item.ProductID)}
		}
		if seen[item.ProductID] {
			return &models.ValidationError{Reason: fmt.Sprintf("duplicate item for product %d", item.ProductID)}
		}
		seen[item.ProductID] = true
	}
	return nil
}

func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(uuid.New().String()[:8])
}

// CreateOrder creates an order in PENDING with stock already decremented:
// one OUT adjustment per item, all inside the creation transaction. If any
// item has insufficient stock the whole order aborts and no partial decrement
// survives. Items are adjusted in product ID order so concurrent orders over
// overlapping product sets cannot deadlock.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := req.validate(); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	items := append([]OrderItemRequest(nil), req.Items...)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	productIDs := make([]int64, len(items))
	for i, item := range items {
		productIDs[i] = item.ProductID
	}

	var order *models.Order
	err := s.coord.Run(ctx, func(tx store.Tx, pc *PostCommit) error {
		products, err := tx.ProductsByIDs(ctx, productIDs)
		if err != nil {
			return err
		}
		if len(products) != len(items) {
			return &models.ValidationError{Reason: "order references unknown products"}
		}
		priceByID := make(map[int64]int64, len(products))
		for _, p := range products {
			priceByID[p.ID] = p.Price
		}

		var subtotal int64
		for _, item := range items {
			subtotal += priceByID[item.ProductID] * int64(item.Quantity)
		}
		if req.Discount > subtotal {
			return &models.ValidationError{Reason: "discount exceeds subtotal"}
		}

		order = &models.Order{
			OrderNumber:   newOrderNumber(),
			Status:        models.OrderStatusPending,
			CustomerName:  req.CustomerName,
			CustomerEmail: req.CustomerEmail,
			Subtotal:      subtotal,
			Discount:      req.Discount,
			Total:         subtotal - req.Discount,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		eventItems := make([]models.OrderItemData, 0, len(items))
		for _, item := range items {
			orderItem := &models.OrderItem{
				OrderID:   order.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: priceByID[item.ProductID],
			}
			if err := tx.InsertOrderItem(ctx, orderItem); err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}

			movement, err := s.ledger.Adjust(ctx, tx, ledger.AdjustRequest{
				ProductID:     item.ProductID,
				Quantity:      item.Quantity,
				Direction:     models.DirectionOut,
				Reason:        "order created",
				ReferenceID:   order.ID,
				ReferenceType: models.ReferenceOrder,
			})
			if err != nil {
				return err
			}
			pc.TouchProduct(item.ProductID)
			scheduleStockEvent(pc, movement)

			eventItems = append(eventItems, models.OrderItemData{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: priceByID[item.ProductID],
			})
		}

		created := order
		pc.Publish(func(ctx context.Context, sink EventSink) error {
			return sink.PublishOrderCreated(ctx, &models.OrderCreatedEvent{
				OrderID:     created.ID,
				OrderNumber: created.OrderNumber,
				Total:       created.Total,
				Items:       eventItems,
			})
		})
		return nil
	})
	if err != nil {
		var insufficient *models.InsufficientStockError
		if errors.As(err, &insufficient) {
			util.InsufficientStockTotal.Inc()
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
		} else {
			util.OrdersFailedTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber))
	return order, nil
}

// Transition moves an order along the lifecycle graph.
func (s *OrderService) Transition(ctx context.Context, orderID int64, target models.OrderStatus) (*models.Order, error) {
	return s.transition(ctx, orderID, target, "")
}

// CancelOrder cancels an order, recording the reason. Stock removed at
// creation is restored when cancelling from PENDING or PROCESSING; completed
// orders never return stock automatically (manual ADJUSTMENT only).
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64, reason string) (*models.Order, error) {
	return s.transition(ctx, orderID, models.OrderStatusCancelled, reason)
}

func (s *OrderService) transition(ctx context.Context, orderID int64, target models.OrderStatus, reason string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Transition")
	defer span.End()

	var updated *models.Order
	err := s.coord.Run(ctx, func(tx store.Tx, pc *PostCommit) error {
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		if !orderTransitionAllowed(order.Status, target) {
			return &models.InvalidTransitionError{
				Entity:  "order",
				Current: string(order.Status),
				Target:  string(target),
			}
		}

		if target == models.OrderStatusCancelled {
			if err := s.restoreStock(ctx, tx, pc, order.ID); err != nil {
				return err
			}
		}

		if err := tx.UpdateOrderStatus(ctx, order.ID, target, reason); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		oldStatus := order.Status
		order.Status = target
		order.CancelReason = reason
		updated = order

		pc.Publish(func(ctx context.Context, sink EventSink) error {
			return sink.PublishOrderStatusChanged(ctx, &models.OrderStatusChangedEvent{
				OrderID:   orderID,
				OldStatus: oldStatus,
				NewStatus: target,
				Reason:    reason,
			})
		})

		util.OrderTransitionsTotal.WithLabelValues(string(oldStatus), string(target)).Inc()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if target == models.OrderStatusCancelled {
		util.OrdersCancelledTotal.Inc()
	}
	s.logger.Info("order transitioned",
		zap.Int64("order_id", orderID),
		zap.String("status", string(target)))
	return updated, nil
}

// restoreStock puts back whatever this order took out, reconciled against the
// movement log rather than the order items.
func (s *OrderService) restoreStock(ctx context.Context, tx store.Tx, pc *PostCommit, orderID int64) error {
	restored, err := s.ledger.Restore(ctx, tx, orderID, models.ReferenceOrder, "order cancelled")
	if err != nil {
		return err
	}
	for i := range restored {
		pc.TouchProduct(restored[i].ProductID)
		scheduleStockEvent(pc, &restored[i])
	}
	return nil
}

// SoftDelete marks an order deleted without removing it; movement rows keep
// referencing it. A non-terminal order is cancelled first so its stock comes
// back.
func (s *OrderService) SoftDelete(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.SoftDelete")
	defer span.End()

	err := s.coord.Run(ctx, func(tx store.Tx, pc *PostCommit) error {
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		if !order.Status.Terminal() {
			if err := s.restoreStock(ctx, tx, pc, order.ID); err != nil {
				return err
			}
			if err := tx.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCancelled, "order deleted"); err != nil {
				return err
			}
			oldStatus := order.Status
			pc.Publish(func(ctx context.Context, sink EventSink) error {
				return sink.PublishOrderStatusChanged(ctx, &models.OrderStatusChangedEvent{
					OrderID:   orderID,
					OldStatus: oldStatus,
					NewStatus: models.OrderStatusCancelled,
					Reason:    "order deleted",
				})
			})
		}

		return tx.SoftDeleteOrder(ctx, order.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("order soft-deleted", zap.Int64("order_id", orderID))
	return nil
}

// GetOrder retrieves an order with its items.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.store.OrderItems(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// scheduleStockEvent queues a StockAdjusted event for a committed movement.
func scheduleStockEvent(pc *PostCommit, m *models.Movement) {
	movement := *m
	pc.Publish(func(ctx context.Context, sink EventSink) error {
		return sink.PublishStockAdjusted(ctx, &models.StockAdjustedEvent{
			ProductID:     movement.ProductID,
			Direction:     movement.Direction,
			Quantity:      movement.Quantity,
			PreviousStock: movement.PreviousStock,
			NewStock:      movement.NewStock,
			Reason:        movement.Reason,
			ReferenceID:   movement.ReferenceID,
			ReferenceType: movement.ReferenceType,
		})
	})
}
