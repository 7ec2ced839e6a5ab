package models

import "time"

// Event types
const (
	EventTypeOrderCreated         = "ORDER_CREATED"
	EventTypeOrderStatusChanged   = "ORDER_STATUS_CHANGED"
	EventTypeBookingStatusChanged = "BOOKING_STATUS_CHANGED"
	EventTypeStockAdjusted        = "STOCK_ADJUSTED"
	EventTypeAlertRaised          = "ALERT_RAISED"
	EventTypeAlertResolved        = "ALERT_RESOLVED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published after an order commits in PENDING
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Total       int64           `json:"total"`
	Items       []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent published after a status transition commits
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID   int64       `json:"order_id"`
	OldStatus OrderStatus `json:"old_status"`
	NewStatus OrderStatus `json:"new_status"`
	Reason    string      `json:"reason,omitempty"`
}

// BookingStatusChangedEvent published after a booking transition commits
type BookingStatusChangedEvent struct {
	BaseEvent
	BookingID int64         `json:"booking_id"`
	OldStatus BookingStatus `json:"old_status"`
	NewStatus BookingStatus `json:"new_status"`
	Reason    string        `json:"reason,omitempty"`
}

// StockAdjustedEvent published after a ledger mutation commits. Consumed by
// the alert worker to re-evaluate the affected product.
type StockAdjustedEvent struct {
	BaseEvent
	ProductID     int64         `json:"product_id"`
	Direction     Direction     `json:"direction"`
	Quantity      int           `json:"quantity"`
	PreviousStock int           `json:"previous_stock"`
	NewStock      int           `json:"new_stock"`
	Reason        string        `json:"reason"`
	ReferenceID   int64         `json:"reference_id"`
	ReferenceType ReferenceType `json:"reference_type"`
}

// AlertRaisedEvent published when the evaluator creates an alert
type AlertRaisedEvent struct {
	BaseEvent
	AlertID      int64     `json:"alert_id"`
	ProductID    int64     `json:"product_id"`
	AlertType    AlertType `json:"alert_type"`
	Threshold    int       `json:"threshold"`
	CurrentStock int       `json:"current_stock"`
}

// AlertResolvedEvent published when an alert's condition clears
type AlertResolvedEvent struct {
	BaseEvent
	AlertID   int64     `json:"alert_id"`
	ProductID int64     `json:"product_id"`
	AlertType AlertType `json:"alert_type"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}
