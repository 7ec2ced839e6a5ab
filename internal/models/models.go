package models

import "time"

// Product represents a product in the catalog
type Product struct {
	ID        int64     `db:"id" json:"id"`
	SKU       string    `db:"sku" json:"sku"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProductStock is the authoritative stock counter for a product.
// It is mutated only through the ledger, never directly.
type ProductStock struct {
	ProductID         int64     `db:"product_id" json:"product_id"`
	Stock             int       `db:"stock" json:"stock"`
	LowStockThreshold *int      `db:"low_stock_threshold" json:"low_stock_threshold,omitempty"`
	MaxStock          *int      `db:"max_stock" json:"max_stock,omitempty"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Direction of a stock movement
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// ReferenceType links a movement back to its cause
type ReferenceType string

const (
	ReferenceOrder      ReferenceType = "ORDER"
	ReferenceBooking    ReferenceType = "BOOKING"
	ReferenceAdjustment ReferenceType = "ADJUSTMENT"
)

// Movement is one immutable stock-change record. Rows are appended by the
// ledger and never updated or deleted.
type Movement struct {
	ID            int64         `db:"id" json:"id"`
	ProductID     int64         `db:"product_id" json:"product_id"`
	Direction     Direction     `db:"direction" json:"direction"`
	Quantity      int           `db:"quantity" json:"quantity"`
	PreviousStock int           `db:"previous_stock" json:"previous_stock"`
	NewStock      int           `db:"new_stock" json:"new_stock"`
	Reason        string        `db:"reason" json:"reason"`
	ReferenceID   int64         `db:"reference_id" json:"reference_id"`
	ReferenceType ReferenceType `db:"reference_type" json:"reference_type"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// OrderStatus is the order lifecycle state
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// Terminal reports whether no further order transitions are possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Order represents a customer order. Orders are soft-deleted only; movement
// rows referencing an order make physical deletion unsafe.
type Order struct {
	ID            int64       `db:"id" json:"id"`
	OrderNumber   string      `db:"order_number" json:"order_number"`
	Status        OrderStatus `db:"status" json:"status"`
	CustomerName  string      `db:"customer_name" json:"customer_name"`
	CustomerEmail string      `db:"customer_email" json:"customer_email,omitempty"`
	Subtotal      int64       `db:"subtotal" json:"subtotal"`
	Discount      int64       `db:"discount" json:"discount"`
	Total         int64       `db:"total" json:"total"`
	CancelReason  string      `db:"cancel_reason" json:"cancel_reason,omitempty"`
	IsDeleted     bool        `db:"is_deleted" json:"is_deleted"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// OrderItem represents one line of an order
type OrderItem struct {
	ID        int64 `db:"id" json:"id"`
	OrderID   int64 `db:"order_id" json:"order_id"`
	ProductID int64 `db:"product_id" json:"product_id"`
	Quantity  int   `db:"quantity" json:"quantity"`
	UnitPrice int64 `db:"unit_price" json:"unit_price"`
}

// BookingStatus is the service-booking lifecycle state. The edge set is
// distinct from the order table and must not be conflated with it.
type BookingStatus string

const (
	BookingStatusPending     BookingStatus = "PENDING"
	BookingStatusConfirmed   BookingStatus = "CONFIRMED"
	BookingStatusAssigned    BookingStatus = "ASSIGNED"
	BookingStatusInProgress  BookingStatus = "IN_PROGRESS"
	BookingStatusCompleted   BookingStatus = "COMPLETED"
	BookingStatusCancelled   BookingStatus = "CANCELLED"
	BookingStatusRescheduled BookingStatus = "RESCHEDULED"
)

// Terminal reports whether no further booking transitions are possible.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// Booking represents a scheduled service visit. Bookings consume technician
// time, not stock.
type Booking struct {
	ID            int64         `db:"id" json:"id"`
	Status        BookingStatus `db:"status" json:"status"`
	TechnicianID  *int64        `db:"technician_id" json:"technician_id,omitempty"`
	ScheduledDate *time.Time    `db:"scheduled_date" json:"scheduled_date,omitempty"`
	ScheduledSlot string        `db:"scheduled_slot" json:"scheduled_slot,omitempty"`
	EstimatedCost int64         `db:"estimated_cost" json:"estimated_cost"`
	ActualCost    int64         `db:"actual_cost" json:"actual_cost"`
	Notes         string        `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// Technician performs bookings
type Technician struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// AlertType classifies a stock alert
type AlertType string

const (
	AlertLowStock   AlertType = "LOW_STOCK"
	AlertOutOfStock AlertType = "OUT_OF_STOCK"
	AlertOverstock  AlertType = "OVERSTOCK"
)

// Alert is an advisory stock condition record. At most one unresolved alert
// of a given type may exist per product.
type Alert struct {
	ID           int64      `db:"id" json:"id"`
	ProductID    int64      `db:"product_id" json:"product_id"`
	Type         AlertType  `db:"type" json:"type"`
	Threshold    int        `db:"threshold" json:"threshold"`
	CurrentStock int        `db:"current_stock" json:"current_stock"`
	IsResolved   bool       `db:"is_resolved" json:"is_resolved"`
	ResolvedAt   *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
