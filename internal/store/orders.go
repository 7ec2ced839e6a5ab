package store

import (
	"context"
	"database/sql"
	"errors"

	"commerce-core/internal/models"
)

// InsertOrder creates a new order row
func (t *sqlTx) InsertOrder(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO orders (order_number, status, customer_name, customer_email, subtotal, discount, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return t.tx.QueryRowxContext(ctx, query,
		o.OrderNumber, o.Status, o.CustomerName, o.CustomerEmail,
		o.Subtotal, o.Discount, o.Total,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

// InsertOrderItem creates a new order item
func (t *sqlTx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return t.tx.QueryRowxContext(ctx, query,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice,
	).Scan(&item.ID)
}

// OrderForUpdate locks and reads an order row. Soft-deleted orders are
// invisible here, so they can no longer transition.
func (t *sqlTx) OrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := t.tx.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 AND is_deleted = FALSE FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "order", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderItems retrieves all items for an order within the transaction.
func (t *sqlTx) OrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := t.tx.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// UpdateOrderStatus updates order status and, for cancellations, the reason.
func (t *sqlTx) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus, cancelReason string) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, cancel_reason = $2, updated_at = NOW() WHERE id = $3",
		status, cancelReason, id)
	return err
}

// SoftDeleteOrder marks an order deleted. Orders with movement rows are never
// physically removed.
func (t *sqlTx) SoftDeleteOrder(ctx context.Context, id int64) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1", id)
	return err
}

// OrderByID retrieves a live order by ID
func (s *SQLStore) OrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 AND is_deleted = FALSE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "order", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderItems retrieves all items for an order
func (s *SQLStore) OrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}
