package store

import (
	"context"
	"database/sql"
	"errors"

	"commerce-core/internal/models"

	"github.com/jmoiron/sqlx"
)

// StockForUpdate locks and reads the stock row for a product.
func (t *sqlTx) StockForUpdate(ctx context.Context, productID int64) (*models.ProductStock, error) {
	var ps models.ProductStock
	err := t.tx.GetContext(ctx, &ps,
		"SELECT * FROM product_stock WHERE product_id = $1 FOR UPDATE", productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "product stock", ID: productID}
	}
	if err != nil {
		return nil, err
	}
	return &ps, nil
}

// UpdateStock writes the new counter value for a row already locked by
// StockForUpdate in the same transaction.
func (t *sqlTx) UpdateStock(ctx context.Context, productID int64, newStock int) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE product_stock SET stock = $1, updated_at = NOW() WHERE product_id = $2",
		newStock, productID)
	return err
}

// InsertMovement appends one immutable movement row.
func (t *sqlTx) InsertMovement(ctx context.Context, m *models.Movement) error {
	query := `
		INSERT INTO stock_movements
			(product_id, direction, quantity, previous_stock, new_stock, reason, reference_id, reference_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	return t.tx.QueryRowxContext(ctx, query,
		m.ProductID, m.Direction, m.Quantity, m.PreviousStock, m.NewStock,
		m.Reason, m.ReferenceID, m.ReferenceType,
	).Scan(&m.ID, &m.CreatedAt)
}

// MovementsByReference lists movements caused by one order/booking/adjustment.
func (t *sqlTx) MovementsByReference(ctx context.Context, refID int64, refType models.ReferenceType) ([]models.Movement, error) {
	var movements []models.Movement
	err := t.tx.SelectContext(ctx, &movements,
		"SELECT * FROM stock_movements WHERE reference_id = $1 AND reference_type = $2 ORDER BY id",
		refID, refType)
	return movements, err
}

// ProductsByIDs retrieves multiple products by IDs within the transaction.
func (t *sqlTx) ProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	return selectProductsByIDs(ctx, t.tx, ids)
}

// ProductsByIDs retrieves multiple products by IDs.
func (s *SQLStore) ProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	return selectProductsByIDs(ctx, s.db, ids)
}

type queryer interface {
	sqlx.QueryerContext
	Rebind(string) string
}

func selectProductsByIDs(ctx context.Context, q queryer, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = q.Rebind(query)

	var products []models.Product
	err = sqlx.SelectContext(ctx, q, &products, query, args...)
	return products, err
}

// ProductStock retrieves the stock row for a product without locking.
func (s *SQLStore) ProductStock(ctx context.Context, productID int64) (*models.ProductStock, error) {
	var ps models.ProductStock
	err := s.db.GetContext(ctx, &ps,
		"SELECT * FROM product_stock WHERE product_id = $1", productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "product stock", ID: productID}
	}
	if err != nil {
		return nil, err
	}
	return &ps, nil
}

// ProductStocks retrieves all stock rows, used by the alert sweep.
func (s *SQLStore) ProductStocks(ctx context.Context) ([]models.ProductStock, error) {
	var stocks []models.ProductStock
	err := s.db.SelectContext(ctx, &stocks,
		"SELECT * FROM product_stock ORDER BY product_id")
	return stocks, err
}

// MovementsByReference lists committed movements for a reference.
func (s *SQLStore) MovementsByReference(ctx context.Context, refID int64, refType models.ReferenceType) ([]models.Movement, error) {
	var movements []models.Movement
	err := s.db.SelectContext(ctx, &movements,
		"SELECT * FROM stock_movements WHERE reference_id = $1 AND reference_type = $2 ORDER BY id",
		refID, refType)
	return movements, err
}

// ProductMovements lists the full movement history for a product.
func (s *SQLStore) ProductMovements(ctx context.Context, productID int64) ([]models.Movement, error) {
	var movements []models.Movement
	err := s.db.SelectContext(ctx, &movements,
		"SELECT * FROM stock_movements WHERE product_id = $1 ORDER BY id", productID)
	return movements, err
}
