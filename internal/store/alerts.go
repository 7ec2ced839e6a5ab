package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"commerce-core/internal/models"
)

// UnresolvedAlerts lists open alerts for a product.
func (s *SQLStore) UnresolvedAlerts(ctx context.Context, productID int64) ([]models.Alert, error) {
	var alerts []models.Alert
	err := s.db.SelectContext(ctx, &alerts,
		"SELECT * FROM stock_alerts WHERE product_id = $1 AND is_resolved = FALSE ORDER BY id",
		productID)
	return alerts, err
}

// AlertByID retrieves an alert by ID
func (s *SQLStore) AlertByID(ctx context.Context, id int64) (*models.Alert, error) {
	var alert models.Alert
	err := s.db.GetContext(ctx, &alert, "SELECT * FROM stock_alerts WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "alert", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// InsertAlert creates a new alert row. The unique partial index on
// (product_id, type) WHERE NOT is_resolved backs the dedup rule; a conflict
// means a concurrent evaluation already created the alert, which is fine.
func (s *SQLStore) InsertAlert(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO stock_alerts (product_id, type, threshold, current_stock)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id, type) WHERE is_resolved = FALSE DO NOTHING
		RETURNING id, created_at`

	err := s.db.QueryRowxContext(ctx, query,
		alert.ProductID, alert.Type, alert.Threshold, alert.CurrentStock,
	).Scan(&alert.ID, &alert.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// lost the upsert race; the surviving alert satisfies dedup
		return nil
	}
	return err
}

// ResolveAlert marks an alert resolved.
func (s *SQLStore) ResolveAlert(ctx context.Context, alertID int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE stock_alerts SET is_resolved = TRUE, resolved_at = $1 WHERE id = $2 AND is_resolved = FALSE",
		at, alertID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &models.NotFoundError{Entity: "unresolved alert", ID: alertID}
	}
	return nil
}
