package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commerce-core/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Store is the persistence boundary for the transactional core. The SQL
// implementation is authoritative; MemStore backs tests and local runs.
type Store interface {
	// WithTx runs fn inside a single database transaction. Stock rows read
	// through Tx.StockForUpdate stay locked until commit or rollback.
	WithTx(ctx context.Context, fn func(Tx) error) error

	ProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	ProductStock(ctx context.Context, productID int64) (*models.ProductStock, error)
	ProductStocks(ctx context.Context) ([]models.ProductStock, error)
	OrderByID(ctx context.Context, id int64) (*models.Order, error)
	OrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	MovementsByReference(ctx context.Context, refID int64, refType models.ReferenceType) ([]models.Movement, error)
	ProductMovements(ctx context.Context, productID int64) ([]models.Movement, error)
	BookingByID(ctx context.Context, id int64) (*models.Booking, error)

	UnresolvedAlerts(ctx context.Context, productID int64) ([]models.Alert, error)
	AlertByID(ctx context.Context, id int64) (*models.Alert, error)
	InsertAlert(ctx context.Context, alert *models.Alert) error
	ResolveAlert(ctx context.Context, alertID int64, at time.Time) error

	Close() error
}

// Tx exposes the mutations available inside a transaction.
type Tx interface {
	// StockForUpdate reads the stock row with a row-level lock, blocking
	// concurrent adjustments of the same product until the transaction ends.
	StockForUpdate(ctx context.Context, productID int64) (*models.ProductStock, error)
	UpdateStock(ctx context.Context, productID int64, newStock int) error
	InsertMovement(ctx context.Context, m *models.Movement) error
	MovementsByReference(ctx context.Context, refID int64, refType models.ReferenceType) ([]models.Movement, error)

	ProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	InsertOrder(ctx context.Context, o *models.Order) error
	InsertOrderItem(ctx context.Context, item *models.OrderItem) error
	OrderForUpdate(ctx context.Context, id int64) (*models.Order, error)
	OrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus, cancelReason string) error
	SoftDeleteOrder(ctx context.Context, id int64) error

	BookingForUpdate(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error
	AssignBooking(ctx context.Context, bookingID, technicianID int64) error
	AppendBookingNote(ctx context.Context, bookingID int64, note string) error
	TechnicianByID(ctx context.Context, id int64) (*models.Technician, error)
	TechnicianBookings(ctx context.Context, technicianID int64, date time.Time) ([]models.Booking, error)
}

// SQLStore is the Postgres-backed Store.
type SQLStore struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewStore connects to Postgres. lockTimeout bounds how long a transaction
// waits on a contended stock row before failing with ErrLockTimeout.
func NewStore(databaseURL string, lockTimeout time.Duration) (*SQLStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLStore{db: db, lockTimeout: lockTimeout}, nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection, used for migrations and readiness.
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

// WithTx runs fn inside a transaction with the configured lock timeout.
// A lock wait that exceeds the timeout rolls back and surfaces as
// models.ErrLockTimeout so callers can retry with backoff.
func (s *SQLStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if s.lockTimeout > 0 {
		timeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, timeout); err != nil {
			return err
		}
	}

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return mapPgError(err)
	}

	if err := tx.Commit(); err != nil {
		return mapPgError(err)
	}
	return nil
}

// mapPgError converts a Postgres lock timeout (SQLSTATE 55P03) into the
// retryable sentinel. Everything else passes through untouched.
func mapPgError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "55P03" {
		return fmt.Errorf("%w: %v", models.ErrLockTimeout, err)
	}
	return err
}

type sqlTx struct {
	tx *sqlx.Tx
}
