package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"commerce-core/internal/models"
)

// BookingForUpdate locks and reads a booking row.
func (t *sqlTx) BookingForUpdate(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	err := t.tx.GetContext(ctx, &booking,
		"SELECT * FROM bookings WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "booking", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// UpdateBookingStatus updates booking status
func (t *sqlTx) UpdateBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2",
		status, id)
	return err
}

// AssignBooking sets the technician for a booking
func (t *sqlTx) AssignBooking(ctx context.Context, bookingID, technicianID int64) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE bookings SET technician_id = $1, updated_at = NOW() WHERE id = $2",
		technicianID, bookingID)
	return err
}

// AppendBookingNote appends one line to the booking's audit notes.
func (t *sqlTx) AppendBookingNote(ctx context.Context, bookingID int64, note string) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE bookings
		 SET notes = CASE WHEN notes = '' THEN $1 ELSE notes || E'\n' || $1 END,
		     updated_at = NOW()
		 WHERE id = $2`,
		note, bookingID)
	return err
}

// TechnicianByID retrieves a technician
func (t *sqlTx) TechnicianByID(ctx context.Context, id int64) (*models.Technician, error) {
	var tech models.Technician
	err := t.tx.GetContext(ctx, &tech,
		"SELECT * FROM technicians WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "technician", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &tech, nil
}

// TechnicianBookings lists a technician's non-cancelled bookings for one day,
// used for slot-collision checks.
func (t *sqlTx) TechnicianBookings(ctx context.Context, technicianID int64, date time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := t.tx.SelectContext(ctx, &bookings,
		`SELECT * FROM bookings
		 WHERE technician_id = $1 AND scheduled_date = $2 AND status <> 'CANCELLED'
		 ORDER BY id`,
		technicianID, date.Format("2006-01-02"))
	return bookings, err
}

// BookingByID retrieves a booking by ID
func (s *SQLStore) BookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.GetContext(ctx, &booking,
		"SELECT * FROM bookings WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "booking", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}
