package service

import (
	"context"
	"fmt"
	"time"

	"commerce-core/internal/models"
	"commerce-core/internal/store"
	"commerce-core/internal/util"

	"go.uber.org/zap"
)

// BookingService drives the service-booking lifecycle. Bookings share the
// guarded-transition-plus-audit-log pattern with orders but have their own
// edge set and never touch product stock.
type BookingService struct {
	store  store.Store
	coord  *Coordinator
	logger *zap.Logger
	now    func() time.Time
}

// NewBookingService creates a new booking service
func NewBookingService(st store.Store, coord *Coordinator) *BookingService {
	return &BookingService{
		store:  st,
		coord:  coord,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// bookingTransitionAllowed is the booking transition table, exhaustive over
// source statuses.
func bookingTransitionAllowed(from, to models.BookingStatus) bool {
	switch from {
	case models.BookingStatusPending:
		return to == models.BookingStatusConfirmed ||
			to == models.BookingStatusCancelled
	case models.BookingStatusConfirmed:
		return to == models.BookingStatusAssigned ||
			to == models.BookingStatusCancelled
	case models.BookingStatusAssigned:
		return to == models.BookingStatusInProgress ||
			to == models.BookingStatusCancelled
	case models.BookingStatusInProgress:
		return to == models.BookingStatusCompleted ||
			to == models.BookingStatusCancelled
	case models.BookingStatusRescheduled:
		return to == models.BookingStatusPending ||
			to == models.BookingStatusConfirmed ||
			to == models.BookingStatusCancelled
	case models.BookingStatusCompleted, models.BookingStatusCancelled:
		return false
	}
	return false
}

// Transition moves a booking along its lifecycle graph, appending an audit
// line to the booking notes.
func (s *BookingService) Transition(ctx context.Context, bookingID int64, target models.BookingStatus) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Transition")
	defer span.End()

	var updated *models.Booking
	err := s.coord.Run(ctx, func(tx store.Tx, pc *PostCommit) error {
		booking, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}

		if !bookingTransitionAllowed(booking.Status, target) {
			return &models.InvalidTransitionError{
				Entity:  "booking",
				Current: string(booking.Status),
				Target:  string(target),
			}
		}

		if err := tx.UpdateBookingStatus(ctx, booking.ID, target); err != nil {
			return fmt.Errorf("failed to update booking status: %w", err)
		}

		note := fmt.Sprintf("[%s] status %s -> %s",
			s.now().Format(time.RFC3339), booking.Status, target)
		if err := tx.AppendBookingNote(ctx, booking.ID, note); err != nil {
			return err
		}

		oldStatus := booking.Status
		booking.Status = target
		updated = booking

		pc.Publish(func(ctx context.Context, sink EventSink) error {
			return sink.PublishBookingStatusChanged(ctx, &models.BookingStatusChangedEvent{
				BookingID: bookingID,
				OldStatus: oldStatus,
				NewStatus: target,
			})
		})

		util.BookingTransitionsTotal.WithLabelValues(string(oldStatus), string(target)).Inc()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking transitioned",
		zap.Int64("booking_id", bookingID),
		zap.String("status", string(target)))
	return updated, nil
}

// AssignTechnician attaches a technician to a booking. The technician must be
// active, and when the booking carries a scheduled date and slot the
// technician must not already hold a booking in the same slot that day.
func (s *BookingService) AssignTechnician(ctx context.Context, bookingID, technicianID int64) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.AssignTechnician")
	defer span.End()

	var updated *models.Booking
	err := s.coord.Run(ctx, func(tx store.Tx, pc *PostCommit) error {
		booking, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}

		tech, err := tx.TechnicianByID(ctx, technicianID)
		if err != nil {
			return err
		}
		if !tech.IsActive {
			return &models.ConflictError{
				Reason: fmt.Sprintf("technician %d is not active", technicianID),
			}
		}

		if booking.ScheduledDate != nil && booking.ScheduledSlot != "" {
			others, err := tx.TechnicianBookings(ctx, technicianID, *booking.ScheduledDate)
			if err != nil {
				return err
			}
			for _, other := range others {
				if other.ID != booking.ID && other.ScheduledSlot == booking.ScheduledSlot {
					return &models.ConflictError{
						Reason: fmt.Sprintf("technician %d already booked for slot %s on %s",
							technicianID, booking.ScheduledSlot,
							booking.ScheduledDate.Format("2006-01-02")),
					}
				}
			}
		}

		if err := tx.AssignBooking(ctx, booking.ID, technicianID); err != nil {
			return err
		}

		note := fmt.Sprintf("[%s] assigned technician %s",
			s.now().Format(time.RFC3339), tech.Name)
		if err := tx.AppendBookingNote(ctx, booking.ID, note); err != nil {
			return err
		}

		booking.TechnicianID = &technicianID
		updated = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("technician assigned",
		zap.Int64("booking_id", bookingID),
		zap.Int64("technician_id", technicianID))
	return updated, nil
}

// CancelBooking cancels a booking with a reason appended to its notes.
// Cancelling a COMPLETED or already CANCELLED booking is a domain error, not
// a transition-table miss, because cancellation carries the reason mutation.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID int64, reason string) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CancelBooking")
	defer span.End()

	var updated *models.Booking
	err := s.coord.Run(ctx, func(tx store.Tx, pc *PostCommit) error {
		booking, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}

		if booking.Status.Terminal() {
			return &models.ConflictError{
				Reason: fmt.Sprintf("booking %d cannot be cancelled from status %s", bookingID, booking.Status),
			}
		}

		if err := tx.UpdateBookingStatus(ctx, booking.ID, models.BookingStatusCancelled); err != nil {
			return err
		}

		note := fmt.Sprintf("[%s] cancelled: %s", s.now().Format(time.RFC3339), reason)
		if err := tx.AppendBookingNote(ctx, booking.ID, note); err != nil {
			return err
		}

		oldStatus := booking.Status
		booking.Status = models.BookingStatusCancelled
		updated = booking

		pc.Publish(func(ctx context.Context, sink EventSink) error {
			return sink.PublishBookingStatusChanged(ctx, &models.BookingStatusChangedEvent{
				BookingID: bookingID,
				OldStatus: oldStatus,
				NewStatus: models.BookingStatusCancelled,
				Reason:    reason,
			})
		})

		util.BookingTransitionsTotal.WithLabelValues(string(oldStatus), string(models.BookingStatusCancelled)).Inc()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking cancelled", zap.Int64("booking_id", bookingID))
	return updated, nil
}

// GetBooking retrieves a booking by ID.
func (s *BookingService) GetBooking(ctx context.Context, bookingID int64) (*models.Booking, error) {
	return s.store.BookingByID(ctx, bookingID)
}
