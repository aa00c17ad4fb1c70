package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/courtsideapp/courtside/internal/availability"
	"github.com/courtsideapp/courtside/internal/model"
)

var (
	ErrInvalid      = errors.New("invalid booking request")
	ErrInPast       = errors.New("cannot book in the past")
	ErrOutsideHours = errors.New("outside court operating hours")
	ErrSlotTaken    = errors.New("slot not available")
	ErrNotFound     = errors.New("not found")
)

// Store persists bookings. CreateBooking and UpdateBookingTimes must run the
// overlap check and the write atomically, serialized per court, and return
// ErrSlotTaken when the interval is already occupied.
type Store interface {
	GetCourt(ctx context.Context, courtID uuid.UUID) (model.Court, error)
	CreateBooking(ctx context.Context, b *model.Booking) error
	UpdateBookingTimes(ctx context.Context, b *model.Booking) error
	GetBookingForAccount(ctx context.Context, bookingID, accountID uuid.UUID) (model.Booking, error)
	DeleteBooking(ctx context.Context, bookingID uuid.UUID) error
}

// Notifier fans a lifecycle event out to subscribers and scheduled tasks.
// Implementations are best-effort and must not fail the booking operation.
type Notifier interface {
	BookingCreated(ctx context.Context, court model.Court, b model.Booking)
	BookingChanged(ctx context.Context, court model.Court, old, updated model.Booking)
	BookingCancelled(ctx context.Context, court model.Court, b model.Booking)
}

type Service struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store Store, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Conflicts reports whether [start, end) collides with an existing booking's
// [existingStart, existingEnd) under the half-open convention: intervals that
// touch at a boundary do not conflict.
func Conflicts(existingStart, existingEnd, start, end time.Time) bool {
	if !existingStart.After(start) && start.Before(existingEnd) {
		return true
	}
	if existingStart.Before(end) && !end.After(existingEnd) {
		return true
	}
	return false
}

// Book validates the proposed interval against the court's operating hours and
// existing bookings, then persists it with end = start + duration hours.
func (s *Service) Book(ctx context.Context, accountID, courtID uuid.UUID, start time.Time, durationHours int) (model.Booking, error) {
	if durationHours <= 0 {
		return model.Booking{}, ErrInvalid
	}
	end := start.Add(time.Duration(durationHours) * time.Hour)

	if start.Before(s.now()) {
		return model.Booking{}, ErrInPast
	}

	court, err := s.store.GetCourt(ctx, courtID)
	if err != nil {
		return model.Booking{}, err
	}
	if err := withinOperatingHours(court, start, end); err != nil {
		return model.Booking{}, err
	}

	b := model.Booking{
		ID:        uuid.New(),
		CourtID:   courtID,
		AccountID: accountID,
		StartTime: start,
		EndTime:   end,
		Duration:  durationHours,
	}
	if err := s.store.CreateBooking(ctx, &b); err != nil {
		return model.Booking{}, err
	}

	s.notifier.BookingCreated(ctx, court, b)
	return b, nil
}

// Reschedule replaces a booking's interval. For notification purposes this is
// a cancellation of the old interval followed by a new booking.
func (s *Service) Reschedule(ctx context.Context, accountID, bookingID uuid.UUID, start time.Time, durationHours int) (model.Booking, error) {
	if durationHours <= 0 {
		return model.Booking{}, ErrInvalid
	}
	end := start.Add(time.Duration(durationHours) * time.Hour)

	if start.Before(s.now()) {
		return model.Booking{}, ErrInPast
	}

	old, err := s.store.GetBookingForAccount(ctx, bookingID, accountID)
	if err != nil {
		return model.Booking{}, err
	}
	court, err := s.store.GetCourt(ctx, old.CourtID)
	if err != nil {
		return model.Booking{}, err
	}
	if err := withinOperatingHours(court, start, end); err != nil {
		return model.Booking{}, err
	}

	updated := old
	updated.StartTime = start
	updated.EndTime = end
	updated.Duration = durationHours
	if err := s.store.UpdateBookingTimes(ctx, &updated); err != nil {
		return model.Booking{}, err
	}

	s.notifier.BookingChanged(ctx, court, old, updated)
	return updated, nil
}

// Cancel deletes a booking owned by the account.
func (s *Service) Cancel(ctx context.Context, accountID, bookingID uuid.UUID) error {
	b, err := s.store.GetBookingForAccount(ctx, bookingID, accountID)
	if err != nil {
		return err
	}
	court, err := s.store.GetCourt(ctx, b.CourtID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBooking(ctx, b.ID); err != nil {
		return err
	}

	s.notifier.BookingCancelled(ctx, court, b)
	return nil
}

// The boundary itself is rejected: a booking may not start at opening time or
// end at closing time.
func withinOperatingHours(court model.Court, start, end time.Time) error {
	if availability.ClockOf(start) <= court.Open || availability.ClockOf(end) >= court.Close {
		return ErrOutsideHours
	}
	return nil
}
