package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/courtsideapp/courtside/internal/booking"
	"github.com/courtsideapp/courtside/internal/db"
	"github.com/courtsideapp/courtside/internal/model"
)

// BookingRepository implements booking.Store on Postgres. The overlap check
// and the insert run in one transaction under a per-court advisory lock, with
// the courts table's exclusion constraint as a backstop, so two clients racing
// for the same interval cannot both commit.
type BookingRepository struct {
	pool   *db.Pool
	courts *CourtRepository
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool, courts: NewCourtRepository(pool)}
}

func (r *BookingRepository) GetCourt(ctx context.Context, courtID uuid.UUID) (model.Court, error) {
	c, err := r.courts.Get(ctx, courtID)
	if IsNotFound(err) {
		return model.Court{}, booking.ErrNotFound
	}
	return c, err
}

func (r *BookingRepository) CreateBooking(ctx context.Context, b *model.Booking) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, b.CourtID); err != nil {
		return err
	}

	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE court_id = $1
				AND ((start_time <= $2 AND $2 < end_time)
					OR (start_time < $3 AND $3 <= end_time))
		)
	`, b.CourtID, b.StartTime, b.EndTime).Scan(&taken)
	if err != nil {
		return err
	}
	if taken {
		return booking.ErrSlotTaken
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO bookings (id, court_id, account_id, start_time, end_time, duration_hours)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, b.ID, b.CourtID, b.AccountID, b.StartTime, b.EndTime, b.Duration).Scan(&b.CreatedAt)
	if err != nil {
		if IsConflict(err) {
			return booking.ErrSlotTaken
		}
		return err
	}
	return tx.Commit(ctx)
}

func (r *BookingRepository) UpdateBookingTimes(ctx context.Context, b *model.Booking) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, b.CourtID); err != nil {
		return err
	}

	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE court_id = $1
				AND id <> $4
				AND ((start_time <= $2 AND $2 < end_time)
					OR (start_time < $3 AND $3 <= end_time))
		)
	`, b.CourtID, b.StartTime, b.EndTime, b.ID).Scan(&taken)
	if err != nil {
		return err
	}
	if taken {
		return booking.ErrSlotTaken
	}

	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET start_time = $2,
			end_time = $3,
			duration_hours = $4
		WHERE id = $1
	`, b.ID, b.StartTime, b.EndTime, b.Duration)
	if err != nil {
		if IsConflict(err) {
			return booking.ErrSlotTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return tx.Commit(ctx)
}

func (r *BookingRepository) GetBookingForAccount(ctx context.Context, bookingID, accountID uuid.UUID) (model.Booking, error) {
	var b model.Booking
	err := r.pool.QueryRow(ctx, `
		SELECT id, court_id, account_id, start_time, end_time, duration_hours, created_at
		FROM bookings
		WHERE id = $1 AND account_id = $2
	`, bookingID, accountID).Scan(&b.ID, &b.CourtID, &b.AccountID, &b.StartTime, &b.EndTime, &b.Duration, &b.CreatedAt)
	if IsNotFound(err) {
		return model.Booking{}, booking.ErrNotFound
	}
	if err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

func (r *BookingRepository) DeleteBooking(ctx context.Context, bookingID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, bookingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

// AccountBooking is a booking joined with the court it is on, for listing an
// account's upcoming reservations.
type AccountBooking struct {
	model.Booking
	CourtName string
}

func (r *BookingRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]AccountBooking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.court_id, b.account_id, b.start_time, b.end_time, b.duration_hours, b.created_at, c.name
		FROM bookings b
		JOIN courts c ON c.id = b.court_id
		WHERE b.account_id = $1
		ORDER BY b.start_time ASC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccountBooking
	for rows.Next() {
		var ab AccountBooking
		if err := rows.Scan(&ab.ID, &ab.CourtID, &ab.AccountID, &ab.StartTime, &ab.EndTime, &ab.Duration, &ab.CreatedAt, &ab.CourtName); err != nil {
			return nil, err
		}
		out = append(out, ab)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ListCreatedAfterStartingOn returns bookings created after the cursor whose
// start falls on the given calendar day, ordered by creation time. The
// reminder sweep uses this to pick up tomorrow's bookings it has not yet
// scheduled reminders for.
func (r *BookingRepository) ListCreatedAfterStartingOn(ctx context.Context, createdAfter time.Time, day time.Time) ([]model.Booking, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	rows, err := r.pool.Query(ctx, `
		SELECT id, court_id, account_id, start_time, end_time, duration_hours, created_at
		FROM bookings
		WHERE created_at > $1
			AND start_time >= $2
			AND start_time < $3
		ORDER BY created_at ASC
	`, createdAfter, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.CourtID, &b.AccountID, &b.StartTime, &b.EndTime, &b.Duration, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
