package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/courtsideapp/courtside/internal/availability"
	"github.com/courtsideapp/courtside/internal/db"
	"github.com/courtsideapp/courtside/internal/model"
)

type CourtRepository struct {
	pool *db.Pool
}

func NewCourtRepository(pool *db.Pool) *CourtRepository {
	return &CourtRepository{pool: pool}
}

func (r *CourtRepository) List(ctx context.Context) ([]model.Court, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, location, open_time::text, close_time::text, created_at, updated_at
		FROM courts
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courts []model.Court
	for rows.Next() {
		c, err := scanCourt(rows.Scan)
		if err != nil {
			return nil, err
		}
		courts = append(courts, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return courts, nil
}

func (r *CourtRepository) Get(ctx context.Context, id uuid.UUID) (model.Court, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, location, open_time::text, close_time::text, created_at, updated_at
		FROM courts
		WHERE id = $1
	`, id)
	return scanCourt(row.Scan)
}

// ListBookedRanges returns the booked intervals on the court for the given
// calendar day as clock-of-day ranges, ordered by start.
func (r *CourtRepository) ListBookedRanges(ctx context.Context, courtID uuid.UUID, day time.Time) ([]availability.Range, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM bookings
		WHERE court_id = $1
			AND start_time >= $2
			AND start_time < $3
		ORDER BY start_time ASC
	`, courtID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranges []availability.Range
	for rows.Next() {
		var start, end time.Time
		if err := rows.Scan(&start, &end); err != nil {
			return nil, err
		}
		ranges = append(ranges, availability.Range{
			Start: availability.ClockOf(start.UTC()),
			End:   availability.ClockOf(end.UTC()),
		})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ranges, nil
}

func (r *CourtRepository) ListWorkers(ctx context.Context, courtID uuid.UUID) ([]model.Worker, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, court_id
		FROM workers
		WHERE court_id = $1
		ORDER BY name ASC
	`, courtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []model.Worker
	for rows.Next() {
		var w model.Worker
		if err := rows.Scan(&w.ID, &w.Name, &w.Email, &w.CourtID); err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return workers, nil
}

func scanCourt(scan func(...any) error) (model.Court, error) {
	var c model.Court
	var open, close string
	if err := scan(&c.ID, &c.Name, &c.Location, &open, &close, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return model.Court{}, err
	}
	var err error
	if c.Open, err = availability.ParseClock(open); err != nil {
		return model.Court{}, err
	}
	if c.Close, err = availability.ParseClock(close); err != nil {
		return model.Court{}, err
	}
	return c, nil
}
