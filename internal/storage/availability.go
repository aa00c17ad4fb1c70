package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/courtsideapp/courtside/internal/availability"
	"github.com/courtsideapp/courtside/internal/db"
	"github.com/courtsideapp/courtside/internal/model"
)

type AvailabilityRepository struct {
	pool *db.Pool
}

func NewAvailabilityRepository(pool *db.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

// ListForCourt returns the court's schedule rows: recurring weekday slots and
// date-specific overrides.
func (r *AvailabilityRepository) ListForCourt(ctx context.Context, courtID uuid.UUID) ([]model.AvailabilitySlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, court_id, weekday, slot_date, open_time::text, close_time::text
		FROM availability_slots
		WHERE court_id = $1
		ORDER BY id ASC
	`, courtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []model.AvailabilitySlot
	for rows.Next() {
		var s model.AvailabilitySlot
		var weekday *int
		var slotDate *time.Time
		var open, close string
		if err := rows.Scan(&s.ID, &s.CourtID, &weekday, &slotDate, &open, &close); err != nil {
			return nil, err
		}
		if weekday != nil {
			wd := time.Weekday(*weekday)
			s.Weekday = &wd
		}
		s.Date = slotDate
		if s.Open, err = availability.ParseClock(open); err != nil {
			return nil, err
		}
		if s.Close, err = availability.ParseClock(close); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return slots, nil
}
