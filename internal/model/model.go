package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/courtsideapp/courtside/internal/availability"
)

type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Admin        bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Court struct {
	ID        uuid.UUID
	Name      string
	Location  string
	Open      availability.Clock
	Close     availability.Clock
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Booking struct {
	ID        uuid.UUID
	CourtID   uuid.UUID
	AccountID uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	// Duration is the booked length in whole hours; EndTime is always
	// StartTime plus Duration hours.
	Duration  int
	CreatedAt time.Time
}

func (b Booking) String() string {
	return fmt.Sprintf("<Booking:%s | %s | %d hours>", b.ID, b.StartTime.UTC().Format(time.RFC3339), b.Duration)
}

type Worker struct {
	ID      uuid.UUID
	Name    string
	Email   string
	CourtID uuid.UUID
}

type Equipment struct {
	ID        uuid.UUID
	Name      string
	Assigned  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailabilitySlot is a schedule row for a court: a recurring weekday slot or
// a date-specific override.
type AvailabilitySlot struct {
	ID      int64
	CourtID uuid.UUID
	Weekday *time.Weekday
	Date    *time.Time
	Open    availability.Clock
	Close   availability.Clock
}

func (s AvailabilitySlot) Schedule() availability.ScheduleSlot {
	return availability.ScheduleSlot{
		Weekday: s.Weekday,
		Date:    s.Date,
		Open:    s.Open,
		Close:   s.Close,
	}
}
