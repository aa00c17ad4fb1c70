package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/courtsideapp/courtside/internal/model"
	"github.com/courtsideapp/courtside/internal/storage"
)

const reminderCursorKey = "reminder:last_created_at"

// ReminderSweeper is a safety net behind the reminders enqueued at booking
// time: it periodically scans tomorrow's bookings and enqueues a reminder for
// any it has not seen yet. Idempotency keys make the overlap with the
// booking-time path harmless. The scan cursor lives in Redis so restarts and
// replicas do not rescan the whole table.
type ReminderSweeper struct {
	bookings *storage.BookingRepository
	accounts *storage.AccountRepository
	courts   *storage.CourtRepository
	repo     *Repository
	rdb      *redis.Client
	logger   *slog.Logger
	interval time.Duration
	lead     time.Duration
}

type SweeperConfig struct {
	Interval time.Duration
	Lead     time.Duration
}

func NewReminderSweeper(bookings *storage.BookingRepository, accounts *storage.AccountRepository, courts *storage.CourtRepository, repo *Repository, rdb *redis.Client, logger *slog.Logger, cfg SweeperConfig) *ReminderSweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.Lead <= 0 {
		cfg.Lead = 12 * time.Hour
	}
	return &ReminderSweeper{
		bookings: bookings,
		accounts: accounts,
		courts:   courts,
		repo:     repo,
		rdb:      rdb,
		logger:   logger,
		interval: cfg.Interval,
		lead:     cfg.Lead,
	}
}

func (s *ReminderSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.logger.Error("reminder sweep failed", "err", err)
			}
		}
	}
}

func (s *ReminderSweeper) sweep(ctx context.Context) error {
	cursor, err := s.loadCursor(ctx)
	if err != nil {
		return err
	}

	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	booked, err := s.bookings.ListCreatedAfterStartingOn(ctx, cursor, tomorrow)
	if err != nil {
		return err
	}
	if len(booked) == 0 {
		return nil
	}

	latest := cursor
	for _, b := range booked {
		if err := s.enqueue(ctx, b); err != nil {
			s.logger.Error("reminder enqueue failed", "booking_id", b.ID, "err", err)
			continue
		}
		if b.CreatedAt.After(latest) {
			latest = b.CreatedAt
		}
	}
	return s.storeCursor(ctx, latest)
}

func (s *ReminderSweeper) enqueue(ctx context.Context, b model.Booking) error {
	account, err := s.accounts.GetByID(ctx, b.AccountID)
	if err != nil {
		return err
	}
	court, err := s.courts.Get(ctx, b.CourtID)
	if err != nil {
		return err
	}
	return s.repo.Insert(ctx, Job{
		IdempotencyKey: fmt.Sprintf("%s:%s", KindReminder, b.ID),
		Kind:           KindReminder,
		BookingID:      b.ID.String(),
		CourtID:        b.CourtID.String(),
		Recipient:      account.Email,
		RunAt:          b.StartTime.Add(-s.lead),
		TemplateData: map[string]any{
			"court_name":     court.Name,
			"start_time":     b.StartTime.UTC().Format(time.RFC3339),
			"duration_hours": b.Duration,
		},
	})
}

func (s *ReminderSweeper) loadCursor(ctx context.Context) (time.Time, error) {
	raw, err := s.rdb.Get(ctx, reminderCursorKey).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	cursor, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		s.logger.Warn("discarding malformed reminder cursor", "raw", raw)
		return time.Time{}, nil
	}
	return cursor, nil
}

func (s *ReminderSweeper) storeCursor(ctx context.Context, cursor time.Time) error {
	return s.rdb.Set(ctx, reminderCursorKey, cursor.UTC().Format(time.RFC3339Nano), 0).Err()
}
