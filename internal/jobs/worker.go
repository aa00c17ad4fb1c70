package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/courtsideapp/courtside/internal/db"
	"github.com/courtsideapp/courtside/internal/email"
	"github.com/courtsideapp/courtside/internal/otelx"
	"github.com/courtsideapp/courtside/internal/storage"
)

// Worker drains due notification jobs and sends the corresponding emails.
// Jobs are claimed with FOR UPDATE SKIP LOCKED so multiple replicas can run
// the loop; a failed send is retried with backoff until max attempts.
type Worker struct {
	pool        *db.Pool
	repo        *Repository
	courts      *storage.CourtRepository
	sender      email.Sender
	adminEmails []string
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
	backoff     time.Duration
}

type WorkerConfig struct {
	AdminEmails []string
	Interval    time.Duration
	BatchSize   int
	Backoff     time.Duration
}

func NewWorker(pool *db.Pool, repo *Repository, courts *storage.CourtRepository, sender email.Sender, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 1 * time.Minute
	}
	return &Worker{
		pool:        pool,
		repo:        repo,
		courts:      courts,
		sender:      sender,
		adminEmails: cfg.AdminEmails,
		logger:      logger,
		interval:    cfg.Interval,
		batchSize:   cfg.BatchSize,
		backoff:     cfg.Backoff,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				w.logger.Error("notification batch failed", "err", err)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	jobs, err := w.repo.FetchDue(ctx, tx, w.batchSize)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return tx.Commit(ctx)
	}

	var ids []int64
	for _, job := range jobs {
		jobCtx := otelx.ContextWithTraceContext(ctx, job.Traceparent, job.Tracestate)
		if err := w.deliver(jobCtx, job); err != nil {
			w.logger.Error("notification delivery failed", "kind", job.Kind, "booking_id", job.BookingID, "err", err)
			attempts := job.Attempts + 1
			nextRunAt := time.Now().UTC().Add(w.backoff)
			if err := w.repo.MarkFailed(ctx, tx, job.ID, attempts, job.MaxAttempts, nextRunAt, err.Error()); err != nil {
				return err
			}
			continue
		}
		ids = append(ids, job.ID)
	}

	if err := w.repo.MarkProcessed(ctx, tx, ids); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (w *Worker) deliver(ctx context.Context, job Job) error {
	subject, body, err := Compose(job.Kind, job.TemplateData)
	if err != nil {
		return err
	}
	recipients, err := w.recipients(ctx, job)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		w.logger.Warn("notification has no recipients", "kind", job.Kind, "booking_id", job.BookingID)
		return nil
	}
	return w.sender.Send(recipients, subject, body)
}

// Worker emails are resolved at send time so staff changes between booking
// and cleanup still reach the right people.
func (w *Worker) recipients(ctx context.Context, job Job) ([]string, error) {
	switch job.Kind {
	case KindAdminNotification, KindAdminCancellation:
		return w.adminEmails, nil
	case KindWorkerCleanup:
		courtID, err := uuid.Parse(job.CourtID)
		if err != nil {
			return nil, err
		}
		workers, err := w.courts.ListWorkers(ctx, courtID)
		if err != nil {
			return nil, err
		}
		var emails []string
		for _, worker := range workers {
			emails = append(emails, worker.Email)
		}
		return emails, nil
	default:
		return []string{job.Recipient}, nil
	}
}

// Compose renders the subject and body for a notification kind from its
// template data.
func Compose(kind string, data map[string]any) (subject, body string, err error) {
	court := dataString(data, "court_name")
	start := dataString(data, "start_time")
	account := dataString(data, "account_email")
	hours := dataInt(data, "duration_hours")

	switch kind {
	case KindConfirmation:
		return "Booking Confirmation",
			fmt.Sprintf("You have booked %s from %s for %d hours.", court, start, hours), nil
	case KindReminder:
		return "Booking Reminder",
			fmt.Sprintf("Reminder: you have booked %s from %s for %d hours.", court, start, hours), nil
	case KindBookingChanged:
		return "Booking Changed",
			fmt.Sprintf("Your booking at %s has been moved to %s for %d hours.", court, start, hours), nil
	case KindCancellation:
		return "Booking Cancelled",
			fmt.Sprintf("Your booking at %s for %s has been cancelled.", court, start), nil
	case KindAdminNotification:
		return "New Booking",
			fmt.Sprintf("%s booked %s from %s for %d hours.", account, court, start, hours), nil
	case KindAdminCancellation:
		return "Booking Cancelled",
			fmt.Sprintf("%s cancelled the booking at %s for %s.", account, court, start), nil
	case KindWorkerCleanup:
		return "Cleaning Reminder",
			fmt.Sprintf("You are reminded to clean %s for 10 minutes.", court), nil
	default:
		return "", "", fmt.Errorf("unknown notification kind %q", kind)
	}
}

func dataString(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

// JSON round-tripping turns numbers into float64.
func dataInt(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
