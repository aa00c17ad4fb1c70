package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/courtsideapp/courtside/internal/db"
	"github.com/courtsideapp/courtside/internal/otelx"
)

// Notification job kinds. Each maps to one email composed by the worker.
const (
	KindConfirmation      = "confirmation"
	KindReminder          = "reminder"
	KindBookingChanged    = "booking_changed"
	KindCancellation      = "cancellation"
	KindAdminNotification = "admin_notification"
	KindAdminCancellation = "admin_cancellation"
	KindWorkerCleanup     = "worker_cleanup"
)

type Job struct {
	ID             int64
	IdempotencyKey string
	Kind           string
	BookingID      string
	CourtID        string
	Recipient      string
	RunAt          time.Time
	TemplateData   map[string]any
	Traceparent    string
	Tracestate     string
	Attempts       int
	MaxAttempts    int
	NextRunAt      time.Time
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert enqueues a job to run at job.RunAt. Duplicate idempotency keys are
// silently dropped, so re-enqueuing the same job for the same booking is safe.
func (r *Repository) Insert(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job.TemplateData)
	if err != nil {
		return err
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err = r.pool.Exec(ctx, `
		INSERT INTO notification_jobs (idempotency_key, kind, booking_id, court_id, recipient, run_at, template_data, next_run_at, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $6, $8, $9)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, job.IdempotencyKey, job.Kind, job.BookingID, job.CourtID, job.Recipient, job.RunAt, payload, traceparent, tracestate)
	return err
}

func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, limit int) ([]Job, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, idempotency_key, kind, booking_id, court_id, recipient, run_at, template_data, traceparent, tracestate, attempts, max_attempts, next_run_at
		FROM notification_jobs
		WHERE status = 'pending' AND next_run_at <= now()
		ORDER BY next_run_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var raw []byte
		if err := rows.Scan(&j.ID, &j.IdempotencyKey, &j.Kind, &j.BookingID, &j.CourtID, &j.Recipient, &j.RunAt, &raw, &j.Traceparent, &j.Tracestate, &j.Attempts, &j.MaxAttempts, &j.NextRunAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &j.TemplateData); err != nil {
				return nil, err
			}
		} else {
			j.TemplateData = map[string]any{}
		}
		jobs = append(jobs, j)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return jobs, nil
}

func (r *Repository) MarkProcessed(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE notification_jobs
		SET status = 'processed', updated_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, tx pgx.Tx, id int64, attempts int, maxAttempts int, nextRunAt time.Time, lastError string) error {
	status := "pending"
	if attempts >= maxAttempts {
		status = "failed"
	}
	_, err := tx.Exec(ctx, `
		UPDATE notification_jobs
		SET attempts = $2,
		    status = $3,
		    next_run_at = $4,
		    last_error = $5,
		    updated_at = now()
		WHERE id = $1
	`, id, attempts, status, nextRunAt, lastError)
	return err
}

// CancelForBooking drops pending jobs for a booking, used when the booking is
// cancelled or rescheduled before its reminders fire.
func (r *Repository) CancelForBooking(ctx context.Context, bookingID string, kinds ...string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET status = 'cancelled', updated_at = now()
		WHERE booking_id = $1
			AND status = 'pending'
			AND kind = ANY($2)
	`, bookingID, kinds)
	return err
}
