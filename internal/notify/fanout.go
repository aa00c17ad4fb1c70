package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/courtsideapp/courtside/internal/broadcast"
	"github.com/courtsideapp/courtside/internal/jobs"
	"github.com/courtsideapp/courtside/internal/model"
	"github.com/courtsideapp/courtside/internal/outbox"
)

// JobQueue enqueues notification jobs; *jobs.Repository implements it.
type JobQueue interface {
	Insert(ctx context.Context, job jobs.Job) error
	CancelForBooking(ctx context.Context, bookingID string, kinds ...string) error
}

// EventOutbox records domain events for the Kafka publisher;
// *outbox.Repository implements it.
type EventOutbox interface {
	Insert(ctx context.Context, evt outbox.Event) error
}

// AccountDirectory resolves the booking owner's email;
// *storage.AccountRepository implements it.
type AccountDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.Account, error)
}

const (
	// Reminders go out 12 hours before the booking starts.
	reminderLead = 12 * time.Hour
	// Cleaning staff are pinged shortly after the booking is made.
	workerCleanupDelay = 2 * time.Minute
)

// Fanout reacts to booking lifecycle events: it pushes live updates to court
// subscribers, enqueues the notification emails, and writes domain events to
// the outbox. Everything here is best-effort; a failed side effect is logged
// and never surfaces to the caller.
type Fanout struct {
	broadcaster broadcast.Broadcaster
	jobs        JobQueue
	outbox      EventOutbox
	accounts    AccountDirectory
	logger      *slog.Logger
	now         func() time.Time
}

func NewFanout(broadcaster broadcast.Broadcaster, jobsRepo JobQueue, outboxRepo EventOutbox, accounts AccountDirectory, logger *slog.Logger) *Fanout {
	return &Fanout{
		broadcaster: broadcaster,
		jobs:        jobsRepo,
		outbox:      outboxRepo,
		accounts:    accounts,
		logger:      logger,
		now:         time.Now,
	}
}

// CourtGroup names the broadcast group carrying a court's live updates.
func CourtGroup(court model.Court) string {
	return "court_" + court.ID.String()
}

func (f *Fanout) BookingCreated(ctx context.Context, court model.Court, b model.Booking) {
	f.broadcastEvent(ctx, court, "booked", b)
	f.publishEvent(ctx, outbox.TopicCourtBooked, court, b)

	email := f.accountEmail(ctx, b)
	data := templateData(court, b, email)
	now := f.now().UTC()

	f.enqueue(ctx, jobs.Job{
		IdempotencyKey: jobKey(jobs.KindConfirmation, b),
		Kind:           jobs.KindConfirmation,
		BookingID:      b.ID.String(),
		CourtID:        court.ID.String(),
		Recipient:      email,
		RunAt:          now,
		TemplateData:   data,
	})
	f.enqueue(ctx, jobs.Job{
		IdempotencyKey: jobKey(jobs.KindReminder, b),
		Kind:           jobs.KindReminder,
		BookingID:      b.ID.String(),
		CourtID:        court.ID.String(),
		Recipient:      email,
		RunAt:          b.StartTime.Add(-reminderLead),
		TemplateData:   data,
	})
	f.enqueue(ctx, jobs.Job{
		IdempotencyKey: jobKey(jobs.KindAdminNotification, b),
		Kind:           jobs.KindAdminNotification,
		BookingID:      b.ID.String(),
		CourtID:        court.ID.String(),
		RunAt:          now,
		TemplateData:   data,
	})
	f.enqueue(ctx, jobs.Job{
		IdempotencyKey: jobKey(jobs.KindWorkerCleanup, b),
		Kind:           jobs.KindWorkerCleanup,
		BookingID:      b.ID.String(),
		CourtID:        court.ID.String(),
		RunAt:          now.Add(workerCleanupDelay),
		TemplateData:   data,
	})
}

func (f *Fanout) BookingChanged(ctx context.Context, court model.Court, old, updated model.Booking) {
	// Subscribers see the old interval freed and the new one taken.
	f.broadcastEvent(ctx, court, "cancelled", old)
	f.broadcastEvent(ctx, court, "booked", updated)
	f.publishEvent(ctx, outbox.TopicCourtCancelled, court, old)
	f.publishEvent(ctx, outbox.TopicCourtBooked, court, updated)

	if err := f.jobs.CancelForBooking(ctx, updated.ID.String(), jobs.KindReminder); err != nil {
		f.logger.Error("cancelling stale reminder failed", "booking_id", updated.ID, "err", err)
	}

	email := f.accountEmail(ctx, updated)
	data := templateData(court, updated, email)

	f.enqueue(ctx, jobs.Job{
		IdempotencyKey: fmt.Sprintf("%s:%s:%d", jobs.KindBookingChanged, updated.ID, updated.StartTime.Unix()),
		Kind:           jobs.KindBookingChanged,
		BookingID:      updated.ID.String(),
		CourtID:        court.ID.String(),
		Recipient:      email,
		RunAt:          f.now().UTC(),
		TemplateData:   data,
	})
	f.enqueue(ctx, jobs.Job{
		IdempotencyKey: fmt.Sprintf("%s:%s:%d", jobs.KindReminder, updated.ID, updated.StartTime.Unix()),
		Kind:           jobs.KindReminder,
		BookingID:      updated.ID.String(),
		CourtID:        court.ID.String(),
		Recipient:      email,
		RunAt:          updated.StartTime.Add(-reminderLead),
		TemplateData:   data,
	})
	// Cleaning staff are pinged on modify as well as create.
	f.enqueue(ctx, jobs.Job{
		IdempotencyKey: fmt.Sprintf("%s:%s:%d", jobs.KindWorkerCleanup, updated.ID, updated.StartTime.Unix()),
		Kind:           jobs.KindWorkerCleanup,
		BookingID:      updated.ID.String(),
		CourtID:        court.ID.String(),
		RunAt:          f.now().UTC().Add(workerCleanupDelay),
		TemplateData:   data,
	})
}

func (f *Fanout) BookingCancelled(ctx context.Context, court model.Court, b model.Booking) {
	f.broadcastEvent(ctx, court, "cancelled", b)
	f.publishEvent(ctx, outbox.TopicCourtCancelled, court, b)

	if err := f.jobs.CancelForBooking(ctx, b.ID.String(), jobs.KindReminder, jobs.KindWorkerCleanup); err != nil {
		f.logger.Error("cancelling pending jobs failed", "booking_id", b.ID, "err", err)
	}

	email := f.accountEmail(ctx, b)
	data := templateData(court, b, email)
	now := f.now().UTC()

	f.enqueue(ctx, jobs.Job{
		IdempotencyKey: jobKey(jobs.KindCancellation, b),
		Kind:           jobs.KindCancellation,
		BookingID:      b.ID.String(),
		CourtID:        court.ID.String(),
		Recipient:      email,
		RunAt:          now,
		TemplateData:   data,
	})
	f.enqueue(ctx, jobs.Job{
		IdempotencyKey: jobKey(jobs.KindAdminCancellation, b),
		Kind:           jobs.KindAdminCancellation,
		BookingID:      b.ID.String(),
		CourtID:        court.ID.String(),
		RunAt:          now,
		TemplateData:   data,
	})
}

// broadcastEvent pushes {"booked": {...}} or {"cancelled": {...}} to the
// court's subscriber group.
func (f *Fanout) broadcastEvent(ctx context.Context, court model.Court, event string, b model.Booking) {
	payload, err := json.Marshal(map[string]any{
		event: map[string]string{
			"start_time": b.StartTime.UTC().Format(time.RFC3339),
			"end_time":   b.EndTime.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		f.logger.Error("encoding broadcast payload failed", "err", err)
		return
	}
	if err := f.broadcaster.Broadcast(ctx, CourtGroup(court), payload); err != nil {
		f.logger.Error("broadcast failed", "court_id", court.ID, "err", err)
	}
}

func (f *Fanout) publishEvent(ctx context.Context, topic string, court model.Court, b model.Booking) {
	payload, err := json.Marshal(map[string]any{
		"booking_id": b.ID.String(),
		"court_id":   court.ID.String(),
		"account_id": b.AccountID.String(),
		"start_time": b.StartTime.UTC().Format(time.RFC3339),
		"end_time":   b.EndTime.UTC().Format(time.RFC3339),
	})
	if err != nil {
		f.logger.Error("encoding outbox payload failed", "err", err)
		return
	}
	err = f.outbox.Insert(ctx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID.String(),
		EventType:     topic,
		Payload:       payload,
	})
	if err != nil {
		f.logger.Error("outbox insert failed", "topic", topic, "booking_id", b.ID, "err", err)
	}
}

func (f *Fanout) enqueue(ctx context.Context, job jobs.Job) {
	if err := f.jobs.Insert(ctx, job); err != nil {
		f.logger.Error("notification enqueue failed", "kind", job.Kind, "booking_id", job.BookingID, "err", err)
	}
}

func (f *Fanout) accountEmail(ctx context.Context, b model.Booking) string {
	account, err := f.accounts.GetByID(ctx, b.AccountID)
	if err != nil {
		f.logger.Error("resolving account email failed", "account_id", b.AccountID, "err", err)
		return ""
	}
	return account.Email
}

func templateData(court model.Court, b model.Booking, email string) map[string]any {
	return map[string]any{
		"court_name":     court.Name,
		"start_time":     b.StartTime.UTC().Format(time.RFC3339),
		"duration_hours": b.Duration,
		"account_email":  email,
	}
}

func jobKey(kind string, b model.Booking) string {
	return fmt.Sprintf("%s:%s", kind, b.ID)
}
