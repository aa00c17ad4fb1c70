package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/courtsideapp/courtside/internal/auth"
	"github.com/courtsideapp/courtside/internal/booking"
	"github.com/courtsideapp/courtside/internal/broadcast"
	"github.com/courtsideapp/courtside/internal/config"
	"github.com/courtsideapp/courtside/internal/db"
	"github.com/courtsideapp/courtside/internal/email"
	"github.com/courtsideapp/courtside/internal/handlers"
	"github.com/courtsideapp/courtside/internal/httpx"
	"github.com/courtsideapp/courtside/internal/jobs"
	"github.com/courtsideapp/courtside/internal/kafkax"
	"github.com/courtsideapp/courtside/internal/notify"
	"github.com/courtsideapp/courtside/internal/otelx"
	"github.com/courtsideapp/courtside/internal/outbox"
	"github.com/courtsideapp/courtside/internal/runtime"
	"github.com/courtsideapp/courtside/internal/storage"
	"github.com/courtsideapp/courtside/internal/ws"
)

func main() {
	service := config.String("SERVICE_NAME", "courtside")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: config.String("REDIS_ADDR", "localhost:6379"),
	})
	defer rdb.Close()

	// Repositories.
	accounts := storage.NewAccountRepository(pool)
	refresh := storage.NewRefreshRepository(pool)
	courts := storage.NewCourtRepository(pool)
	bookings := storage.NewBookingRepository(pool)
	equipment := storage.NewEquipmentRepository(pool)
	schedules := storage.NewAvailabilityRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	jobsRepo := jobs.NewRepository(pool)

	// Live updates: Redis pub/sub when configured, in-process otherwise.
	var broadcaster broadcast.Broadcaster
	if config.String("BROADCAST_BACKEND", "local") == "redis" {
		redisBroadcaster := broadcast.NewRedis(rdb, logger)
		go redisBroadcaster.Run(ctx)
		broadcaster = redisBroadcaster
	} else {
		broadcaster = broadcast.NewLocal()
	}

	fanout := notify.NewFanout(broadcaster, jobsRepo, outboxRepo, accounts, logger)
	bookingService := booking.NewService(bookings, fanout, logger)

	// Background loops: outbox drain, email worker, reminder sweep.
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_EVERY", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	sender := email.NewSMTPSender(
		config.String("SMTP_HOST", "localhost"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", ""),
	)
	notificationWorker := jobs.NewWorker(pool, jobsRepo, courts, sender, logger, jobs.WorkerConfig{
		AdminEmails: config.Strings("ADMIN_EMAILS"),
		Interval:    config.Duration("JOBS_POLL_EVERY", 2*time.Second),
		BatchSize:   config.Int("JOBS_BATCH_SIZE", 50),
		Backoff:     config.Duration("JOBS_RETRY_BACKOFF", time.Minute),
	})
	go notificationWorker.Run(ctx)

	sweeper := jobs.NewReminderSweeper(bookings, accounts, courts, jobsRepo, rdb, logger, jobs.SweeperConfig{
		Interval: config.Duration("REMINDER_SWEEP_EVERY", 15*time.Minute),
		Lead:     config.Duration("REMINDER_LEAD", 12*time.Hour),
	})
	go sweeper.Run(ctx)

	// HTTP surface.
	accountsHandler := handlers.NewAccountsHandler(accounts, refresh, bookings, jwtSecret,
		config.Duration("ACCESS_TOKEN_TTL", 15*time.Minute),
		config.Duration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
	)
	courtsHandler := handlers.NewCourtsHandler(courts, schedules)
	bookingsHandler := handlers.NewBookingsHandler(bookingService)
	equipmentHandler := handlers.NewEquipmentHandler(equipment)
	wsHandler := ws.NewHandler(bookingService, broadcaster, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)

	authed := func(h http.HandlerFunc) http.Handler {
		return auth.RequireAuth(jwtSecret, h)
	}

	mux.HandleFunc("POST /api/v1/accounts", accountsHandler.Register)
	mux.HandleFunc("POST /api/v1/accounts/token", accountsHandler.Token)
	mux.HandleFunc("POST /api/v1/accounts/token/refresh", accountsHandler.Refresh)
	mux.Handle("GET /api/v1/accounts/me", authed(accountsHandler.Me))
	mux.Handle("GET /api/v1/accounts/me/bookings", authed(accountsHandler.MyBookings))

	mux.HandleFunc("GET /api/v1/courts", courtsHandler.List)
	mux.HandleFunc("GET /api/v1/courts/{id}", courtsHandler.Detail)
	mux.HandleFunc("GET /api/v1/courts/{id}/slots", courtsHandler.Slots)

	mux.Handle("POST /api/v1/bookings", authed(bookingsHandler.Create))
	mux.Handle("PATCH /api/v1/bookings/{id}", authed(bookingsHandler.Update))
	mux.Handle("DELETE /api/v1/bookings/{id}", authed(bookingsHandler.Delete))

	mux.Handle("GET /api/v1/equipment", authed(equipmentHandler.List))
	mux.Handle("POST /api/v1/equipment/{id}/assign", authed(equipmentHandler.Assign))
	mux.Handle("POST /api/v1/equipment/{id}/release", authed(equipmentHandler.Release))

	mux.Handle("/ws/bookings", auth.RequireAuth(jwtSecret, wsHandler))

	limiter := httpx.NewRedisRateLimiter(rdb,
		config.Int("RATE_LIMIT", 100),
		config.Duration("RATE_LIMIT_WINDOW", time.Minute),
		service,
	)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		limiter.Middleware(logger, true),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
