package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldops_backend/internal/calendar"
	"fieldops_backend/internal/email"
	"fieldops_backend/internal/events"
	apphttp "fieldops_backend/internal/http"
	"fieldops_backend/internal/http/router"
	"fieldops_backend/internal/notification"
	"fieldops_backend/internal/reminders"
	"fieldops_backend/internal/scheduling"
	"fieldops_backend/migrations"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/db"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/retry"
	"fieldops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := retry.Do(ctx, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := retry.Do(ctx, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module subscribes to domain events (not HTTP-facing)
	reminderClient, closeReminders := initReminderClient(cfg, log)
	if closeReminders != nil {
		defer closeReminders()
	}
	notificationModule := notification.New(calendar.NewClient(cfg, log), reminderClient, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	schedulingModule, err := scheduling.NewModule(cfg, pool, val, sender, eventBus, log)
	if err != nil {
		log.Error("failed to initialize scheduling module", "error", err)
		panic("failed to initialize scheduling module: " + err.Error())
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: db.NewPoolAdapter(pool),
		Modules: []apphttp.Module{
			schedulingModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initReminderClient builds the asynq client when redis is configured.
// The notification module treats a nil scheduler as reminders-disabled.
func initReminderClient(cfg config.WorkerConfig, log *logger.Logger) (reminders.Scheduler, func()) {
	if !cfg.IsReminderEnabled() {
		log.Warn("REDIS_URL not configured; crew reminders disabled")
		return nil, nil
	}

	client, err := reminders.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize reminder client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}
