package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldops_backend/internal/email"
	"fieldops_backend/internal/reminders"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/db"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/retry"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting reminder worker", "env", cfg.Env, "queue", cfg.ReminderQueue)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	worker, err := reminders.NewWorker(cfg, pool, sender, log)
	if err != nil {
		log.Error("failed to initialize reminder worker", "error", err)
		panic("failed to initialize reminder worker: " + err.Error())
	}

	worker.Run(ctx)
	log.Info("reminder worker stopped")
}
