package reminders

import (
	"context"
	"fmt"
	"strings"

	"fieldops_backend/internal/email"
	"fieldops_backend/internal/scheduling/repository"
	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/phone"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Worker consumes reminder tasks and emails the assigned crew member.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	repo   *repository.Repository
	sender email.Sender
	log    *logger.Logger
}

func NewWorker(cfg config.WorkerConfig, pool *pgxpool.Pool, sender email.Sender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	queue := cfg.GetReminderQueue()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetWorkerConcurrency()
	if concurrency < 1 {
		concurrency = 5
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		repo:   repository.New(pool),
		sender: sender,
		log:    log,
	}

	mux.HandleFunc(TaskCrewReminder, w.handleCrewReminder)

	return w, nil
}

// Run serves tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("reminder worker stopped", "error", err)
	}
}

// handleCrewReminder re-reads the schedule record before sending, so a
// visit unscheduled after enqueue produces no mail.
func (w *Worker) handleCrewReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCrewReminderPayload(task)
	if err != nil {
		return err
	}

	recordID, err := uuid.Parse(payload.RecordID)
	if err != nil {
		return err
	}

	record, err := w.repo.GetByID(ctx, recordID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}

	if record.Status != repository.StatusActive {
		return nil
	}
	if record.AssignedUserEmail == "" {
		w.log.Debug("crew reminder skipped: no assignee email", "record_id", record.ID.String())
		return nil
	}

	customerName := strings.TrimSpace(record.CustomerFirstName + " " + record.CustomerLastName)
	details := email.VisitDetails{
		CustomerName:  customerName,
		Category:      categoryLabel(record.ScheduleType),
		VisitDate:     record.ScheduledDate,
		VisitWindow:   visitWindow(record.ScheduledStart, record.ScheduledEnd),
		Address:       record.Address,
		CustomerPhone: phone.FormatNational(record.CustomerPhone),
		AssigneeName:  record.AssignedUser,
		Notes:         record.Notes,
	}

	if err := w.sender.SendCrewReminderEmail(ctx, record.AssignedUserEmail, details); err != nil {
		return fmt.Errorf("failed to send crew reminder: %w", err)
	}
	return nil
}

func categoryLabel(scheduleType string) string {
	if scheduleType == "" {
		return ""
	}
	return strings.ToUpper(scheduleType[:1]) + scheduleType[1:]
}

func visitWindow(start, end string) string {
	if start == "" || end == "" {
		return ""
	}
	return start + " - " + end
}
