package reminders

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fieldops_backend/platform/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

func TestScheduleCrewReminderEnqueues(t *testing.T) {
	srv := miniredis.RunT(t)

	client := &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: srv.Addr()}),
		queue:  "reminders",
	}
	defer client.Close()

	payload := CrewReminderPayload{RecordID: "0d2acadb-5b4f-4edd-9b4e-6a415f24c0a1"}
	runAt := time.Now().Add(time.Hour)
	if err := client.ScheduleCrewReminder(context.Background(), payload, runAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: srv.Addr()})
	defer inspector.Close()

	tasks, err := inspector.ListScheduledTasks("reminders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 scheduled task, got %d", len(tasks))
	}
	if tasks[0].Type != TaskCrewReminder {
		t.Fatalf("got task type %q, want %q", tasks[0].Type, TaskCrewReminder)
	}

	var got CrewReminderPayload
	if err := json.Unmarshal(tasks[0].Payload, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RecordID != payload.RecordID {
		t.Fatalf("got record id %q, want %q", got.RecordID, payload.RecordID)
	}
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(&config.Config{}); err == nil {
		t.Fatal("expected error when redis url is missing")
	}
}

func TestNilClientIsNoop(t *testing.T) {
	var client *Client
	if err := client.ScheduleCrewReminder(context.Background(), CrewReminderPayload{}, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
