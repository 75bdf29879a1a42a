// Package reminders schedules and delivers crew reminder emails through
// asynq. Reminders fire the day before a visit; the worker re-reads the
// schedule record at delivery time so visits unscheduled in the meantime
// are silently dropped.
package reminders

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskCrewReminder = "scheduling.crew_reminder"

// CrewReminderPayload identifies the schedule record a reminder is for.
// The worker fetches the record fresh rather than trusting a snapshot.
type CrewReminderPayload struct {
	RecordID string `json:"recordId"`
}

func NewCrewReminderTask(payload CrewReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCrewReminder, data), nil
}

func ParseCrewReminderPayload(task *asynq.Task) (CrewReminderPayload, error) {
	var payload CrewReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CrewReminderPayload{}, err
	}
	return payload, nil
}
