// Package notification provides event handlers for the side effects of
// schedule changes: office calendar sync and crew reminder scheduling.
// This module subscribes to events and inverts the dependency: the
// scheduling engine never talks to the calendar or the task queue itself.
package notification

import (
	"context"
	"strings"
	"time"

	"fieldops_backend/internal/calendar"
	"fieldops_backend/internal/events"
	"fieldops_backend/internal/reminders"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"

	"github.com/google/uuid"
)

// CalendarSync mirrors survey visits onto the shared office calendar.
type CalendarSync interface {
	UpsertEvent(ctx context.Context, event calendar.Event) error
	CancelEvent(ctx context.Context, externalID string) error
}

// Module handles scheduling domain events.
type Module struct {
	calendar     CalendarSync
	reminders    reminders.Scheduler
	reminderLead time.Duration
	log          *logger.Logger
}

// New creates the notification module. Both collaborators are optional;
// a nil calendar or reminder scheduler turns that side effect off.
func New(cal CalendarSync, rem reminders.Scheduler, cfg config.WorkerConfig, log *logger.Logger) *Module {
	lead := cfg.GetReminderLead()
	if lead <= 0 {
		lead = 24 * time.Hour
	}

	return &Module{
		calendar:     cal,
		reminders:    rem,
		reminderLead: lead,
		log:          log,
	}
}

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.VisitScheduled{}.EventName(), m)
	bus.Subscribe(events.VisitUnscheduled{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.VisitScheduled:
		return m.handleVisitScheduled(ctx, e)
	case events.VisitUnscheduled:
		return m.handleVisitUnscheduled(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

// handleVisitScheduled mirrors the visit to the calendar and books the
// crew reminder. Every failure is logged and swallowed: these are
// conveniences layered on an already-committed schedule.
func (m *Module) handleVisitScheduled(ctx context.Context, e events.VisitScheduled) error {
	if e.TestMode {
		m.log.Debug("test mode visit: skipping calendar and reminder", "deal_id", e.DealID)
		return nil
	}

	if m.calendar != nil && isSurvey(e.Category) {
		event := calendar.Event{
			ExternalID: visitExternalID(e.DealID, e.Category),
			Title:      calendarTitle(e.CustomerName, e.Category),
			StartUTC:   e.StartUTC,
			EndUTC:     e.EndUTC,
			Location:   e.Address,
			Notes:      "Scheduled by " + e.ScheduledBy,
		}
		if err := m.calendar.UpsertEvent(ctx, event); err != nil {
			m.log.Warn("calendar sync failed", "deal_id", e.DealID, "error", err)
		}
	}

	m.scheduleReminder(ctx, e)
	return nil
}

// handleVisitUnscheduled removes the calendar mirror once both external
// systems are verified clear. On a partial clear the visit may still
// happen, so the calendar entry stays.
func (m *Module) handleVisitUnscheduled(ctx context.Context, e events.VisitUnscheduled) error {
	if e.Partial {
		m.log.Debug("partial unschedule: keeping calendar entry", "deal_id", e.DealID)
		return nil
	}

	if m.calendar != nil && isSurvey(e.Category) {
		if err := m.calendar.CancelEvent(ctx, visitExternalID(e.DealID, e.Category)); err != nil {
			m.log.Warn("calendar cancel failed", "deal_id", e.DealID, "error", err)
		}
	}

	// Pending reminder tasks need no cleanup here: the worker re-reads
	// the schedule record at delivery time and drops inactive ones.
	return nil
}

func (m *Module) scheduleReminder(ctx context.Context, e events.VisitScheduled) {
	if m.reminders == nil || e.AssigneeEmail == "" || e.RecordID == uuid.Nil {
		return
	}

	start, err := time.Parse(time.RFC3339, e.StartUTC)
	if err != nil {
		m.log.Warn("reminder skipped: unparseable visit start", "deal_id", e.DealID, "start", e.StartUTC)
		return
	}

	runAt := start.Add(-m.reminderLead)
	if !runAt.After(time.Now()) {
		m.log.Debug("reminder skipped: visit too soon", "deal_id", e.DealID, "run_at", runAt)
		return
	}

	payload := reminders.CrewReminderPayload{RecordID: e.RecordID.String()}
	if err := m.reminders.ScheduleCrewReminder(ctx, payload, runAt); err != nil {
		m.log.Warn("reminder enqueue failed", "deal_id", e.DealID, "error", err)
	}
}

func isSurvey(category string) bool {
	return strings.EqualFold(category, "survey")
}

func visitExternalID(dealID, category string) string {
	return "visit-" + dealID + "-" + strings.ToLower(category)
}

func calendarTitle(customerName, category string) string {
	if customerName == "" {
		return category
	}
	return customerName + " - " + category
}
