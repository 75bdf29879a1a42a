package notification

import (
	"context"
	"fmt"
	"testing"
	"time"

	"fieldops_backend/internal/calendar"
	"fieldops_backend/internal/events"
	"fieldops_backend/internal/reminders"
	"fieldops_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeCalendar struct {
	upserts []calendar.Event
	cancels []string
	err     error
}

func (f *fakeCalendar) UpsertEvent(_ context.Context, event calendar.Event) error {
	f.upserts = append(f.upserts, event)
	return f.err
}

func (f *fakeCalendar) CancelEvent(_ context.Context, externalID string) error {
	f.cancels = append(f.cancels, externalID)
	return f.err
}

type fakeReminderScheduler struct {
	payloads []reminders.CrewReminderPayload
	runAts   []time.Time
	err      error
}

func (f *fakeReminderScheduler) ScheduleCrewReminder(_ context.Context, payload reminders.CrewReminderPayload, runAt time.Time) error {
	f.payloads = append(f.payloads, payload)
	f.runAts = append(f.runAts, runAt)
	return f.err
}

type stubWorkerConfig struct {
	lead time.Duration
}

func (s stubWorkerConfig) GetRedisURL() string            { return "" }
func (s stubWorkerConfig) GetReminderQueue() string       { return "reminders" }
func (s stubWorkerConfig) GetWorkerConcurrency() int      { return 1 }
func (s stubWorkerConfig) GetReminderLead() time.Duration { return s.lead }
func (s stubWorkerConfig) IsReminderEnabled() bool        { return false }

func newTestModule(cal CalendarSync, rem reminders.Scheduler) *Module {
	return New(cal, rem, stubWorkerConfig{lead: 24 * time.Hour}, logger.New("development"))
}

func scheduledEvent() events.VisitScheduled {
	start := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	return events.VisitScheduled{
		BaseEvent:     events.NewBaseEvent(),
		RecordID:      uuid.New(),
		DealID:        "9021457822",
		Category:      "Survey",
		Action:        "rescheduled",
		JobUID:        "job-9",
		CustomerName:  "Maria Garcia",
		Address:       "77 Sun Rd, Mesa AZ 85201",
		StartUTC:      start.Format(time.RFC3339),
		EndUTC:        start.Add(2 * time.Hour).Format(time.RFC3339),
		AssigneeName:  "Dana Fox",
		AssigneeEmail: "dana@sunpeak.example",
		ScheduledBy:   "ops@sunpeak.example",
	}
}

func TestVisitScheduledSyncsCalendarAndBooksReminder(t *testing.T) {
	cal := &fakeCalendar{}
	rem := &fakeReminderScheduler{}
	m := newTestModule(cal, rem)

	e := scheduledEvent()
	if err := m.Handle(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cal.upserts) != 1 {
		t.Fatalf("expected one calendar upsert, got %d", len(cal.upserts))
	}
	got := cal.upserts[0]
	if got.ExternalID != "visit-9021457822-survey" {
		t.Fatalf("unexpected external id %q", got.ExternalID)
	}
	if got.Title != "Maria Garcia - Survey" {
		t.Fatalf("unexpected title %q", got.Title)
	}
	if got.StartUTC != e.StartUTC || got.EndUTC != e.EndUTC {
		t.Fatalf("window not mirrored: %+v", got)
	}
	if got.Location != e.Address || got.Notes != "Scheduled by ops@sunpeak.example" {
		t.Fatalf("unexpected event details: %+v", got)
	}

	if len(rem.payloads) != 1 || rem.payloads[0].RecordID != e.RecordID.String() {
		t.Fatalf("expected reminder for the schedule record, got %+v", rem.payloads)
	}
	start, _ := time.Parse(time.RFC3339, e.StartUTC)
	if !rem.runAts[0].Equal(start.Add(-24 * time.Hour)) {
		t.Fatalf("reminder should run one lead before the visit, got %v", rem.runAts[0])
	}
}

func TestVisitScheduledTestModeSkipsSideEffects(t *testing.T) {
	cal := &fakeCalendar{}
	rem := &fakeReminderScheduler{}
	m := newTestModule(cal, rem)

	e := scheduledEvent()
	e.TestMode = true
	if err := m.Handle(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cal.upserts) != 0 || len(rem.payloads) != 0 {
		t.Fatalf("test mode must skip both side effects")
	}
}

func TestVisitScheduledNonSurveySkipsCalendar(t *testing.T) {
	cal := &fakeCalendar{}
	rem := &fakeReminderScheduler{}
	m := newTestModule(cal, rem)

	e := scheduledEvent()
	e.Category = "Installation"
	if err := m.Handle(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cal.upserts) != 0 {
		t.Fatalf("only surveys go on the office calendar")
	}
	if len(rem.payloads) != 1 {
		t.Fatalf("reminder applies to every category, got %d", len(rem.payloads))
	}
}

func TestVisitScheduledImminentVisitSkipsReminder(t *testing.T) {
	cal := &fakeCalendar{}
	rem := &fakeReminderScheduler{}
	m := newTestModule(cal, rem)

	e := scheduledEvent()
	e.StartUTC = time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	if err := m.Handle(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rem.payloads) != 0 {
		t.Fatalf("a reminder inside the lead window would fire in the past")
	}
	if len(cal.upserts) != 1 {
		t.Fatalf("calendar sync is independent of the reminder")
	}
}

func TestVisitScheduledWithoutAssigneeSkipsReminder(t *testing.T) {
	rem := &fakeReminderScheduler{}
	m := newTestModule(&fakeCalendar{}, rem)

	e := scheduledEvent()
	e.AssigneeEmail = ""
	if err := m.Handle(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rem.payloads) != 0 {
		t.Fatalf("no assignee, nobody to remind")
	}
}

func TestVisitScheduledCalendarFailureIsSwallowed(t *testing.T) {
	cal := &fakeCalendar{err: fmt.Errorf("webhook 500")}
	rem := &fakeReminderScheduler{}
	m := newTestModule(cal, rem)

	if err := m.Handle(context.Background(), scheduledEvent()); err != nil {
		t.Fatalf("calendar failures must not propagate: %v", err)
	}
	if len(rem.payloads) != 1 {
		t.Fatalf("reminder still books after a calendar failure")
	}
}

func unscheduledEvent() events.VisitUnscheduled {
	return events.VisitUnscheduled{
		BaseEvent:   events.NewBaseEvent(),
		DealID:      "9021457822",
		Category:    "Survey",
		JobUID:      "job-9",
		Reason:      "customer moved",
		CancelledBy: "ops@sunpeak.example",
	}
}

func TestVisitUnscheduledCancelsCalendarEntry(t *testing.T) {
	cal := &fakeCalendar{}
	m := newTestModule(cal, &fakeReminderScheduler{})

	if err := m.Handle(context.Background(), unscheduledEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cal.cancels) != 1 || cal.cancels[0] != "visit-9021457822-survey" {
		t.Fatalf("expected calendar cancel, got %v", cal.cancels)
	}
}

func TestVisitUnscheduledPartialKeepsCalendarEntry(t *testing.T) {
	cal := &fakeCalendar{}
	m := newTestModule(cal, &fakeReminderScheduler{})

	e := unscheduledEvent()
	e.Partial = true
	if err := m.Handle(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The visit may still happen while one side is uncleared.
	if len(cal.cancels) != 0 {
		t.Fatalf("partial unschedule must keep the calendar entry")
	}
}

func TestVisitUnscheduledNonSurveyNoCalendar(t *testing.T) {
	cal := &fakeCalendar{}
	m := newTestModule(cal, &fakeReminderScheduler{})

	e := unscheduledEvent()
	e.Category = "Inspection"
	if err := m.Handle(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cal.cancels) != 0 {
		t.Fatalf("non-survey categories are not mirrored")
	}
}

func TestNilCollaboratorsAreSafe(t *testing.T) {
	m := newTestModule(nil, nil)

	if err := m.Handle(context.Background(), scheduledEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Handle(context.Background(), unscheduledEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

type strayEvent struct{ events.BaseEvent }

func (strayEvent) EventName() string { return "scheduling.stray" }

func TestUnknownEventIsIgnored(t *testing.T) {
	m := newTestModule(&fakeCalendar{}, &fakeReminderScheduler{})

	if err := m.Handle(context.Background(), strayEvent{}); err != nil {
		t.Fatalf("unknown events are logged, not failed: %v", err)
	}
}

func TestVisitExternalID(t *testing.T) {
	if got := visitExternalID("123", "Survey"); got != "visit-123-survey" {
		t.Fatalf("unexpected external id %q", got)
	}
}

func TestCalendarTitle(t *testing.T) {
	if got := calendarTitle("Maria Garcia", "Survey"); got != "Maria Garcia - Survey" {
		t.Fatalf("unexpected title %q", got)
	}
	if got := calendarTitle("", "Survey"); got != "Survey" {
		t.Fatalf("empty customer should fall back to the category, got %q", got)
	}
}
