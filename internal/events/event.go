// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"fieldops_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Scheduling Domain Events
// =============================================================================

// VisitScheduled is published after a field visit has been created or
// rescheduled in the field-service system. Subscribers handle best-effort
// side effects: calendar sync and crew reminders.
type VisitScheduled struct {
	BaseEvent
	RecordID      uuid.UUID `json:"recordId"`
	DealID        string    `json:"dealId"`
	Category      string    `json:"category"`
	Action        string    `json:"action"` // "created" or "rescheduled"
	JobUID        string    `json:"jobUid,omitempty"`
	CustomerName  string    `json:"customerName,omitempty"`
	Address       string    `json:"address,omitempty"`
	StartUTC      string    `json:"startUtc"`
	EndUTC        string    `json:"endUtc"`
	AssigneeName  string    `json:"assigneeName,omitempty"`
	AssigneeEmail string    `json:"assigneeEmail,omitempty"`
	ScheduledBy   string    `json:"scheduledBy"`
	TestMode      bool      `json:"testMode"`
}

func (e VisitScheduled) EventName() string { return "scheduling.visit.scheduled" }

// VisitUnscheduled is published after a visit has been cleared from the
// external systems, fully or partially.
type VisitUnscheduled struct {
	BaseEvent
	DealID        string `json:"dealId"`
	Category      string `json:"category"`
	JobUID        string `json:"jobUid,omitempty"`
	Reason        string `json:"reason,omitempty"`
	CancelledBy   string `json:"cancelledBy"`
	Partial       bool   `json:"partial"`
	AssigneeEmail string `json:"assigneeEmail,omitempty"`
}

func (e VisitUnscheduled) EventName() string { return "scheduling.visit.unscheduled" }
