package transport

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleAction describes what the engine did against the
// field-service system for one request.
type ScheduleAction string

const (
	ScheduleActionCreated     ScheduleAction = "created"
	ScheduleActionRescheduled ScheduleAction = "rescheduled"
	ScheduleActionNoJobFound  ScheduleAction = "no_job_found"
)

// UnscheduleAction describes the outcome of a cancellation.
type UnscheduleAction string

const (
	UnscheduleActionUnscheduled UnscheduleAction = "unscheduled"
	UnscheduleActionPartial     UnscheduleAction = "unschedule_partial"
)

// ScheduleVisitRequest is the request body for scheduling a field visit.
// Times are local to the customer's time zone; the engine converts them
// before talking to either external system.
type ScheduleVisitRequest struct {
	ProjectID    string `json:"projectId" validate:"required,max=64"`
	ScheduleType string `json:"scheduleType" validate:"required,max=40"`
	VisitDate    string `json:"visitDate" validate:"required,len=10"`
	StartTime    string `json:"startTime,omitempty" validate:"omitempty,max=8"`
	EndTime      string `json:"endTime,omitempty" validate:"omitempty,max=8"`
	Timezone     string `json:"timezone,omitempty" validate:"omitempty,max=64"`
	InstallDays  int    `json:"installDays,omitempty" validate:"omitempty,min=1,max=30"`

	// ZuperJobUID skips job resolution when the caller already knows
	// the job. CreateIfMissing permits creating a job when resolution
	// finds none; without it the engine records no_job_found.
	ZuperJobUID     string `json:"zuperJobUid,omitempty" validate:"omitempty,max=64"`
	CreateIfMissing bool   `json:"createIfMissing,omitempty"`

	// AssigneeID is the field-service user uid when the caller already
	// knows it; otherwise the assignee is resolved by email or name.
	AssigneeID    string `json:"assigneeId,omitempty" validate:"omitempty,max=64"`
	AssigneeEmail string `json:"assigneeEmail,omitempty" validate:"omitempty,email"`
	AssigneeName  string `json:"assigneeName,omitempty" validate:"omitempty,max=120"`
	TeamUID       string `json:"teamUid,omitempty" validate:"omitempty,max=64"`

	CustomerFirstName string `json:"customerFirstName,omitempty" validate:"omitempty,max=100"`
	CustomerLastName  string `json:"customerLastName,omitempty" validate:"omitempty,max=100"`
	CustomerPhone     string `json:"customerPhone,omitempty" validate:"omitempty,max=30"`
	Address           string `json:"address,omitempty" validate:"omitempty,max=300"`
	ProjectNumber     string `json:"projectNumber,omitempty" validate:"omitempty,max=40"`
	Notes             string `json:"notes,omitempty" validate:"omitempty,max=2000"`

	TestMode bool `json:"testMode,omitempty"`
}

// ScheduleVisitResponse reports the reconciled outcome. Warnings carry
// non-fatal reconciliation problems; the visit itself stands whenever
// success is true.
type ScheduleVisitResponse struct {
	Success      bool           `json:"success"`
	Action       ScheduleAction `json:"action"`
	RecordID     uuid.UUID      `json:"recordId,omitempty"`
	ProjectID    string         `json:"projectId"`
	ScheduleType string         `json:"scheduleType"`
	ZuperJobUID  string         `json:"zuperJobUid,omitempty"`

	VisitDate string    `json:"visitDate"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	Timezone  string    `json:"timezone"`
	StartUTC  time.Time `json:"startUtc"`
	EndUTC    time.Time `json:"endUtc"`

	AssignedUser      string `json:"assignedUser,omitempty"`
	AssignedUserEmail string `json:"assignedUserEmail,omitempty"`
	AssignmentFailed  bool   `json:"assignmentFailed,omitempty"`

	CRMUpdated bool     `json:"crmUpdated"`
	Warnings   []string `json:"warnings,omitempty"`
	TestMode   bool     `json:"testMode,omitempty"`
}

// UnscheduleVisitRequest is the request body for cancelling a visit.
type UnscheduleVisitRequest struct {
	ProjectID    string `json:"projectId" validate:"required,max=64"`
	ScheduleType string `json:"scheduleType" validate:"required,max=40"`
	Reason       string `json:"reason,omitempty" validate:"omitempty,max=500"`
	ZuperJobUID  string `json:"zuperJobUid,omitempty" validate:"omitempty,max=64"`
}

// UnscheduleVisitResponse reports which sides of the cancellation
// succeeded. Action is unschedule_partial when one side failed.
type UnscheduleVisitResponse struct {
	Success      bool             `json:"success"`
	Action       UnscheduleAction `json:"action"`
	ProjectID    string           `json:"projectId"`
	ScheduleType string           `json:"scheduleType"`
	ZuperJobUID  string           `json:"zuperJobUid,omitempty"`
	ZuperCleared bool             `json:"zuperCleared"`
	CRMCleared   bool             `json:"crmCleared"`
	Warnings     []string         `json:"warnings,omitempty"`
}

// LookupJobRequest is the query for resolving a project's jobs without
// scheduling anything. ScheduleType narrows the lookup to one category;
// when omitted every category is checked.
type LookupJobRequest struct {
	ProjectID    string `form:"projectId" validate:"required,max=64"`
	ScheduleType string `form:"scheduleType" validate:"omitempty,max=40"`
}

// JobMatch is one correlated field-service job.
type JobMatch struct {
	ScheduleType   string   `json:"scheduleType"`
	JobUID         string   `json:"jobUid"`
	MatchedBy      string   `json:"matchedBy,omitempty"`
	Title          string   `json:"title,omitempty"`
	JobStatus      string   `json:"jobStatus,omitempty"`
	ScheduledStart string   `json:"scheduledStart,omitempty"`
	ScheduledEnd   string   `json:"scheduledEnd,omitempty"`
	AssignedUsers  []string `json:"assignedUsers,omitempty"`
}

// LookupJobResponse lists the correlated field-service jobs.
type LookupJobResponse struct {
	Found   bool       `json:"found"`
	Matches []JobMatch `json:"matches,omitempty"`
}

// ListRecordsRequest is the query for listing a project's schedule
// history.
type ListRecordsRequest struct {
	ProjectID    string `form:"projectId" validate:"required,max=64"`
	ScheduleType string `form:"scheduleType" validate:"omitempty,max=40"`
}

// ScheduleRecordResponse is one row of a project's schedule history.
type ScheduleRecordResponse struct {
	ID                uuid.UUID `json:"id"`
	ProjectID         string    `json:"projectId"`
	ScheduleType      string    `json:"scheduleType"`
	Action            string    `json:"action"`
	Status            string    `json:"status"`
	ScheduledDate     string    `json:"scheduledDate"`
	ScheduledStart    string    `json:"scheduledStart"`
	ScheduledEnd      string    `json:"scheduledEnd"`
	Timezone          string    `json:"timezone"`
	StartUTC          time.Time `json:"startUtc"`
	EndUTC            time.Time `json:"endUtc"`
	ZuperJobUID       string    `json:"zuperJobUid,omitempty"`
	AssignedUser      string    `json:"assignedUser,omitempty"`
	AssignedUserEmail string    `json:"assignedUserEmail,omitempty"`
	CustomerName      string    `json:"customerName,omitempty"`
	Address           string    `json:"address,omitempty"`
	ProjectNumber     string    `json:"projectNumber,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	TestMode          bool      `json:"testMode,omitempty"`
	CreatedBy         string    `json:"createdBy,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ListRecordsResponse wraps a project's schedule history.
type ListRecordsResponse struct {
	Items []ScheduleRecordResponse `json:"items"`
	Total int                      `json:"total"`
}
