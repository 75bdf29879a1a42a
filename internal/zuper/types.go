// Package zuper provides the HTTP client for the Zuper field-service API.
// Zuper owns crew calendars and job records; scheduling writes land here
// first and the CRM is reconciled afterwards.
package zuper

import (
	"encoding/json"
	"strings"
)

// Category is a job category reference. Depending on the endpoint the API
// returns either a bare string name or an object carrying uid and name,
// so both shapes unmarshal into the same value.
type Category struct {
	UID  string
	Name string
}

// UnmarshalJSON accepts "Installation" as well as
// {"category_uid": "...", "category_name": "Installation"}.
func (c *Category) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*c = Category{}
		return nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*c = Category{Name: name}
		return nil
	}

	var obj struct {
		UID  string `json:"category_uid"`
		Name string `json:"category_name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*c = Category{UID: obj.UID, Name: obj.Name}
	return nil
}

// MarshalJSON always emits the object shape.
func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		UID  string `json:"category_uid,omitempty"`
		Name string `json:"category_name,omitempty"`
	}{UID: c.UID, Name: c.Name})
}

// CustomField is a label/value pair attached to a job.
type CustomField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Customer identifies the customer a job belongs to.
type Customer struct {
	FirstName string `json:"customer_first_name"`
	LastName  string `json:"customer_last_name"`
}

// User is a field-service user as returned by the user directory.
type User struct {
	UserUID   string `json:"user_uid"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	TeamUID   string `json:"team_uid"`
}

// DisplayName joins the user's name parts.
func (u User) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// Job is a field-service job record.
type Job struct {
	JobUID             string        `json:"job_uid"`
	Title              string        `json:"job_title"`
	Category           Category      `json:"job_category"`
	Tags               []string      `json:"job_tags"`
	CustomFields       []CustomField `json:"custom_fields"`
	ScheduledStartTime string        `json:"scheduled_start_time"`
	ScheduledEndTime   string        `json:"scheduled_end_time"`
	Status             string        `json:"current_job_status"`
	Customer           Customer      `json:"customer"`
	AssignedUsers      []User        `json:"assigned_to"`
}

// CustomFieldValue returns the value of the first custom field whose
// label matches, compared case-insensitively. Empty when absent.
func (j Job) CustomFieldValue(label string) string {
	for _, f := range j.CustomFields {
		if strings.EqualFold(strings.TrimSpace(f.Label), strings.TrimSpace(label)) {
			return strings.TrimSpace(f.Value)
		}
	}
	return ""
}

// HasTag reports whether the job carries the tag, compared case-insensitively.
func (j Job) HasTag(tag string) bool {
	for _, t := range j.Tags {
		if strings.EqualFold(strings.TrimSpace(t), strings.TrimSpace(tag)) {
			return true
		}
	}
	return false
}

// SearchQuery narrows a job search. Keyword is matched by the API against
// titles and customer names; the date range bounds scheduled and created
// times.
type SearchQuery struct {
	Keyword  string
	FromDate string // "2006-01-02", optional
	ToDate   string // "2006-01-02", optional
	Count    int
}

// CreateJobInput carries everything needed to create a scheduled job.
type CreateJobInput struct {
	Title             string
	CategoryUID       string
	ScheduledStart    string // wire format, UTC
	ScheduledEnd      string // wire format, UTC
	CustomerFirstName string
	CustomerLastName  string
	Tags              []string
	CustomFields      []CustomField
}

// ScheduleInput updates a job's visit window.
type ScheduleInput struct {
	JobUID         string
	ScheduledStart string // wire format, UTC
	ScheduledEnd   string // wire format, UTC
}

// AssignInput assigns a user (and their team) to a job.
type AssignInput struct {
	JobUID  string
	UserUID string
	TeamUID string
}
