package zuper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/sanitize"

	"github.com/go-resty/resty/v2"
)

const defaultSearchCount = 50

// Client is the HTTP client for the Zuper API.
type Client struct {
	http *resty.Client
	log  *logger.Logger
}

// NewClient creates a Zuper API client. Transient failures are retried
// twice with a short wait; anything slower than the timeout is treated
// as down.
func NewClient(cfg config.ZuperConfig, log *logger.Logger) *Client {
	rc := resty.New().
		SetBaseURL(cfg.GetZuperBaseURL()).
		SetHeader("x-api-key", cfg.GetZuperAPIKey()).
		SetHeader("Accept", "application/json").
		SetTimeout(20 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Client{http: rc, log: log}
}

// envelope is the response wrapper every Zuper endpoint uses.
type envelope struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// SearchJobs returns jobs matching the query. A 404 from the API means
// no matches and is not an error.
func (c *Client) SearchJobs(ctx context.Context, q SearchQuery) ([]Job, error) {
	count := q.Count
	if count <= 0 {
		count = defaultSearchCount
	}

	params := map[string]string{"count": strconv.Itoa(count)}
	if q.Keyword != "" {
		params["q"] = q.Keyword
	}
	if q.FromDate != "" {
		params["from_date"] = q.FromDate
	}
	if q.ToDate != "" {
		params["to_date"] = q.ToDate
	}

	var env envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&env).
		Get("/api/jobs")
	c.log.ExternalCall("zuper", "search_jobs", err)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindExternal, "field service search failed", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if err := c.check(resp, &env, "search"); err != nil {
		return nil, err
	}

	var jobs []Job
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &jobs); err != nil {
			return nil, apperr.Wrap(apperr.KindExternal, "field service returned malformed search results", err)
		}
	}
	return jobs, nil
}

// GetJob fetches a single job by uid.
func (c *Client) GetJob(ctx context.Context, jobUID string) (*Job, error) {
	var env envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&env).
		Get("/api/jobs/" + jobUID)
	c.log.ExternalCall("zuper", "get_job", err)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindExternal, "field service lookup failed", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, apperr.NotFound("job not found")
	}
	if err := c.check(resp, &env, "lookup"); err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal(env.Data, &job); err != nil {
		return nil, apperr.Wrap(apperr.KindExternal, "field service returned a malformed job", err)
	}
	return &job, nil
}

// CreateJob creates a new scheduled job and returns its uid.
func (c *Client) CreateJob(ctx context.Context, in CreateJobInput) (string, error) {
	body := map[string]interface{}{
		"job": map[string]interface{}{
			"job_title":            in.Title,
			"job_category":         in.CategoryUID,
			"scheduled_start_time": in.ScheduledStart,
			"scheduled_end_time":   in.ScheduledEnd,
			"customer": map[string]string{
				"customer_first_name": in.CustomerFirstName,
				"customer_last_name":  in.CustomerLastName,
			},
			"job_tags":      in.Tags,
			"custom_fields": in.CustomFields,
		},
	}

	var env envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&env).
		Post("/api/jobs")
	c.log.ExternalCall("zuper", "create_job", err)
	if err != nil {
		return "", apperr.Wrap(apperr.KindExternal, "field service job creation failed", err)
	}
	if err := c.check(resp, &env, "job creation"); err != nil {
		return "", err
	}

	var created struct {
		JobUID string `json:"job_uid"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil || created.JobUID == "" {
		return "", apperr.External("field service did not return a job uid")
	}
	return created.JobUID, nil
}

// scheduleBody uses pointers so a clear writes explicit nulls.
type scheduleBody struct {
	Start *string `json:"scheduled_start_time"`
	End   *string `json:"scheduled_end_time"`
}

// UpdateSchedule moves a job to a new visit window.
func (c *Client) UpdateSchedule(ctx context.Context, in ScheduleInput) error {
	body := scheduleBody{Start: &in.ScheduledStart, End: &in.ScheduledEnd}
	return c.putSchedule(ctx, in.JobUID, body, "reschedule")
}

// ClearSchedule removes a job's visit window, releasing the crew's
// calendar slot. The job record itself survives.
func (c *Client) ClearSchedule(ctx context.Context, jobUID string) error {
	return c.putSchedule(ctx, jobUID, scheduleBody{}, "unschedule")
}

func (c *Client) putSchedule(ctx context.Context, jobUID string, body scheduleBody, op string) error {
	var env envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&env).
		Put("/api/jobs/" + jobUID + "/schedule")
	c.log.ExternalCall("zuper", op, err)
	if err != nil {
		return apperr.Wrap(apperr.KindExternal, fmt.Sprintf("field service %s failed", op), err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return apperr.NotFound("job not found")
	}
	return c.check(resp, &env, op)
}

// AssignUser assigns a user and team to a job.
func (c *Client) AssignUser(ctx context.Context, in AssignInput) error {
	body := map[string]interface{}{
		"users": []string{in.UserUID},
	}
	if in.TeamUID != "" {
		body["team_uid"] = in.TeamUID
	}

	var env envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&env).
		Put("/api/jobs/" + in.JobUID + "/assign")
	c.log.ExternalCall("zuper", "assign_user", err)
	if err != nil {
		return apperr.Wrap(apperr.KindExternal, "field service assignment failed", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return apperr.NotFound("job not found")
	}
	return c.check(resp, &env, "assignment")
}

// SearchUsers returns directory users matching the keyword.
func (c *Client) SearchUsers(ctx context.Context, keyword string) ([]User, error) {
	var env envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("q", keyword).
		SetResult(&env).
		Get("/api/users")
	c.log.ExternalCall("zuper", "search_users", err)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindExternal, "field service user search failed", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if err := c.check(resp, &env, "user search"); err != nil {
		return nil, err
	}

	var users []User
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &users); err != nil {
			return nil, apperr.Wrap(apperr.KindExternal, "field service returned malformed users", err)
		}
	}
	return users, nil
}

// check maps non-success responses to sanitized external errors. The
// upstream message is stripped of markup before it can reach a response.
func (c *Client) check(resp *resty.Response, env *envelope, op string) error {
	if resp.IsError() {
		return apperr.External(fmt.Sprintf("field service %s failed: status %d", op, resp.StatusCode()))
	}
	if env.Type != "" && env.Type != "success" {
		message := sanitize.Text(env.Message)
		if message == "" {
			message = "unknown error"
		}
		return apperr.External(fmt.Sprintf("field service %s failed: %s", op, message))
	}
	return nil
}
