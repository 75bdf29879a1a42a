// Package calendar pushes survey visits to the shared office calendar
// through a webhook. Sync is best-effort by contract: callers log
// failures and carry on, and nothing downstream depends on it.
package calendar

import (
	"context"
	"fmt"
	"time"

	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"

	"github.com/go-resty/resty/v2"
)

// Event is a calendar entry keyed by ExternalID so reschedules replace
// the previous entry instead of stacking duplicates.
type Event struct {
	ExternalID string `json:"externalId"`
	Title      string `json:"title"`
	StartUTC   string `json:"startUtc"`
	EndUTC     string `json:"endUtc"`
	Location   string `json:"location,omitempty"`
	Notes      string `json:"notes,omitempty"`
	Cancelled  bool   `json:"cancelled,omitempty"`
}

// Client posts calendar events to the configured webhook.
type Client struct {
	http    *resty.Client
	url     string
	enabled bool
	log     *logger.Logger
}

// NewClient creates a calendar webhook client. With no webhook configured
// every call is a no-op.
func NewClient(cfg config.CalendarConfig, log *logger.Logger) *Client {
	rc := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(1)

	return &Client{
		http:    rc,
		url:     cfg.GetCalendarWebhookURL(),
		enabled: cfg.IsCalendarEnabled(),
		log:     log,
	}
}

// UpsertEvent creates or replaces the calendar entry for a visit.
func (c *Client) UpsertEvent(ctx context.Context, event Event) error {
	if !c.enabled {
		return nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(event).
		Post(c.url)
	c.log.ExternalCall("calendar", "upsert_event", err)
	if err != nil {
		return fmt.Errorf("calendar upsert failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("calendar upsert failed: status %d", resp.StatusCode())
	}
	return nil
}

// CancelEvent marks the calendar entry for a visit as cancelled.
func (c *Client) CancelEvent(ctx context.Context, externalID string) error {
	return c.UpsertEvent(ctx, Event{ExternalID: externalID, Cancelled: true})
}
