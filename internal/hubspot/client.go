// Package hubspot provides the HTTP client for the HubSpot CRM API.
// The CRM is the system of record for deals; scheduling only reflects
// visit dates onto deal properties and never owns them.
package hubspot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/sanitize"

	"github.com/go-resty/resty/v2"
)

// Deal is the subset of a CRM deal the scheduling engine touches.
type Deal struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// Property returns a trimmed property value, empty when absent.
func (d *Deal) Property(name string) string {
	if d == nil {
		return ""
	}
	return strings.TrimSpace(d.Properties[name])
}

// Client is the HTTP client for the HubSpot CRM API.
type Client struct {
	http *resty.Client
	log  *logger.Logger
}

// NewClient creates a HubSpot API client.
func NewClient(cfg config.HubSpotConfig, log *logger.Logger) *Client {
	rc := resty.New().
		SetBaseURL(cfg.GetHubSpotBaseURL()).
		SetAuthToken(cfg.GetHubSpotToken()).
		SetHeader("Accept", "application/json").
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(400 * time.Millisecond)

	return &Client{http: rc, log: log}
}

// apiError is HubSpot's error body.
type apiError struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GetDeal reads the named properties of a deal.
func (c *Client) GetDeal(ctx context.Context, dealID string, properties []string) (*Deal, error) {
	var deal Deal
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("properties", strings.Join(properties, ",")).
		SetResult(&deal).
		SetError(&apiErr).
		Get("/crm/v3/objects/deals/" + dealID)
	c.log.ExternalCall("hubspot", "get_deal", err)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindExternal, "crm read failed", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, apperr.NotFound("deal not found")
	}
	if resp.IsError() {
		return nil, c.externalError("read", resp.StatusCode(), apiErr)
	}
	if deal.Properties == nil {
		deal.Properties = map[string]string{}
	}
	return &deal, nil
}

// UpdateDealProperties patches deal properties. Values may be nil to
// write an explicit null, which some portals require before a date
// property reads back as blank.
func (c *Client) UpdateDealProperties(ctx context.Context, dealID string, properties map[string]interface{}) error {
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"properties": properties}).
		SetError(&apiErr).
		Patch("/crm/v3/objects/deals/" + dealID)
	c.log.ExternalCall("hubspot", "update_deal", err)
	if err != nil {
		return apperr.Wrap(apperr.KindExternal, "crm write failed", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return apperr.NotFound("deal not found")
	}
	if resp.IsError() {
		return c.externalError("write", resp.StatusCode(), apiErr)
	}
	return nil
}

func (c *Client) externalError(op string, status int, apiErr apiError) error {
	message := sanitize.Text(apiErr.Message)
	if message == "" {
		return apperr.External(fmt.Sprintf("crm %s failed: status %d", op, status))
	}
	return apperr.External(fmt.Sprintf("crm %s failed: %s", op, message))
}
