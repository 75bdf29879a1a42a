// Package httpkit provides the shared HTTP surface: response helpers,
// auth and rate-limit middleware, and request identity extraction.
package httpkit

import (
	"net/http"

	"fieldops_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the error body returned by every endpoint.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// Error sends an error response with the given status code and message.
func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// OK sends a 200 OK response with the given payload.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// HandleError writes the HTTP mapping of a service error and reports
// whether anything was written. Typed *apperr.Error values map through
// their Kind; anything untyped is an unexpected failure and maps to
// 500 without leaking internals into Details.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	if domainErr, ok := err.(*apperr.Error); ok {
		c.JSON(domainErr.HTTPStatus(), ErrorResponse{
			Error:   domainErr.Message,
			Details: domainErr.Details,
		})
		return true
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	return true
}
