package handler

import (
	"net/http"

	"fieldops_backend/internal/scheduling/service"
	"fieldops_backend/internal/scheduling/transport"
	"fieldops_backend/platform/httpkit"
	"fieldops_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for visit scheduling
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new scheduling handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the scheduling routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Schedule)
	rg.POST("/unschedule", h.Unschedule)
	rg.GET("/lookup", h.Lookup)
	rg.GET("/records", h.Records)
}

// Schedule handles POST /api/v1/schedules.
// It creates or reschedules a field visit and reports per-collaborator
// warnings in the response body rather than failing the whole request.
func (h *Handler) Schedule(c *gin.Context) {
	var req transport.ScheduleVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.ScheduleVisit(c.Request.Context(), actorFrom(identity), req)
	if httpkit.HandleError(c, err) {
		return
	}

	if result.Action == transport.ScheduleActionCreated {
		httpkit.JSON(c, http.StatusCreated, result)
		return
	}
	httpkit.OK(c, result)
}

// Unschedule handles POST /api/v1/schedules/unschedule.
// A partial compensation (one side still dirty) keeps the structured body
// but goes out as 502 so callers and monitors can tell it from a clean clear.
func (h *Handler) Unschedule(c *gin.Context) {
	var req transport.UnscheduleVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.UnscheduleVisit(c.Request.Context(), actorFrom(identity), req)
	if httpkit.HandleError(c, err) {
		return
	}

	if result.Action == transport.UnscheduleActionPartial {
		httpkit.JSON(c, http.StatusBadGateway, result)
		return
	}
	httpkit.OK(c, result)
}

// Lookup handles GET /api/v1/schedules/lookup
func (h *Handler) Lookup(c *gin.Context) {
	var req transport.LookupJobRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.LookupJob(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Records handles GET /api/v1/schedules/records
func (h *Handler) Records(c *gin.Context) {
	var req transport.ListRecordsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.ListRecords(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func actorFrom(identity httpkit.Identity) service.Actor {
	return service.Actor{
		Email: identity.Email(),
		Name:  identity.DisplayName(),
		Roles: identity.Roles(),
	}
}
