// Package scheduling is the schedule reconciliation engine. It keeps a
// HubSpot deal, the matching Zuper field-service job, and the local
// schedule_records log telling the same story for every survey, install,
// and inspection visit.
package scheduling

import (
	"fieldops_backend/internal/email"
	"fieldops_backend/internal/events"
	apphttp "fieldops_backend/internal/http"
	"fieldops_backend/internal/hubspot"
	"fieldops_backend/internal/scheduling/handler"
	"fieldops_backend/internal/scheduling/repository"
	"fieldops_backend/internal/scheduling/service"
	"fieldops_backend/internal/zuper"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ModuleConfig combines the config interfaces the scheduling module needs.
type ModuleConfig interface {
	config.ZuperConfig
	config.HubSpotConfig
	config.SchedulingFileConfig
}

// Module represents the scheduling domain module
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates a new scheduling module with all dependencies wired.
// Zuper and HubSpot clients are only constructed when configured; the
// service treats a missing integration as 503 on the operations that
// need it, so a half-configured deployment still boots.
func NewModule(cfg ModuleConfig, pool *pgxpool.Pool, val *validator.Validator, sender email.Sender, bus events.Bus, log *logger.Logger) (*Module, error) {
	policy, err := service.LoadConfig(cfg.GetSchedulingConfigPath())
	if err != nil {
		return nil, err
	}

	// Assign concrete clients only when configured; a typed nil stored in
	// the interface would no longer compare equal to nil in the service.
	var fsm service.FieldService
	if cfg.IsZuperEnabled() {
		fsm = zuper.NewClient(cfg, log)
	} else {
		log.Warn("zuper integration disabled: ZUPER_BASE_URL / ZUPER_API_KEY not configured")
	}

	var crm service.CRM
	if cfg.IsHubSpotEnabled() {
		crm = hubspot.NewClient(cfg, log)
	} else {
		log.Warn("hubspot integration disabled: HUBSPOT_TOKEN not configured")
	}

	repo := repository.New(pool)
	svc := service.New(policy, repo, fsm, crm, sender, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		Service: svc,
	}, nil
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "scheduling"
}

// RegisterRoutes registers the module's routes under /api/v1/schedules
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	schedules := ctx.Protected.Group("/schedules")
	schedules.Use(ctx.WriteLimiter.RateLimit())
	m.handler.RegisterRoutes(schedules)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
