// Package workflow provides the quote/claim workflow engine domain module.
package workflow

import (
	apphttp "brokerage_backend/internal/http"
	"brokerage_backend/internal/workflow/catalog"
	"brokerage_backend/internal/workflow/handler"
	"brokerage_backend/internal/workflow/repository"
	"brokerage_backend/internal/workflow/service"
	"brokerage_backend/platform/clock"
	"brokerage_backend/platform/config"
	"brokerage_backend/platform/events"
	"brokerage_backend/platform/logger"
	"brokerage_backend/platform/securetoken"
	"brokerage_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ModuleConfig combines the config interfaces the workflow module needs.
type ModuleConfig interface {
	config.WorkflowConfig
}

// Module represents the workflow domain module.
type Module struct {
	handler       *handler.Handler
	publicHandler *handler.PublicHandler
	service       *service.Service
	thresholds    *service.Thresholds
}

// NewModule creates a new workflow module with all dependencies wired.
// Catalog and threshold construction can fail, and both are startup errors.
func NewModule(pool *pgxpool.Pool, eventBus *events.InMemoryBus, val *validator.Validator, cfg ModuleConfig, log *logger.Logger) (*Module, error) {
	catalogs, err := catalog.Load()
	if err != nil {
		return nil, err
	}

	thresholds, err := service.LoadThresholds(cfg.GetInsightThresholdsPath(), cfg.GetIdleThreshold())
	if err != nil {
		return nil, err
	}

	repo := repository.New(pool)
	svc := service.New(repo, repo, repo, catalogs, clock.System{}, securetoken.Crypto{}, cfg, log)
	svc.SetEventBus(eventBus)
	svc.RegisterAutoCondition(catalog.KindQuote, service.PaymentSettledCondition(repo, catalogs))

	h := handler.New(svc, val, thresholds)
	ph := handler.NewPublicHandler(svc, val)

	return &Module{
		handler:       h,
		publicHandler: ph,
		service:       svc,
		thresholds:    thresholds,
	}, nil
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "workflow"
}

// Service returns the service layer for external use (scheduler tasks,
// notification subscribers).
func (m *Module) Service() *service.Service {
	return m.service
}

// Thresholds returns the loaded insight thresholds, shared with the
// scheduler's scan task.
func (m *Module) Thresholds() *service.Thresholds {
	return m.thresholds
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	records := ctx.Protected.Group("/records")
	m.handler.RegisterRoutes(records)

	payments := ctx.Protected.Group("/payments")
	m.handler.RegisterPaymentRoutes(payments)

	// Public routes — token-gated, no auth middleware, strict rate limit
	portal := ctx.V1.Group("/public/portal")
	portal.Use(ctx.PublicRateLimiter.RateLimit())
	m.publicHandler.RegisterRoutes(portal)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
