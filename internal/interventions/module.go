// Package interventions provides the intervention lifecycle domain module.
package interventions

import (
	"gestimmo_backend/internal/events"
	apphttp "gestimmo_backend/internal/http"
	"gestimmo_backend/internal/interventions/handler"
	"gestimmo_backend/internal/interventions/repository"
	"gestimmo_backend/internal/interventions/service"
	"gestimmo_backend/platform/logger"
	"gestimmo_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the interventions domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Store
}

// NewModule creates a new interventions module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Service exposes the workflow engine for cross-module consumers
// (scheduler sweeps, adapters).
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes the store for read-side consumers.
func (m *Module) Repository() repository.Store {
	return m.repo
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "interventions"
}

// RegisterRoutes registers the module's routes under /api/v1/interventions.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	interventions := ctx.Protected.Group("/interventions")
	m.handler.RegisterRoutes(interventions)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
