// Package http defines the seam between the router and the domain modules.
package http

import (
	"context"

	"gestimmo_backend/internal/events"
	"gestimmo_backend/platform/config"
	"gestimmo_backend/platform/logger"
)

// RouterConfig is the slice of configuration the router needs: the listen
// and CORS settings plus the JWT material for the auth middleware.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker answers the readiness probe, normally with a database ping.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is the composed application the binaries hand to the router: shared
// infrastructure plus the modules whose routes get mounted.
type App struct {
	Config   RouterConfig
	Logger   *logger.Logger
	Health   HealthChecker
	EventBus events.Bus
	Modules  []Module
}
