// Package http defines the seam between the router and the domain modules:
// each module registers its own routes against shared route groups, so the
// router never names an intervention or notification endpoint directly.
package http

import (
	"github.com/gin-gonic/gin"
)

// Module is an HTTP-facing bounded context.
type Module interface {
	// Name identifies the module in startup logs.
	Name() string
	// RegisterRoutes mounts the module's endpoints on the shared groups.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext carries the route groups and middleware a module may mount
// its endpoints on.
type RouterContext struct {
	// V1 is the /api/v1 group, before authentication.
	V1 *gin.RouterGroup
	// Protected requires a valid access token; the intervention and
	// notification APIs live here.
	Protected *gin.RouterGroup
	// Admin additionally requires the admin role.
	Admin *gin.RouterGroup
	// AuthMiddleware is the token check itself, for modules that mix public
	// and protected routes inside their own group.
	AuthMiddleware gin.HandlerFunc
}
