// Package router assembles the gin engine: global middleware, health probes
// and the versioned, tenant-scoped API.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultAPIVersion is the path segment after /api when none is configured
const DefaultAPIVersion = "v1"

// RouteRegistrar attaches its routes to a router group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// API mounts resource groups under /api/<version> behind a shared middleware chain
type API struct {
	version    string
	middleware []gin.HandlerFunc
	groups     []RouteRegistrar
}

// NewAPI returns an API at version, or DefaultAPIVersion when empty
func NewAPI(version string, middleware ...gin.HandlerFunc) *API {
	if version == "" {
		version = DefaultAPIVersion
	}
	return &API{version: version, middleware: middleware}
}

// Mount queues groups for Install
func (a *API) Mount(groups ...RouteRegistrar) *API {
	a.groups = append(a.groups, groups...)
	return a
}

// BasePath is the prefix every mounted route lives under
func (a *API) BasePath() string {
	return "/api/" + a.version
}

// Install registers every mounted group on r and returns the API group
func (a *API) Install(r gin.IRouter) *gin.RouterGroup {
	api := r.Group(a.BasePath(), a.middleware...)
	for _, g := range a.groups {
		g.RegisterRoutes(api)
	}
	return api
}

// ResourceGroup collects the routes of one resource below a common prefix
type ResourceGroup struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
}

type route struct {
	method, path string
	handlers     []gin.HandlerFunc
}

// NewResourceGroup starts a group at prefix
func NewResourceGroup(prefix string, middleware ...gin.HandlerFunc) *ResourceGroup {
	return &ResourceGroup{prefix: prefix, middleware: middleware}
}

// Handle adds a route
func (g *ResourceGroup) Handle(method, path string, handlers ...gin.HandlerFunc) *ResourceGroup {
	g.routes = append(g.routes, route{method: method, path: path, handlers: handlers})
	return g
}

func (g *ResourceGroup) GET(path string, handlers ...gin.HandlerFunc) *ResourceGroup {
	return g.Handle(http.MethodGet, path, handlers...)
}

func (g *ResourceGroup) POST(path string, handlers ...gin.HandlerFunc) *ResourceGroup {
	return g.Handle(http.MethodPost, path, handlers...)
}

// Prefix is the path the group is mounted at, relative to the API base path
func (g *ResourceGroup) Prefix() string { return g.prefix }

// RegisterRoutes implements RouteRegistrar
func (g *ResourceGroup) RegisterRoutes(rg *gin.RouterGroup) {
	sub := rg.Group(g.prefix, g.middleware...)
	for _, r := range g.routes {
		sub.Handle(r.method, r.path, r.handlers...)
	}
}
