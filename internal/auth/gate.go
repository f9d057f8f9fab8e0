// Package auth decides which screen may render for the current session.
package auth

import (
	"context"

	"doc-manager-app/pkg/logger"
)

// Route names a screen of the application
type Route string

const (
	RouteLogin   Route = "login"
	RouteFiles   Route = "files"
	RouteUpload  Route = "upload"
	RoutePreview Route = "preview"
)

// Provider reports whether a user is signed in
type Provider interface {
	IsAuthenticated(ctx context.Context) (bool, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context) (bool, error)

// IsAuthenticated implements Provider
func (f ProviderFunc) IsAuthenticated(ctx context.Context) (bool, error) {
	return f(ctx)
}

// Decision is the outcome of guarding a route
type Decision struct {
	Requested Route
	Render    Route
}

// Redirected reports whether the gate sent the user somewhere else
func (d Decision) Redirected() bool {
	return d.Render != d.Requested
}

// Gate classifies routes as public or private and resolves navigation
// against the injected Provider. Routes not registered as public are
// private.
type Gate struct {
	provider Provider
	public   map[Route]bool
	login    Route
	home     Route
	logger   *logger.Logger
}

// GateOption configures a Gate
type GateOption func(*Gate)

// WithPublicRoutes marks additional routes as public
func WithPublicRoutes(routes ...Route) GateOption {
	return func(g *Gate) {
		for _, r := range routes {
			g.public[r] = true
		}
	}
}

// WithHome overrides the route authenticated users land on
func WithHome(route Route) GateOption {
	return func(g *Gate) { g.home = route }
}

// NewGate creates a gate with RouteLogin as the only public route
func NewGate(provider Provider, log *logger.Logger, opts ...GateOption) *Gate {
	if log == nil {
		log = logger.NewWithComponent("auth")
	}
	g := &Gate{
		provider: provider,
		public:   map[Route]bool{RouteLogin: true},
		login:    RouteLogin,
		home:     RouteFiles,
		logger:   log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsPublic reports whether route renders only for anonymous users
func (g *Gate) IsPublic(route Route) bool {
	return g.public[route]
}

// Resolve returns the route to render for a navigation to route. A private
// route sends anonymous users to login; a public route sends signed-in users
// home. Provider failures count as signed out.
func (g *Gate) Resolve(ctx context.Context, route Route) Decision {
	authed := g.authenticated(ctx)

	d := Decision{Requested: route, Render: route}
	switch {
	case g.IsPublic(route) && authed:
		d.Render = g.home
	case !g.IsPublic(route) && !authed:
		d.Render = g.login
	}

	if d.Redirected() {
		g.logger.DebugWithFields("Route redirected", map[string]interface{}{
			"requested": string(d.Requested),
			"render":    string(d.Render),
		})
	}
	return d
}

func (g *Gate) authenticated(ctx context.Context) bool {
	if g.provider == nil {
		return false
	}
	ok, err := g.provider.IsAuthenticated(ctx)
	if err != nil {
		g.logger.WarnWithError("Auth provider failed, treating session as signed out", err)
		return false
	}
	return ok
}
