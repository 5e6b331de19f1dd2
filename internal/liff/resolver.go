// Package liff holds the LIFF adapter contract and the path based
// configuration resolver for the portal's mini-app routes.
package liff

import (
	"strings"

	"github.com/pointline/liff-portal/internal/config"
)

// Resolver answers which LIFF app configuration applies to a request path.
// The table is ordered and the first prefix match wins; it is built once at
// process start and never mutated afterwards.
type Resolver struct {
	apps      []config.App
	defaultID string
}

func NewResolver(cfg config.LIFF) *Resolver {
	apps := make([]config.App, len(cfg.Apps))
	copy(apps, cfg.Apps)

	return &Resolver{
		apps:      apps,
		defaultID: cfg.DefaultID,
	}
}

// Resolve returns the LIFF ID for the first app whose path prefix matches,
// falling back to the configured default. An empty result means the path
// needs no identity bootstrap.
func (r *Resolver) Resolve(path string) string {
	if app, ok := r.AppFor(path); ok {
		return app.ID
	}

	return r.defaultID
}

// AppFor returns the full app entry matching the path, if any.
func (r *Resolver) AppFor(path string) (config.App, bool) {
	for _, app := range r.apps {
		if strings.HasPrefix(path, app.PathPrefix) {
			return app, true
		}
	}

	return config.App{}, false
}

// RequiresBootstrap reports whether some configured app claims the path.
func (r *Resolver) RequiresBootstrap(path string) bool {
	_, ok := r.AppFor(path)
	return ok
}
