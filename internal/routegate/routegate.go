// Package routegate classifies request paths and enforces the coarse
// page-level session requirement. LIFF bootstrap pages are passed through;
// their login flow needs the full page handler, not the gate.
package routegate

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pointline/liff-portal/internal/liff"
	"github.com/pointline/liff-portal/internal/session"
)

type Class string

const (
	ClassAPI     Class = "api"
	ClassAuth    Class = "auth"
	ClassLIFF    Class = "liff"
	ClassSession Class = "session"
	ClassPublic  Class = "public"
)

// LoginPath is where session-required pages send unauthenticated browsers.
const LoginPath = "/auth/login"

const callbackParam = "callbackUrl"

type ctxKeyType string

const ctxKey ctxKeyType = "routegate-principal"

// PrincipalSource reads the session principal off a request.
type PrincipalSource interface {
	PrincipalFromRequest(r *http.Request) (session.Principal, error)
}

type Gate struct {
	resolver     *liff.Resolver
	sessionPaths []string
}

// New builds a gate over the LIFF path table. sessionPaths are the page
// prefixes that demand a session outright (dashboard, admin area).
func New(resolver *liff.Resolver, sessionPaths ...string) *Gate {
	if len(sessionPaths) == 0 {
		sessionPaths = []string{"/dashboard", "/admin"}
	}

	return &Gate{
		resolver:     resolver,
		sessionPaths: sessionPaths,
	}
}

func (g *Gate) Classify(path string) Class {
	switch {
	case strings.HasPrefix(path, "/api/") || path == "/healthz":
		return ClassAPI
	case path == LoginPath || strings.HasPrefix(path, "/auth/"):
		return ClassAuth
	case g.resolver.RequiresBootstrap(path):
		return ClassLIFF
	case g.requiresSession(path):
		return ClassSession
	default:
		return ClassPublic
	}
}

func (g *Gate) requiresSession(path string) bool {
	for _, prefix := range g.sessionPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}

// LoginRedirectURL builds the login redirect carrying the original path so
// a successful login can come back.
func LoginRedirectURL(path string) string {
	return LoginPath + "?" + callbackParam + "=" + url.QueryEscape(path)
}

// Middleware attaches the principal to the request context when a valid
// session cookie is present and redirects session-required pages that have
// none. All other classes pass through untouched.
func (g *Gate) Middleware(sessions PrincipalSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := sessions.PrincipalFromRequest(r)
			if err == nil {
				r = r.WithContext(context.WithValue(r.Context(), ctxKey, principal))
			}

			if g.Classify(r.URL.Path) == ClassSession && err != nil {
				http.Redirect(w, r, LoginRedirectURL(r.URL.Path), http.StatusFound)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// FromContext returns the principal stashed by Middleware, if any.
func FromContext(ctx context.Context) (session.Principal, bool) {
	principal, ok := ctx.Value(ctxKey).(session.Principal)

	return principal, ok
}
