package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/pointline/liff-portal/internal/bootstrap"
	"github.com/pointline/liff-portal/internal/config"
	"github.com/pointline/liff-portal/internal/liff/liffapi"
	"github.com/pointline/liff-portal/internal/middleware/responsewriter"
	"github.com/pointline/liff-portal/internal/nonce"
	"github.com/pointline/liff-portal/internal/routegate"
	"github.com/pointline/liff-portal/internal/serviceerr"
	"github.com/pointline/liff-portal/internal/session"
	"github.com/pointline/liff-portal/pkg/fingerprint"
)

const (
	defaultStateCookieName = "liff_state"

	csrfFormField  = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"

	callbackParam = "callbackUrl"
	liffIDParam   = "liffId"
)

type handler struct {
	cfg   *config.Config
	deps  Deps
	nonce nonce.Source

	stateCookie config.CookieTemplate
}

func newHandler(cfg *config.Config, deps Deps) *handler {
	stateCookie := cfg.LIFF.StateCookie
	if stateCookie.Name == "" {
		stateCookie.Name = defaultStateCookieName
	}
	if stateCookie.MaxAge == 0 {
		stateCookie.MaxAge = int(cfg.LIFF.StateTTL.Seconds())
	}
	if stateCookie.Path == "" {
		stateCookie.Path = "/"
	}

	return &handler{
		cfg:         cfg,
		deps:        deps,
		stateCookie: stateCookie,
	}
}

func (h *handler) mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.home)
	mux.HandleFunc("GET /healthz", statusHandlerFunc(h.cfg))
	mux.HandleFunc("GET /api/status", statusHandlerFunc(h.cfg))

	mux.HandleFunc("GET /auth/login", h.loginForm)
	mux.Handle("POST /auth/login", h.deps.LoginLimiter.Middleware(http.HandlerFunc(h.loginSubmit)))
	mux.HandleFunc("POST /auth/logout", h.logout)
	mux.HandleFunc("POST /auth/liff", h.liffExchange)
	mux.HandleFunc("GET /auth/liff-callback", h.liffCallback)

	// one page route per configured LIFF app
	for _, app := range h.cfg.LIFF.Apps {
		prefix := strings.TrimSuffix(app.PathPrefix, "/")
		mux.HandleFunc("GET "+prefix, h.liffPage)
		mux.HandleFunc("GET "+prefix+"/", h.liffPage)
	}

	mux.HandleFunc("GET /dashboard", h.dashboard)
	mux.HandleFunc("GET /dashboard/", h.dashboard)
	mux.HandleFunc("GET /admin", h.dashboard)
	mux.HandleFunc("GET /admin/", h.dashboard)

	return mux
}

func (h *handler) home(w http.ResponseWriter, r *http.Request) {
	principal, ok := routegate.FromContext(r.Context())
	if ok {
		// validated visits keep the rolling expiry going
		if err := h.issueSession(r.Context(), principal); err != nil {
			slogctx.Error(r.Context(), "Failed to refresh the session", "error", err)
		}
	}

	h.render(w, http.StatusOK, "home.html", homeData{
		AppName:   h.cfg.Application.Name,
		Principal: principal,
		Apps:      h.cfg.LIFF.Apps,
	})
}

// --- credential login ---

func (h *handler) loginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := routegate.FromContext(r.Context()); ok {
		http.Redirect(w, r, safeReturnPath(r.URL.Query().Get(callbackParam), "/dashboard"), http.StatusFound)

		return
	}

	h.render(w, http.StatusOK, "login.html", loginData{
		CallbackURL: safeReturnPath(r.URL.Query().Get(callbackParam), "/dashboard"),
	})
}

func (h *handler) loginSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)

		return
	}

	callbackURL := safeReturnPath(r.PostFormValue(callbackParam), "/dashboard")

	principal, err := h.deps.Exchange.WithCredentials(ctx, r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		h.render(w, http.StatusUnauthorized, "login.html", loginData{
			CallbackURL: callbackURL,
			Error:       session.RejectedLoginMessage,
		})

		return
	}

	if err := h.issueSession(ctx, principal); err != nil {
		slogctx.Error(ctx, "Failed to issue a session", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	http.Redirect(w, r, callbackURL, http.StatusFound)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	principal, ok := routegate.FromContext(r.Context())
	if ok && !h.validCSRF(r, principal) {
		http.Error(w, "Invalid CSRF token", http.StatusForbidden)

		return
	}

	// revoke the provider token when the request carries one; a failure
	// must not keep the local session alive
	adapter := liffapi.New(h.cfg.LIFF, h.deps.LIFFHTTPClient, r)
	if err := adapter.Logout(r.Context()); err != nil {
		slogctx.Warn(r.Context(), "Failed to log out from the provider", "error", err)
	}

	http.SetCookie(w, h.deps.Sessions.ExpiredSessionCookie())
	http.SetCookie(w, h.deps.Sessions.ExpiredCSRFCookie())
	http.SetCookie(w, h.stateCookie.ToExpiredCookie())

	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *handler) validCSRF(r *http.Request, principal session.Principal) bool {
	token := r.PostFormValue(csrfFormField)
	if token == "" {
		token = r.Header.Get(csrfHeaderName)
	}

	return h.deps.Sessions.ValidateCSRF(token, principal)
}

// --- LIFF session exchange ---

type liffExchangeRequest struct {
	LineUserID  string `json:"lineUserId"`
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl"`
	AccessToken string `json:"accessToken"`
	CallbackURL string `json:"callbackUrl"`
}

type liffExchangeResponse struct {
	OK          bool   `json:"ok"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

// liffExchange turns a profile obtained by the in-page SDK into an
// application session. Verification of the posted access token happens
// inside the exchange service, so a fabricated profile cannot mint one.
func (h *handler) liffExchange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req liffExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, liffExchangeResponse{})

		return
	}

	if principal, ok := routegate.FromContext(ctx); ok && !h.validCSRF(r, principal) {
		writeJSON(w, http.StatusForbidden, liffExchangeResponse{})

		return
	}

	principal, err := h.deps.Exchange.WithLIFF(ctx, session.LIFFCredentials{
		LineUserID:  req.LineUserID,
		DisplayName: req.DisplayName,
		PictureURL:  req.PictureURL,
		AccessToken: req.AccessToken,
	})
	if err != nil {
		slogctx.Info(ctx, "Rejected a LIFF session exchange", "error", err)
		writeJSON(w, http.StatusUnauthorized, liffExchangeResponse{})

		return
	}

	if err := h.issueSession(ctx, principal); err != nil {
		slogctx.Error(ctx, "Failed to issue a session", "error", err)
		writeJSON(w, http.StatusInternalServerError, liffExchangeResponse{})

		return
	}

	writeJSON(w, http.StatusOK, liffExchangeResponse{
		OK:          true,
		RedirectURL: safeReturnPath(req.CallbackURL, "/"),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// --- LIFF bootstrap pages ---

func (h *handler) liffPage(w http.ResponseWriter, r *http.Request) {
	h.finishBootstrap(w, r, h.runBootstrap(r, r.URL.Path, ""), "")
}

// liffCallback resumes a bootstrap after the provider redirect. liffId and
// callbackUrl query parameters recover the flow when the state cookie did
// not survive the round trip.
func (h *handler) liffCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	target := safeReturnPath(query.Get(callbackParam), "/")

	result := h.runBootstrap(r, target, query.Get(liffIDParam))
	h.finishBootstrap(w, r, result, target)
}

func (h *handler) runBootstrap(r *http.Request, path, liffIDHint string) bootstrap.Result {
	adapter := liffapi.New(h.cfg.LIFF, h.deps.LIFFHTTPClient, r)
	machine := bootstrap.New(h.deps.Resolver, adapter, h.deps.States, h.deps.Exchange, h.nonce)

	var existing *session.Principal
	if principal, ok := routegate.FromContext(r.Context()); ok {
		existing = &principal
	}

	var stateID string
	if cookie, err := r.Cookie(h.stateCookie.Name); err == nil {
		stateID = cookie.Value
	}

	fp, _ := fingerprint.ExtractFingerprint(r.Context())

	return machine.Run(r.Context(), bootstrap.Input{
		Path:        path,
		Session:     existing,
		StateID:     stateID,
		Fingerprint: fp,
		LIFFIDHint:  liffIDHint,
	})
}

func (h *handler) finishBootstrap(w http.ResponseWriter, r *http.Request, result bootstrap.Result, target string) {
	ctx := r.Context()

	switch result.State {
	case bootstrap.StateAwaitingProviderLogin:
		http.SetCookie(w, h.stateCookie.ToCookie(result.StateID))
		http.Redirect(w, r, result.RedirectURL, http.StatusFound)

	case bootstrap.StateAuthenticated:
		if err := h.issueSession(ctx, result.Principal); err != nil {
			slogctx.Error(ctx, "Failed to issue a session", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)

			return
		}

		http.SetCookie(w, h.stateCookie.ToExpiredCookie())

		switch {
		case result.RedirectURL != "":
			http.Redirect(w, r, result.RedirectURL, http.StatusFound)
		case target != "" && target != r.URL.Path:
			http.Redirect(w, r, target, http.StatusFound)
		default:
			h.renderLIFFPage(w, r, result.Principal)
		}

	default:
		h.renderBootstrapError(w, r, result)
	}
}

func (h *handler) renderBootstrapError(w http.ResponseWriter, r *http.Request, result bootstrap.Result) {
	slogctx.Warn(r.Context(), "LIFF bootstrap failed",
		"path", r.URL.Path,
		"state", result.State,
		"error", result.Err,
	)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(result.Err, serviceerr.ErrNotInClient):
		status = http.StatusForbidden
	case result.Err != nil && result.Retryable:
		status = http.StatusBadGateway
	}

	h.render(w, status, "error.html", errorData{
		Message:   result.UserMessage,
		Retryable: result.Retryable,
		Path:      r.URL.Path,
	})
}

// --- dashboard ---

func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	// the route gate already redirected unauthenticated browsers
	principal, ok := routegate.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, routegate.LoginRedirectURL(r.URL.Path), http.StatusFound)

		return
	}

	if err := h.issueSession(r.Context(), principal); err != nil {
		slogctx.Error(r.Context(), "Failed to refresh the session", "error", err)
	}

	h.render(w, http.StatusOK, "dashboard.html", dashboardData{
		Principal:  principal,
		CSRFToken:  h.deps.Sessions.NewCSRFToken(principal),
		Stats:      mockDashboardStats(),
		Activities: mockRecentActivities(),
	})
}

// issueSession mints a fresh token for the principal and sets the session
// and CSRF cookies. Calling it on every validated page view gives sessions
// their rolling expiry.
func (h *handler) issueSession(ctx context.Context, principal session.Principal) error {
	w, err := responsewriter.ResponseWriterFromContext(ctx)
	if err != nil {
		return err
	}

	token, err := h.deps.Sessions.Mint(principal)
	if err != nil {
		return err
	}

	http.SetCookie(w, h.deps.Sessions.SessionCookie(token))
	http.SetCookie(w, h.deps.Sessions.CSRFCookie(h.deps.Sessions.NewCSRFToken(principal)))

	return nil
}

// safeReturnPath keeps post-login redirects on this site. Anything that is
// not a local absolute path falls back.
func safeReturnPath(path, fallback string) string {
	if path == "" || !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return fallback
	}

	return path
}
