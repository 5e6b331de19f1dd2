// Package bootstrap drives the per-page-load sequence that turns a LINE
// login into an application session. The machine runs once per instance;
// handlers create a fresh one for every request that needs it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	slogctx "github.com/veqryn/slog-context"

	"github.com/pointline/liff-portal/internal/liff"
	"github.com/pointline/liff-portal/internal/redirectstate"
	"github.com/pointline/liff-portal/internal/serviceerr"
	"github.com/pointline/liff-portal/internal/session"
)

type State string

const (
	StateLoading               State = "loading"
	StateAuthenticated         State = "authenticated"
	StateAwaitingProviderLogin State = "awaiting-provider-login"
	StateExchangingSession     State = "exchanging-session"
	StateError                 State = "error"
)

// Exchanger is the slice of the session exchange the machine invokes.
type Exchanger interface {
	WithLIFF(ctx context.Context, creds session.LIFFCredentials) (session.Principal, error)
}

// NonceSource produces the opaque IDs under which redirect state is stored.
type NonceSource interface {
	StateID() string
}

// Input is everything the machine learns from the incoming request.
type Input struct {
	// Path the user is trying to reach.
	Path string
	// Session is the already-validated principal from the session cookie,
	// or nil when there is none.
	Session *session.Principal
	// StateID is the redirect-state handle carried across the provider
	// redirect, empty on a first visit.
	StateID string
	// LIFFIDHint recovers the provider config when the path table cannot,
	// from the liffId query parameter on the callback route.
	LIFFIDHint string
	// Fingerprint loosely ties the redirect state to one browser.
	Fingerprint string
}

// Result is the machine's terminal outcome for this page load.
type Result struct {
	State     State
	Principal session.Principal
	// RedirectURL is where the handler must send the browser next: the
	// provider login page in AwaitingProviderLogin, or the stored return
	// URL after a successful exchange. Empty means stay put.
	RedirectURL string
	// StateID is set when a redirect-state record was written and must be
	// handed to the browser before navigating away.
	StateID string
	// UserMessage is safe to render. Err is for the log.
	UserMessage string
	Err         error
	Retryable   bool
}

type Machine struct {
	resolver *liff.Resolver
	adapter  liff.Client
	states   redirectstate.Store
	exchange Exchanger
	nonce    NonceSource

	entered atomic.Bool
}

func New(resolver *liff.Resolver, adapter liff.Client, states redirectstate.Store, exchange Exchanger, nonce NonceSource) *Machine {
	return &Machine{
		resolver: resolver,
		adapter:  adapter,
		states:   states,
		exchange: exchange,
		nonce:    nonce,
	}
}

// Run executes the bootstrap sequence once. A second call on the same
// instance fails immediately; provider callbacks and re-renders may both
// try to start the flow, only the first may win.
func (m *Machine) Run(ctx context.Context, in Input) Result {
	if !m.entered.CompareAndSwap(false, true) {
		return Result{
			State:       StateError,
			Err:         serviceerr.ErrReentered,
			UserMessage: "Login is already in progress.",
		}
	}

	if in.Session != nil && in.Session.Validate() == nil {
		return Result{State: StateAuthenticated, Principal: *in.Session}
	}

	liffID := m.resolver.Resolve(in.Path)
	if liffID == "" {
		liffID = in.LIFFIDHint
	}
	if liffID == "" {
		return Result{
			State:       StateError,
			Err:         fmt.Errorf("%w: no identity configuration for path %q", serviceerr.ErrConfiguration, in.Path),
			UserMessage: "This page is not set up for LINE login.",
		}
	}

	if err := m.adapter.Init(ctx, liffID); err != nil {
		return Result{
			State:       StateError,
			Err:         err,
			UserMessage: "Could not start LINE login. Please try again.",
			Retryable:   true,
		}
	}

	if !m.adapter.IsLoggedIn(ctx) {
		return m.beginProviderLogin(ctx, in, liffID)
	}

	return m.exchangeSession(ctx, in)
}

// beginProviderLogin stashes the return URL and hands the browser to the
// provider-hosted login. Control does not come back to this instance.
func (m *Machine) beginProviderLogin(ctx context.Context, in Input, liffID string) Result {
	if !m.adapter.IsInClient(ctx) {
		return Result{
			State:       StateError,
			Err:         serviceerr.ErrNotInClient,
			UserMessage: "Please open this page from the LINE app.",
		}
	}

	stateID := m.nonce.StateID()
	record := redirectstate.Record{
		LIFFID:      liffID,
		ReturnURL:   in.Path,
		Fingerprint: in.Fingerprint,
	}
	if err := m.states.Put(ctx, stateID, record); err != nil {
		return Result{
			State:       StateError,
			Err:         fmt.Errorf("storing redirect state: %w", err),
			UserMessage: "Could not start LINE login. Please try again.",
			Retryable:   true,
		}
	}

	loginURL, err := m.adapter.LoginURL(in.Path)
	if err != nil {
		return Result{
			State:       StateError,
			Err:         err,
			UserMessage: "Could not start LINE login. Please try again.",
			Retryable:   true,
		}
	}

	return Result{
		State:       StateAwaitingProviderLogin,
		RedirectURL: loginURL,
		StateID:     stateID,
	}
}

func (m *Machine) exchangeSession(ctx context.Context, in Input) Result {
	profile, err := m.adapter.Profile(ctx)
	if err != nil {
		return Result{
			State:       StateError,
			Err:         err,
			UserMessage: "Could not read your LINE profile. Please try again.",
			Retryable:   true,
		}
	}
	if profile == nil {
		return Result{
			State:       StateError,
			Err:         fmt.Errorf("%w: provider reports logged in but returned no profile", serviceerr.ErrProfileFetch),
			UserMessage: "Could not read your LINE profile. Please try again.",
			Retryable:   true,
		}
	}

	principal, err := m.exchange.WithLIFF(ctx, session.LIFFCredentials{
		LineUserID:  profile.UserID,
		DisplayName: profile.DisplayName,
		PictureURL:  profile.PictureURL,
		AccessToken: m.adapter.AccessToken(ctx),
	})
	if err != nil {
		return Result{
			State:       StateError,
			Err:         err,
			UserMessage: "Login was not accepted. Please try again.",
			Retryable:   true,
		}
	}

	result := Result{State: StateAuthenticated, Principal: principal}
	if returnURL := m.consumeReturnURL(ctx, in); returnURL != in.Path {
		result.RedirectURL = returnURL
	}

	return result
}

// consumeReturnURL reads and deletes the redirect-state record written
// before the provider login. Missing or foreign records fall back to the
// current path; a lost record only costs the deep link, never the login.
func (m *Machine) consumeReturnURL(ctx context.Context, in Input) string {
	if in.StateID == "" {
		return in.Path
	}

	record, err := m.states.Get(ctx, in.StateID)
	if err != nil {
		if !errors.Is(err, serviceerr.ErrStateNotFound) {
			slogctx.Warn(ctx, "Failed to read redirect state", "error", err)
		}

		return in.Path
	}

	if err := m.states.Delete(ctx, in.StateID); err != nil {
		slogctx.Warn(ctx, "Failed to delete redirect state", "error", err)
	}

	if record.Fingerprint != "" && record.Fingerprint != in.Fingerprint {
		slogctx.Warn(ctx, "Redirect state fingerprint mismatch", "error", serviceerr.ErrFingerprintMismatch)

		return in.Path
	}

	if record.ReturnURL == "" {
		return in.Path
	}

	return record.ReturnURL
}
