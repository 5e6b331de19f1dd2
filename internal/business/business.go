// Package business wires the configured components together and runs the
// web server.
package business

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"

	"github.com/pointline/liff-portal/internal/backend"
	"github.com/pointline/liff-portal/internal/business/server"
	"github.com/pointline/liff-portal/internal/config"
	"github.com/pointline/liff-portal/internal/liff"
	"github.com/pointline/liff-portal/internal/middleware/ratelimit"
	"github.com/pointline/liff-portal/internal/redirectstate"
	statememory "github.com/pointline/liff-portal/internal/redirectstate/memory"
	statevalkey "github.com/pointline/liff-portal/internal/redirectstate/valkey"
	"github.com/pointline/liff-portal/internal/session"
)

// login attempts per second and burst, per client IP
const (
	loginRate  = 1
	loginBurst = 5
)

// Main builds the dependency graph and serves HTTP until ctx is done.
func Main(ctx context.Context, cfg *config.Config) error {
	deps, closeFn, err := initDeps(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising dependencies: %w", err)
	}

	defer closeFn()

	return server.StartHTTPServer(ctx, cfg, deps)
}

func initDeps(ctx context.Context, cfg *config.Config) (_ server.Deps, closeFn func(), _ error) {
	sessions, err := session.NewManager(cfg.Session)
	if err != nil {
		return server.Deps{}, nil, fmt.Errorf("creating session manager: %w", err)
	}

	states, closeFn, err := initRedirectStates(ctx, cfg)
	if err != nil {
		return server.Deps{}, nil, fmt.Errorf("creating redirect-state store: %w", err)
	}

	authorizer := backend.NewClient(cfg.ExternalAPI)

	return server.Deps{
		Sessions:       sessions,
		Exchange:       session.NewExchange(authorizer, cfg.ExternalAPI.VerifyLIFFToken),
		Resolver:       liff.NewResolver(cfg.LIFF),
		States:         states,
		LoginLimiter:   ratelimit.New(loginRate, loginBurst),
		LIFFHTTPClient: &http.Client{Timeout: cfg.ExternalAPI.Timeout},
	}, closeFn, nil
}

// initRedirectStates selects the redirect-state backend. A configured
// valkey host means shared server-side state; without one a single-process
// in-memory store is used.
func initRedirectStates(ctx context.Context, cfg *config.Config) (redirectstate.Store, func(), error) {
	valkeyHost, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Host)
	if err != nil {
		return nil, nil, fmt.Errorf("loading valkey host: %w", err)
	}

	if len(valkeyHost) == 0 {
		slogctx.Info(ctx, "No valkey host configured, using the in-memory redirect-state store")

		return statememory.NewStore(cfg.LIFF.StateTTL), func() {}, nil
	}

	valkeyUsername, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.User)
	if err != nil {
		return nil, nil, fmt.Errorf("loading valkey username: %w", err)
	}

	valkeyPassword, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("loading valkey password: %w", err)
	}

	valkeyClient, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{string(valkeyHost)},
		Username:    string(valkeyUsername),
		Password:    string(valkeyPassword),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating a new valkey client: %w", err)
	}

	store := statevalkey.NewStore(valkeyClient, cfg.ValKey.Prefix, cfg.LIFF.StateTTL)

	return store, valkeyClient.Close, nil
}
