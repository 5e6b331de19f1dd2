package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/samber/oops"

	slogctx "github.com/veqryn/slog-context"

	"github.com/pointline/liff-portal/internal/config"
	"github.com/pointline/liff-portal/internal/liff"
	"github.com/pointline/liff-portal/internal/middleware/ratelimit"
	"github.com/pointline/liff-portal/internal/middleware/responsewriter"
	"github.com/pointline/liff-portal/internal/middleware/securityheaders"
	"github.com/pointline/liff-portal/internal/redirectstate"
	"github.com/pointline/liff-portal/internal/routegate"
	"github.com/pointline/liff-portal/internal/session"
	"github.com/pointline/liff-portal/pkg/fingerprint"
)

// Deps are the wired collaborators the HTTP surface serves.
type Deps struct {
	Sessions     *session.Manager
	Exchange     *session.Exchange
	Resolver     *liff.Resolver
	States       redirectstate.Store
	LoginLimiter *ratelimit.Limiter
	// LIFFHTTPClient talks to the LINE platform API; nil means the default
	// client.
	LIFFHTTPClient *http.Client
}

// createHTTPServer creates the web server using the given config.
func createHTTPServer(_ context.Context, cfg *config.Config, deps Deps) *http.Server {
	handler := newHandler(cfg, deps)
	gate := routegate.New(deps.Resolver)

	var h http.Handler = handler.mux()
	h = metricsMiddleware(cfg, h)
	h = responsewriter.ResponseWriterMiddleware(h)
	h = fingerprint.FingerprintCtxMiddleware(h)
	h = gate.Middleware(deps.Sessions)(h)
	h = securityheaders.Middleware(h)

	return &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: h,
	}
}

// StartHTTPServer starts the web server and blocks until ctx is done.
func StartHTTPServer(ctx context.Context, cfg *config.Config, deps Deps) error {
	if err := initMeters(ctx, cfg); err != nil {
		return err
	}

	server := createHTTPServer(ctx, cfg, deps)

	slogctx.Info(ctx, "Starting a listener", "address", server.Addr)

	// Parse network if the address if provided in the format of network://address.
	// Otherwise use tcp network by default. Some integration tests are easier to implement
	// by binding a listener to a unix socket rather than a TCP port,
	// since we don't need to look up for a free port or scan /proc/net on Linux or call sysctl on macOS
	// to discover which port the process is bound to.
	network := "tcp"
	if idx := strings.IndexRune(server.Addr, ':'); idx != -1 && len(server.Addr) > idx+3 && server.Addr[idx:idx+3] == "://" {
		network = server.Addr[:idx]
		server.Addr = server.Addr[idx+3:]
	}

	listener, err := new(net.ListenConfig).Listen(ctx, network, server.Addr)
	if err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed to create a listener")
	}

	slogctx.Info(ctx, "A listener started", "address", listener.Addr().String())

	go func() {
		slogctx.Info(ctx, "Serving an HTTP server", "address", listener.Addr().String())
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogctx.Error(ctx, "Failed to serve an HTTP server", "error", err)
		}

		slogctx.Info(ctx, "Stopped an HTTP server")
	}()

	<-ctx.Done()

	shutdownCtx, shutdownRelease := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
	defer shutdownRelease()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed shutting down HTTP server")
	}

	slogctx.Info(ctx, "Completed graceful shutdown of HTTP server")

	return nil
}
