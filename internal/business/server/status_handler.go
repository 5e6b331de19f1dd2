package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/openkcm/common-sdk/pkg/commoncfg"

	slogctx "github.com/veqryn/slog-context"

	"github.com/pointline/liff-portal/internal/config"
)

// statusHandlerFunc serves the liveness probe and the public status route.
func statusHandlerFunc(cfg *config.Config) func(http.ResponseWriter, *http.Request) {
	body := []byte(`{ "status": "ok", "application": "` + cfg.Application.Name + `" }`)

	return func(w http.ResponseWriter, req *http.Request) {
		ctx := slogctx.With(req.Context(),
			commoncfg.AttrRequestID, uuid.New().String(),
			commoncfg.AttrOperation, "status",
		)

		slogctx.Debug(ctx, "Serving status request")

		w.Header().Set("Content-Type", "application/json")

		if _, err := w.Write(body); err != nil {
			slogctx.Error(ctx, "Failed to write status response", "error", err)
		}
	}
}
