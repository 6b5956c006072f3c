// Package httpapi assembles the feature routers behind the shared
// middleware chain. Business logic stays in the services; this package
// only mounts.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bloodlink/internal/platform/middleware"
	"bloodlink/pkg/platform/httputil"
)

// FeatureHandler is anything that can mount its routes on a chi router.
type FeatureHandler interface {
	Register(r chi.Router)
}

// NewRouter builds the full API router. Feature routes live under /v1;
// /healthz stays at the root for load balancers.
func NewRouter(logger *slog.Logger, features ...FeatureHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", handleHealthz)

	r.Route("/v1", func(r chi.Router) {
		for _, f := range features {
			f.Register(r)
		}
	})

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
