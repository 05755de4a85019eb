package admin

import (
	"encoding/json"
	"net/http"

	"github.com/cuemby/pilot/pkg/metrics"
	"github.com/cuemby/pilot/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ComponentLister is implemented by anything that can enumerate the
// components it has spawned — *session.Session in practice.
type ComponentLister interface {
	Components() []session.ComponentInfo
}

// NewRouter builds the admin HTTP surface (SPEC_FULL.md §6.1):
// "/healthz" liveness, "/components" session snapshot, "/metrics"
// Prometheus scrape.
func NewRouter(lister ComponentLister) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", metrics.LivenessHandler())
	r.Get("/health", metrics.HealthHandler())
	r.Get("/components", componentsHandler(lister))
	r.Handle("/metrics", metrics.Handler())

	return r
}

func componentsHandler(lister ComponentLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(lister.Components())
	}
}
