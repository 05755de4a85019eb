/*
Package admin exposes the HTTP introspection surface a running session
serves alongside its components (SPEC_FULL.md §6.1): "/healthz" for
liveness, "/components" for a JSON snapshot of what the session has
spawned, and "/metrics" for Prometheus scraping.

The router is built the way Tutu-Engine-tutuengine's internal/api
server builds its own: go-chi/chi/v5 for routing plus
go-chi/chi/v5/middleware.Recoverer so a handler panic returns a 500
instead of taking the admin listener down, with
prometheus/client_golang/prometheus/promhttp mounted directly at
"/metrics". pkg/metrics already wraps promhttp.Handler behind its own
Handler() func, which this package uses instead of importing promhttp
a second time.
*/
package admin
