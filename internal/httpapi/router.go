// Package httpapi wires the Yggdrasil-compatible HTTP surface onto the
// backend registry: session validation, profile lookups, the batch
// profile endpoint and the per-backend root metadata document.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/embergate/embergate/internal/backend"
	"github.com/embergate/embergate/internal/keypair"
)

// Server metadata published at the root endpoint.
type ServerMeta struct {
	Name                  string
	ImplementationName    string
	ImplementationVersion string
}

// NewRouter builds the full HTTP handler: the per-backend Yggdrasil
// surface plus a /metrics endpoint serving gatherer.
func NewRouter(registry *backend.Registry, keys *keypair.KeyPair, meta ServerMeta, logger *slog.Logger, gatherer prometheus.Gatherer) http.Handler {
	h := &handlers{registry: registry, keys: keys, meta: meta, logger: logger}

	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))

	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	serverRouter := router.PathPrefix("/{server_id}").Subrouter()
	serverRouter.HandleFunc("/", h.root).Methods(http.MethodGet)
	serverRouter.HandleFunc("/sessionserver/session/minecraft/hasJoined", h.hasJoined).Methods(http.MethodGet)
	serverRouter.HandleFunc("/sessionserver/session/minecraft/profile/{uuid}", h.profileByUUID).Methods(http.MethodGet)
	serverRouter.HandleFunc("/api/profiles/minecraft", h.batchProfiles).Methods(http.MethodPost)

	return router
}

func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(started),
			)
		})
	}
}
