// Package backend multiplexes traffic to the configured LaunchServer
// backends, keyed by the URL path segment clients use to address them.
package backend

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/embergate/embergate/internal/metrics"
	"github.com/embergate/embergate/internal/upstream"
)

// Descriptor is one configured backend: immutable after startup.
type Descriptor struct {
	// Name is the URL path segment (server_id) clients use to select
	// this backend.
	Name string
	// URL is the backend's base WebSocket URL.
	URL string
	// Token is the bearer credential sent in the restore request that
	// follows a PermissionsDenied reply. It is not sent on connect.
	Token string
	// Assets is the skin/cape domain allow-list, published at the root
	// endpoint. Embergate never rewrites texture URLs.
	Assets []string
}

// Backend pairs a descriptor with its running upstream client.
type Backend struct {
	Descriptor Descriptor
	Client     *upstream.Client
}

// Registry holds every configured backend, looked up by name.
type Registry struct {
	backends map[string]*Backend
	logger   *slog.Logger
}

// NewRegistry builds one upstream.Client per descriptor. Call Start to
// begin connecting.
func NewRegistry(descriptors []Descriptor, timeout time.Duration, logger *slog.Logger, rec metrics.Recorder) *Registry {
	backends := make(map[string]*Backend, len(descriptors))
	for _, d := range descriptors {
		client := upstream.NewClient(d.Name, d.URL, upstream.Options{
			Token:   d.Token,
			Timeout: timeout,
		}, logger.With("backend", d.Name), rec)

		backends[d.Name] = &Backend{Descriptor: d, Client: client}
	}
	return &Registry{backends: backends, logger: logger}
}

// Get looks up a backend by its server_id path segment.
func (r *Registry) Get(name string) (*Backend, bool) {
	b, ok := r.backends[name]
	return b, ok
}

// Start launches every backend's actor/supervisor pair. It returns
// once all of them have been started; it does not block on them
// running (they run until ctx is cancelled).
func (r *Registry) Start(ctx context.Context) {
	for _, b := range r.backends {
		go b.Client.Start(ctx)
	}
}

// Shutdown gracefully stops every backend's client concurrently,
// bounded by ctx's deadline.
func (r *Registry) Shutdown(ctx context.Context) {
	var wg sync.WaitGroup
	for _, b := range r.backends {
		wg.Add(1)
		go func(b *Backend) {
			defer wg.Done()
			if err := b.Client.Shutdown(ctx); err != nil {
				r.logger.Warn("backend shutdown did not complete cleanly", "backend", b.Descriptor.Name, "error", err)
			}
		}(b)
	}
	wg.Wait()
}
