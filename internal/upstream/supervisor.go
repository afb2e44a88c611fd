package upstream

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout   = 15 * time.Second
	baseReconnectDelay = 1 * time.Second
	maxReconnectDelay  = 2 * time.Minute
)

// Dialer opens a new WebSocket connection to url. It is a seam for
// tests to substitute an in-process listener.
type Dialer func(ctx context.Context, url string) (*websocket.Conn, error)

// DefaultDialer dials with the package's default gorilla/websocket
// dialer and a bounded handshake timeout.
func DefaultDialer(ctx context.Context, url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	return conn, err
}

// runSupervisor owns the connection dance: given a target URL, it
// produces a connected socket, retrying indefinitely with backoff on
// failure. It connects once immediately on start, and again every time
// a value arrives on reconnect. Keeping this out of the actor's select
// loop lets the actor keep draining cancellation and shutdown commands
// while the backend is unreachable.
func runSupervisor(ctx context.Context, dial Dialer, url string, reconnect <-chan struct{}, connected chan<- *websocket.Conn, logger *slog.Logger) {
	trigger := make(chan struct{}, 1)
	trigger <- struct{}{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-reconnect:
			select {
			case trigger <- struct{}{}:
			default:
			}
		case <-trigger:
			conn := connectWithBackoff(ctx, dial, url, logger)
			if conn == nil {
				return
			}
			select {
			case connected <- conn:
			case <-ctx.Done():
				conn.Close()
				return
			}
		}
	}
}

func connectWithBackoff(ctx context.Context, dial Dialer, url string, logger *slog.Logger) *websocket.Conn {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		conn, err := dial(ctx, url)
		if err == nil {
			return conn
		}

		delay := calculateBackoff(attempt)
		logger.Debug("connect attempt failed", "url", url, "attempt", attempt, "retry_in", delay, "error", err)
		attempt++

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
	}
}

// calculateBackoff mirrors the host-agent's exponential backoff: double
// the base delay per attempt, capped at maxReconnectDelay.
func calculateBackoff(attempt int) time.Duration {
	delay := baseReconnectDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxReconnectDelay {
			return maxReconnectDelay
		}
	}
	return delay
}
