package upstream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// runDuplex runs two cooperating pumps sharing one socket. It blocks
// until either pump hits a fatal transport error or
// ctx is cancelled, then closes the socket, waits for both pumps to
// exit, and signals died at most once; once ctx is cancelled the died
// signal may be skipped.
func runDuplex(ctx context.Context, conn *websocket.Conn, outgoing <-chan []byte, incoming chan<- []byte, died chan<- struct{}, logger *slog.Logger) {
	fatal := make(chan struct{}, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		outgoingPump(ctx, conn, outgoing, fatal, logger)
	}()
	go func() {
		defer wg.Done()
		incomingPump(ctx, conn, incoming, fatal, logger)
	}()

	select {
	case <-fatal:
	case <-ctx.Done():
	}

	conn.Close()
	wg.Wait()

	select {
	case died <- struct{}{}:
	case <-ctx.Done():
	}
}

func outgoingPump(ctx context.Context, conn *websocket.Conn, outgoing <-chan []byte, fatal chan<- struct{}, logger *slog.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-outgoing:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debug("outgoing pump: write failed", "error", err)
				signalFatal(fatal)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("outgoing pump: ping failed", "error", err)
				signalFatal(fatal)
				return
			}
		}
	}
}

func incomingPump(ctx context.Context, conn *websocket.Conn, incoming chan<- []byte, fatal chan<- struct{}, logger *slog.Logger) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			logger.Debug("incoming pump: read failed", "error", err)
			signalFatal(fatal)
			return
		}

		if msgType != websocket.TextMessage {
			// Binary, ping, pong and close frames are handled at the
			// transport layer and never surface to the actor.
			continue
		}

		select {
		case incoming <- data:
		case <-ctx.Done():
			return
		}
	}
}

func signalFatal(fatal chan<- struct{}) {
	select {
	case fatal <- struct{}{}:
	default:
	}
}
