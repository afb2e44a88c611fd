// Package upstream implements the WebSocket correlation client: a
// persistent, auto-reconnecting duplex transport that carries
// request/response pairs to a LaunchServer backend, correlates replies
// to callers by request id, and transparently re-authenticates on a
// stale token.
package upstream

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/embergate/embergate/internal/metrics"
	"github.com/embergate/embergate/internal/wire"
)

const (
	commandChannelCapacity = 256
	outgoingFrameCapacity  = 256
	incomingFrameCapacity  = 5120
)

type waitResult struct {
	resp *wire.Response
	err  error
}

type command interface{ isCommand() }

type sendCmd struct {
	req   wire.Request
	reply chan<- waitResult
}

type cancelCmd struct{ id uuid.UUID }

type shutdownCmd struct{ ack chan<- struct{} }

func (sendCmd) isCommand()     {}
func (cancelCmd) isCommand()   {}
func (shutdownCmd) isCommand() {}

// actor owns the request-id to waiter mapping; no other goroutine
// reads or mutates it.
type actor struct {
	name   string
	url    string
	dial   Dialer
	logger *slog.Logger
	rec    metrics.Recorder

	cmds      chan command
	outgoing  chan []byte
	incoming  chan []byte
	connected chan *websocket.Conn
	reconnect chan struct{}
	pumpDied  chan struct{}

	waiters map[uuid.UUID]chan<- waitResult
}

func newActor(name, url string, dial Dialer, logger *slog.Logger, rec metrics.Recorder) *actor {
	return &actor{
		name:      name,
		url:       url,
		dial:      dial,
		logger:    logger,
		rec:       rec,
		cmds:      make(chan command, commandChannelCapacity),
		outgoing:  make(chan []byte, outgoingFrameCapacity),
		incoming:  make(chan []byte, incomingFrameCapacity),
		connected: make(chan *websocket.Conn),
		reconnect: make(chan struct{}, 1),
		pumpDied:  make(chan struct{}, 1),
		waiters:   make(map[uuid.UUID]chan<- waitResult),
	}
}

// run is the actor's single cooperative task. It multiplexes client
// commands, supervisor events, incoming frames and pump failures, and
// returns once shut down.
func (a *actor) run(ctx context.Context) {
	supervisorCtx, cancelSupervisor := context.WithCancel(ctx)
	defer cancelSupervisor()
	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		runSupervisor(supervisorCtx, a.dial, a.url, a.reconnect, a.connected, a.logger)
	}()

	var pumpCancel context.CancelFunc
	var pumpDone chan struct{}

	// stopPump cancels the current I/O pair and waits for both pumps to
	// exit, so no frame is emitted after the pair is torn down.
	stopPump := func() {
		if pumpCancel == nil {
			return
		}
		pumpCancel()
		<-pumpDone
		pumpCancel = nil
		pumpDone = nil
	}
	defer stopPump()

	for {
		select {
		case <-ctx.Done():
			a.dropAllWaiters()
			return

		case cmd := <-a.cmds:
			switch c := cmd.(type) {
			case sendCmd:
				a.handleSend(c)
			case cancelCmd:
				delete(a.waiters, c.id)
				a.rec.SetWaiters(a.name, len(a.waiters))
			case shutdownCmd:
				stopPump()
				cancelSupervisor()
				<-supervisorDone
				a.dropAllWaiters()
				close(c.ack)
				return
			}

		case conn := <-a.connected:
			stopPump()
			// The stopped pair may have buffered a died signal before it
			// was torn down; drain it so it cannot kill the new pair.
			select {
			case <-a.pumpDied:
			default:
			}
			pctx, cancel := context.WithCancel(ctx)
			pumpCancel = cancel
			done := make(chan struct{})
			pumpDone = done
			go func() {
				defer close(done)
				runDuplex(pctx, conn, a.outgoing, a.incoming, a.pumpDied, a.logger)
			}()
			a.logger.Info("backend connected", "backend", a.name)

		case frame := <-a.incoming:
			a.handleFrame(frame)

		case <-a.pumpDied:
			a.logger.Warn("backend disconnected", "backend", a.name)
			stopPump()
			a.rec.IncReconnect(a.name)
			select {
			case a.reconnect <- struct{}{}:
			default:
			}
		}
	}
}

func (a *actor) handleSend(c sendCmd) {
	data, err := json.Marshal(c.req)
	if err != nil {
		// Serialisation failures silently drop the reply-sink; the
		// caller observes a timeout.
		a.logger.Debug("dropping unsendable request", "backend", a.name, "error", err)
		return
	}

	a.waiters[c.req.RequestUUID] = c.reply
	a.rec.SetWaiters(a.name, len(a.waiters))

	select {
	case a.outgoing <- data:
	default:
		// Outgoing buffer full, typically during a long disconnect.
		// The frame is dropped and the waiter times out at the facade;
		// blocking here would stall cancel and reconnect handling.
		a.logger.Debug("outgoing buffer full, dropping frame", "backend", a.name, "request_uuid", c.req.RequestUUID)
	}
}

func (a *actor) handleFrame(frame []byte) {
	resp, err := wire.ParseResponse(frame)
	if err != nil {
		a.logger.Debug("dropping unparsable frame", "backend", a.name, "error", err)
		return
	}

	reply, ok := a.waiters[resp.RequestUUID]
	if !ok {
		a.logger.Debug("no waiter for response", "backend", a.name, "request_uuid", resp.RequestUUID)
		return
	}
	delete(a.waiters, resp.RequestUUID)
	a.rec.SetWaiters(a.name, len(a.waiters))

	select {
	case reply <- waitResult{resp: resp}:
	default:
		// The reply sink is buffered by exactly one; a blocked send
		// here would mean the waiter already received a value, which
		// cannot happen since it is removed on first delivery.
	}
}

func (a *actor) dropAllWaiters() {
	for id := range a.waiters {
		delete(a.waiters, id)
	}
	a.rec.SetWaiters(a.name, 0)
}
