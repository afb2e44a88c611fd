package upstream

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/embergate/embergate/internal/metrics"
	"github.com/embergate/embergate/internal/wire"
)

// DefaultCallTimeout bounds a facade call when Options.Timeout is
// unset.
const DefaultCallTimeout = 5 * time.Second

// Options configures a Client.
type Options struct {
	// Token is the bearer credential sent in the restore request that
	// follows a PermissionsDenied reply. It is not sent on connect.
	Token string
	// Timeout bounds every facade call. Defaults to DefaultCallTimeout.
	Timeout time.Duration
}

// Client is the typed facade over the actor: per-operation methods, a
// per-call timeout, and the one-shot token-restore retry policy.
type Client struct {
	name    string
	token   string
	timeout time.Duration
	actor   *actor
	breaker *gobreaker.CircuitBreaker[*wire.Response]
	logger  *slog.Logger
	rec     metrics.Recorder
}

// NewClient builds a Client for one backend. Call Start before issuing
// any request.
func NewClient(name, url string, opts Options, logger *slog.Logger, rec metrics.Recorder) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	if rec == nil {
		rec = metrics.Noop{}
	}

	breakerSettings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     timeout * 2,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Client{
		name:    name,
		token:   opts.Token,
		timeout: timeout,
		actor:   newActor(name, url, DefaultDialer, logger, rec),
		breaker: gobreaker.NewCircuitBreaker[*wire.Response](breakerSettings),
		logger:  logger,
		rec:     rec,
	}
}

// Start runs the client's actor and connection supervisor until ctx is
// cancelled or Shutdown is called.
func (c *Client) Start(ctx context.Context) {
	c.actor.run(ctx)
}

// send places the command on the actor channel and waits on the reply
// sink with the configured per-call timeout. A circuit breaker keeps
// calls against a backend already known to be disconnected from
// flooding the outgoing buffer with doomed frames; an open breaker
// still holds the caller for the remainder of the per-call timeout, so
// every failed call resolves at the same wall time whether the frame
// was sent and never answered or never sent at all.
func (c *Client) send(ctx context.Context, req wire.Request) (*wire.Response, error) {
	started := time.Now()
	defer func() {
		c.rec.ObserveCallLatency(c.name, string(req.Type), time.Since(started))
	}()

	resp, err := c.breaker.Execute(func() (*wire.Response, error) {
		return c.rawSend(ctx, req)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.waitRemaining(ctx, started)
			return nil, ErrResponseNotReceived
		}
		return nil, err
	}
	return resp, nil
}

// waitRemaining blocks until the per-call timeout has fully elapsed
// since started, or ctx is cancelled.
func (c *Client) waitRemaining(ctx context.Context, started time.Time) {
	remaining := c.timeout - time.Since(started)
	if remaining <= 0 {
		return
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (c *Client) rawSend(ctx context.Context, req wire.Request) (*wire.Response, error) {
	reply := make(chan waitResult, 1)

	select {
	case c.actor.cmds <- sendCmd{req: req, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case res := <-reply:
		return res.resp, res.err
	case <-timer.C:
		select {
		case c.actor.cmds <- cancelCmd{id: req.RequestUUID}:
		case <-ctx.Done():
		}
		return nil, ErrResponseNotReceived
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// sendWithRestore implements the token-restore retry policy: a
// PermissionsDenied reply triggers exactly one restore attempt, and on
// success exactly one retry of the original request. Restore requests
// are not themselves subject to restore retry.
func (c *Client) sendWithRestore(ctx context.Context, req wire.Request, expect wire.ResponseType) (*wire.Response, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.Type != wire.ResponseError {
		if resp.Type != expect {
			return nil, NewUnexpectedResponse(resp.Type)
		}
		return resp, nil
	}

	var errBody wire.ErrorBody
	if decodeErr := resp.Decode(&errBody); decodeErr != nil || errBody.Kind != wire.PermissionsDenied {
		return nil, NewUnexpectedErrorResponse(errBody.Kind)
	}

	restored, err := c.restoreToken(ctx)
	if err != nil || !restored {
		return nil, NewUnexpectedErrorResponse(wire.PermissionsDenied)
	}

	retryReq := req
	retryReq.RequestUUID = uuid.New()
	resp2, err := c.send(ctx, retryReq)
	if err != nil {
		return nil, err
	}
	if resp2.Type != expect {
		if resp2.Type == wire.ResponseError {
			var retryErrBody wire.ErrorBody
			_ = resp2.Decode(&retryErrBody)
			return nil, NewUnexpectedErrorResponse(retryErrBody.Kind)
		}
		return nil, NewUnexpectedResponse(resp2.Type)
	}
	return resp2, nil
}

// restoreToken issues a restore request carrying the current token and
// reports whether the backend considers it valid again. This call is
// never itself retried on PermissionsDenied.
func (c *Client) restoreToken(ctx context.Context) (bool, error) {
	req := wire.Request{
		RequestUUID: uuid.New(),
		Type:        wire.RequestRestore,
		Body: wire.RestoreBody{
			Extended:     map[string]string{"checkServer": c.token},
			NeedUserInfo: false,
		},
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return false, err
	}
	if resp.Type != wire.ResponseRestore {
		return false, nil
	}

	var body wire.RestoreResponseBody
	if err := resp.Decode(&body); err != nil {
		return false, err
	}
	return len(body.InvalidTokens) == 0, nil
}

func sendTyped[T any](ctx context.Context, c *Client, req wire.Request, expect wire.ResponseType) (*T, error) {
	resp, err := c.sendWithRestore(ctx, req, expect)
	if err != nil {
		return nil, err
	}
	var body T
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

// CheckServer validates that a player's session token matches the
// server id presented by the client.
func (c *Client) CheckServer(ctx context.Context, username, serverID string, needHardware, needProperties bool) (*wire.CheckServerResponseBody, error) {
	req := wire.Request{
		RequestUUID: uuid.New(),
		Type:        wire.RequestCheckServer,
		Body: wire.CheckServerBody{
			Username:       username,
			ServerID:       serverID,
			NeedHardware:   needHardware,
			NeedProperties: needProperties,
		},
	}
	return sendTyped[wire.CheckServerResponseBody](ctx, c, req, wire.ResponseCheckServer)
}

// GetProfileByUUID fetches the upstream profile record for a player id.
func (c *Client) GetProfileByUUID(ctx context.Context, id uuid.UUID) (*wire.ProfileResponseBody, error) {
	req := wire.Request{
		RequestUUID: uuid.New(),
		Type:        wire.RequestProfileByUUID,
		Body:        wire.ProfileByUUIDBody{UUID: id},
	}
	return sendTyped[wire.ProfileResponseBody](ctx, c, req, wire.ResponseProfileByUUID)
}

// GetProfileByUsername fetches the upstream profile record for a
// player name.
func (c *Client) GetProfileByUsername(ctx context.Context, username string) (*wire.ProfileResponseBody, error) {
	req := wire.Request{
		RequestUUID: uuid.New(),
		Type:        wire.RequestProfileByUsername,
		Body:        wire.ProfileByUsernameBody{Username: username},
	}
	return sendTyped[wire.ProfileResponseBody](ctx, c, req, wire.ResponseProfileByUsername)
}

// BatchProfilesByUsernames fetches upstream profile records for many
// player names in a single round trip. Unknown names come back nil.
func (c *Client) BatchProfilesByUsernames(ctx context.Context, usernames []string) (*wire.BatchProfileResponseBody, error) {
	list := make([]wire.UsernameEntry, len(usernames))
	for i, u := range usernames {
		list[i] = wire.UsernameEntry{Username: u}
	}
	req := wire.Request{
		RequestUUID: uuid.New(),
		Type:        wire.RequestBatchProfileByUsername,
		Body:        wire.BatchProfileByUsernameBody{List: list},
	}
	return sendTyped[wire.BatchProfileResponseBody](ctx, c, req, wire.ResponseBatchProfileByUsername)
}

// Shutdown delegates to the actor and blocks until it acknowledges or
// ctx is cancelled.
func (c *Client) Shutdown(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case c.actor.cmds <- shutdownCmd{ack: ack}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
