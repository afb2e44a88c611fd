package upstream

import (
	"errors"
	"fmt"

	"github.com/embergate/embergate/internal/wire"
)

// ErrResponseNotReceived means the per-call timeout elapsed before a
// reply was delivered to the waiter. It is also what a caller observes
// when the transport reconnects mid-call, since in-flight waiters are
// never replayed across a new socket.
var ErrResponseNotReceived = errors.New("response not received")

// UnexpectedResponseError means the reply's tag did not match what the
// caller expected for the request it sent. Kind is set when the reply
// was an error response, e.g. an unrecovered PermissionsDenied.
type UnexpectedResponseError struct {
	Variant wire.ResponseType
	Kind    wire.ErrorKind
}

func (e *UnexpectedResponseError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("unexpected response variant: %s (%s)", e.Variant, e.Kind)
	}
	return fmt.Sprintf("unexpected response variant: %s", e.Variant)
}

// NewUnexpectedResponse builds an UnexpectedResponseError for the given
// response type.
func NewUnexpectedResponse(variant wire.ResponseType) error {
	return &UnexpectedResponseError{Variant: variant}
}

// NewUnexpectedErrorResponse builds an UnexpectedResponseError for an
// error response carrying the given kind.
func NewUnexpectedErrorResponse(kind wire.ErrorKind) error {
	return &UnexpectedResponseError{Variant: wire.ResponseError, Kind: kind}
}
