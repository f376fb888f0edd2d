package katcp

import (
	"context"
	"time"
)

// DeliveryFunc is invoked by a Transport to deliver a reply or inform
// message for the request identified by correlationID.
//
// Transports call DeliveryFuncs from their own dispatch goroutine; the
// message is still owned by the transport and must be copied before being
// retained.
type DeliveryFunc func(msg *Message, correlationID string)

// Transport is the boundary to the external protocol client that owns the
// KATCP connection: framing, escaping, and connection management all live
// behind it.
//
// Implementations must be safe for concurrent use. The katcptest package
// provides an in-process implementation backed by a simulated device.
type Transport interface {
	// SendRequest submits a request without waiting for its reply. The
	// request is tagged with correlationID, and the transport invokes
	// onReply and onInform with that id for every reply and inform it
	// routes back to the request.
	SendRequest(msg *Message, onReply DeliveryFunc, onInform DeliveryFunc, correlationID string) error

	// BlockingRequest sends a request and waits for its reply, returning
	// the reply and the informs received before it.
	//
	// It returns an error matching ErrRequestTimeout if no reply arrives
	// within timeout, and one matching ErrConnClosed if the connection is
	// lost during the wait.
	BlockingRequest(ctx context.Context, msg *Message, timeout time.Duration) (*Message, []*Message, error)

	// Host returns the identifier of the remote device, for diagnostics.
	Host() string
}
