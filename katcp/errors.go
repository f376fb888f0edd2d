package katcp

import (
	"errors"
	"fmt"
)

// Sentinel errors for the request correlator and pending-request table.
var (
	// ErrDuplicateRequest indicates that a request id is already present in
	// the pending-request table. Ids are never reused while an entry exists,
	// so this signals a programming error.
	ErrDuplicateRequest = errors.New("katcp: duplicate request id")

	// ErrUnknownCorrelation indicates that a delivery or result lookup named
	// a correlation id with no pending-request entry. The request was never
	// submitted, was already drained, or was evicted.
	ErrUnknownCorrelation = errors.New("katcp: unknown correlation id")

	// ErrEmptyTable indicates that the oldest pending request was requested
	// from an empty table.
	ErrEmptyTable = errors.New("katcp: pending-request table is empty")
)

// Sentinel errors surfaced from the transport boundary.
var (
	// ErrRequestTimeout indicates that no reply arrived within the request
	// timeout. Transports return it from blocking round trips; callers may
	// retry.
	ErrRequestTimeout = errors.New("katcp: request timeout")

	// ErrConnClosed indicates that the connection closed or was lost while
	// a request was in flight.
	ErrConnClosed = errors.New("katcp: connection closed")
)

var (
	// ErrClientClosed indicates an operation on a closed client.
	ErrClientClosed = errors.New("katcp: client closed")

	// ErrConfigNil indicates that a nil ClientConfig was provided to an option.
	ErrConfigNil = errors.New("katcp: client config is nil")

	// ErrTransportNil indicates that a nil Transport was provided.
	ErrTransportNil = errors.New("katcp: transport is nil")
)

// RequestFailedError indicates that the device answered a request with a
// non-ok status. It carries the request and reply messages for diagnostics.
type RequestFailedError struct {
	// Name is the request verb that failed.
	Name string
	// Request is the request message as sent.
	Request *Message
	// Reply is the reply message carrying the non-ok status.
	Reply *Message
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("katcp: request %s failed with status %q: %s", e.Name, e.Reply.Status(), e.Reply.String())
}
