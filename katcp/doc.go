// Package katcp provides a client for the Karoo Array Telescope Control
// Protocol (KATCP), a line-based request/reply/inform protocol spoken by
// FPGA boards and other remote instrumentation devices.
//
// The package focuses on request lifecycle management on top of an existing
// protocol connection: correlating non-blocking requests with their replies
// and informs, bounding the number of in-flight requests, and offering a
// blocking request façade for callers that want a simple round trip.
//
// # Message Model
//
// A KATCP exchange consists of three message categories:
//
//   - Request ("?name"): sent by the client to invoke a device operation.
//   - Inform ("#name"): zero or more asynchronous notifications related to
//     a request, sent by the device before the reply.
//   - Reply ("!name"): the single terminal response; its first argument
//     carries the status code ("ok", "fail" or "invalid").
//
// The [Message] type models all three. Wire framing, escaping, and the
// message grammar are the responsibility of the underlying connection, not
// of this package.
//
// # Transports
//
// The [Transport] interface is the boundary to the external protocol client
// that owns the connection: it submits requests, routes replies and informs
// back by correlation id, and performs blocking round trips. This package
// ships no network transport; the katcptest package provides an in-process
// simulated device for testing.
//
// # Non-Blocking Requests
//
// [Client.RequestAsync] registers a request in a bounded pending-request
// table, assigns it a correlation id, and returns immediately. Replies and
// informs delivered by the transport are recorded on the table entry and
// forwarded to the caller's handlers on a single dispatcher goroutine. When
// the table is full, the oldest pending request is evicted to make room.
// Results can also be polled with [Client.GetResult] and drained with
// [Client.PopResult].
//
// # Blocking Requests
//
// [Client.Request] performs a full round trip and returns the reply together
// with the informs that preceded it. A reply with a non-ok status is
// surfaced as a [RequestFailedError] carrying both the request and the
// reply.
package katcp
