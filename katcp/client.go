package katcp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/fpgactl/go-katcp/internal/pool"
	"github.com/fpgactl/go-katcp/internal/task"
	"github.com/fpgactl/go-katcp/logger"
)

// watchdogName is the verb devices answer to prove liveness.
const watchdogName = "watchdog"

// RequestHandle identifies a pending request submitted with RequestAsync.
type RequestHandle struct {
	// Host is the identifier of the device the request was sent to.
	Host string
	// Name is the request verb.
	Name string
	// ID is the correlation id assigned to the request.
	ID string
}

// MessageHandler processes a reply or inform message delivered for a pending
// request.
//
// Handlers run on the client's dispatcher goroutine and receive a private
// copy of the message. A handler that blocks stalls delivery for all pending
// requests, so long-running work should be handed off.
type MessageHandler func(msg *Message, req RequestHandle)

// dispatchItem carries one callback invocation to the dispatcher goroutine.
type dispatchItem struct {
	cb     MessageHandler
	msg    *Message
	handle RequestHandle
}

// Client correlates non-blocking requests with their replies and informs,
// and provides a blocking request façade, on top of a Transport.
//
// A Client tracks at most MaxPending non-blocking requests at a time; when
// the table is full, submitting another request evicts the oldest pending
// one. All methods are safe for concurrent use.
type Client struct {
	ctx       context.Context
	ctxCancel context.CancelFunc

	transport Transport
	cfg       *ClientConfig
	logger    logger.Logger

	table      *pendingTable
	dispatchCh chan dispatchItem
	taskMgr    *task.Manager
	closed     atomic.Bool

	metrics ClientMetrics
}

// NewClient creates a new Client with the given context, transport, and
// optional functional options.
//
// It starts the callback dispatcher goroutine; callers release it with
// [Client.Close]. See the documentation for Option and the various WithXXX
// functions for available configuration options.
func NewClient(ctx context.Context, transport Transport, opts ...Option) (*Client, error) {
	if transport == nil {
		return nil, ErrTransportNil
	}

	cfg, err := newClientConfig(opts...)
	if err != nil {
		return nil, err
	}

	c := &Client{
		transport:  transport,
		cfg:        cfg,
		logger:     cfg.logger,
		table:      newPendingTable(cfg.maxPending),
		dispatchCh: make(chan dispatchItem, cfg.dispatchQueueSize),
		taskMgr:    task.NewManager(ctx, cfg.logger),
	}
	c.ctx, c.ctxCancel = context.WithCancel(ctx)

	if err := task.StartConsumer(c.taskMgr, "dispatchCallbacks", c.dispatchCh, c.runCallback, nil); err != nil {
		c.ctxCancel()
		return nil, err
	}

	return c, nil
}

// Close stops the dispatcher goroutine and releases the client.
//
// Pending requests are discarded without their callbacks firing; subsequent
// operations fail with ErrClientClosed. Close is idempotent.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.ctxCancel()
	c.taskMgr.Stop()
	c.taskMgr.Wait()

	c.logger.Debug("katcp: client closed", "host", c.transport.Host())

	return nil
}

// GetLogger returns the logger instance used by the client.
func (c *Client) GetLogger() logger.Logger {
	return c.logger
}

// GetMetrics returns the metrics of the client.
func (c *Client) GetMetrics() *ClientMetrics {
	return &c.metrics
}

// PendingCount returns the number of non-blocking requests currently pending.
func (c *Client) PendingCount() int {
	return c.table.count()
}

// Host returns the identifier of the remote device.
func (c *Client) Host() string {
	return c.transport.Host()
}

// --- Blocking request façade ---

// Request sends a request with the given name and arguments and waits for
// its reply.
//
// It returns the reply and the informs received before it. A reply carrying
// a non-ok status yields the reply together with a *RequestFailedError.
// Transport failures surface as errors matching ErrRequestTimeout (no reply
// within the configured request timeout) or ErrConnClosed (connection lost
// during the wait).
func (c *Client) Request(ctx context.Context, name string, args ...string) (*Message, []*Message, error) {
	if c.closed.Load() {
		return nil, nil, ErrClientClosed
	}

	msg := NewRequest(name, args...)
	c.metrics.incRequestSendCount()

	reply, informs, err := c.transport.BlockingRequest(ctx, msg, c.cfg.requestTimeout)
	if err != nil {
		if errors.Is(err, ErrRequestTimeout) {
			c.metrics.incRequestTimeoutCount()
		}

		return nil, nil, fmt.Errorf("katcp: request %s: %w", name, err)
	}

	if reply == nil {
		return nil, nil, fmt.Errorf("katcp: request %s: transport returned no reply", name)
	}

	if !reply.OK() {
		c.metrics.incRequestFailCount()
		c.logger.Error("katcp: request failed",
			"request", msg.String(),
			"reply", reply.String())

		return reply, informs, &RequestFailedError{Name: name, Request: msg, Reply: reply}
	}

	return reply, informs, nil
}

// Ping tests device liveness with a watchdog request.
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.Request(ctx, watchdogName)
	return err
}

// --- Non-blocking requests ---

// RequestAsync submits a request with the given name and arguments without
// waiting for its reply.
//
// The request is registered in the pending-request table under a freshly
// allocated correlation id before it is handed to the transport, so a reply
// can never arrive ahead of its registration. If the table is full, the
// oldest pending request is evicted first; eviction is logged and counted
// but is not an error.
//
// Informs and the reply are recorded on the table entry and forwarded to
// onInform and onReply (either may be nil) on the dispatcher goroutine. The
// returned handle carries the correlation id for GetResult and PopResult.
func (c *Client) RequestAsync(name string, onInform, onReply MessageHandler, args ...string) (RequestHandle, error) {
	if c.closed.Load() {
		return RequestHandle{}, ErrClientClosed
	}

	entry, evicted := c.table.insert(c.transport.Host(), name, onInform, onReply)
	if evicted != nil {
		c.metrics.incEvictionCount()
		c.logger.Info("katcp: pending-request table full, evicted oldest request",
			"name", evicted.name, "id", evicted.id)
	}
	c.metrics.setPendingGauge(int64(c.table.count()))

	msg := NewRequest(name, args...)
	if err := c.transport.SendRequest(msg, c.deliverReply, c.deliverInform, entry.id); err != nil {
		c.table.popByID(entry.id)
		c.metrics.setPendingGauge(int64(c.table.count()))

		return RequestHandle{}, fmt.Errorf("katcp: send request %s: %w", name, err)
	}

	c.metrics.incRequestSendCount()

	return entry.handle(), nil
}

// GetResult returns the reply received so far (nil if none) and a snapshot
// of the informs accumulated for the pending request with the given id.
// The request stays pending.
//
// It fails with ErrUnknownCorrelation if the id is not pending: never
// submitted, already drained, or evicted.
func (c *Client) GetResult(id string) (*Message, []*Message, error) {
	return c.table.result(id)
}

// PopResult removes the pending request with the given id and returns its
// final reply (nil if none arrived) and informs.
//
// It fails with ErrUnknownCorrelation if the id is not pending.
func (c *Client) PopResult(id string) (*Message, []*Message, error) {
	reply, informs, err := c.table.popResult(id)
	if err != nil {
		return nil, nil, err
	}
	c.metrics.setPendingGauge(int64(c.table.count()))

	return reply, informs, nil
}

// --- Delivery path ---

// HandleReply records a reply for the pending request identified by
// correlationID and schedules its reply callback.
//
// The recorded copy is observable through GetResult as soon as HandleReply
// returns. A delivery for an unknown id fails with ErrUnknownCorrelation
// and mutates nothing.
//
// HandleReply is the correlation entry point used by the DeliveryFuncs that
// RequestAsync registers; it is exported for transports that route replies
// themselves.
func (c *Client) HandleReply(msg *Message, correlationID string) error {
	cb, handle, cp, err := c.table.recordReply(correlationID, msg)
	if err != nil {
		c.metrics.incUnknownCorrelationCount()
		return err
	}

	c.metrics.incReplyRecvCount()
	if !cp.OK() {
		c.metrics.incRequestFailCount()
	}

	c.enqueueCallback(cb, cp, handle)

	return nil
}

// HandleInform records an inform for the pending request identified by
// correlationID and schedules its inform callback.
//
// A delivery for an unknown id fails with ErrUnknownCorrelation and mutates
// nothing.
func (c *Client) HandleInform(msg *Message, correlationID string) error {
	cb, handle, cp, err := c.table.recordInform(correlationID, msg)
	if err != nil {
		c.metrics.incUnknownCorrelationCount()
		return err
	}

	c.metrics.incInformRecvCount()
	c.enqueueCallback(cb, cp, handle)

	return nil
}

// deliverReply is the DeliveryFunc registered for replies of non-blocking
// requests. Unknown correlation ids are a transport or lifecycle bug;
// they are logged and counted, never silently dropped.
func (c *Client) deliverReply(msg *Message, correlationID string) {
	if err := c.HandleReply(msg, correlationID); err != nil {
		c.logger.Error("katcp: reply delivery failed", "id", correlationID, "error", err)
	}
}

// deliverInform is the DeliveryFunc registered for informs of non-blocking
// requests.
func (c *Client) deliverInform(msg *Message, correlationID string) {
	if err := c.HandleInform(msg, correlationID); err != nil {
		c.logger.Error("katcp: inform delivery failed", "id", correlationID, "error", err)
	}
}

// enqueueCallback hands a callback invocation to the dispatcher goroutine.
//
// Entry state is already recorded at this point; only the user callback
// rides the queue. If the queue stays full past the dispatch timeout the
// invocation is dropped with a warning.
func (c *Client) enqueueCallback(cb MessageHandler, msg *Message, handle RequestHandle) {
	if cb == nil {
		return
	}

	timer := pool.GetTimer(c.cfg.dispatchTimeout)
	defer pool.PutTimer(timer)

	select {
	case <-c.ctx.Done():

	case <-timer.C:
		c.metrics.incCallbackDropCount()
		c.logger.Warn("katcp: dispatch queue full, dropping callback invocation",
			"name", handle.Name, "id", handle.ID)

	case c.dispatchCh <- dispatchItem{cb: cb, msg: msg, handle: handle}:
		// Successfully queued.
	}
}

// runCallback invokes one user callback on the dispatcher goroutine. A
// panicking callback is recovered by the task manager and does not stop
// the dispatcher.
func (c *Client) runCallback(item dispatchItem) bool {
	item.cb(item.msg, item.handle)
	return true
}
