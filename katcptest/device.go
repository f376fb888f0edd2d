package katcptest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/fpgactl/go-katcp/internal/pool"
	"github.com/fpgactl/go-katcp/internal/queue"
	"github.com/fpgactl/go-katcp/internal/task"
	"github.com/fpgactl/go-katcp/katcp"
	"github.com/fpgactl/go-katcp/logger"
)

// dispatchQueueSize bounds the number of requests queued at the device
// before senders block.
const dispatchQueueSize = 64

// Handler computes the device's response to one request: the reply and any
// informs that precede it.
//
// Handlers run on the device's dispatch goroutine and may mutate the
// device's virtual pin state.
type Handler func(dev *Device, req *katcp.Message) (*katcp.Message, []*katcp.Message)

// registration holds the delivery functions of one non-blocking request.
type registration struct {
	onReply  katcp.DeliveryFunc
	onInform katcp.DeliveryFunc
}

// roundTrip carries the outcome of one blocking request.
type roundTrip struct {
	reply   *katcp.Message
	informs []*katcp.Message
}

// Device is a simulated KATCP device implementing katcp.Transport.
//
// All request handling runs serialized on a single dispatch goroutine,
// emulating a device firmware loop: a delayed request delays everything
// queued behind it.
type Device struct {
	ctx       context.Context
	ctxCancel context.CancelFunc

	host   string
	logger logger.Logger

	handlers      *xsync.MapOf[string, Handler]
	registrations *xsync.MapOf[string, *registration]

	// Virtual pin state.
	digital *xsync.MapOf[int, int]
	analog  *xsync.MapOf[int, int]
	pwm     *xsync.MapOf[int, int]

	// Failure scripting, keyed by request verb.
	delays *xsync.MapOf[string, time.Duration]
	drops  *xsync.MapOf[string, bool]

	logMu  sync.Mutex
	reqLog *queue.FIFO[*katcp.Message]

	dispatchCh chan func()
	taskMgr    *task.Manager
	closed     atomic.Bool
}

var _ katcp.Transport = (*Device)(nil)

// NewDevice creates a simulated device identified by host and starts its
// dispatch goroutine. Callers release the device with Close.
func NewDevice(ctx context.Context, host string) (*Device, error) {
	d := &Device{
		host:          host,
		logger:        logger.With("device", host),
		handlers:      xsync.NewMapOf[string, Handler](),
		registrations: xsync.NewMapOf[string, *registration](),
		digital:       xsync.NewMapOf[int, int](),
		analog:        xsync.NewMapOf[int, int](),
		pwm:           xsync.NewMapOf[int, int](),
		delays:        xsync.NewMapOf[string, time.Duration](),
		drops:         xsync.NewMapOf[string, bool](),
		reqLog:        queue.NewFIFO[*katcp.Message](16),
		dispatchCh:    make(chan func(), dispatchQueueSize),
	}
	d.ctx, d.ctxCancel = context.WithCancel(ctx)
	d.taskMgr = task.NewManager(ctx, d.logger)

	d.Handle("watchdog", handleWatchdog)
	d.Handle("setd", handleSetDigital)
	d.Handle("getd", handleGetDigital)
	d.Handle("seta", handleSetAnalog)
	d.Handle("geta", handleGetAnalog)

	runFunc := func(fn func()) bool {
		fn()
		return true
	}
	if err := task.StartConsumer(d.taskMgr, "deviceDispatch", d.dispatchCh, runFunc, nil); err != nil {
		d.ctxCancel()
		return nil, err
	}

	return d, nil
}

// Close stops the dispatch goroutine.
//
// Subsequent sends fail with katcp.ErrConnClosed, and blocking requests
// still in flight are unblocked with the same error. Close is idempotent.
func (d *Device) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}

	d.ctxCancel()
	d.taskMgr.Stop()
	d.taskMgr.Wait()

	return nil
}

// Host returns the device identifier.
func (d *Device) Host() string { return d.host }

// --- katcp.Transport ---

// SendRequest queues a request for handling and returns immediately.
//
// The delivery functions are registered under correlationID and invoked on
// the dispatch goroutine once the request is handled. They stay registered
// afterwards, so tests can keep injecting messages for the same request
// with PushReply and PushInform.
func (d *Device) SendRequest(msg *katcp.Message, onReply katcp.DeliveryFunc, onInform katcp.DeliveryFunc, correlationID string) error {
	if d.closed.Load() {
		return katcp.ErrConnClosed
	}

	req := msg.Copy()
	d.logRequest(req)
	d.registrations.Store(correlationID, &registration{onReply: onReply, onInform: onInform})

	return d.enqueue(func() {
		reply, informs := d.process(req)
		if d.dropping(req.Name()) {
			return
		}

		for _, inf := range informs {
			if onInform != nil {
				onInform(inf, correlationID)
			}
		}
		if onReply != nil {
			onReply(reply, correlationID)
		}
	})
}

// BlockingRequest queues a request and waits for its reply.
//
// It fails with an error matching katcp.ErrRequestTimeout when the reply
// does not arrive within timeout (for instance because replies to the verb
// are being dropped), and with katcp.ErrConnClosed when the device is
// closed during the wait.
func (d *Device) BlockingRequest(ctx context.Context, msg *katcp.Message, timeout time.Duration) (*katcp.Message, []*katcp.Message, error) {
	if d.closed.Load() {
		return nil, nil, katcp.ErrConnClosed
	}

	req := msg.Copy()
	d.logRequest(req)

	resultCh := make(chan roundTrip, 1)
	err := d.enqueue(func() {
		reply, informs := d.process(req)
		if d.dropping(req.Name()) {
			return
		}
		resultCh <- roundTrip{reply: reply, informs: informs}
	})
	if err != nil {
		return nil, nil, err
	}

	timer := pool.GetTimer(timeout)
	defer pool.PutTimer(timer)

	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()

	case <-d.ctx.Done():
		return nil, nil, katcp.ErrConnClosed

	case <-timer.C:
		return nil, nil, fmt.Errorf("%w: no reply to %s within %s", katcp.ErrRequestTimeout, req.Name(), timeout)

	case rt := <-resultCh:
		return rt.reply, rt.informs, nil
	}
}

// --- Scripting and assertions ---

// Handle registers or replaces the handler for a request verb.
func (d *Device) Handle(name string, h Handler) {
	d.handlers.Store(name, h)
}

// SetReplyDelay makes the device wait for delay before handling requests
// with the given name. The wait happens on the dispatch goroutine, so it
// also delays every request queued behind it, like a busy device.
func (d *Device) SetReplyDelay(name string, delay time.Duration) {
	d.delays.Store(name, delay)
}

// SetDropReplies makes the device swallow the reply (and informs) of every
// request with the given name while still applying its side effects,
// simulating replies lost in transit.
func (d *Device) SetDropReplies(name string, drop bool) {
	d.drops.Store(name, drop)
}

// PushReply delivers a reply for a previously submitted non-blocking
// request, as if the device had produced it spontaneously. The delivery
// runs on the dispatch goroutine.
func (d *Device) PushReply(correlationID string, msg *katcp.Message) error {
	reg, ok := d.registrations.Load(correlationID)
	if !ok {
		return fmt.Errorf("katcptest: no request registered for correlation id %s", correlationID)
	}

	return d.enqueue(func() {
		if reg.onReply != nil {
			reg.onReply(msg.Copy(), correlationID)
		}
	})
}

// PushInform delivers an inform for a previously submitted non-blocking
// request. The delivery runs on the dispatch goroutine.
func (d *Device) PushInform(correlationID string, msg *katcp.Message) error {
	reg, ok := d.registrations.Load(correlationID)
	if !ok {
		return fmt.Errorf("katcptest: no request registered for correlation id %s", correlationID)
	}

	return d.enqueue(func() {
		if reg.onInform != nil {
			reg.onInform(msg.Copy(), correlationID)
		}
	})
}

// Requests returns a snapshot of every request received, in arrival order.
func (d *Device) Requests() []*katcp.Message {
	d.logMu.Lock()
	defer d.logMu.Unlock()

	return d.reqLog.Snapshot()
}

// ClearRequests discards the request log.
func (d *Device) ClearRequests() {
	d.logMu.Lock()
	defer d.logMu.Unlock()

	d.reqLog.Reset()
}

// DigitalPin returns the state of a virtual digital pin, 0 if never written.
func (d *Device) DigitalPin(pin int) int {
	v, _ := d.digital.Load(pin)
	return v
}

// SetDigitalPin sets a virtual digital pin directly, bypassing the setd verb.
func (d *Device) SetDigitalPin(pin, state int) {
	d.digital.Store(pin, state)
}

// AnalogPin returns the value the geta handler reports for an analog pin.
func (d *Device) AnalogPin(pin int) int {
	v, _ := d.analog.Load(pin)
	return v
}

// SetAnalogPin sets the value the geta handler reports for an analog pin.
func (d *Device) SetAnalogPin(pin, val int) {
	d.analog.Store(pin, val)
}

// PWMPin returns the PWM duty last written to a pin with the seta verb.
func (d *Device) PWMPin(pin int) int {
	v, _ := d.pwm.Load(pin)
	return v
}

// --- Dispatch ---

// enqueue hands fn to the dispatch goroutine, blocking while the queue is
// full. It fails with katcp.ErrConnClosed once the device is closed.
func (d *Device) enqueue(fn func()) error {
	select {
	case <-d.ctx.Done():
		return katcp.ErrConnClosed
	case d.dispatchCh <- fn:
		return nil
	}
}

// process runs the handler for one request on the dispatch goroutine,
// honoring any scripted delay first.
func (d *Device) process(req *katcp.Message) (*katcp.Message, []*katcp.Message) {
	if delay, ok := d.delays.Load(req.Name()); ok && delay > 0 {
		time.Sleep(delay)
	}

	d.logger.Debug("katcptest: handling request", "request", req.String())

	h, ok := d.handlers.Load(req.Name())
	if !ok {
		return invalidReply(req, "unknown request"), nil
	}

	return h(d, req)
}

func (d *Device) dropping(name string) bool {
	drop, _ := d.drops.Load(name)
	return drop
}

func (d *Device) logRequest(req *katcp.Message) {
	d.logMu.Lock()
	d.reqLog.Enqueue(req)
	d.logMu.Unlock()
}

// --- Built-in handlers ---

func okReply(req *katcp.Message, args ...string) *katcp.Message {
	return katcp.NewReply(req.Name(), append([]string{katcp.StatusOK}, args...)...)
}

func invalidReply(req *katcp.Message, reason string) *katcp.Message {
	return katcp.NewReply(req.Name(), katcp.StatusInvalid, reason)
}

func handleWatchdog(_ *Device, req *katcp.Message) (*katcp.Message, []*katcp.Message) {
	return okReply(req), nil
}

func handleSetDigital(dev *Device, req *katcp.Message) (*katcp.Message, []*katcp.Message) {
	args := req.Arguments()
	if len(args) != 2 {
		return invalidReply(req, "expected pin and state"), nil
	}

	pin, pinErr := strconv.Atoi(args[0])
	state, stateErr := strconv.Atoi(args[1])
	if pinErr != nil || stateErr != nil || (state != 0 && state != 1) {
		return invalidReply(req, "bad pin or state"), nil
	}

	dev.digital.Store(pin, state)

	return okReply(req), nil
}

func handleGetDigital(dev *Device, req *katcp.Message) (*katcp.Message, []*katcp.Message) {
	args := req.Arguments()
	if len(args) != 1 {
		return invalidReply(req, "expected pin"), nil
	}

	pin, err := strconv.Atoi(args[0])
	if err != nil {
		return invalidReply(req, "bad pin"), nil
	}

	return okReply(req, strconv.Itoa(dev.DigitalPin(pin))), nil
}

func handleSetAnalog(dev *Device, req *katcp.Message) (*katcp.Message, []*katcp.Message) {
	args := req.Arguments()
	if len(args) != 2 {
		return invalidReply(req, "expected pin and value"), nil
	}

	pin, pinErr := strconv.Atoi(args[0])
	val, valErr := strconv.Atoi(args[1])
	if pinErr != nil || valErr != nil || val < 0 || val > 255 {
		return invalidReply(req, "bad pin or value"), nil
	}

	dev.pwm.Store(pin, val)

	return okReply(req), nil
}

func handleGetAnalog(dev *Device, req *katcp.Message) (*katcp.Message, []*katcp.Message) {
	args := req.Arguments()
	if len(args) < 1 || len(args) > 2 {
		return invalidReply(req, "expected pin and optional smoothing"), nil
	}

	pin, err := strconv.Atoi(args[0])
	if err != nil {
		return invalidReply(req, "bad pin"), nil
	}

	if len(args) == 2 {
		smoothing, err := strconv.Atoi(args[1])
		if err != nil || smoothing < 1 || smoothing > 64 {
			return invalidReply(req, "bad smoothing"), nil
		}
	}

	return okReply(req, strconv.Itoa(dev.AnalogPin(pin))), nil
}
