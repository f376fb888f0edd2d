package katcp

import (
	"errors"
	"time"

	"github.com/fpgactl/go-katcp/logger"
)

const (
	defaultMaxPending        = 10
	defaultRequestTimeout    = 10 * time.Second
	defaultDispatchQueueSize = 10
	defaultDispatchTimeout   = time.Second
)

// ClientConfig represents the configuration parameters for a Client.
type ClientConfig struct {
	// maxPending bounds the pending-request table. When the table is full,
	// submitting a new non-blocking request evicts the oldest pending one.
	// Defaults to 10.
	maxPending int

	// requestTimeout defines the reply timeout for blocking requests.
	// Defaults to 10 seconds.
	requestTimeout time.Duration

	// dispatchQueueSize defines the size of the callback dispatch queue,
	// which buffers reply and inform callback invocations before the
	// dispatcher goroutine runs them.
	//
	// This option allows you to control the backpressure level for pending
	// callback invocations. A larger queue size can accommodate bursts of
	// informs but might consume more memory.
	//
	// Defaults to 10.
	dispatchQueueSize int

	// dispatchTimeout defines how long a delivery waits for space in the
	// dispatch queue before the callback invocation is dropped.
	// Defaults to 1 second.
	dispatchTimeout time.Duration

	// logger provides a logger instance for logging client events and errors.
	logger logger.Logger
}

// newClientConfig creates a ClientConfig with default values and applies the
// provided options.
func newClientConfig(opts ...Option) (*ClientConfig, error) {
	cfg := &ClientConfig{
		maxPending:        defaultMaxPending,
		requestTimeout:    defaultRequestTimeout,
		dispatchQueueSize: defaultDispatchQueueSize,
		dispatchTimeout:   defaultDispatchTimeout,
		logger:            logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// MaxPending returns the capacity of the pending-request table.
func (cfg *ClientConfig) MaxPending() int { return cfg.maxPending }

// RequestTimeout returns the reply timeout for blocking requests.
func (cfg *ClientConfig) RequestTimeout() time.Duration { return cfg.requestTimeout }

// Option represents a functional option for configuring a Client.
type Option interface {
	apply(*ClientConfig) error
}

type optFunc struct {
	applyFunc func(*ClientConfig) error
}

func (o *optFunc) apply(cfg *ClientConfig) error { return o.applyFunc(cfg) }

func newOptFunc(f func(*ClientConfig) error) *optFunc {
	return &optFunc{applyFunc: f}
}

// WithMaxPending sets the capacity of the pending-request table.
// It returns an Option that validates the capacity and updates the configuration.
// An error is returned if the capacity is out of the valid range (1-1000) or if the configuration is nil.
//
// The default value is 10.
func WithMaxPending(n int) Option {
	return newOptFunc(func(cfg *ClientConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if n < 1 || n > 1000 {
			return errors.New("max pending out of range [1, 1000]")
		}
		cfg.maxPending = n

		return nil
	})
}

// WithRequestTimeout sets the reply timeout for blocking requests.
// It returns an Option that validates the timeout value and updates the configuration.
// An error is returned if the timeout is outside the valid range (0.1-120 seconds) or if the configuration is nil.
//
// The default value is 10 seconds.
func WithRequestTimeout(val time.Duration) Option {
	return newOptFunc(func(cfg *ClientConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if val < 100*time.Millisecond || val > 120*time.Second {
			return errors.New("request timeout out of range [0.1, 120]")
		}
		cfg.requestTimeout = val

		return nil
	})
}

// WithDispatchQueueSize sets the size of the callback dispatch queue, which
// buffers reply and inform callback invocations before the dispatcher
// goroutine runs them.
//
// The queue size must be within the range of 1 to 1000.
// An error is returned if the queue size is invalid or if the provided ClientConfig is nil.
//
// The default value is 10.
func WithDispatchQueueSize(size int) Option {
	return newOptFunc(func(cfg *ClientConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}
		if size < 1 || size > 1000 {
			return errors.New("the dispatch queue size out of range [1, 1000]")
		}

		cfg.dispatchQueueSize = size

		return nil
	})
}

// WithDispatchTimeout sets how long a delivery waits for space in the
// dispatch queue before the callback invocation is dropped.
// It returns an Option that validates the timeout value and updates the configuration.
// An error is returned if the timeout is outside the valid range (0.01-30 seconds) or if the configuration is nil.
//
// The default value is 1 second.
func WithDispatchTimeout(val time.Duration) Option {
	return newOptFunc(func(cfg *ClientConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if val < 10*time.Millisecond || val > 30*time.Second {
			return errors.New("dispatch timeout out of range [0.01, 30]")
		}
		cfg.dispatchTimeout = val

		return nil
	})
}

// WithLogger sets the logger for the Client.
// It returns an Option that updates the configuration with the provided logger.
// An error is returned if the configuration is nil or the logger is nil.
//
// The default logger is the global logger instance.
func WithLogger(l logger.Logger) Option {
	return newOptFunc(func(cfg *ClientConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}
		if l == nil {
			return errors.New("logger is nil")
		}

		cfg.logger = l

		return nil
	})
}
