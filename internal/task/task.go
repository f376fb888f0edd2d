// Package task manages the lifecycle of long-running goroutines: starting
// named loops, stopping them through context cancellation, and waiting for
// termination with panic protection.
package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fpgactl/go-katcp/logger"
)

// Func represents a function that performs a task within a goroutine managed by the Manager.
// It should return true to continue running the task, or false to stop the goroutine.
type Func func() bool

// CancelFunc represents a function that will be called when a goroutine managed by the Manager
// exits or is canceled. It can be used to perform cleanup actions or release resources
// associated with the goroutine.
type CancelFunc func()

// Manager manages the lifecycle of goroutines (tasks).
// It provides a structured way to start, stop, and wait for goroutines, ensuring proper
// cancellation and resource cleanup.
//
// The Manager uses a context.Context to manage the lifecycle of the goroutines. When the
// context is canceled, all running goroutines are signaled to stop. The Manager also uses
// a sync.WaitGroup to wait for all goroutines to terminate before returning from the Wait() method.
//
// Example Usage:
//
//	mgr := task.NewManager(ctx, logger)
//
//	// Start a goroutine
//	mgr.Start("myTask", func() bool {
//	    // ... task logic ...
//	    return true // Return true to continue running, false to stop
//	})
//
//	// ... other operations ...
//
//	mgr.Stop()
//	mgr.Wait()
type Manager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.RWMutex // protect ctx and cancel
	taskMu sync.RWMutex // protect task creation during Wait()
}

// NewManager creates a new Manager with the given context as the parent context and logger.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)
	return mgr
}

// getContext safely returns the current context
func (mgr *Manager) getContext() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start starts a new goroutine with the given name and task function.
//
// The taskFunc should return true to continue running, or false to stop the goroutine.
func (mgr *Manager) Start(name string, taskFunc Func) error {
	mgr.logger.Debug("Start task", "name", name)

	starter, err := mgr.newTaskStarter(name)
	if err != nil {
		return err
	}

	starter.startTask(func() {
		mgr.runTaskLoop(name, taskFunc)
	})

	return starter.waitForStart()
}

// StartConsumer starts a new goroutine that receives items from the given channel and
// passes each one to taskFunc.
//
// The taskFunc should return true to continue receiving items, or false to stop the
// goroutine. A panic in taskFunc is recovered and logged, and the consumer keeps
// receiving. The goroutine also stops when the channel is closed or the manager is
// stopped. The cancelFunc, if not nil, is called when the goroutine exits.
func StartConsumer[T any](mgr *Manager, name string, inputChan <-chan T, taskFunc func(item T) bool, cancelFunc CancelFunc) error {
	mgr.logger.Debug("StartConsumer task", "name", name)

	if inputChan == nil {
		return fmt.Errorf("input channel is nil")
	}

	starter, err := mgr.newTaskStarter(name)
	if err != nil {
		return err
	}

	starter.startTask(func() {
		if cancelFunc != nil {
			defer cancelFunc()
		}

		for {
			ctx := mgr.getContext()
			select {
			case <-ctx.Done():
				return
			case item, ok := <-inputChan:
				if !ok {
					mgr.logger.Debug("input channel closed", "name", name)
					return
				}

				// call task function with panic protection; a recovered
				// panic does not stop the consumer, only an explicit
				// false return does
				stop := false
				mgr.callWithRecover(name, func() {
					stop = !taskFunc(item)
				})
				if stop {
					return
				}
			}
		}
	})

	return starter.waitForStart()
}

// callWithRecover calls a function with panic protection
func (mgr *Manager) callWithRecover(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
		}
	}()

	fn()
}

// callWithRecoverBool calls a function that returns bool with panic protection
func (mgr *Manager) callWithRecoverBool(name string, fn func() bool) bool {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
		}
	}()

	return fn()
}

// Stop signals all running goroutines.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait waits for all goroutines to terminate.
func (mgr *Manager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	// wait all tasks be terminated
	mgr.wg.Wait()

	// recreate context with lock
	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// TaskCount returns the number of currently running goroutines.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

// taskStarter encapsulates common startup logic
type taskStarter struct {
	mgr     *Manager
	name    string
	started chan error
}

func (mgr *Manager) newTaskStarter(name string) (*taskStarter, error) {
	ctx := mgr.getContext()

	// check if already cancelled
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("task manager already stopped")
	default:
	}

	return &taskStarter{
		mgr:     mgr,
		name:    name,
		started: make(chan error, 1),
	}, nil
}

// startTask runs the common startup sequence for all tasks
func (s *taskStarter) startTask(taskBody func()) {
	s.mgr.taskMu.RLock()
	defer s.mgr.taskMu.RUnlock()

	s.mgr.wg.Add(1)

	go func() {
		defer s.mgr.wg.Done()

		// signal startup status
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.started <- fmt.Errorf("panic during startup: %v", r)
				}
			}()

			s.mgr.count.Add(1)
			s.started <- nil
		}()

		// setup cleanup
		defer func() {
			s.mgr.count.Add(-1)
			s.mgr.logger.Debug(fmt.Sprintf("%s task terminated", s.name), "task_count", s.mgr.TaskCount())
		}()

		// run the actual task body
		taskBody()
	}()
}

// waitForStart waits for the task to start with timeout
func (s *taskStarter) waitForStart() error {
	ctx := s.mgr.getContext()

	select {
	case err := <-s.started:
		if err != nil {
			s.mgr.wg.Done() // compensate for failed start
			return fmt.Errorf("failed to start %s: %w", s.name, err)
		}

		return nil

	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for %s to start", s.name)

	case <-ctx.Done():
		return fmt.Errorf("context cancelled while starting %s", s.name)
	}
}

// runTaskLoop runs a task function in a loop with context cancellation.
// A panic in the task function stops the loop.
func (mgr *Manager) runTaskLoop(name string, taskFunc Func) {
	for {
		ctx := mgr.getContext()
		select {
		case <-ctx.Done():
			return
		default:
			if !mgr.callWithRecoverBool(name, taskFunc) {
				return
			}
		}
	}
}
