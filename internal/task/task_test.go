package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fpgactl/go-katcp/logger"
)

func newMockLogger() *logger.MockLogger {
	mockLogger := logger.NewMockLogger()
	mockLogger.On("Debug", mock.Anything, mock.Anything).Return()
	mockLogger.On("Info", mock.Anything, mock.Anything).Return()
	mockLogger.On("Warn", mock.Anything, mock.Anything).Return()
	mockLogger.On("Error", mock.Anything, mock.Anything).Return()

	return mockLogger
}

func TestManager_Start(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := NewManager(ctx, newMockLogger())

	var runs atomic.Int32
	taskFunc := func() bool {
		runs.Add(1)
		time.Sleep(10 * time.Millisecond)
		return true
	}

	require.NoError(t, mgr.Start("testTask", taskFunc))

	// Allow some time for the goroutine to start
	time.Sleep(100 * time.Millisecond)

	// Verify that the task is running
	assert.Equal(t, 1, mgr.TaskCount())
	assert.Positive(t, runs.Load())

	// Cancel the context to stop the task
	cancel()

	// Allow some time for the goroutine to stop
	time.Sleep(100 * time.Millisecond)

	// Verify that the task has stopped
	assert.Equal(t, 0, mgr.TaskCount())
}

func TestManager_Start_StopsWhenFuncReturnsFalse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := NewManager(ctx, newMockLogger())

	require.NoError(t, mgr.Start("oneShot", func() bool { return false }))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, mgr.TaskCount())
}

func TestManager_Start_PanicStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := NewManager(ctx, newMockLogger())

	var runs atomic.Int32
	require.NoError(t, mgr.Start("panickyLoop", func() bool {
		runs.Add(1)
		panic("boom")
	}))

	// The panic is recovered but the loop does not run again.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, mgr.TaskCount())
	assert.Equal(t, int32(1), runs.Load())
}

func TestManager_StartConsumer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := NewManager(ctx, newMockLogger())

	inputChan := make(chan int, 4)
	received := make(chan int, 4)
	canceled := make(chan struct{})

	taskFunc := func(item int) bool {
		received <- item
		return true
	}
	cancelFunc := func() { close(canceled) }

	require.NoError(t, StartConsumer(mgr, "testConsumer", inputChan, taskFunc, cancelFunc))

	// Allow some time for the goroutine to start
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, mgr.TaskCount())

	inputChan <- 42
	select {
	case item := <-received:
		assert.Equal(t, 42, item)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for the consumer to receive the item")
	}

	// Closing the input channel stops the consumer and runs cancelFunc.
	close(inputChan)

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for cancelFunc")
	}

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, mgr.TaskCount())
}

func TestManager_StartConsumer_NilChannel(t *testing.T) {
	mgr := NewManager(context.Background(), newMockLogger())

	var nilChan chan int
	err := StartConsumer(mgr, "nilConsumer", nilChan, func(int) bool { return true }, nil)
	require.Error(t, err)
}

func TestManager_StartConsumer_PanicRecovered(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := NewManager(ctx, newMockLogger())

	inputChan := make(chan int, 4)
	received := make(chan int, 4)

	require.NoError(t, StartConsumer(mgr, "panicky", inputChan, func(item int) bool {
		if item < 0 {
			panic("boom")
		}
		received <- item
		return item != 0
	}, nil))

	// A recovered panic does not stop the consumer; it keeps receiving.
	inputChan <- -1
	inputChan <- 7

	select {
	case item := <-received:
		assert.Equal(t, 7, item)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for the consumer to survive the panic")
	}
	assert.Equal(t, 1, mgr.TaskCount())

	// Returning false does stop it.
	inputChan <- 0

	select {
	case item := <-received:
		assert.Equal(t, 0, item)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for the stop item")
	}

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, mgr.TaskCount())
}

func TestManager_StopAndWait(t *testing.T) {
	mgr := NewManager(context.Background(), newMockLogger())

	require.NoError(t, mgr.Start("longTask", func() bool {
		time.Sleep(10 * time.Millisecond)
		return true
	}))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, mgr.TaskCount())

	mgr.Stop()
	mgr.Wait()
	assert.Equal(t, 0, mgr.TaskCount())

	// Wait recreates the context, so the manager is reusable.
	require.NoError(t, mgr.Start("secondTask", func() bool {
		time.Sleep(10 * time.Millisecond)
		return true
	}))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, mgr.TaskCount())

	mgr.Stop()
	mgr.Wait()
	assert.Equal(t, 0, mgr.TaskCount())
}

func TestManager_StartAfterStop(t *testing.T) {
	mgr := NewManager(context.Background(), newMockLogger())

	mgr.Stop()

	// Between Stop and Wait the manager context is canceled, so starting
	// a task fails.
	err := mgr.Start("lateTask", func() bool { return true })
	require.Error(t, err)

	mgr.Wait()

	require.NoError(t, mgr.Start("afterWait", func() bool { return false }))
	mgr.Stop()
	mgr.Wait()
}
