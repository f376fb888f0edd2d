package pool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerPool(t *testing.T) {
	assert := assert.New(t)

	t.Run("Get and Expire", func(t *testing.T) {
		timer := GetTimer(20 * time.Millisecond)
		assert.NotNil(timer)

		begin := time.Now()
		<-timer.C
		assert.GreaterOrEqual(time.Since(begin), 15*time.Millisecond)

		PutTimer(timer)
	})

	t.Run("Reuse After Unread Expiry", func(t *testing.T) {
		timer := GetTimer(10 * time.Millisecond)
		time.Sleep(30 * time.Millisecond) // expire with the tick unread
		PutTimer(timer)

		// A reused timer must not deliver the previous cycle's tick.
		timer = GetTimer(200 * time.Millisecond)
		select {
		case <-timer.C:
			t.Error("stale tick delivered from reused timer")
		case <-time.After(100 * time.Millisecond):
		}
		PutTimer(timer)
	})

	t.Run("Reuse While Active", func(t *testing.T) {
		timer := GetTimer(time.Second)
		PutTimer(timer) // pooled before firing

		timer = GetTimer(50 * time.Millisecond)
		begin := time.Now()
		select {
		case <-timer.C:
			// Fires on the new duration, not the original one.
			assert.Less(time.Since(begin), 500*time.Millisecond)
		case <-time.After(2 * time.Second):
			t.Error("reset timer never fired")
		}
		PutTimer(timer)
	})

	t.Run("Concurrent Get and Put", func(t *testing.T) {
		var wg sync.WaitGroup
		for range 64 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				timer := GetTimer(5 * time.Millisecond)
				defer PutTimer(timer)
				<-timer.C
			}()
		}
		wg.Wait()
	})
}
