package irq

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRaiseIsAtomicWithCriticalSections(t *testing.T) {
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			Raise(func() { counter++ })
		}()
		go func() {
			defer wg.Done()
			s := Disable()
			counter++
			Restore(s)
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, counter)
}

func TestWaitReturnsAfterRaise(t *testing.T) {
	done := make(chan struct{})
	go func() {
		s := Disable()
		Wait()
		Restore(s)
		close(done)
	}()
	// keep raising until the waiter is parked and woken
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal("waiter was not woken")
		default:
			Raise(func() {})
			time.Sleep(time.Millisecond)
		}
	}
}
