package util

import (
	"sync"
	"time"
)

// WaitTimeout waits for the WaitGroup up to the given duration. Returns true
// if the group drained in time, false if the timeout expired with work still
// outstanding.
func WaitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
