package video

import (
	"sync"
	"testing"
	"time"
)

func TestPoolRunsJobsInOrder(t *testing.T) {
	p := NewPool(1, 8)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		p.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	if !p.CloseTimeout(5 * time.Second) {
		t.Fatal("pool did not drain")
	}

	if len(got) != 5 {
		t.Fatalf("ran %d of 5 jobs", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("jobs ran out of order: %v", got)
		}
	}
}

func TestPoolCloseTimeoutWithWedgedJob(t *testing.T) {
	p := NewPool(1, 4)

	block := make(chan struct{})
	p.Submit(func() { <-block })

	start := time.Now()
	if p.CloseTimeout(50 * time.Millisecond) {
		t.Fatal("expected the drain to time out with a wedged job")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("drain did not return near the timeout, took %v", elapsed)
	}
	close(block)
}
