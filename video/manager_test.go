package video

import (
	"testing"
	"time"
)

func TestManagerRegistrationAndRouting(t *testing.T) {
	st := newTestStore(t)
	pool := NewPool(1, 8)
	m := NewManager(st, &fakeProducer{}, pool)

	src := &scriptedSource{}
	if _, err := m.Add(SupervisorOptions{Camera: "front", FPS: 10, SegmentDuration: time.Minute, Lookback: time.Second, PostEvent: time.Second}, src); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.Add(SupervisorOptions{Camera: "back", FPS: 10, SegmentDuration: time.Minute, Lookback: time.Second, PostEvent: time.Second}, src); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.Add(SupervisorOptions{Camera: "front"}, src); err == nil {
		t.Error("duplicate camera registration should fail")
	}

	if err := m.TriggerEvent("nosuch", time.Now()); err == nil {
		t.Error("trigger for unknown camera should fail")
	}
	if err := m.TriggerEvent("front", testBase); err != nil {
		t.Errorf("trigger: %v", err)
	}

	status := m.Status()
	if len(status) != 2 {
		t.Fatalf("expected 2 cameras in status, got %d", len(status))
	}
	if status[0].ID != "back" || status[1].ID != "front" {
		t.Errorf("status not sorted by id: %v", status)
	}
	if !status[1].EventActive {
		t.Error("front camera should report an active event window")
	}

	pool.Close()
}
