package video

import (
	"testing"
	"time"

	"camdvr/storage"
)

func newTestWindow(t *testing.T, buf *Buffer) (*Window, *fakeProducer, *storage.Store) {
	t.Helper()
	st := newTestStore(t)
	producer := &fakeProducer{}
	w := NewWindow(WindowOptions{
		Camera:    "cam1",
		FPS:       10,
		Lookback:  3 * time.Second,
		PostEvent: 60 * time.Second,
	}, st, producer, buf, inline)
	return w, producer, st
}

func fillBuffer(buf *Buffer, until time.Time, n int) {
	for i := n - 1; i >= 0; i-- {
		buf.Push(frameAt(until.Add(-time.Duration(i) * 100 * time.Millisecond)))
	}
}

func TestWindowTriggerExportsPreEvent(t *testing.T) {
	buf := NewBuffer(3 * time.Second)
	w, producer, st := newTestWindow(t, buf)

	t0 := testBase
	fillBuffer(buf, t0, 30)
	w.Trigger(t0)

	if !w.Active() {
		t.Fatal("window should be active after trigger")
	}
	pre := readSidecars(t, st, "pre_event")
	if len(pre) != 1 {
		t.Fatalf("expected 1 pre_event artifact, got %d", len(pre))
	}
	m := pre[0]
	if !m.Retain {
		t.Error("pre_event artifact must be retained")
	}
	if !m.Start().Equal(t0.Add(-3 * time.Second)) {
		t.Errorf("artifact start %v, want trigger-3s", m.Start())
	}
	if !m.End().Equal(t0) {
		t.Errorf("artifact end %v, want trigger time", m.End())
	}
	if m.Duration != 3.0 {
		t.Errorf("artifact duration %v, want 3", m.Duration)
	}
	if producer.sinkCount() != 1 || producer.sinks[0].frameCount() != 30 {
		t.Errorf("expected one sink holding the 30 buffered frames")
	}
}

func TestWindowCoalescesOverlappingTriggers(t *testing.T) {
	buf := NewBuffer(3 * time.Second)
	w, _, st := newTestWindow(t, buf)

	t0 := testBase
	fillBuffer(buf, t0, 10)

	w.Trigger(t0)
	w.Trigger(t0.Add(time.Second))

	// Exactly one artifact despite two triggers.
	if pre := readSidecars(t, st, "pre_event"); len(pre) != 1 {
		t.Fatalf("expected 1 pre_event artifact, got %d", len(pre))
	}

	// The window was extended to t0+61s: still active just before, closed at.
	w.Tick(t0.Add(60*time.Second + 500*time.Millisecond))
	if !w.Active() {
		t.Fatal("window closed before extended end")
	}
	w.Tick(t0.Add(61 * time.Second))
	if w.Active() {
		t.Fatal("window should close at extended end")
	}
}

func TestWindowTruncatedExportRecordsActualCoverage(t *testing.T) {
	buf := NewBuffer(3 * time.Second)
	w, producer, st := newTestWindow(t, buf)
	// The sink accepts 10 frames (1s at 10 fps) and then fails.
	producer.sinkFailAfter = 10

	t0 := testBase
	fillBuffer(buf, t0, 30)
	w.Trigger(t0)

	pre := readSidecars(t, st, "pre_event")
	if len(pre) != 1 {
		t.Fatalf("expected 1 pre_event artifact, got %d", len(pre))
	}
	m := pre[0]
	// The sidecar must not claim the full lookback it failed to write.
	if !m.Start().Equal(t0.Add(-3 * time.Second)) {
		t.Errorf("artifact start %v, want trigger-3s", m.Start())
	}
	if !m.End().Equal(t0.Add(-2 * time.Second)) {
		t.Errorf("artifact end %v, want start+1s", m.End())
	}
	if m.Duration != 1.0 {
		t.Errorf("artifact duration %v, want 1", m.Duration)
	}
	if !m.Retain {
		t.Error("truncated artifact is still retained")
	}
	if got := producer.sinks[0].frameCount(); got != 10 {
		t.Errorf("sink holds %d frames, want 10", got)
	}
}

func TestWindowEmptyBufferSkipsArtifact(t *testing.T) {
	buf := NewBuffer(3 * time.Second)
	w, producer, st := newTestWindow(t, buf)

	w.Trigger(testBase)

	// No coverage available is not an error: no artifact, window still opens.
	if !w.Active() {
		t.Fatal("window should open even without pre-event coverage")
	}
	if pre := readSidecars(t, st, "pre_event"); len(pre) != 0 {
		t.Errorf("expected no artifact, got %d", len(pre))
	}
	if producer.sinkCount() != 0 {
		t.Errorf("no sink should be created for an empty snapshot")
	}
}

func TestWindowDeactivationMarksOverlappingSegments(t *testing.T) {
	buf := NewBuffer(3 * time.Second)
	w, _, st := newTestWindow(t, buf)
	fillBuffer(buf, testBase, 5)

	t0 := testBase

	// A committed continuous segment overlapping the protected interval
	// [t0-3s, t0+60s) and one well before it.
	commitSegment(t, st, "cam1", t0.Add(-5*time.Second), t0.Add(5*time.Second))
	commitSegment(t, st, "cam1", t0.Add(-2*time.Hour), t0.Add(-2*time.Hour).Add(10*time.Second))

	w.Trigger(t0)
	w.Tick(t0.Add(61 * time.Second))

	segs := readSidecars(t, st, "continuous")
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	// Ordered by start: the old one first.
	if segs[0].Retain {
		t.Error("segment outside the window must not be retained")
	}
	if !segs[1].Retain {
		t.Error("overlapping segment must be retained after deactivation")
	}
}

func TestWindowProtectedInterval(t *testing.T) {
	buf := NewBuffer(3 * time.Second)
	w, _, _ := newTestWindow(t, buf)
	fillBuffer(buf, testBase, 5)

	t0 := testBase
	w.Trigger(t0)

	// Active window: [t0-3s, t0+60s).
	if !w.Protected(t0.Add(-10*time.Second), t0.Add(-2*time.Second)) {
		t.Error("interval overlapping lookback should be protected")
	}
	if w.Protected(t0.Add(-10*time.Second), t0.Add(-3*time.Second)) {
		t.Error("interval ending at the lookback edge should not be protected")
	}

	// After deactivation the last interval still answers, so segments
	// finalizing late are not missed.
	w.Tick(t0.Add(61 * time.Second))
	if !w.Protected(t0.Add(30*time.Second), t0.Add(35*time.Second)) {
		t.Error("recently closed window should still protect")
	}
	if w.Protected(t0.Add(2*time.Hour), t0.Add(3*time.Hour)) {
		t.Error("interval after the window should not be protected")
	}
}

// commitSegment writes a committed continuous sidecar the way the recorder
// would.
func commitSegment(t *testing.T, st *storage.Store, camera string, start, end time.Time) {
	t.Helper()
	path, err := st.VideoPath(camera, storage.KindSegment, start)
	if err != nil {
		t.Fatalf("segment path: %v", err)
	}
	m := storage.Meta{
		CameraID:  camera,
		Type:      storage.TypeContinuous,
		StartTime: storage.EpochSeconds(start),
		EndTime:   storage.EpochSeconds(end),
		Duration:  end.Sub(start).Seconds(),
		File:      "x.mp4",
		Retain:    false,
	}
	if err := st.CommitSidecar(path, m); err != nil {
		t.Fatalf("commit sidecar: %v", err)
	}
}
