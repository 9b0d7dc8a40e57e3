package video

import (
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"camdvr/metrics"
	"camdvr/storage"
	"camdvr/video/sink"
	"camdvr/video/source"
)

type WindowOptions struct {
	Camera    string
	FPS       int
	Lookback  time.Duration
	PostEvent time.Duration
}

// Window tracks the protected interval opened by external event triggers.
// Overlapping triggers extend a single window; only the first trigger
// exports a pre-event artifact. Trigger is safe to call concurrently with
// the frame loop's Tick.
type Window struct {
	opts     WindowOptions
	store    *storage.Store
	producer sink.Producer
	submit   func(func())
	buf      *Buffer

	// OnOpen, if set, is invoked once per window when it first opens.
	// Extensions of an already-active window do not re-fire it.
	OnOpen func(camera string, t time.Time)

	l           sync.Mutex
	active      bool
	triggerTime time.Time
	end         time.Time

	// Most recently deactivated protected interval. Segments finalizing
	// after deactivation but before the retain rewrite lands still see it.
	lastFrom, lastTo time.Time
}

func NewWindow(opts WindowOptions, store *storage.Store, producer sink.Producer, buf *Buffer, submit func(func())) *Window {
	return &Window{
		opts:     opts,
		store:    store,
		producer: producer,
		buf:      buf,
		submit:   submit,
	}
}

// Trigger opens a window spanning [now, now+post] or extends the active one
// to max(end, now+post). The first trigger snapshots the ring buffer
// synchronously and exports it in the background as a pre_event artifact
// covering [now−lookback, now].
func (w *Window) Trigger(now time.Time) {
	metrics.EventsTriggered.WithLabelValues(w.opts.Camera).Inc()

	w.l.Lock()
	if w.active {
		if e := now.Add(w.opts.PostEvent); e.After(w.end) {
			w.end = e
		}
		end := w.end
		w.l.Unlock()
		log.WithField("camera", w.opts.Camera).Infof("Event window extended to %v", end)
		return
	}
	w.active = true
	w.triggerTime = now
	w.end = now.Add(w.opts.PostEvent)
	frames := w.buf.Snapshot()
	w.l.Unlock()

	log.WithField("camera", w.opts.Camera).Infof("Event window opened at %v until %v", now, now.Add(w.opts.PostEvent))
	if w.OnOpen != nil {
		w.OnOpen(w.opts.Camera, now)
	}

	if len(frames) == 0 {
		log.WithField("camera", w.opts.Camera).Warn("No pre-event coverage available, skipping artifact")
		return
	}
	w.submit(func() { w.export(frames, now) })
}

// Tick deactivates the window once now has passed its end, then rewrites the
// sidecars of committed continuous segments overlapping the protected
// interval [trigger−lookback, end) in the background.
func (w *Window) Tick(now time.Time) {
	w.l.Lock()
	if !w.active || now.Before(w.end) {
		w.l.Unlock()
		return
	}
	w.active = false
	from := w.triggerTime.Add(-w.opts.Lookback)
	to := w.end
	w.lastFrom, w.lastTo = from, to
	w.l.Unlock()

	log.WithField("camera", w.opts.Camera).Infof("Event window closed, protecting [%v, %v)", from, to)
	w.submit(func() {
		n, err := w.store.MarkRetained(w.opts.Camera, from, to)
		if err != nil {
			log.WithField("camera", w.opts.Camera).Errorf("Retain rewrite incomplete: %v", err)
		}
		if n > 0 {
			log.WithField("camera", w.opts.Camera).Infof("Marked %d segment(s) retained", n)
		}
	})
}

// Active reports whether a window is currently open.
func (w *Window) Active() bool {
	w.l.Lock()
	defer w.l.Unlock()
	return w.active
}

// Protected implements Protector: reports whether [from, to) overlaps the
// active window's protected interval or the most recently closed one.
func (w *Window) Protected(from, to time.Time) bool {
	w.l.Lock()
	defer w.l.Unlock()
	if w.active {
		pFrom := w.triggerTime.Add(-w.opts.Lookback)
		if from.Before(w.end) && to.After(pFrom) {
			return true
		}
	}
	if !w.lastTo.IsZero() && from.Before(w.lastTo) && to.After(w.lastFrom) {
		return true
	}
	return false
}

func (w *Window) export(frames []source.Frame, trigger time.Time) {
	clog := log.WithField("camera", w.opts.Camera)

	path, err := w.store.VideoPath(w.opts.Camera, storage.KindPreEvent, trigger)
	if err != nil {
		clog.Errorf("Failed to create pre-event directory: %v", err)
		return
	}
	s, err := w.producer.New(path, frames[0].Width, frames[0].Height, w.opts.FPS)
	if err != nil {
		clog.Errorf("Failed to open pre-event sink %v: %v", path, err)
		return
	}
	written := 0
	for _, f := range frames {
		if err := s.Put(f); err != nil {
			clog.Errorf("Failed to write pre-event frame to %v: %v", path, err)
			break
		}
		written++
	}
	if err := s.Close(); err != nil {
		clog.Errorf("Failed to close pre-event artifact %v: %v", path, err)
		return
	}

	// A truncated export commits the coverage it actually has, not the full
	// lookback the buffer held.
	start := trigger.Add(-w.opts.Lookback)
	end := trigger
	duration := w.opts.Lookback
	if written < len(frames) {
		duration = time.Duration(written) * time.Second / time.Duration(w.opts.FPS)
		end = start.Add(duration)
		clog.Warnf("Pre-event artifact %v truncated to %d of %d frames", path, written, len(frames))
	}

	m := storage.Meta{
		CameraID:  w.opts.Camera,
		Type:      storage.TypePreEvent,
		StartTime: storage.EpochSeconds(start),
		EndTime:   storage.EpochSeconds(end),
		Duration:  duration.Seconds(),
		File:      filepath.Base(path),
		Retain:    true,
	}
	if err := w.store.CommitSidecar(path, m); err != nil {
		clog.Errorf("Failed to commit pre-event sidecar for %v, video kept orphaned: %v", path, err)
		return
	}
	metrics.PreEventExports.WithLabelValues(w.opts.Camera).Inc()
	clog.Infof("Saved pre-event artifact %v (%d frames)", path, len(frames))
}
