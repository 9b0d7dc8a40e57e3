package video

import (
	"context"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"camdvr/metrics"
	"camdvr/storage"
	"camdvr/util"
	"camdvr/video/sink"
	"camdvr/video/source"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Streaming
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	default:
		return "disconnected"
	}
}

type SupervisorOptions struct {
	Camera          string
	FPS             int
	SegmentDuration time.Duration
	Lookback        time.Duration
	PostEvent       time.Duration

	// Backoff is the fixed wait between reconnect attempts.
	Backoff time.Duration
	// DrainTimeout bounds the shutdown wait for outstanding background
	// writes.
	DrainTimeout time.Duration
}

func (o *SupervisorOptions) applyDefaults() {
	if o.Backoff == 0 {
		o.Backoff = 5 * time.Second
	}
	if o.DrainTimeout == 0 {
		o.DrainTimeout = 10 * time.Second
	}
}

// Supervisor orchestrates one camera: it owns the source connection, the
// lookback buffer, the segment recorder and the event window, and isolates
// the camera's failures from its siblings.
type Supervisor struct {
	opts SupervisorOptions
	src  source.Source

	buf *Buffer
	rec *Recorder
	win *Window

	// pending tracks background writes submitted on this camera's behalf so
	// shutdown can wait for them instead of abandoning writes silently.
	pending sync.WaitGroup
	pool    *Pool

	stateL sync.Mutex
	state  State
}

func NewSupervisor(opts SupervisorOptions, src source.Source, store *storage.Store, producer sink.Producer, pool *Pool) *Supervisor {
	opts.applyDefaults()
	s := &Supervisor{
		opts: opts,
		src:  src,
		pool: pool,
		buf:  NewBuffer(opts.Lookback),
	}
	s.rec = NewRecorder(RecorderOptions{
		Camera:          opts.Camera,
		FPS:             opts.FPS,
		SegmentDuration: opts.SegmentDuration,
	}, store, producer, s.submit)
	s.win = NewWindow(WindowOptions{
		Camera:    opts.Camera,
		FPS:       opts.FPS,
		Lookback:  opts.Lookback,
		PostEvent: opts.PostEvent,
	}, store, producer, s.buf, s.submit)
	s.rec.SetProtector(s.win)
	return s
}

// Window exposes the event window for notification wiring.
func (s *Supervisor) Window() *Window { return s.win }

func (s *Supervisor) submit(job func()) {
	s.pending.Add(1)
	s.pool.Submit(func() {
		defer s.pending.Done()
		job()
	})
}

// TriggerEvent reports an externally detected event. Safe to call
// concurrently with the frame loop.
func (s *Supervisor) TriggerEvent(now time.Time) {
	s.win.Trigger(now)
}

func (s *Supervisor) State() State {
	s.stateL.Lock()
	defer s.stateL.Unlock()
	return s.state
}

func (s *Supervisor) setState(st State) {
	s.stateL.Lock()
	s.state = st
	s.stateL.Unlock()
	if st == Streaming {
		metrics.Connected.WithLabelValues(s.opts.Camera).Set(1)
	} else {
		metrics.Connected.WithLabelValues(s.opts.Camera).Set(0)
	}
}

// Run drives the connect/stream/reconnect loop until ctx is canceled, then
// closes any open segment and drains outstanding background writes within
// the grace period. An active event window is left as a partial artifact,
// never truncated.
func (s *Supervisor) Run(ctx context.Context) {
	clog := log.WithField("camera", s.opts.Camera)

	for ctx.Err() == nil {
		s.setState(Connecting)
		metrics.Reconnects.WithLabelValues(s.opts.Camera).Inc()

		stream, err := s.src.Open(ctx)
		if err != nil {
			s.setState(Disconnected)
			if ctx.Err() != nil {
				break
			}
			clog.Errorf("Failed to open stream: %v", err)
			s.wait(ctx)
			continue
		}

		s.setState(Streaming)
		clog.Info("Streaming")
		s.streamLoop(ctx, stream)
		stream.Close()
		s.setState(Disconnected)

		// Never carry an open segment across a connection gap.
		s.rec.CloseCurrent()

		if ctx.Err() == nil {
			s.wait(ctx)
		}
	}

	s.rec.CloseCurrent()
	if !util.WaitTimeout(&s.pending, s.opts.DrainTimeout) {
		clog.Warn("Shutdown grace period expired with background writes outstanding")
	}
	s.setState(Disconnected)
	clog.Info("Supervisor stopped")
}

func (s *Supervisor) streamLoop(ctx context.Context, stream source.Stream) {
	clog := log.WithField("camera", s.opts.Camera)
	for {
		// Cancellation is cooperative, checked between frame reads.
		select {
		case <-ctx.Done():
			return
		default:
		}

		f, err := stream.Read()
		if err != nil {
			if err == io.EOF {
				clog.Warn("Stream ended")
			} else {
				clog.Errorf("Read failure: %v", err)
			}
			return
		}
		metrics.FramesRead.WithLabelValues(s.opts.Camera).Inc()

		s.buf.Push(f)
		s.rec.Offer(f, f.Time)
		s.win.Tick(f.Time)
	}
}

// wait sleeps the fixed backoff, still ticking the event window on wall
// clock so a window can close while the camera is down.
func (s *Supervisor) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(s.opts.Backoff):
	}
	s.win.Tick(time.Now())
}
