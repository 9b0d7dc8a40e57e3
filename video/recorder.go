package video

import (
	"path/filepath"
	"time"

	"github.com/pillash/mp4util"
	log "github.com/sirupsen/logrus"

	"camdvr/metrics"
	"camdvr/storage"
	"camdvr/video/sink"
	"camdvr/video/source"
)

type RecorderOptions struct {
	Camera          string
	FPS             int
	SegmentDuration time.Duration
}

// Protector answers whether a recording interval falls inside a protected
// event window at sidecar-commit time.
type Protector interface {
	Protected(from, to time.Time) bool
}

// Recorder writes the continuous recording as rotating fixed-duration
// segments. It is driven exclusively by its owning supervisor's frame loop,
// so no locking is needed; only finalization runs in the background.
type Recorder struct {
	opts      RecorderOptions
	store     *storage.Store
	producer  sink.Producer
	submit    func(func())
	protector Protector

	open   bool
	sink   sink.Sink
	path   string
	start  time.Time
	frames int
}

type openSegment struct {
	sink   sink.Sink
	path   string
	start  time.Time
	frames int
}

func NewRecorder(opts RecorderOptions, store *storage.Store, producer sink.Producer, submit func(func())) *Recorder {
	return &Recorder{
		opts:     opts,
		store:    store,
		producer: producer,
		submit:   submit,
	}
}

// SetProtector installs the event window consulted at commit time.
func (r *Recorder) SetProtector(p Protector) {
	r.protector = p
}

// Offer appends a frame to the continuous recording, rotating first if the
// open segment has reached its duration. The frame that triggers rotation
// becomes the first frame of the next segment, so no frame is lost at the
// boundary. A sink-creation failure drops only the offered frame; the next
// frame retries.
func (r *Recorder) Offer(f source.Frame, now time.Time) {
	if r.open && now.Sub(r.start) >= r.opts.SegmentDuration {
		r.rotate()
	}

	if !r.open {
		path, err := r.store.VideoPath(r.opts.Camera, storage.KindSegment, now)
		if err != nil {
			log.WithField("camera", r.opts.Camera).Errorf("Failed to create segment directory: %v", err)
			metrics.FramesDropped.WithLabelValues(r.opts.Camera).Inc()
			return
		}
		s, err := r.producer.New(path, f.Width, f.Height, r.opts.FPS)
		if err != nil {
			log.WithField("camera", r.opts.Camera).Errorf("Failed to open segment sink %v: %v", path, err)
			metrics.FramesDropped.WithLabelValues(r.opts.Camera).Inc()
			return
		}
		r.sink = s
		r.path = path
		r.start = now
		r.frames = 0
		r.open = true
		log.WithField("camera", r.opts.Camera).Debugf("Opened segment %v", path)
	}

	if err := r.sink.Put(f); err != nil {
		log.WithField("camera", r.opts.Camera).Errorf("Failed to write frame to %v: %v", r.path, err)
		metrics.FramesDropped.WithLabelValues(r.opts.Camera).Inc()
		return
	}
	r.frames++
}

// CloseCurrent finalizes any open segment. Called on disconnect and on
// shutdown.
func (r *Recorder) CloseCurrent() {
	if r.open {
		r.rotate()
	}
}

func (r *Recorder) rotate() {
	seg := openSegment{sink: r.sink, path: r.path, start: r.start, frames: r.frames}
	r.sink = nil
	r.open = false
	r.submit(func() { r.finalize(seg) })
}

func (r *Recorder) finalize(seg openSegment) {
	clog := log.WithField("camera", r.opts.Camera)
	if err := seg.sink.Close(); err != nil {
		// Without a clean flush the video stays sidecar-less, which the
		// sweeper treats as unreclaimable until an operator intervenes.
		clog.Errorf("Failed to close segment %v: %v", seg.path, err)
		return
	}

	duration := time.Duration(seg.frames) * time.Second / time.Duration(r.opts.FPS)
	end := seg.start.Add(duration)

	// Sanity-check the container against what we counted.
	if secs, err := mp4util.Duration(seg.path); err == nil {
		if diff := time.Duration(secs)*time.Second - duration; diff > time.Second || diff < -time.Second {
			clog.Warnf("Segment %v container duration %ds differs from counted %v", seg.path, secs, duration)
		}
	}

	m := storage.Meta{
		CameraID:  r.opts.Camera,
		Type:      storage.TypeContinuous,
		StartTime: storage.EpochSeconds(seg.start),
		EndTime:   storage.EpochSeconds(end),
		Duration:  duration.Seconds(),
		File:      filepath.Base(seg.path),
		Retain:    r.protector != nil && r.protector.Protected(seg.start, end),
	}
	if err := r.store.CommitSidecar(seg.path, m); err != nil {
		clog.Errorf("Failed to commit sidecar for %v, video kept orphaned: %v", seg.path, err)
		return
	}
	metrics.SegmentsClosed.WithLabelValues(r.opts.Camera).Inc()
	clog.Infof("Closed segment %v (%d frames, %v)", seg.path, seg.frames, duration)
}
