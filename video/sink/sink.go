package sink

import (
	"camdvr/video/source"
)

// Sink is a destination for a stream of frames, such as a video file.
type Sink interface {
	// Put appends one frame. The frame's payload must not be modified after
	// the call.
	Put(f source.Frame) error

	// Close finalizes the sink and flushes the underlying file.
	Close() error
}

// Producer creates a sink for a new video file. Creation can fail (disk
// exhaustion, missing encoder); callers treat that as a transient per-frame
// condition, not a fatal error.
type Producer interface {
	New(path string, width, height, fps int) (Sink, error)
}
