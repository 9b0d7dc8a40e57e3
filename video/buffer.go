package video

import (
	"sync"
	"time"

	"camdvr/video/source"
)

// Buffer is a time-windowed FIFO of recent frames used to reconstruct
// pre-event coverage. Eviction is by age relative to the newest pushed
// frame's timestamp, not by count, since frame rate varies per camera and
// over time.
type Buffer struct {
	MaxAge time.Duration

	l sync.Mutex
	// frames is the retained history, oldest first.
	frames []source.Frame
}

func NewBuffer(maxAge time.Duration) *Buffer {
	return &Buffer{MaxAge: maxAge}
}

// Push appends a frame and drops everything older than the frame's timestamp
// minus MaxAge. Only the owning supervisor calls Push.
func (b *Buffer) Push(f source.Frame) {
	b.l.Lock()
	defer b.l.Unlock()

	b.frames = append(b.frames, f)

	cut := 0
	for cut < len(b.frames) && f.Time.Sub(b.frames[cut].Time) >= b.MaxAge {
		cut++
	}
	if cut > 0 {
		n := copy(b.frames, b.frames[cut:])
		for i := n; i < len(b.frames); i++ {
			b.frames[i] = source.Frame{}
		}
		b.frames = b.frames[:n]
	}
}

// Snapshot returns an ordered, independent copy of the current contents. An
// empty buffer yields an empty slice; callers treat that as "no pre-event
// coverage available", not an error.
func (b *Buffer) Snapshot() []source.Frame {
	b.l.Lock()
	defer b.l.Unlock()
	return append([]source.Frame(nil), b.frames...)
}

func (b *Buffer) Len() int {
	b.l.Lock()
	defer b.l.Unlock()
	return len(b.frames)
}
