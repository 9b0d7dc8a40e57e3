package source

import (
	"context"
	"time"
)

// Frame is a single decoded image. Data is packed BGR24 (Width*Height*3
// bytes) and is treated as immutable once produced, so frames may be shared
// between the lookback buffer and an active sink without copying.
type Frame struct {
	Time   time.Time
	Data   []byte
	Width  int
	Height int
}

// Stream delivers frames from one open camera connection. Read blocks until
// a frame is available and returns an error (io.EOF included) when the
// stream ends or fails; the caller decides whether to reconnect.
type Stream interface {
	Read() (Frame, error)
	Close() error
}

// Source opens streams to a single camera.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}
