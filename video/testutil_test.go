package video

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"camdvr/storage"
	"camdvr/video/sink"
	"camdvr/video/source"
)

// fakeSink records frames without touching ffmpeg.
type fakeSink struct {
	mu     sync.Mutex
	path   string
	frames []source.Frame
	closed bool

	putErr   error
	closeErr error
	// failAfter, when positive, fails every Put once that many frames have
	// been accepted.
	failAfter int
}

func (s *fakeSink) Put(f source.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	if s.failAfter > 0 && len(s.frames) >= s.failAfter {
		return errors.New("broken pipe")
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.closeErr
}

func (s *fakeSink) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// fakeProducer hands out fakeSinks and can simulate sink-creation failures
// (e.g. disk exhaustion).
type fakeProducer struct {
	mu       sync.Mutex
	sinks    []*fakeSink
	failNext int
	// sinkFailAfter configures failAfter on every sink handed out.
	sinkFailAfter int
}

func (p *fakeProducer) New(path string, width, height, fps int) (sink.Sink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext > 0 {
		p.failNext--
		return nil, errors.New("no space left on device")
	}
	s := &fakeSink{path: path, failAfter: p.sinkFailAfter}
	p.sinks = append(p.sinks, s)
	return s, nil
}

func (p *fakeProducer) sinkCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sinks)
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return s
}

// inline runs submitted jobs synchronously, keeping tests deterministic.
func inline(job func()) { job() }

func frameAt(ts time.Time) source.Frame {
	return source.Frame{Time: ts, Data: []byte{1, 2, 3}, Width: 2, Height: 2}
}

var testBase = time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC)

// readSidecars returns all committed sidecars of the given type under the
// store root, ordered by start time.
func readSidecars(t *testing.T, st *storage.Store, typ string) []storage.Meta {
	t.Helper()
	var out []storage.Meta
	err := filepath.WalkDir(st.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, storage.ExtMeta) {
			return nil
		}
		m, err := storage.ReadSidecar(path)
		if err != nil {
			return err
		}
		if m.Type == typ {
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk store: %v", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}
