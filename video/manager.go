package video

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"camdvr/storage"
	"camdvr/video/sink"
	"camdvr/video/source"
)

// Manager owns one supervisor per camera and routes external event triggers
// to them. Each supervisor runs in its own goroutine so a camera failure
// never affects its siblings.
type Manager struct {
	store    *storage.Store
	producer sink.Producer
	pool     *Pool

	l           sync.Mutex
	supervisors map[string]*Supervisor

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(store *storage.Store, producer sink.Producer, pool *Pool) *Manager {
	return &Manager{
		store:       store,
		producer:    producer,
		pool:        pool,
		supervisors: make(map[string]*Supervisor),
	}
}

// Add registers a camera. Must be called before Start.
func (m *Manager) Add(opts SupervisorOptions, src source.Source) (*Supervisor, error) {
	m.l.Lock()
	defer m.l.Unlock()
	if _, ok := m.supervisors[opts.Camera]; ok {
		return nil, fmt.Errorf("camera %q already registered", opts.Camera)
	}
	s := NewSupervisor(opts, src, m.store, m.producer, m.pool)
	m.supervisors[opts.Camera] = s
	return s, nil
}

// Start launches all supervisors.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.l.Lock()
	defer m.l.Unlock()
	for id, s := range m.supervisors {
		m.wg.Add(1)
		go func(id string, s *Supervisor) {
			defer m.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithField("camera", id).Errorf("Supervisor panic: %v", r)
				}
			}()
			s.Run(ctx)
		}(id, s)
	}
	log.Infof("Started %d camera supervisor(s)", len(m.supervisors))
}

// TriggerEvent routes an external event to the camera's supervisor.
func (m *Manager) TriggerEvent(camera string, now time.Time) error {
	m.l.Lock()
	s, ok := m.supervisors[camera]
	m.l.Unlock()
	if !ok {
		return fmt.Errorf("unknown camera %q", camera)
	}
	s.TriggerEvent(now)
	return nil
}

// CameraStatus is one camera's entry on the status surface.
type CameraStatus struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	EventActive bool   `json:"event_active"`
}

// Status returns the active supervisors and their connection states, sorted
// by camera id.
func (m *Manager) Status() []CameraStatus {
	m.l.Lock()
	defer m.l.Unlock()
	out := make([]CameraStatus, 0, len(m.supervisors))
	for id, s := range m.supervisors {
		out = append(out, CameraStatus{
			ID:          id,
			State:       s.State().String(),
			EventActive: s.Window().Active(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// poolDrainTimeout bounds the final pool drain in Stop. Supervisors drain
// their own work first, so this only fires when a job is truly wedged.
const poolDrainTimeout = 15 * time.Second

// Stop cancels all supervisors, waits for them to drain their outstanding
// writes, then shuts down the shared worker pool.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	if !m.pool.CloseTimeout(poolDrainTimeout) {
		log.Warn("Worker pool did not drain within the shutdown grace period")
	}
	log.Info("All camera supervisors stopped")
}
