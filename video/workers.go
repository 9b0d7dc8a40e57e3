package video

import (
	"sync"
	"time"

	"camdvr/util"
)

// Pool runs background storage work (segment finalization, pre-event export,
// retain rewrites) off the per-frame hot path. The queue is bounded; Submit
// blocks when the backlog is full rather than dropping work.
type Pool struct {
	jobs chan func()
	wg   sync.WaitGroup
}

func NewPool(workers, backlog int) *Pool {
	p := &Pool{jobs: make(chan func(), backlog)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

// Submit enqueues a job. Must not be called after Close; supervisors drain
// their outstanding work before the manager closes the pool.
func (p *Pool) Submit(job func()) {
	p.jobs <- job
}

// Close stops accepting work and waits for queued jobs to finish.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// CloseTimeout is Close with a bound on the wait. Returns false if the grace
// period expired with jobs still running; those workers are abandoned, not
// interrupted.
func (p *Pool) CloseTimeout(d time.Duration) bool {
	close(p.jobs)
	return util.WaitTimeout(&p.wg, d)
}
