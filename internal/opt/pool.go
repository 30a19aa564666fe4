package opt

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bjorn1004/route-finder/internal/model"
	"github.com/bjorn1004/route-finder/internal/schedule"
)

type PoolConfig struct {
	RunID   string
	Workers int
	// Seed of worker i is Seed+i. Zero picks a time based seed.
	Seed   int64
	Params Params
	Logger *slog.Logger
	Sink   Sink
	// StatusBuffer is the capacity of every status channel.
	StatusBuffer int
}

// Pool runs independent workers on the same dataset. Each worker has its own
// control and status channels; Status merges the latter for one observer.
type Pool struct {
	log      *slog.Logger
	workers  []*Worker
	controls []Control
	statuses []chan Status
	merged   chan Status

	wg      sync.WaitGroup
	mu      sync.Mutex
	errs    []error
	stopped atomic.Bool
}

func NewPool(ds *model.Dataset, cfg PoolConfig) *Pool {
	n := max(cfg.Workers, 1)
	buf := max(cfg.StatusBuffer, 1)
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	p := &Pool{log: log, merged: make(chan Status, buf*n)}
	for i := range n {
		ctl := NewControl()
		st := make(chan Status, buf)
		p.controls = append(p.controls, ctl)
		p.statuses = append(p.statuses, st)
		p.workers = append(p.workers, NewWorker(ds, WorkerConfig{
			RunID:   cfg.RunID,
			ID:      i,
			Seed:    seed + int64(i),
			Params:  cfg.Params,
			Logger:  log,
			Sink:    cfg.Sink,
			Status:  st,
			Control: ctl,
		}))
	}
	return p
}

// Start launches every worker and the status fan-in. It must be called once.
func (p *Pool) Start(ctx context.Context) {
	var fan sync.WaitGroup
	for i, w := range p.workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			err := w.Run(ctx)
			close(p.statuses[i])
			if errors.Is(err, ErrStopped) {
				p.stopped.Store(true)
			} else if err != nil {
				p.mu.Lock()
				p.errs = append(p.errs, err)
				p.mu.Unlock()
			}
		}()
		fan.Add(1)
		go func() {
			defer fan.Done()
			for st := range p.statuses[i] {
				select {
				case p.merged <- st:
				default:
				}
			}
		}()
	}
	go func() {
		fan.Wait()
		close(p.merged)
	}()
}

// Status yields snapshots of all workers. It is closed once every worker has exited.
func (p *Pool) Status() <-chan Status { return p.merged }

func (p *Pool) Size() int { return len(p.workers) }

func (p *Pool) Worker(i int) *Worker { return p.workers[i] }

// TogglePause pauses or resumes worker i.
func (p *Pool) TogglePause(i int) bool {
	if i < 0 || i >= len(p.controls) {
		return false
	}
	return p.controls[i].TogglePause()
}

func (p *Pool) TogglePauseAll() {
	for _, c := range p.controls {
		c.TogglePause()
	}
}

// Stop asks worker i to finish.
func (p *Pool) Stop(i int) bool {
	if i < 0 || i >= len(p.controls) {
		return false
	}
	p.controls[i].RequestStop()
	return true
}

func (p *Pool) StopAll() {
	for _, c := range p.controls {
		c.RequestStop()
	}
}

// Wait blocks until all workers exit and joins their failures. Stopped
// workers are not failures.
func (p *Pool) Wait() error {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

// Stopped reports whether any worker ended on a stop request or cancellation
// instead of finishing its rounds.
func (p *Pool) Stopped() bool { return p.stopped.Load() }

// Best returns the lowest scoring kept solution across workers and the
// worker that found it, or nil and -1 when none has finished an anneal.
func (p *Pool) Best() (*schedule.Solution, int) {
	var best *schedule.Solution
	id := -1
	for _, w := range p.workers {
		if s := w.Best(); s != nil && (best == nil || s.Score < best.Score) {
			best, id = s, w.ID
		}
	}
	return best, id
}
