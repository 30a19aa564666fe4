package opt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bjorn1004/route-finder/internal/metrics"
	"github.com/bjorn1004/route-finder/internal/model"
	"github.com/bjorn1004/route-finder/internal/moves"
	"github.com/bjorn1004/route-finder/internal/schedule"
)

// ErrStopped is returned by Run after a stop request or context cancellation.
var ErrStopped = errors.New("opt: search stopped")

type WorkerConfig struct {
	RunID  string
	ID     int
	Seed   int64
	Params Params
	Logger *slog.Logger
	Sink   Sink
	// Status receives snapshots without blocking; nil disables publishing.
	Status chan<- Status
	// Control may be the zero value, in which case the worker only stops on
	// context cancellation.
	Control Control
}

// Worker runs one independent search over a private solution. Only Run's
// goroutine touches the solution; Best and Metrics are safe to call anytime.
type Worker struct {
	ID     int
	runID  string
	seed   int64
	data   *model.Dataset
	params Params
	rng    *rand.Rand
	log    *slog.Logger
	sink   Sink
	status chan<- Status
	pause  <-chan struct{}
	stop   <-chan struct{}

	weights        []float64
	perturbWeights []float64
	moveCounters   [moves.NumKinds][numOutcomes]prometheus.Counter
	driftCounter   prometheus.Counter
	scoreGauge     prometheus.Gauge
	bestGauge      prometheus.Gauge
	tempGauge      prometheus.Gauge

	sol    *schedule.Solution
	temp   float64
	q      int
	iter   int64
	round  int
	paused bool
	stats  Metrics

	mu       sync.Mutex
	best     *schedule.Solution
	snapshot Metrics
}

func NewWorker(ds *model.Dataset, cfg WorkerConfig) *Worker {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	p := cfg.Params.withDefaults()
	id := strconv.Itoa(cfg.ID)
	w := &Worker{
		ID:             cfg.ID,
		runID:          cfg.RunID,
		seed:           seed,
		data:           ds,
		params:         p,
		rng:            rand.New(rand.NewSource(seed)),
		log:            log,
		sink:           cfg.Sink,
		status:         cfg.Status,
		pause:          cfg.Control.Pause,
		stop:           cfg.Control.Stop,
		weights:        p.Weights.slice(),
		perturbWeights: p.PerturbWeights.slice(),
		driftCounter:   metrics.SearchDrift.WithLabelValues(id),
		scoreGauge:     metrics.SearchScore.WithLabelValues(id),
		bestGauge:      metrics.SearchBestScore.WithLabelValues(id),
		tempGauge:      metrics.SearchTemperature.WithLabelValues(id),
	}
	for k := range moves.NumKinds {
		for o := range numOutcomes {
			w.moveCounters[k][o] = metrics.SearchMoves.WithLabelValues(k.String(), outcomeNames[o])
		}
	}
	return w
}

// Run searches until the configured rounds are done, a stop is requested or
// ctx is cancelled. The best kept solution is available from Best afterwards.
// A panic inside the search terminates only this worker and is returned.
func (w *Worker) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("worker failed", "worker", w.ID, "panic", r)
			err = fmt.Errorf("opt: worker %d: %v", w.ID, r)
		}
		w.record()
	}()
	if w.data.Depot() == 0 {
		w.setBest(schedule.New(w.data))
		return nil
	}
	w.log.Info("worker started", "worker", w.ID, "seed", w.seed, "orders", w.data.Depot())
	err = w.search(ctx)
	if best := w.Best(); best != nil {
		w.log.Info("worker finished", "worker", w.ID, "best", best.Score, "iterations", w.iter, "err", err)
	}
	return err
}

// Best returns the best kept solution, or nil before the first anneal ends.
// The returned solution is never modified by the worker.
func (w *Worker) Best() *schedule.Solution {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.best
}

// Metrics returns the counters as of the last finished round.
func (w *Worker) Metrics() Metrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	m := w.snapshot
	m.Snapshots = slices.Clone(m.Snapshots)
	return m
}

func (w *Worker) setBest(s *schedule.Solution) {
	w.mu.Lock()
	w.best = s
	w.mu.Unlock()
	w.bestGauge.Set(float64(s.Score))
}

func (w *Worker) record() {
	w.mu.Lock()
	if w.best != nil {
		w.stats.BestScore = w.best.Score
	}
	if w.sol != nil {
		w.stats.FinalScore = w.sol.Score
	}
	w.snapshot = w.stats
	w.snapshot.Snapshots = slices.Clone(w.stats.Snapshots)
	m := w.snapshot
	w.mu.Unlock()
	RecordMetrics(w.runID, w.ID, m)
}

// poll consumes pending control signals. While paused it blocks, resending
// the snapshot periodically, until resumed or stopped. A closed control
// channel counts as no signal.
func (w *Worker) poll(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrStopped, ctx.Err())
	default:
	}
	select {
	case _, ok := <-w.stop:
		if ok {
			return ErrStopped
		}
		w.stop = nil
	default:
	}
	select {
	case _, ok := <-w.pause:
		if ok {
			w.paused = !w.paused
		} else {
			w.pause = nil
		}
	default:
	}
	if !w.paused {
		return nil
	}

	w.log.Info("worker paused", "worker", w.ID, "score", w.sol.Score)
	w.publish()
	ticker := time.NewTicker(w.params.RepublishInterval)
	defer ticker.Stop()
	for w.paused {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrStopped, ctx.Err())
		case _, ok := <-w.stop:
			if ok {
				return ErrStopped
			}
			w.stop = nil
		case _, ok := <-w.pause:
			if ok {
				w.paused = false
			} else {
				w.pause = nil
			}
		case <-ticker.C:
			w.publish()
		}
	}
	w.log.Info("worker resumed", "worker", w.ID)
	return nil
}

// publish sends a snapshot if the observer has room. The solution is only
// cloned when the send can succeed.
func (w *Worker) publish() {
	w.scoreGauge.Set(float64(w.sol.Score))
	w.tempGauge.Set(w.temp)
	if w.status == nil {
		return
	}
	if len(w.status) >= cap(w.status) {
		metrics.StatusDropped.Inc()
		return
	}
	var best model.Time
	if b := w.Best(); b != nil {
		best = b.Score
	}
	st := Status{
		Worker:      w.ID,
		Score:       w.sol.Score,
		Best:        best,
		Temperature: w.temp,
		Q:           w.q,
		Iteration:   w.iter,
		Round:       w.round,
		Paused:      w.paused,
		At:          time.Now(),
		Trucks:      w.sol.Snapshot(),
	}
	select {
	case w.status <- st:
	default:
		metrics.StatusDropped.Inc()
	}
}
