package api

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/time/rate"

	"github.com/bjorn1004/route-finder/internal/opt"
)

// Relay forwards worker snapshots of one run to a broker. Each worker has its
// own limiter so a busy worker cannot starve the others. The latest snapshot
// of every worker is always kept, forwarded or not.
type Relay struct {
	runID  string
	broker EventBroker
	limit  rate.Limit
	burst  int

	mu       sync.RWMutex
	latest   map[int]StatusEvent
	limiters map[int]*rate.Limiter
}

func NewRelay(runID string, broker EventBroker, perSecond float64, burst int) *Relay {
	return &Relay{
		runID:    runID,
		broker:   broker,
		limit:    rate.Limit(perSecond),
		burst:    max(burst, 1),
		latest:   map[int]StatusEvent{},
		limiters: map[int]*rate.Limiter{},
	}
}

func (r *Relay) RunID() string { return r.runID }

// Run consumes status until the channel closes or ctx ends.
func (r *Relay) Run(ctx context.Context, status <-chan opt.Status) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-status:
			if !ok {
				return
			}
			r.Handle(st)
		}
	}
}

// Handle records st and publishes it unless the worker's rate is exhausted.
// Pause transitions are always published.
func (r *Relay) Handle(st opt.Status) bool {
	evt := NewStatusEvent(r.runID, st)
	r.mu.Lock()
	prev, seen := r.latest[st.Worker]
	r.latest[st.Worker] = evt
	lim := r.limiters[st.Worker]
	if lim == nil {
		lim = rate.NewLimiter(r.limit, r.burst)
		r.limiters[st.Worker] = lim
	}
	r.mu.Unlock()
	if !lim.Allow() && seen && prev.Paused == evt.Paused {
		return false
	}
	if r.broker != nil {
		r.broker.Publish(r.runID, evt)
	}
	return true
}

// Latest returns the newest snapshot of every worker ordered by worker id.
func (r *Relay) Latest() []StatusEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StatusEvent, 0, len(r.latest))
	for _, evt := range r.latest {
		out = append(out, evt)
	}
	slices.SortFunc(out, func(a, b StatusEvent) int { return a.Worker - b.Worker })
	return out
}

// Notify publishes a control event outside the rate limit.
func (r *Relay) Notify(evt StatusEvent) {
	evt.RunID = r.runID
	if r.broker != nil {
		r.broker.Publish(r.runID, evt)
	}
}
