package opt

import (
	"context"
	"errors"
	"time"

	"github.com/bjorn1004/route-finder/internal/model"
	"github.com/bjorn1004/route-finder/internal/schedule"
)

// Status is a best effort progress snapshot a worker publishes to observers.
type Status struct {
	Worker      int
	Score       model.Time
	Best        model.Time
	Temperature float64
	// Q is the iteration count within the current cooling window.
	Q         int
	Iteration int64
	Round     int
	Paused    bool
	At        time.Time
	Trucks    [schedule.NumTrucks]schedule.Week
}

// Iteration is the result of one search round, handed to a Sink.
type Iteration struct {
	RunID  string
	Worker int
	Round  int
	Score  model.Time
	Best   model.Time
	// Improved is set when the round result replaced the kept best.
	Improved bool
	Solution *schedule.Solution
}

// Sink receives every round result. Solutions passed in must not be modified.
type Sink interface {
	Report(ctx context.Context, it Iteration) error
}

type SinkFunc func(ctx context.Context, it Iteration) error

func (f SinkFunc) Report(ctx context.Context, it Iteration) error { return f(ctx, it) }

// MultiSink reports to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Report(ctx context.Context, it Iteration) error {
	var errs []error
	for _, s := range m {
		if err := s.Report(ctx, it); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Control carries the pause toggle and stop signal of one worker. Both
// channels have room for one pending signal and sends never block.
type Control struct {
	Pause chan struct{}
	Stop  chan struct{}
}

func NewControl() Control {
	return Control{Pause: make(chan struct{}, 1), Stop: make(chan struct{}, 1)}
}

// TogglePause flips the worker between running and paused. It reports false
// when a toggle is already pending.
func (c Control) TogglePause() bool {
	select {
	case c.Pause <- struct{}{}:
		return true
	default:
		return false
	}
}

// RequestStop asks the worker to finish at the top of its next step.
func (c Control) RequestStop() {
	select {
	case c.Stop <- struct{}{}:
	default:
	}
}
