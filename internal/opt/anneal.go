package opt

import (
	"context"
	"math"
	"math/rand"

	"github.com/bjorn1004/route-finder/internal/model"
	"github.com/bjorn1004/route-finder/internal/moves"
)

// Metrics summarise one worker's search.
type Metrics struct {
	Iterations    int64
	Accepted      int64
	AcceptedWorse int64
	Rejected      int64
	Infeasible    int64
	Rounds        int
	Improvements  int
	Drift         int
	BestScore     model.Time
	FinalScore    model.Time
	Snapshots     []ScoreSnapshot
}

// ScoreSnapshot is taken at the end of every search round.
type ScoreSnapshot struct {
	Round       int
	Iteration   int64
	Score       model.Time
	Best        model.Time
	Temperature float64
}

// neighbourhoods in the order of Weights.slice
const (
	choiceAdd = iota
	choiceRemove
	choiceShiftInRoute
	choiceShiftBetweenDays
	choiceShiftInDay
)

const (
	outcomeAccepted = iota
	outcomeRejected
	outcomeInfeasible
	numOutcomes
)

var outcomeNames = [numOutcomes]string{"accepted", "rejected", "infeasible"}

// anneal runs the Metropolis loop from the current temperature until it
// cools below EndTemp.
func (w *Worker) anneal(ctx context.Context) error {
	for w.temp > w.params.EndTemp {
		if err := w.poll(ctx); err != nil {
			return err
		}
		w.step(w.temp, w.weights, moves.KindRemoveMultiple)
		w.q++
		if w.q >= w.params.Q {
			w.temp *= w.params.Alpha
			w.q = 0
		}
		w.tick()
	}
	return nil
}

// perturb runs a fixed number of hot steps without cooling. It removes
// single visits so the following anneal has partial orders to repair.
func (w *Worker) perturb(ctx context.Context) error {
	for range w.params.PerturbIterations {
		if err := w.poll(ctx); err != nil {
			return err
		}
		w.step(w.params.PerturbTemp, w.perturbWeights, moves.KindRemoveOrder)
		w.tick()
	}
	return nil
}

func (w *Worker) tick() {
	w.iter++
	w.stats.Iterations++
	if w.iter%int64(w.params.PublishEvery) == 0 {
		w.publish()
	}
}

// step proposes one move, evaluates it and commits it if accepted. The
// unfilled queue holds every incomplete order again once step returns.
func (w *Worker) step(temp float64, weights []float64, removal moves.Kind) {
	m, ok := w.propose(weights, removal)
	if !ok {
		return
	}
	delta := moves.Evaluate(w.sol, m)
	if !accept(delta, temp, w.rng) {
		if m.Kind.IsAdd() {
			w.sol.Unfilled.Push(m.Order)
		}
		w.stats.Rejected++
		w.moveCounters[m.Kind][outcomeRejected].Inc()
		return
	}
	wasComplete := w.sol.Flags.Complete(m.Order)
	moves.Apply(w.sol, m)
	switch {
	case m.Kind.IsAdd() && !w.sol.Flags.Complete(m.Order):
		w.sol.Unfilled.Push(m.Order)
	case m.Kind.IsRemove() && wasComplete:
		w.sol.Unfilled.Push(m.Order)
	}
	w.stats.Accepted++
	if delta > 0 {
		w.stats.AcceptedWorse++
	}
	w.moveCounters[m.Kind][outcomeAccepted].Inc()
}

// propose draws neighbourhoods until one yields a move. Add moves pop their
// order from the unfilled queue and push it back when they cannot be built.
func (w *Worker) propose(weights []float64, removal moves.Kind) (moves.Move, bool) {
	for range w.params.MaxSelectAttempts {
		var (
			m    moves.Move
			ok   bool
			kind moves.Kind
		)
		switch selectOp(weights, w.rng) {
		case choiceAdd:
			kind = moves.KindAddOrder
			order, queued := w.sol.Unfilled.Pop()
			if !queued {
				break
			}
			if w.data.Orders[order].Frequency == model.OncePerWeek {
				m, ok = moves.NewAddOrder(w.sol, order, w.rng)
			} else {
				kind = moves.KindAddMultiple
				m, ok = moves.NewAddMultiple(w.sol, order, w.rng)
			}
			if !ok {
				w.sol.Unfilled.Push(order)
			}
		case choiceRemove:
			kind = removal
			if removal == moves.KindRemoveOrder {
				m, ok = moves.NewRemoveOrder(w.sol, w.rng)
			} else {
				m, ok = moves.NewRemoveMultiple(w.sol, w.rng)
			}
		case choiceShiftInRoute:
			kind = moves.KindShiftInRoute
			m, ok = moves.NewShiftInRoute(w.sol, w.rng)
		case choiceShiftBetweenDays:
			kind = moves.KindShiftBetweenDays
			m, ok = moves.NewShiftBetweenDays(w.sol, w.rng)
		case choiceShiftInDay:
			kind = moves.KindShiftInDay
			m, ok = moves.NewShiftInDay(w.sol, w.rng)
		}
		if ok {
			return m, true
		}
		w.stats.Infeasible++
		w.moveCounters[kind][outcomeInfeasible].Inc()
	}
	return moves.Move{}, false
}

// accept is the Metropolis criterion.
func accept(delta model.Time, temp float64, rng *rand.Rand) bool {
	if delta <= 0 {
		return true
	}
	return rng.Float64() < math.Exp(-float64(delta)/temp)
}

// cleanup drops partially scheduled orders and corrects drift against the
// recomputed ground truth.
func (w *Worker) cleanup() {
	dropped, drift := w.sol.Cleanup()
	if dropped > 0 {
		w.log.Debug("dropped partial orders", "worker", w.ID, "orders", dropped)
	}
	if drift != 0 {
		w.stats.Drift++
		w.driftCounter.Inc()
		w.log.Warn("score drift corrected", "worker", w.ID, "tracked", w.sol.Score+drift, "actual", w.sol.Score, "diff", drift)
	}
}

func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r < acc {
			return i
		}
	}
	return len(weights) - 1
}
