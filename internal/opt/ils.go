package opt

import (
	"context"

	"github.com/bjorn1004/route-finder/internal/metrics"
	"github.com/bjorn1004/route-finder/internal/schedule"
)

// search is the iterated local search: anneal once from an empty plan, then
// repeatedly perturb a copy of the best plan, reheat and anneal again, and
// keep the result when it is at least as good.
func (w *Worker) search(ctx context.Context) error {
	w.sol = schedule.New(w.data)
	w.temp, w.q = w.params.StartTemp, 0
	err := w.anneal(ctx)
	w.cleanup()
	w.setBest(w.sol)
	w.report(ctx, true)
	if err != nil {
		return err
	}
	for round := 1; w.params.Rounds == 0 || round <= w.params.Rounds; round++ {
		w.round = round
		w.sol = w.Best().Clone()
		w.temp = w.params.PerturbTemp
		err := w.perturb(ctx)
		if err == nil {
			w.temp, w.q = w.params.ReheatTemp, 0
			err = w.anneal(ctx)
		}
		w.cleanup()
		kept := w.sol.Score <= w.Best().Score
		if kept {
			w.setBest(w.sol)
		}
		w.report(ctx, kept)
		if err != nil {
			return err
		}
	}
	return nil
}

// report hands the round result to the sink and refreshes the metrics. Sink
// failures are logged and never stop the search.
func (w *Worker) report(ctx context.Context, kept bool) {
	best := w.Best()
	w.stats.Rounds = w.round
	if w.round > 0 {
		result := "discarded"
		if kept {
			result = "kept"
			w.stats.Improvements++
		}
		metrics.ILSIterations.WithLabelValues(result).Inc()
	}
	w.stats.Snapshots = append(w.stats.Snapshots, ScoreSnapshot{
		Round: w.round, Iteration: w.iter, Score: w.sol.Score, Best: best.Score, Temperature: w.temp,
	})
	w.record()
	w.log.Info("search round finished", "worker", w.ID, "iteration", w.round, "score", w.sol.Score, "best", best.Score, "kept", kept)
	w.publish()
	if w.sink == nil {
		return
	}
	it := Iteration{
		RunID:    w.runID,
		Worker:   w.ID,
		Round:    w.round,
		Score:    w.sol.Score,
		Best:     best.Score,
		Improved: kept,
		Solution: w.sol,
	}
	// the sink may run after the context is cancelled so the final round is still recorded
	if err := w.sink.Report(context.WithoutCancel(ctx), it); err != nil {
		w.log.Warn("report round failed", "worker", w.ID, "iteration", w.round, "err", err)
	}
}
