package store

import (
	"context"
	"errors"
	"time"

	"github.com/bjorn1004/route-finder/internal/model"
	"github.com/bjorn1004/route-finder/internal/opt"
	"github.com/bjorn1004/route-finder/internal/printer"
)

// Recorder is a search sink that persists every round and the kept plans.
type Recorder struct {
	Store Store
	// Now defaults to time.Now.
	Now func() time.Time
}

func (r Recorder) Report(ctx context.Context, it opt.Iteration) error {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	at := now().UTC()
	err := r.Store.SaveIteration(ctx, model.IterationRecord{
		RunID:     it.RunID,
		Worker:    it.Worker,
		Iteration: it.Round,
		Score:     it.Score,
		Best:      it.Best,
		Improved:  it.Improved,
		CreatedAt: at,
	})
	if !it.Improved || it.Solution == nil {
		return err
	}
	serr := r.Store.SaveSchedule(ctx, model.Schedule{
		RunID:     it.RunID,
		Worker:    it.Worker,
		Score:     it.Score,
		Entries:   printer.Records(it.Solution),
		CreatedAt: at,
	})
	return errors.Join(err, serr)
}
