package store

import (
	"context"
	"errors"
	"time"

	"github.com/bjorn1004/route-finder/internal/model"
)

// Store is the persistence interface used by the planner and the API server.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.Run) (model.Run, error)
	FinishRun(ctx context.Context, id, status string, best model.Time, at time.Time) error
	GetRun(ctx context.Context, id string) (model.Run, error)
	ListRuns(ctx context.Context, cursor string, limit int) (items []model.Run, nextCursor string, err error)

	// Iterations
	SaveIteration(ctx context.Context, rec model.IterationRecord) error
	ListIterations(ctx context.Context, runID string, worker int, cursor string, limit int) ([]model.IterationRecord, string, error)

	// Schedules keep only the lowest scoring plan per run.
	SaveSchedule(ctx context.Context, s model.Schedule) error
	GetSchedule(ctx context.Context, runID string) (model.Schedule, error)

	Ping(ctx context.Context) error
	Close() error
}

var ErrNotFound = errors.New("not found")

// AllWorkers disables the worker filter of ListIterations.
const AllWorkers = -1

func pageLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
