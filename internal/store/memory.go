package store

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bjorn1004/route-finder/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu        sync.Mutex
	runs      map[string]model.Run               // id -> run
	order     []string                           // run ids by creation
	iters     map[string][]model.IterationRecord // run -> records
	schedules map[string]model.Schedule          // run -> best schedule
}

func NewMemory() *Memory {
	return &Memory{
		runs:      map[string]model.Run{},
		iters:     map[string][]model.IterationRecord{},
		schedules: map[string]model.Schedule{},
	}
}

func (m *Memory) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = model.RunRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if _, ok := m.runs[run.ID]; !ok {
		m.order = append(m.order, run.ID)
	}
	m.runs[run.ID] = run
	return run, nil
}

func (m *Memory) FinishRun(ctx context.Context, id, status string, best model.Time, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	r.BestScore = best
	r.FinishedAt = &at
	m.runs[id] = r
	return nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return model.Run{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListRuns(ctx context.Context, cursor string, limit int) ([]model.Run, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = pageLimit(limit)
	start := 0
	if cursor != "" {
		for i, id := range m.order {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(m.order))
	out := make([]model.Run, 0, end-start)
	for _, id := range m.order[start:end] {
		out = append(out, m.runs[id])
	}
	next := ""
	if end < len(m.order) {
		next = m.order[end-1]
	}
	return out, next, nil
}

func (m *Memory) SaveIteration(ctx context.Context, rec model.IterationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[rec.RunID]; !ok {
		return ErrNotFound
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	list := m.iters[rec.RunID]
	for i := range list {
		if list[i].Worker == rec.Worker && list[i].Iteration == rec.Iteration {
			list[i] = rec
			return nil
		}
	}
	m.iters[rec.RunID] = append(list, rec)
	return nil
}

// ListIterations pages by position; the cursor is the offset of the next item.
func (m *Memory) ListIterations(ctx context.Context, runID string, worker int, cursor string, limit int) ([]model.IterationRecord, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return nil, "", ErrNotFound
	}
	limit = pageLimit(limit)
	start, _ := strconv.Atoi(cursor)
	var matched []model.IterationRecord
	for _, rec := range m.iters[runID] {
		if worker == AllWorkers || rec.Worker == worker {
			matched = append(matched, rec)
		}
	}
	slices.SortStableFunc(matched, compareIterations)
	start = min(max(start, 0), len(matched))
	end := min(start+limit, len(matched))
	next := ""
	if end < len(matched) {
		next = strconv.Itoa(end)
	}
	return slices.Clone(matched[start:end]), next, nil
}

func compareIterations(a, b model.IterationRecord) int {
	if a.Worker != b.Worker {
		return a.Worker - b.Worker
	}
	return a.Iteration - b.Iteration
}

func (m *Memory) SaveSchedule(ctx context.Context, s model.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[s.RunID]; !ok {
		return ErrNotFound
	}
	if cur, ok := m.schedules[s.RunID]; ok && cur.Score <= s.Score {
		return nil
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	s.Entries = slices.Clone(s.Entries)
	m.schedules[s.RunID] = s
	return nil
}

func (m *Memory) GetSchedule(ctx context.Context, runID string) (model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[runID]
	if !ok {
		return model.Schedule{}, ErrNotFound
	}
	s.Entries = slices.Clone(s.Entries)
	return s, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
