package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bjorn1004/route-finder/internal/model"
	"github.com/bjorn1004/route-finder/internal/opt"
	"github.com/bjorn1004/route-finder/internal/schedule"
)

func TestMemoryRuns(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var ids []string
	for range 3 {
		r, err := m.CreateRun(ctx, model.Run{Dataset: "d", Workers: 2})
		if err != nil {
			t.Fatal(err)
		}
		if r.ID == "" || r.Status != model.RunRunning || r.StartedAt.IsZero() {
			t.Fatalf("run defaults not applied: %+v", r)
		}
		ids = append(ids, r.ID)
	}
	page, next, err := m.ListRuns(ctx, "", 2)
	if err != nil || len(page) != 2 || next != ids[1] {
		t.Fatalf("first page %d items next=%q err=%v", len(page), next, err)
	}
	page, next, _ = m.ListRuns(ctx, next, 2)
	if len(page) != 1 || page[0].ID != ids[2] || next != "" {
		t.Fatalf("second page %+v next=%q", page, next)
	}

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := m.FinishRun(ctx, ids[0], model.RunFinished, 42, at); err != nil {
		t.Fatal(err)
	}
	r, _ := m.GetRun(ctx, ids[0])
	if r.Status != model.RunFinished || r.BestScore != 42 || r.FinishedAt == nil || !r.FinishedAt.Equal(at) {
		t.Fatalf("finished run = %+v", r)
	}
	if _, err := m.GetRun(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing run err = %v", err)
	}
	if err := m.FinishRun(ctx, "nope", model.RunFailed, 0, at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("finish missing err = %v", err)
	}
}

func TestMemoryIterations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	run, _ := m.CreateRun(ctx, model.Run{})
	for _, rec := range []model.IterationRecord{
		{Worker: 1, Iteration: 0, Score: 9},
		{Worker: 0, Iteration: 1, Score: 8},
		{Worker: 0, Iteration: 0, Score: 10},
		{Worker: 0, Iteration: 1, Score: 7},
	} {
		rec.RunID = run.ID
		if err := m.SaveIteration(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	all, next, err := m.ListIterations(ctx, run.ID, AllWorkers, "", 2)
	if err != nil || len(all) != 2 || next != "2" {
		t.Fatalf("page %+v next=%q err=%v", all, next, err)
	}
	if all[0].Worker != 0 || all[0].Iteration != 0 || all[1].Score != 7 {
		t.Fatalf("order or upsert wrong: %+v", all)
	}
	rest, next, _ := m.ListIterations(ctx, run.ID, AllWorkers, next, 2)
	if len(rest) != 1 || rest[0].Worker != 1 || next != "" {
		t.Fatalf("rest %+v next=%q", rest, next)
	}
	one, _, _ := m.ListIterations(ctx, run.ID, 1, "", 10)
	if len(one) != 1 {
		t.Fatalf("worker filter returned %d", len(one))
	}
	if err := m.SaveIteration(ctx, model.IterationRecord{RunID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("orphan iteration err = %v", err)
	}
}

func TestMemoryKeepsBestSchedule(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	run, _ := m.CreateRun(ctx, model.Run{})
	if _, err := m.GetSchedule(ctx, run.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	m.SaveSchedule(ctx, model.Schedule{RunID: run.ID, Worker: 0, Score: 50})
	m.SaveSchedule(ctx, model.Schedule{RunID: run.ID, Worker: 1, Score: 70})
	m.SaveSchedule(ctx, model.Schedule{RunID: run.ID, Worker: 2, Score: 40, Entries: []model.ScheduleEntry{{Truck: 2}}})
	s, err := m.GetSchedule(ctx, run.ID)
	if err != nil || s.Worker != 2 || s.Score != 40 || len(s.Entries) != 1 {
		t.Fatalf("schedule = %+v, %v", s, err)
	}
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	run, _ := m.CreateRun(ctx, model.Run{})
	ds, err := model.NewDataset([]model.Order{
		{ID: 5, Frequency: model.OncePerWeek, ServiceTime: model.Minute, MatrixID: 1},
		{Frequency: model.Depot},
	}, model.NewMatrix(2))
	if err != nil {
		t.Fatal(err)
	}
	sol := schedule.New(ds)
	rec := Recorder{Store: m, Now: func() time.Time { return time.Unix(100, 0) }}

	if err := rec.Report(ctx, opt.Iteration{RunID: run.ID, Worker: 3, Round: 1, Score: sol.Score, Best: sol.Score, Solution: sol}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetSchedule(ctx, run.ID); !errors.Is(err, ErrNotFound) {
		t.Fatal("discarded round stored a schedule")
	}
	if err := rec.Report(ctx, opt.Iteration{RunID: run.ID, Worker: 3, Round: 2, Score: sol.Score, Best: sol.Score, Improved: true, Solution: sol}); err != nil {
		t.Fatal(err)
	}
	s, err := m.GetSchedule(ctx, run.ID)
	if err != nil || s.Worker != 3 || !s.CreatedAt.Equal(time.Unix(100, 0)) {
		t.Fatalf("schedule = %+v, %v", s, err)
	}
	its, _, _ := m.ListIterations(ctx, run.ID, 3, "", 0)
	if len(its) != 2 || !its[1].Improved {
		t.Fatalf("iterations = %+v", its)
	}
	if err := rec.Report(ctx, opt.Iteration{RunID: "missing", Improved: true, Solution: sol}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing run err = %v", err)
	}
}
