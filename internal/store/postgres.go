package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/bjorn1004/route-finder/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          uuid PRIMARY KEY,
    dataset     text NOT NULL,
    workers     integer NOT NULL,
    seed        bigint NOT NULL,
    status      text NOT NULL,
    best_score  bigint NOT NULL DEFAULT 0,
    started_at  timestamptz NOT NULL,
    finished_at timestamptz
);
CREATE TABLE IF NOT EXISTS run_iterations (
    run_id     uuid NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    worker     integer NOT NULL,
    iteration  integer NOT NULL,
    score      bigint NOT NULL,
    best       bigint NOT NULL,
    improved   boolean NOT NULL,
    created_at timestamptz NOT NULL,
    PRIMARY KEY (run_id, worker, iteration)
);
CREATE TABLE IF NOT EXISTS run_schedules (
    run_id     uuid PRIMARY KEY REFERENCES runs(id) ON DELETE CASCADE,
    worker     integer NOT NULL,
    score      bigint NOT NULL,
    entries    jsonb NOT NULL,
    created_at timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_started_idx ON runs (started_at, id);
`

// Migrate creates the tables when they do not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = model.RunRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO runs (id, dataset, workers, seed, status, best_score, started_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		run.ID, run.Dataset, run.Workers, run.Seed, run.Status, int64(run.BestScore), run.StartedAt)
	if err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func (p *Postgres) FinishRun(ctx context.Context, id, status string, best model.Time, at time.Time) error {
	res, err := p.db.ExecContext(ctx, `UPDATE runs SET status=$2, best_score=$3, finished_at=$4 WHERE id=$1`, id, status, int64(best), at)
	if err != nil {
		return err
	}
	return expectRow(res)
}

const runColumns = `id::text, dataset, workers, seed, status, best_score, started_at, finished_at`

func scanRun(row interface{ Scan(...any) error }) (model.Run, error) {
	var (
		r        model.Run
		best     int64
		finished sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.Dataset, &r.Workers, &r.Seed, &r.Status, &best, &r.StartedAt, &finished); err != nil {
		return r, err
	}
	r.BestScore = model.Time(best)
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return r, nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (model.Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Run{}, ErrNotFound
	}
	r, err := scanRun(p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

// ListRuns pages in start order. The cursor is the id of the last run of the previous page.
func (p *Postgres) ListRuns(ctx context.Context, cursor string, limit int) ([]model.Run, string, error) {
	limit = pageLimit(limit)
	var (
		rows *sql.Rows
		err  error
	)
	if cursor != "" {
		if _, perr := uuid.Parse(cursor); perr != nil {
			return nil, "", fmt.Errorf("store: bad cursor %q", cursor)
		}
		rows, err = p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE (started_at, id) > (SELECT started_at, id FROM runs WHERE id=$1) ORDER BY started_at, id LIMIT $2`, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at, id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	var next string
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (p *Postgres) SaveIteration(ctx context.Context, rec model.IterationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO run_iterations (run_id, worker, iteration, score, best, improved, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (run_id, worker, iteration) DO UPDATE SET score=EXCLUDED.score, best=EXCLUDED.best, improved=EXCLUDED.improved, created_at=EXCLUDED.created_at`,
		rec.RunID, rec.Worker, rec.Iteration, int64(rec.Score), int64(rec.Best), rec.Improved, rec.CreatedAt)
	return err
}

// ListIterations pages by offset; the cursor is the offset of the next item.
func (p *Postgres) ListIterations(ctx context.Context, runID string, worker int, cursor string, limit int) ([]model.IterationRecord, string, error) {
	if _, err := p.GetRun(ctx, runID); err != nil {
		return nil, "", err
	}
	limit = pageLimit(limit)
	offset, _ := strconv.Atoi(cursor)
	offset = max(offset, 0)
	rows, err := p.db.QueryContext(ctx, `SELECT run_id::text, worker, iteration, score, best, improved, created_at FROM run_iterations
        WHERE run_id=$1 AND ($2 < 0 OR worker=$2) ORDER BY worker, iteration LIMIT $3 OFFSET $4`, runID, worker, limit, offset)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.IterationRecord{}
	for rows.Next() {
		var (
			rec         model.IterationRecord
			score, best int64
		)
		if err := rows.Scan(&rec.RunID, &rec.Worker, &rec.Iteration, &score, &best, &rec.Improved, &rec.CreatedAt); err != nil {
			return nil, "", err
		}
		rec.Score, rec.Best = model.Time(score), model.Time(best)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	var next string
	if len(out) == limit {
		next = strconv.Itoa(offset + limit)
	}
	return out, next, nil
}

// SaveSchedule replaces the stored plan only when s scores lower.
func (p *Postgres) SaveSchedule(ctx context.Context, s model.Schedule) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	entries, err := encodeEntries(s.Entries)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO run_schedules (run_id, worker, score, entries, created_at) VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (run_id) DO UPDATE SET worker=EXCLUDED.worker, score=EXCLUDED.score, entries=EXCLUDED.entries, created_at=EXCLUDED.created_at
        WHERE run_schedules.score > EXCLUDED.score`,
		s.RunID, s.Worker, int64(s.Score), entries, s.CreatedAt)
	return err
}

func (p *Postgres) GetSchedule(ctx context.Context, runID string) (model.Schedule, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return model.Schedule{}, ErrNotFound
	}
	var (
		s     model.Schedule
		score int64
		raw   []byte
	)
	err := p.db.QueryRowContext(ctx, `SELECT run_id::text, worker, score, entries, created_at FROM run_schedules WHERE run_id=$1`, runID).
		Scan(&s.RunID, &s.Worker, &score, &raw, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.Score = model.Time(score)
	s.Entries, err = decodeEntries(raw)
	return s, err
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeEntries(entries []model.ScheduleEntry) ([]byte, error) {
	if entries == nil {
		entries = []model.ScheduleEntry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("store: encode schedule: %w", err)
	}
	return b, nil
}

func decodeEntries(raw []byte) ([]model.ScheduleEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []model.ScheduleEntry
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("store: decode schedule: %w", err)
	}
	return out, nil
}
