package model

import "time"

// Run statuses
const (
	RunRunning  = "running"
	RunStopped  = "stopped"
	RunFinished = "finished"
	RunFailed   = "failed"
)

// Run is one planner invocation with a pool of workers.
type Run struct {
	ID         string     `json:"id"`
	Dataset    string     `json:"dataset"`
	Workers    int        `json:"workers"`
	Seed       int64      `json:"seed"`
	Status     string     `json:"status"`
	BestScore  Time       `json:"bestScore"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// IterationRecord is the outcome of one iterated local search round of a worker.
type IterationRecord struct {
	RunID     string    `json:"runId"`
	Worker    int       `json:"worker"`
	Iteration int       `json:"iteration"`
	Score     Time      `json:"score"`
	Best      Time      `json:"best"`
	Improved  bool      `json:"improved"`
	CreatedAt time.Time `json:"createdAt"`
}

// ScheduleEntry is one stop of a printed schedule. Truck and Day are 1-based,
// Seq continues from the morning into the afternoon.
type ScheduleEntry struct {
	Truck int `json:"truck"`
	Day   int `json:"day"`
	Seq   int `json:"seq"`
	Order int `json:"order"`
}

// Schedule is the best plan a worker reported for a run.
type Schedule struct {
	RunID     string          `json:"runId"`
	Worker    int             `json:"worker"`
	Score     Time            `json:"score"`
	Entries   []ScheduleEntry `json:"entries"`
	CreatedAt time.Time       `json:"createdAt"`
}
