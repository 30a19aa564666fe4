package opt

import "sync"

type key struct {
	Run    string
	Worker int
}

var (
	mu    sync.Mutex
	store = map[key]Metrics{}
)

// RecordMetrics keeps the latest counters of a worker for later inspection.
func RecordMetrics(run string, worker int, m Metrics) {
	mu.Lock()
	store[key{Run: run, Worker: worker}] = m
	mu.Unlock()
}

// GetMetrics returns the recorded counters of every worker of a run.
func GetMetrics(run string) map[int]Metrics {
	mu.Lock()
	defer mu.Unlock()
	out := map[int]Metrics{}
	for k, v := range store {
		if k.Run == run {
			out[k.Worker] = v
		}
	}
	return out
}

// ForgetMetrics drops the counters of a finished run.
func ForgetMetrics(run string) {
	mu.Lock()
	defer mu.Unlock()
	for k := range store {
		if k.Run == run {
			delete(store, k)
		}
	}
}
