package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the planner
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// SearchScore is the tracked score of each worker's current solution in centiseconds
	SearchScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "search_score", Help: "Current solution score per worker (centiseconds)."},
		[]string{"worker"},
	)
	// SearchBestScore is the best score each worker has kept
	SearchBestScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "search_best_score", Help: "Best kept solution score per worker (centiseconds)."},
		[]string{"worker"},
	)
	// SearchTemperature is the current annealing temperature
	SearchTemperature = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "search_temperature", Help: "Annealing temperature per worker."},
		[]string{"worker"},
	)
	// SearchMoves counts proposed moves by kind and outcome
	SearchMoves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "search_moves_total", Help: "Moves by kind and outcome (accepted, rejected, infeasible)."},
		[]string{"kind", "outcome"},
	)
	// SearchDrift counts ground truth corrections of the tracked score
	SearchDrift = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "search_drift_total", Help: "Score drift corrections per worker."},
		[]string{"worker"},
	)
	// ILSIterations counts finished perturb and re-anneal rounds
	ILSIterations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ils_iterations_total", Help: "Iterated local search rounds by result (kept, discarded)."},
		[]string{"result"},
	)
	// StatusDropped counts status snapshots dropped because the observer was behind
	StatusDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "status_dropped_total", Help: "Status snapshots dropped on a full channel."},
	)
)

// RegisterDefault registers collectors to the planner registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(SearchScore)
		Registry.MustRegister(SearchBestScore)
		Registry.MustRegister(SearchTemperature)
		Registry.MustRegister(SearchMoves)
		Registry.MustRegister(SearchDrift)
		Registry.MustRegister(ILSIterations)
		Registry.MustRegister(StatusDropped)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
