package api

import (
	"sync"
	"time"

	"github.com/bjorn1004/route-finder/internal/model"
	"github.com/bjorn1004/route-finder/internal/opt"
	"github.com/bjorn1004/route-finder/internal/schedule"
)

// Event types
const (
	EventStatus  = "worker.status"
	EventControl = "worker.control"
)

// RouteSummary describes one shift route of a status snapshot.
type RouteSummary struct {
	Truck    int        `json:"truck"`
	Day      int        `json:"day"`
	Shift    string     `json:"shift"`
	Stops    int        `json:"stops"`
	Time     model.Time `json:"time"`
	Capacity uint32     `json:"capacity"`
}

// StatusEvent is what observers of a run receive.
type StatusEvent struct {
	Type        string         `json:"type"`
	RunID       string         `json:"runId"`
	Worker      int            `json:"worker"`
	Score       model.Time     `json:"score"`
	Best        model.Time     `json:"best"`
	Temperature float64        `json:"temperature"`
	Q           int            `json:"q"`
	Iteration   int64          `json:"iteration"`
	Round       int            `json:"round"`
	Paused      bool           `json:"paused"`
	At          time.Time      `json:"at"`
	Routes      []RouteSummary `json:"routes,omitempty"`
}

// NewStatusEvent flattens a worker snapshot. Routes without stops are left out.
func NewStatusEvent(runID string, st opt.Status) StatusEvent {
	evt := StatusEvent{
		Type:        EventStatus,
		RunID:       runID,
		Worker:      st.Worker,
		Score:       st.Score,
		Best:        st.Best,
		Temperature: st.Temperature,
		Q:           st.Q,
		Iteration:   st.Iteration,
		Round:       st.Round,
		Paused:      st.Paused,
		At:          st.At,
	}
	for t := range st.Trucks {
		for d := range st.Trucks[t].Days {
			for s, r := range st.Trucks[t].Days[d].Routes {
				if r == nil || r.Empty() {
					continue
				}
				evt.Routes = append(evt.Routes, RouteSummary{
					Truck:    t + 1,
					Day:      d + 1,
					Shift:    schedule.Shift(s).String(),
					Stops:    r.Len() - 2,
					Time:     r.Time,
					Capacity: r.Capacity,
				})
			}
		}
	}
	return evt
}

type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan StatusEvent]struct{} // runId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan StatusEvent]struct{}{}}
}

func (b *Broker) Subscribe(runID string) chan StatusEvent {
	ch := make(chan StatusEvent, 8)
	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = map[chan StatusEvent]struct{}{}
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(runID string, ch chan StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[runID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, runID)
	}
	close(ch)
}

// Publish never blocks; slow subscribers miss events.
func (b *Broker) Publish(runID string, evt StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[runID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *Broker) Close() error { return nil }
