package schedule

import (
	"errors"
	"fmt"

	"github.com/bjorn1004/route-finder/internal/model"
)

// Solution is a full weekly plan for both trucks. Score is the tracked sum of
// route time, overtime and the penalty of every incomplete order. Unfilled
// holds exactly the orders whose visits are incomplete.
type Solution struct {
	ds       *model.Dataset
	Trucks   [NumTrucks]Week
	Score    model.Time
	Unfilled *Queue
	Flags    *OrderFlags
}

// New returns a plan without visits. Every order starts in the unfilled queue.
func New(ds *model.Dataset) *Solution {
	s := &Solution{
		ds:       ds,
		Unfilled: &Queue{},
		Flags:    NewOrderFlags(ds),
		Score:    ds.TotalPenalty(),
	}
	for t := range s.Trucks {
		s.Trucks[t] = NewWeek(ds)
	}
	for i := range ds.Orders[:ds.Depot()] {
		s.Unfilled.Push(i)
	}
	return s
}

func (s *Solution) Dataset() *model.Dataset { return s.ds }

func (s *Solution) Route(ref RouteRef) *Route {
	return s.Trucks[ref.Truck].Days[ref.Day].Routes[ref.Shift]
}

func (s *Solution) Day(ref DayRef) *Day { return &s.Trucks[ref.Truck].Days[ref.Day] }

// TotalTime sums the driving and service time of both trucks.
func (s *Solution) TotalTime() model.Time {
	return s.Trucks[TruckOne].TotalTime() + s.Trucks[TruckTwo].TotalTime()
}

// Penalty sums the penalty of every order that is not complete.
func (s *Solution) Penalty() model.Time {
	var p model.Time
	for i, o := range s.ds.Orders[:s.ds.Depot()] {
		if !s.Flags.Complete(i) {
			p += o.Penalty()
		}
	}
	return p
}

// CalculateScore derives the score from the routes without trusting any
// incrementally tracked value except route times.
func (s *Solution) CalculateScore() model.Time {
	return s.Trucks[TruckOne].Cost() + s.Trucks[TruckTwo].Cost() + s.Penalty()
}

// Visits locates every node that serves order, walking only the days its
// flags mark.
func (s *Solution) Visits(order int) []Visit {
	var out []Visit
	for _, day := range Days(s.Flags.Mask(order)) {
		for _, ref := range RefsOnDay(day) {
			if node, ok := s.Route(ref).Find(order); ok {
				out = append(out, Visit{Ref: ref, Node: node})
				break
			}
		}
	}
	return out
}

// Visit is the node serving an order within one route.
type Visit struct {
	Ref  RouteRef
	Node int
}

// Cleanup drops all visits of orders left with a partial frequency, then
// recomputes route times and the score from scratch. It returns the number of
// orders dropped and the score drift that was corrected.
func (s *Solution) Cleanup() (dropped int, drift model.Time) {
	for i := range s.ds.Orders[:s.ds.Depot()] {
		if s.Flags.Filled(i) == 0 || s.Flags.Complete(i) {
			continue
		}
		for _, v := range s.Visits(i) {
			day := s.Day(v.Ref.DayRef())
			before := day.Cost()
			s.Route(v.Ref).ApplyRemoveNode(v.Node)
			s.Score += day.Cost() - before
		}
		s.Flags.Clear(i)
		dropped++
	}
	return dropped, s.RecalculateTimes()
}

// RecalculateTimes corrects every route's tracked time and the score and
// returns how far the tracked score was off.
func (s *Solution) RecalculateTimes() model.Time {
	for _, ref := range AllRefs() {
		s.Route(ref).RecalculateTotalTime()
	}
	actual := s.CalculateScore()
	drift := s.Score - actual
	s.Score = actual
	return drift
}

// Check verifies every route, the flags against route contents, the unfilled
// queue and the tracked score.
func (s *Solution) Check() error {
	var errs []error
	seen := make([]uint8, s.ds.Len())
	for _, ref := range AllRefs() {
		r := s.Route(ref)
		if err := r.Check(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ref, err))
			continue
		}
		for _, order := range r.Stops() {
			if seen[order]&ref.Day.Bit() != 0 {
				errs = append(errs, fmt.Errorf("%s: order %d visited twice that day", ref, order))
			}
			seen[order] |= ref.Day.Bit()
		}
	}
	queued := make([]int, s.ds.Len())
	for _, order := range s.Unfilled.Items() {
		queued[order]++
	}
	for i := range s.ds.Orders[:s.ds.Depot()] {
		if seen[i] != s.Flags.Mask(i) {
			errs = append(errs, fmt.Errorf("order %d: flags %05b, routes %05b", i, s.Flags.Mask(i), seen[i]))
		}
		want := 1
		if s.Flags.Complete(i) {
			want = 0
		}
		if queued[i] != want {
			errs = append(errs, fmt.Errorf("order %d: queued %d times, complete=%v", i, queued[i], s.Flags.Complete(i)))
		}
	}
	if actual := s.CalculateScore(); actual != s.Score {
		errs = append(errs, fmt.Errorf("score: tracked %d, actual %d", s.Score, actual))
	}
	return errors.Join(errs...)
}

// Clone deep copies the plan. The dataset is shared.
func (s *Solution) Clone() *Solution {
	c := &Solution{
		ds:       s.ds,
		Score:    s.Score,
		Unfilled: s.Unfilled.Clone(),
		Flags:    s.Flags.Clone(),
	}
	for t := range s.Trucks {
		c.Trucks[t] = s.Trucks[t].Clone()
	}
	return c
}

// Snapshot copies only the routes, for publishing to observers.
func (s *Solution) Snapshot() [NumTrucks]Week {
	return [NumTrucks]Week{s.Trucks[TruckOne].Clone(), s.Trucks[TruckTwo].Clone()}
}
