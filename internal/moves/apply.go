package moves

import (
	"fmt"

	"github.com/bjorn1004/route-finder/internal/model"
	"github.com/bjorn1004/route-finder/internal/schedule"
)

// Verify enables the debug cross checks in Apply: the realised delta is
// compared against Evaluate and every touched route is walked and compared
// against its tracked totals. Any mismatch panics.
var Verify = false

// edit is the effect of a move on one route.
type edit struct {
	ref   schedule.RouteRef
	dTime model.Time
	dLen  int
}

// Evaluate prices m against sol without changing it.
func Evaluate(sol *schedule.Solution, m Move) model.Time {
	edits := make([]edit, 0, 4)
	order := sol.Dataset().Orders[m.Order]
	var penalty model.Time
	switch {
	case m.Kind.IsAdd():
		for _, p := range m.Add {
			edits = append(edits, edit{p.Ref, sol.Route(p.Ref).CalculateAddOrder(p.After, m.Order), 1})
		}
		if sol.Flags.Filled(m.Order)+len(m.Add) == int(order.Frequency) {
			penalty = -order.Penalty()
		}
	case m.Kind.IsRemove():
		for _, l := range m.Remove {
			edits = append(edits, edit{l.Ref, sol.Route(l.Ref).CalculateRemoveNode(l.Node), -1})
		}
		if sol.Flags.Complete(m.Order) {
			penalty = order.Penalty()
		}
	default:
		for _, s := range m.Shifts {
			if s.From.Ref == s.To.Ref {
				edits = append(edits, edit{s.From.Ref, sol.Route(s.From.Ref).CalculateShiftInRoute(s.From.Node, s.To.After), 0})
				continue
			}
			edits = append(edits,
				edit{s.From.Ref, sol.Route(s.From.Ref).CalculateRemoveNode(s.From.Node), -1},
				edit{s.To.Ref, sol.Route(s.To.Ref).CalculateAddOrder(s.To.After, m.Order), 1},
			)
		}
	}
	return price(sol, edits) + penalty
}

// price sums the change in day cost over every truck day the edits touch.
// A route counts towards its day only while it has stops, and each day pays
// overtime on its own total.
func price(sol *schedule.Solution, edits []edit) model.Time {
	var delta model.Time
	for i, e := range edits {
		dr := e.ref.DayRef()
		if seenDay(edits[:i], dr) {
			continue
		}
		day := sol.Day(dr)
		var total model.Time
		for s := range schedule.NumShifts {
			r := day.Get(schedule.Shift(s))
			t, n := r.Time, r.Len()
			for _, o := range edits[i:] {
				if o.ref.DayRef() == dr && o.ref.Shift == schedule.Shift(s) {
					t += o.dTime
					n += o.dLen
				}
			}
			if n > 2 {
				total += t
			}
		}
		delta += schedule.DayCost(total) - day.Cost()
	}
	return delta
}

func seenDay(edits []edit, dr schedule.DayRef) bool {
	for _, e := range edits {
		if e.ref.DayRef() == dr {
			return true
		}
	}
	return false
}

// Apply commits m, updates the flags and the tracked score, and returns the
// realised score delta.
func Apply(sol *schedule.Solution, m Move) model.Time {
	var want model.Time
	if Verify {
		want = Evaluate(sol, m)
	}
	days := touchedDays(m)
	var before model.Time
	for _, dr := range days {
		before += sol.Day(dr).Cost()
	}
	order := sol.Dataset().Orders[m.Order]
	wasComplete := sol.Flags.Complete(m.Order)

	switch {
	case m.Kind.IsAdd():
		for _, p := range m.Add {
			sol.Route(p.Ref).ApplyAddOrder(p.After, m.Order)
			sol.Flags.Add(m.Order, p.Ref.Day)
		}
	case m.Kind.IsRemove():
		for _, l := range m.Remove {
			sol.Route(l.Ref).ApplyRemoveNode(l.Node)
			sol.Flags.Remove(m.Order, l.Ref.Day)
		}
	default:
		for _, s := range m.Shifts {
			if s.From.Ref == s.To.Ref {
				sol.Route(s.From.Ref).ApplyShiftInRoute(s.From.Node, s.To.After)
				continue
			}
			sol.Route(s.From.Ref).ApplyRemoveNode(s.From.Node)
			sol.Route(s.To.Ref).ApplyAddOrder(s.To.After, m.Order)
			if s.From.Ref.Day != s.To.Ref.Day {
				sol.Flags.Remove(m.Order, s.From.Ref.Day)
			}
		}
		for _, s := range m.Shifts {
			if s.From.Ref.Day != s.To.Ref.Day {
				sol.Flags.Add(m.Order, s.To.Ref.Day)
			}
		}
	}

	var after model.Time
	for _, dr := range days {
		after += sol.Day(dr).Cost()
	}
	delta := after - before
	switch isComplete := sol.Flags.Complete(m.Order); {
	case wasComplete && !isComplete:
		delta += order.Penalty()
	case !wasComplete && isComplete:
		delta -= order.Penalty()
	}
	sol.Score += delta

	if Verify {
		verify(sol, m, want, delta)
	}
	return delta
}

func touchedDays(m Move) []schedule.DayRef {
	days := make([]schedule.DayRef, 0, 4)
	add := func(ref schedule.RouteRef) {
		dr := ref.DayRef()
		for _, d := range days {
			if d == dr {
				return
			}
		}
		days = append(days, dr)
	}
	for _, p := range m.Add {
		add(p.Ref)
	}
	for _, l := range m.Remove {
		add(l.Ref)
	}
	for _, s := range m.Shifts {
		add(s.From.Ref)
		add(s.To.Ref)
	}
	return days
}

func verify(sol *schedule.Solution, m Move, want, got model.Time) {
	if want != got {
		panic(fmt.Sprintf("moves: %s of order %d evaluated %d but applied %d", m.Kind, m.Order, want, got))
	}
	for _, dr := range touchedDays(m) {
		for s := range schedule.NumShifts {
			ref := schedule.RouteRef{Truck: dr.Truck, Day: dr.Day, Shift: schedule.Shift(s)}
			if err := sol.Route(ref).Check(); err != nil {
				panic(fmt.Sprintf("moves: %s of order %d left %s inconsistent: %v", m.Kind, m.Order, ref, err))
			}
		}
	}
}
