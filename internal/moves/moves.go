// Package moves implements the neighbourhood of the local search: structural
// edits to a schedule that are priced first and committed only when accepted.
//
// A Move is a fully parameterised command. Constructors sample its parameters
// from the current solution and report false when no legal instantiation
// exists; Evaluate prices it without side effects and Apply commits it. Both
// must return the same delta for the same solution state.
package moves

import (
	"math/rand"

	"github.com/bjorn1004/route-finder/internal/model"
	"github.com/bjorn1004/route-finder/internal/schedule"
)

type Kind uint8

const (
	KindAddOrder Kind = iota
	KindAddMultiple
	KindRemoveOrder
	KindRemoveMultiple
	KindShiftInRoute
	KindShiftBetweenDays
	KindShiftInDay
	NumKinds
)

var kindNames = [NumKinds]string{
	KindAddOrder:         "add_order",
	KindAddMultiple:      "add_multiple",
	KindRemoveOrder:      "remove_order",
	KindRemoveMultiple:   "remove_multiple",
	KindShiftInRoute:     "shift_in_route",
	KindShiftBetweenDays: "shift_between_days",
	KindShiftInDay:       "shift_in_day",
}

func (k Kind) String() string {
	if k < NumKinds {
		return kindNames[k]
	}
	return "unknown"
}

// IsAdd reports whether the move schedules new visits of an unfilled order.
func (k Kind) IsAdd() bool { return k == KindAddOrder || k == KindAddMultiple }

// IsRemove reports whether the move takes visits out of the plan.
func (k Kind) IsRemove() bool { return k == KindRemoveOrder || k == KindRemoveMultiple }

// Placement is an insertion point: the new stop goes directly after node After.
type Placement struct {
	Ref   schedule.RouteRef
	After int
}

// Location is an existing stop.
type Location struct {
	Ref  schedule.RouteRef
	Node int
}

// Shift relocates the stop at From to the insertion point To.
type Shift struct {
	From Location
	To   Placement
}

// Move is one of the fixed set of edits. Which of the slices is populated
// depends on Kind: add kinds use Add, remove kinds use Remove and shift kinds
// use Shifts. Every entry concerns Order and no two entries touch the same
// route, except a shift within one route.
type Move struct {
	Kind   Kind
	Order  int
	Add    []Placement
	Remove []Location
	Shifts []Shift
}

var allRefs = schedule.AllRefs()

// NewAddOrder schedules one more visit of order on a legal day.
func NewAddOrder(sol *schedule.Solution, order int, rng *rand.Rand) (Move, bool) {
	day, ok := sol.Flags.RandomAllowedDay(order, rng)
	if !ok {
		return Move{}, false
	}
	p, ok := placeOnDay(sol, order, day, rng)
	if !ok {
		return Move{}, false
	}
	return Move{Kind: KindAddOrder, Order: order, Add: []Placement{p}}, true
}

// NewAddMultiple schedules every missing visit of order at once so the order
// is complete after a single commit.
func NewAddMultiple(sol *schedule.Solution, order int, rng *rand.Rand) (Move, bool) {
	freq := sol.Dataset().Orders[order].Frequency
	mask := sol.Flags.Mask(order)
	missing := int(freq) - sol.Flags.Filled(order)
	if missing <= 0 {
		return Move{}, false
	}
	adds := make([]Placement, 0, missing)
	for range missing {
		day, ok := schedule.PickDay(schedule.AllowedDays(mask, freq), rng)
		if !ok {
			return Move{}, false
		}
		p, ok := placeOnDay(sol, order, day, rng)
		if !ok {
			return Move{}, false
		}
		mask |= day.Bit()
		adds = append(adds, p)
	}
	return Move{Kind: KindAddMultiple, Order: order, Add: adds}, true
}

// NewRemoveOrder takes a single random visit out of the plan.
func NewRemoveOrder(sol *schedule.Solution, rng *rand.Rand) (Move, bool) {
	loc, ok := randomVisit(sol, rng)
	if !ok {
		return Move{}, false
	}
	order := sol.Route(loc.Ref).Order(loc.Node)
	return Move{Kind: KindRemoveOrder, Order: order, Remove: []Location{loc}}, true
}

// NewRemoveMultiple picks a random visit and removes every visit of its order.
func NewRemoveMultiple(sol *schedule.Solution, rng *rand.Rand) (Move, bool) {
	loc, ok := randomVisit(sol, rng)
	if !ok {
		return Move{}, false
	}
	order := sol.Route(loc.Ref).Order(loc.Node)
	visits := sol.Visits(order)
	locs := make([]Location, 0, len(visits))
	for _, v := range visits {
		locs = append(locs, Location{Ref: v.Ref, Node: v.Node})
	}
	return Move{Kind: KindRemoveMultiple, Order: order, Remove: locs}, true
}

// NewShiftInRoute moves one stop to another position in the same route. Only
// routes with at least three stops qualify.
func NewShiftInRoute(sol *schedule.Solution, rng *rand.Rand) (Move, bool) {
	ref, ok := randomRoute(sol, rng, 5)
	if !ok {
		return Move{}, false
	}
	r := sol.Route(ref)
	node := r.RandomStop(rng)
	after := r.RandomInsertPoint(rng)
	for !r.ValidShiftTarget(node, after) {
		after = r.RandomInsertPoint(rng)
	}
	return Move{
		Kind:   KindShiftInRoute,
		Order:  r.Order(node),
		Shifts: []Shift{{From: Location{ref, node}, To: Placement{ref, after}}},
	}, true
}

// NewShiftBetweenDays moves a visit to another legal weekday. A complete
// twice-a-week order swaps both of its visits to the other day pair instead.
func NewShiftBetweenDays(sol *schedule.Solution, rng *rand.Rand) (Move, bool) {
	loc, ok := randomVisit(sol, rng)
	if !ok {
		return Move{}, false
	}
	order := sol.Route(loc.Ref).Order(loc.Node)
	if day, ok := sol.Flags.RandomDayToShiftTo(order, loc.Ref.Day, rng); ok {
		to, ok := placeOnDay(sol, order, day, rng)
		if !ok {
			return Move{}, false
		}
		return Move{Kind: KindShiftBetweenDays, Order: order, Shifts: []Shift{{From: loc, To: to}}}, true
	}
	if sol.Dataset().Orders[order].Frequency != model.TwicePerWeek || !sol.Flags.Complete(order) {
		return Move{}, false
	}
	return shiftPair(sol, order, rng)
}

// pairSwap maps each day of a twice-a-week pattern to its counterpart.
var pairSwap = map[schedule.Weekday]schedule.Weekday{
	schedule.Monday:   schedule.Tuesday,
	schedule.Thursday: schedule.Friday,
	schedule.Tuesday:  schedule.Monday,
	schedule.Friday:   schedule.Thursday,
}

func shiftPair(sol *schedule.Solution, order int, rng *rand.Rand) (Move, bool) {
	visits := sol.Visits(order)
	if len(visits) != 2 {
		return Move{}, false
	}
	shifts := make([]Shift, 0, 2)
	for _, v := range visits {
		to, ok := placeOnDay(sol, order, pairSwap[v.Ref.Day], rng)
		if !ok {
			return Move{}, false
		}
		shifts = append(shifts, Shift{From: Location{v.Ref, v.Node}, To: to})
	}
	return Move{Kind: KindShiftBetweenDays, Order: order, Shifts: shifts}, true
}

// NewShiftInDay moves a visit to one of the three other routes on the same weekday.
func NewShiftInDay(sol *schedule.Solution, rng *rand.Rand) (Move, bool) {
	loc, ok := randomVisit(sol, rng)
	if !ok {
		return Move{}, false
	}
	order := sol.Route(loc.Ref).Order(loc.Node)
	refs := schedule.RefsOnDay(loc.Ref.Day)
	k := rng.Intn(len(refs) - 1)
	var target schedule.RouteRef
	for _, ref := range refs {
		if ref == loc.Ref {
			continue
		}
		if k == 0 {
			target = ref
			break
		}
		k--
	}
	r := sol.Route(target)
	if !r.CanFit(order) {
		return Move{}, false
	}
	return Move{
		Kind:   KindShiftInDay,
		Order:  order,
		Shifts: []Shift{{From: loc, To: Placement{target, r.RandomInsertPoint(rng)}}},
	}, true
}

// placeOnDay finds a route on day with room for order and a random insertion
// point in it. Routes are tried starting at a random one.
func placeOnDay(sol *schedule.Solution, order int, day schedule.Weekday, rng *rand.Rand) (Placement, bool) {
	refs := schedule.RefsOnDay(day)
	start := rng.Intn(len(refs))
	for i := range refs {
		ref := refs[(start+i)%len(refs)]
		r := sol.Route(ref)
		if r.CanFit(order) {
			return Placement{Ref: ref, After: r.RandomInsertPoint(rng)}, true
		}
	}
	return Placement{}, false
}

// randomRoute picks uniformly among routes with at least minLen nodes.
func randomRoute(sol *schedule.Solution, rng *rand.Rand, minLen int) (schedule.RouteRef, bool) {
	var candidates [schedule.NumTrucks * schedule.NumDays * schedule.NumShifts]schedule.RouteRef
	n := 0
	for _, ref := range allRefs {
		if sol.Route(ref).Len() >= minLen {
			candidates[n] = ref
			n++
		}
	}
	if n == 0 {
		return schedule.RouteRef{}, false
	}
	return candidates[rng.Intn(n)], true
}

func randomVisit(sol *schedule.Solution, rng *rand.Rand) (Location, bool) {
	ref, ok := randomRoute(sol, rng, 3)
	if !ok {
		return Location{}, false
	}
	return Location{Ref: ref, Node: sol.Route(ref).RandomStop(rng)}, true
}
