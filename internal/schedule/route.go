package schedule

import (
	"fmt"
	"math/rand"

	"github.com/bjorn1004/route-finder/internal/arena"
	"github.com/bjorn1004/route-finder/internal/model"
)

// Route is the stop sequence of one shift. The depot is both head and tail,
// so a route without stops has length 2. Time always includes the fixed
// half hour spent at the depot.
type Route struct {
	ds       *model.Dataset
	stops    *arena.List[int]
	Capacity uint32
	Time     model.Time
}

func NewRoute(ds *model.Dataset) *Route {
	r := &Route{ds: ds, stops: arena.New[int]()}
	depot := ds.Depot()
	r.stops.PushBack(depot)
	r.stops.PushBack(depot)
	r.Time = ds.Time(depot, depot) + model.HalfHour
	return r
}

// Len counts nodes including both depot sentinels.
func (r *Route) Len() int { return r.stops.Len() }

// Empty reports whether the route has no customer stops.
func (r *Route) Empty() bool { return r.stops.Len() <= 2 }

// Contribution is the time the route adds to its day. Routes without stops
// do not drive and cost nothing.
func (r *Route) Contribution() model.Time {
	if r.Empty() {
		return 0
	}
	return r.Time
}

func (r *Route) Head() int           { return r.stops.Head() }
func (r *Route) Tail() int           { return r.stops.Tail() }
func (r *Route) Next(node int) int   { return r.stops.Next(node) }
func (r *Route) Prev(node int) int   { return r.stops.Prev(node) }
func (r *Route) Order(node int) int  { return r.stops.Value(node) }
func (r *Route) IsSentinel(node int) bool {
	return node == r.stops.Head() || node == r.stops.Tail()
}

// Stops returns the customer orders head to tail without the sentinels.
func (r *Route) Stops() []int {
	out := make([]int, 0, max(r.Len()-2, 0))
	for node, order := range r.stops.All() {
		if !r.IsSentinel(node) {
			out = append(out, order)
		}
	}
	return out
}

// Find returns the node holding order. It walks the whole route.
func (r *Route) Find(order int) (int, bool) {
	for node, o := range r.stops.All() {
		if o == order && !r.IsSentinel(node) {
			return node, true
		}
	}
	return arena.None, false
}

// CanFit reports whether order's volume still fits into the shift.
func (r *Route) CanFit(order int) bool {
	return r.Capacity+r.ds.Orders[order].Volume <= model.MaxCapacity
}

// RandomStop picks a uniformly random customer node. The route must have one.
func (r *Route) RandomStop(rng *rand.Rand) int {
	if r.Empty() {
		panic("route: RandomStop on a route without stops")
	}
	for {
		node, _, _ := r.stops.Random(rng)
		if !r.IsSentinel(node) {
			return node
		}
	}
}

// RandomInsertPoint picks a node a new stop can follow, which is any node but the tail.
func (r *Route) RandomInsertPoint(rng *rand.Rand) int {
	for {
		node, _, _ := r.stops.Random(rng)
		if node != r.stops.Tail() {
			return node
		}
	}
}

// CalculateRemoveNode prices splicing node out of the route.
func (r *Route) CalculateRemoveNode(node int) model.Time {
	if r.IsSentinel(node) {
		panic(fmt.Sprintf("route: node %d is a depot sentinel", node))
	}
	prev, next := r.stops.Prev(node), r.stops.Next(node)
	p, m, n := r.stops.Value(prev), r.stops.Value(node), r.stops.Value(next)
	return r.ds.Time(p, n) - r.ds.Time(p, m) - r.ds.Time(m, n) - r.ds.Orders[m].ServiceTime
}

// ApplyRemoveNode removes node and compacts the route. Node indices taken
// before the call are invalid afterwards.
func (r *Route) ApplyRemoveNode(node int) model.Time {
	delta := r.CalculateRemoveNode(node)
	order := r.stops.Value(node)
	r.stops.Remove(node)
	r.stops.Compact()
	r.Time += delta
	r.Capacity -= r.ds.Orders[order].Volume
	return delta
}

// CalculateAddOrder prices inserting order directly after node.
func (r *Route) CalculateAddOrder(after, order int) model.Time {
	if after == r.stops.Tail() {
		panic("route: cannot insert after the closing depot")
	}
	p, n := r.stops.Value(after), r.stops.Value(r.stops.Next(after))
	return r.ds.Time(p, order) + r.ds.Time(order, n) - r.ds.Time(p, n) + r.ds.Orders[order].ServiceTime
}

// ApplyAddOrder inserts order after node and returns the time delta and the new node.
func (r *Route) ApplyAddOrder(after, order int) (model.Time, int) {
	delta := r.CalculateAddOrder(after, order)
	node := r.stops.InsertAfter(after, order)
	r.Time += delta
	r.Capacity += r.ds.Orders[order].Volume
	return delta, node
}

// ValidShiftTarget reports whether node can be moved behind after.
func (r *Route) ValidShiftTarget(node, after int) bool {
	return after != node && after != r.stops.Prev(node) && after != r.stops.Tail()
}

// CalculateShiftInRoute prices moving node directly behind after.
func (r *Route) CalculateShiftInRoute(node, after int) model.Time {
	if !r.ValidShiftTarget(node, after) {
		panic(fmt.Sprintf("route: invalid shift of node %d behind %d", node, after))
	}
	// after is neither node nor its predecessor so its successor is unaffected by the removal
	return r.CalculateRemoveNode(node) + r.CalculateAddOrder(after, r.stops.Value(node))
}

// ApplyShiftInRoute moves node behind after. The freed slot is reused by
// the insert so no compaction is needed.
func (r *Route) ApplyShiftInRoute(node, after int) model.Time {
	delta := r.CalculateShiftInRoute(node, after)
	order := r.stops.Value(node)
	r.stops.Remove(node)
	r.stops.InsertAfter(after, order)
	r.Time += delta
	return delta
}

// CalculateTime walks the route and sums travel and service time.
func (r *Route) CalculateTime() model.Time {
	t := model.HalfHour
	prev := arena.None
	for node, order := range r.stops.All() {
		if prev != arena.None {
			t += r.ds.Time(prev, order)
		}
		if !r.IsSentinel(node) {
			t += r.ds.Orders[order].ServiceTime
		}
		prev = order
	}
	return t
}

// CalculateCapacity sums the volume of every stop.
func (r *Route) CalculateCapacity() uint32 {
	var c uint32
	for _, order := range r.Stops() {
		c += r.ds.Orders[order].Volume
	}
	return c
}

// RecalculateTotalTime replaces the tracked time with the walked one and
// returns the drift that was corrected.
func (r *Route) RecalculateTotalTime() model.Time {
	actual := r.CalculateTime()
	drift := r.Time - actual
	r.Time = actual
	return drift
}

// Check verifies the arena structure and tracked totals.
func (r *Route) Check() error {
	if err := r.stops.Check(); err != nil {
		return err
	}
	depot := r.ds.Depot()
	if r.stops.Len() < 2 || r.Order(r.Head()) != depot || r.Order(r.Tail()) != depot {
		return fmt.Errorf("route: not bounded by the depot")
	}
	if got := r.CalculateTime(); got != r.Time {
		return fmt.Errorf("route: tracked time %d, walked %d", r.Time, got)
	}
	if got := r.CalculateCapacity(); got != r.Capacity {
		return fmt.Errorf("route: tracked capacity %d, summed %d", r.Capacity, got)
	}
	if r.Capacity > model.MaxCapacity {
		return fmt.Errorf("route: capacity %d over limit", r.Capacity)
	}
	return nil
}

func (r *Route) Clone() *Route {
	return &Route{ds: r.ds, stops: r.stops.Clone(), Capacity: r.Capacity, Time: r.Time}
}
