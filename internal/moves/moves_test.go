package moves

import (
	"math/rand"
	"testing"

	"github.com/bjorn1004/route-finder/internal/model"
	"github.com/bjorn1004/route-finder/internal/schedule"
)

func init() { Verify = true }

// grid places orders on a small grid with Manhattan travel times in minutes.
// The depot sits at id 0 in a corner.
func grid(t *testing.T, orders []model.Order) *model.Dataset {
	t.Helper()
	n := len(orders) + 1
	m := model.NewMatrix(n)
	pos := func(id int) (int, int) { return id % 7, id / 7 }
	for a := range n {
		for b := range n {
			ax, ay := pos(a)
			bx, by := pos(b)
			d := abs(ax-bx) + abs(ay-by)
			m.Set(a, b, model.Time(d)*7*model.Minute)
		}
	}
	for i := range orders {
		orders[i].MatrixID = i + 1
		orders[i].ID = 1000 + i
	}
	orders = append(orders, model.Order{Frequency: model.Depot, MatrixID: 0})
	ds, err := model.NewDataset(orders, m)
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	return ds
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func mixedDataset(t *testing.T, n int) *model.Dataset {
	freqs := []model.Frequency{model.OncePerWeek, model.OncePerWeek, model.TwicePerWeek, model.ThricePerWeek, model.FourPerWeek}
	orders := make([]model.Order, n)
	for i := range orders {
		orders[i] = model.Order{
			Frequency:   freqs[i%len(freqs)],
			Volume:      uint32(2000 + 1500*(i%9)),
			ServiceTime: model.Time(1+i%6) * model.Minute,
		}
	}
	return grid(t, orders)
}

// rebuildQueue restores the unfilled queue from the flags, for tests that
// pick orders directly instead of popping them.
func rebuildQueue(sol *schedule.Solution) {
	q := &schedule.Queue{}
	for i := range sol.Dataset().Depot() {
		if !sol.Flags.Complete(i) {
			q.Push(i)
		}
	}
	sol.Unfilled = q
}

func TestAddMultipleMondayThursday(t *testing.T) {
	ds := grid(t, []model.Order{{Frequency: model.TwicePerWeek, Volume: 500, ServiceTime: 3 * model.Minute}})
	sol := schedule.New(ds)
	mon := schedule.RouteRef{Truck: schedule.TruckOne, Day: schedule.Monday, Shift: schedule.Morning}
	thu := schedule.RouteRef{Truck: schedule.TruckTwo, Day: schedule.Thursday, Shift: schedule.Afternoon}
	m := Move{Kind: KindAddMultiple, Order: 0, Add: []Placement{
		{Ref: mon, After: sol.Route(mon).Head()},
		{Ref: thu, After: sol.Route(thu).Head()},
	}}
	priced := Evaluate(sol, m)
	before := sol.Score
	if got := Apply(sol, m); got != priced {
		t.Fatalf("evaluate %v apply %v", priced, got)
	}
	if sol.Score != before+priced {
		t.Fatalf("score %v, want %v", sol.Score, before+priced)
	}
	if sol.Flags.Filled(0) != 2 {
		t.Fatalf("filled = %d", sol.Flags.Filled(0))
	}
	if _, ok := sol.Flags.RandomAllowedDay(0, rand.New(rand.NewSource(1))); ok {
		t.Fatal("complete order still offered a day")
	}
	sol.Unfilled.Pop()
	if err := sol.Check(); err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestAddThenRemoveRestoresScore(t *testing.T) {
	ds := mixedDataset(t, 6)
	sol := schedule.New(ds)
	rng := rand.New(rand.NewSource(2))
	start := sol.Score
	add, ok := NewAddOrder(sol, 0, rng)
	if !ok {
		t.Fatal("no add move for an empty plan")
	}
	dAdd := Apply(sol, add)
	p := add.Add[0]
	node := sol.Route(p.Ref).Next(p.After)
	rm := Move{Kind: KindRemoveOrder, Order: 0, Remove: []Location{{Ref: p.Ref, Node: node}}}
	dRemove := Apply(sol, rm)
	if dAdd != -dRemove || sol.Score != start {
		t.Fatalf("add %v remove %v score %v start %v", dAdd, dRemove, sol.Score, start)
	}
	if !sol.Route(p.Ref).Empty() {
		t.Fatal("route not empty again")
	}
}

func TestEmptyRouteHalfHour(t *testing.T) {
	ds := grid(t, []model.Order{{Frequency: model.OncePerWeek, Volume: 10, ServiceTime: model.Minute}})
	sol := schedule.New(ds)
	ref := schedule.RouteRef{Truck: schedule.TruckTwo, Day: schedule.Wednesday, Shift: schedule.Afternoon}
	r := sol.Route(ref)
	m := Move{Kind: KindAddOrder, Order: 0, Add: []Placement{{Ref: ref, After: r.Head()}}}
	depot := ds.Depot()
	travel := ds.Time(depot, 0) + ds.Time(0, depot)
	want := model.HalfHour + travel + model.Minute - ds.Orders[0].Penalty()
	if got := Evaluate(sol, m); got != want {
		t.Fatalf("first stop costs %v, want %v", got, want)
	}
}

func TestCapacityRespected(t *testing.T) {
	orders := make([]model.Order, 5)
	for i := range orders {
		orders[i] = model.Order{Frequency: model.OncePerWeek, Volume: 60_000, ServiceTime: model.Minute}
	}
	ds := grid(t, orders)
	sol := schedule.New(ds)
	for i, ref := range schedule.RefsOnDay(schedule.Monday) {
		r := sol.Route(ref)
		Apply(sol, Move{Kind: KindAddOrder, Order: i, Add: []Placement{{Ref: ref, After: r.Head()}}})
	}
	rng := rand.New(rand.NewSource(4))
	for range 200 {
		m, ok := NewAddOrder(sol, 4, rng)
		if ok && m.Add[0].Ref.Day == schedule.Monday {
			t.Fatalf("placed into a full monday route %s", m.Add[0].Ref)
		}
	}
	for range 200 {
		if m, ok := NewShiftInDay(sol, rng); ok {
			t.Fatalf("shift in day into a full route: %+v", m)
		}
	}
	for _, ref := range schedule.AllRefs() {
		if c := sol.Route(ref).Capacity; c > model.MaxCapacity {
			t.Fatalf("%s capacity %d", ref, c)
		}
	}
}

func TestShiftPairFrequencyTwo(t *testing.T) {
	ds := grid(t, []model.Order{{Frequency: model.TwicePerWeek, Volume: 10, ServiceTime: model.Minute}})
	sol := schedule.New(ds)
	mon := schedule.RouteRef{Truck: schedule.TruckOne, Day: schedule.Monday, Shift: schedule.Morning}
	thu := schedule.RouteRef{Truck: schedule.TruckOne, Day: schedule.Thursday, Shift: schedule.Morning}
	Apply(sol, Move{Kind: KindAddMultiple, Order: 0, Add: []Placement{
		{Ref: mon, After: sol.Route(mon).Head()},
		{Ref: thu, After: sol.Route(thu).Head()},
	}})
	rng := rand.New(rand.NewSource(8))
	m, ok := NewShiftBetweenDays(sol, rng)
	if !ok || len(m.Shifts) != 2 {
		t.Fatalf("expected a pair shift, got %+v ok=%v", m, ok)
	}
	score := sol.Score
	delta := Apply(sol, m)
	if sol.Flags.Mask(0) != schedule.Tuesday.Bit()|schedule.Friday.Bit() {
		t.Fatalf("mask after pair shift = %05b", sol.Flags.Mask(0))
	}
	if sol.Score != score+delta {
		t.Fatal("score not tracked")
	}
	sol.Unfilled.Pop()
	if err := sol.Check(); err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestThricePerWeekNeverShiftsDays(t *testing.T) {
	ds := grid(t, []model.Order{{Frequency: model.ThricePerWeek, Volume: 10, ServiceTime: model.Minute}})
	sol := schedule.New(ds)
	var adds []Placement
	for _, d := range []schedule.Weekday{schedule.Monday, schedule.Wednesday, schedule.Friday} {
		ref := schedule.RouteRef{Truck: schedule.TruckTwo, Day: d, Shift: schedule.Morning}
		adds = append(adds, Placement{Ref: ref, After: sol.Route(ref).Head()})
	}
	Apply(sol, Move{Kind: KindAddMultiple, Order: 0, Add: adds})
	rng := rand.New(rand.NewSource(1))
	for range 50 {
		if _, ok := NewShiftBetweenDays(sol, rng); ok {
			t.Fatal("frequency 3 order shifted between days")
		}
	}
}

func TestShiftInRouteNeedsThreeStops(t *testing.T) {
	ds := mixedDataset(t, 4)
	sol := schedule.New(ds)
	rng := rand.New(rand.NewSource(3))
	ref := schedule.RouteRef{Truck: schedule.TruckOne, Day: schedule.Tuesday, Shift: schedule.Afternoon}
	for i := range 2 {
		r := sol.Route(ref)
		Apply(sol, Move{Kind: KindAddOrder, Order: i, Add: []Placement{{Ref: ref, After: r.Head()}}})
	}
	if _, ok := NewShiftInRoute(sol, rng); ok {
		t.Fatal("shift in a route with two stops")
	}
	r := sol.Route(ref)
	Apply(sol, Move{Kind: KindAddMultiple, Order: 2, Add: []Placement{{Ref: ref, After: r.Head()}}})
	m, ok := NewShiftInRoute(sol, rng)
	if !ok || m.Shifts[0].From.Ref != ref {
		t.Fatalf("expected shift in %s, got %+v ok=%v", ref, m, ok)
	}
}

func TestNoMovesOnEmptyPlan(t *testing.T) {
	sol := schedule.New(mixedDataset(t, 3))
	rng := rand.New(rand.NewSource(1))
	for name, fn := range map[string]func(*schedule.Solution, *rand.Rand) (Move, bool){
		"remove":          NewRemoveOrder,
		"remove multiple": NewRemoveMultiple,
		"shift in route":  NewShiftInRoute,
		"between days":    NewShiftBetweenDays,
		"in day":          NewShiftInDay,
	} {
		if _, ok := fn(sol, rng); ok {
			t.Fatalf("%s produced a move without visits", name)
		}
	}
}

// TestRandomWalk applies random moves with Verify on and checks the plan
// against its ground truth along the way.
func TestRandomWalk(t *testing.T) {
	ds := mixedDataset(t, 40)
	sol := schedule.New(ds)
	rng := rand.New(rand.NewSource(42))
	counts := make(map[Kind]int)
	for step := range 20000 {
		var m Move
		var ok bool
		switch k := rng.Intn(10); {
		case k < 4:
			order := rng.Intn(ds.Depot())
			if sol.Flags.Complete(order) {
				continue
			}
			if ds.Orders[order].Frequency == model.OncePerWeek {
				m, ok = NewAddOrder(sol, order, rng)
			} else {
				m, ok = NewAddMultiple(sol, order, rng)
			}
		case k == 4:
			m, ok = NewRemoveMultiple(sol, rng)
		case k == 5:
			m, ok = NewRemoveOrder(sol, rng)
		case k == 6:
			m, ok = NewShiftInRoute(sol, rng)
		case k == 7:
			m, ok = NewShiftBetweenDays(sol, rng)
		default:
			m, ok = NewShiftInDay(sol, rng)
		}
		if !ok {
			continue
		}
		before := sol.Score
		priced := Evaluate(sol, m)
		if got := Apply(sol, m); got != priced || sol.Score != before+got {
			t.Fatalf("step %d %s: evaluate %v apply %v", step, m.Kind, priced, got)
		}
		counts[m.Kind]++
		if step%500 == 0 {
			rebuildQueue(sol)
			if err := sol.Check(); err != nil {
				t.Fatalf("step %d: %v", step, err)
			}
		}
	}
	for k := range NumKinds {
		if counts[k] == 0 {
			t.Fatalf("kind %s never applied", k)
		}
	}
	if dropped, drift := sol.Cleanup(); drift != 0 {
		t.Fatalf("cleanup dropped %d and corrected drift %v", dropped, drift)
	}
	rebuildQueue(sol)
	if err := sol.Check(); err != nil {
		t.Fatalf("after cleanup: %v", err)
	}
	for i := range ds.Depot() {
		if f := sol.Flags.Filled(i); f != 0 && !sol.Flags.Complete(i) {
			t.Fatalf("order %d partially scheduled after cleanup", i)
		}
	}
}
