package arena

import (
	"math/rand"
	"slices"
	"testing"
)

func mustCheck(t *testing.T, l *List[int]) {
	t.Helper()
	if err := l.Check(); err != nil {
		t.Fatalf("structure: %v", err)
	}
}

func TestPushBackThenRemoveHead(t *testing.T) {
	l := New[int]()
	a := l.PushBack(1)
	if l.Head() != a || l.Tail() != a || l.Value(a) != 1 {
		t.Fatalf("single element: head=%d tail=%d want %d", l.Head(), l.Tail(), a)
	}
	b := l.PushBack(2)
	if l.Next(l.Head()) != l.Tail() || l.Prev(l.Tail()) != l.Head() {
		t.Fatalf("two elements not linked: head=%d tail=%d", l.Head(), l.Tail())
	}
	l.Remove(a)
	if l.Head() != b {
		t.Fatalf("head = %d, want old tail %d", l.Head(), b)
	}
	if l.Prev(l.Head()) != None {
		t.Fatalf("new head has prev %d", l.Prev(l.Head()))
	}
	mustCheck(t, l)
}

func TestInsertPositions(t *testing.T) {
	l := New[int]()
	mid := l.PushBack(2)
	l.PushFront(0)
	l.InsertBefore(mid, 1)
	last := l.InsertAfter(mid, 4)
	l.InsertBefore(last, 3)
	l.PushBack(5)
	if got := l.Values(); !slices.Equal(got, []int{0, 1, 2, 3, 4, 5}) {
		t.Fatalf("values = %v", got)
	}
	mustCheck(t, l)
}

func TestRemoveTailAndOnlyElement(t *testing.T) {
	l := New[int]()
	a := l.PushBack(1)
	b := l.PushBack(2)
	l.Remove(b)
	if l.Tail() != a || l.Next(a) != None {
		t.Fatalf("tail = %d next = %d", l.Tail(), l.Next(a))
	}
	l.Remove(a)
	if l.Len() != 0 || l.Head() != None || l.Tail() != None {
		t.Fatalf("expected empty, len=%d head=%d tail=%d", l.Len(), l.Head(), l.Tail())
	}
	mustCheck(t, l)

	// a logically empty list with pending free slots must accept a new head
	c := l.PushBack(7)
	if l.Head() != c || l.Tail() != c || l.Value(c) != 7 {
		t.Fatalf("reinsert into empty list: head=%d tail=%d", l.Head(), l.Tail())
	}
	mustCheck(t, l)
	l.Compact()
	if l.Slots() != 1 || l.Head() != 0 || l.Tail() != 0 {
		t.Fatalf("after compact slots=%d head=%d tail=%d", l.Slots(), l.Head(), l.Tail())
	}
}

func TestRemoveReusesSlot(t *testing.T) {
	l := New[int]()
	for i := range 4 {
		l.PushBack(i)
	}
	l.Remove(1)
	idx := l.InsertAfter(0, 10)
	if idx != 1 {
		t.Fatalf("freed slot not reused: got %d", idx)
	}
	if l.Pending() != 0 || l.Slots() != 4 {
		t.Fatalf("pending=%d slots=%d", l.Pending(), l.Slots())
	}
	if got := l.Values(); !slices.Equal(got, []int{0, 10, 2, 3}) {
		t.Fatalf("values = %v", got)
	}
}

func TestCompactDense(t *testing.T) {
	l := New[int]()
	for i := range 10 {
		l.PushBack(i)
	}
	for _, i := range []int{9, 0, 4, 5, 7} {
		l.Remove(i)
	}
	want := l.Values()
	l.Compact()
	if l.Pending() != 0 || l.Slots() != l.Len() || l.Len() != 5 {
		t.Fatalf("pending=%d slots=%d len=%d", l.Pending(), l.Slots(), l.Len())
	}
	for i := range l.Slots() {
		if !l.nodes[i].used {
			t.Fatalf("slot %d unused after compact", i)
		}
	}
	if got := l.Values(); !slices.Equal(got, want) {
		t.Fatalf("order changed by compact: %v want %v", got, want)
	}
	mustCheck(t, l)
}

func TestCompactMovesHeadAndTail(t *testing.T) {
	l := New[int]()
	a := l.PushBack(0)
	l.PushBack(1)
	l.PushBack(2)
	l.Remove(a)
	l.PushFront(9)
	tail := l.PushBack(3)
	// tail sits in the last slot and has to be relocated into slot 1
	l.Remove(1)
	l.Compact()
	if l.Value(l.Head()) != 9 || l.Value(l.Tail()) != 3 {
		t.Fatalf("ends after compact: head=%d tail=%d tailidx=%d", l.Value(l.Head()), l.Value(l.Tail()), tail)
	}
	mustCheck(t, l)
}

func TestRandomRequiresCompact(t *testing.T) {
	l := New[int]()
	l.PushBack(1)
	l.PushBack(2)
	l.Remove(0)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic with pending free slots")
		}
	}()
	l.Random(rand.New(rand.NewSource(1)))
}

func TestRandomUniformish(t *testing.T) {
	l := New[int]()
	for i := range 5 {
		l.PushBack(i)
	}
	rng := rand.New(rand.NewSource(3))
	seen := make(map[int]int)
	for range 5000 {
		i, v, ok := l.Random(rng)
		if !ok || l.Value(i) != v {
			t.Fatalf("bad sample %d %d %v", i, v, ok)
		}
		seen[v]++
	}
	for v := range 5 {
		if seen[v] < 800 {
			t.Fatalf("value %d sampled %d times out of 5000", v, seen[v])
		}
	}
	if _, _, ok := New[int]().Random(rng); ok {
		t.Fatal("empty list sampled")
	}
}

func TestOutOfRangePanics(t *testing.T) {
	l := New[int]()
	l.PushBack(1)
	for _, fn := range []func(){
		func() { l.Value(3) },
		func() { l.InsertAfter(-1, 0) },
		func() { l.Remove(5) },
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()
			fn()
		}()
	}
}

func TestCloneIsIndependent(t *testing.T) {
	l := New[int]()
	for i := range 3 {
		l.PushBack(i)
	}
	c := l.Clone()
	c.Remove(c.Head())
	c.SetValue(c.Tail(), 42)
	if got := l.Values(); !slices.Equal(got, []int{0, 1, 2}) {
		t.Fatalf("original mutated: %v", got)
	}
	if got := c.Values(); !slices.Equal(got, []int{1, 42}) {
		t.Fatalf("clone = %v", got)
	}
}

func TestStressAgainstSlice(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	l := New[int]()
	var ref []int
	next := 0
	for step := 0; step < 20000; step++ {
		switch op := rng.Intn(10); {
		case op < 4 || l.Len() == 0:
			// insert after a random live node, or at the back
			if l.Len() == 0 || l.Pending() > 0 {
				l.PushBack(next)
				ref = append(ref, next)
			} else {
				i, v, _ := l.Random(rng)
				l.InsertAfter(i, next)
				p := slices.Index(ref, v)
				ref = slices.Insert(ref, p+1, next)
			}
			next++
		case op < 8:
			pos := rng.Intn(len(ref))
			i := l.Head()
			for range pos {
				i = l.Next(i)
			}
			l.Remove(i)
			ref = slices.Delete(ref, pos, pos+1)
		default:
			l.Compact()
			for i := range l.Slots() {
				if l.nodes[i].next == i || l.nodes[i].prev == i {
					t.Fatalf("self loop at %d", i)
				}
			}
		}
		if step%97 == 0 {
			mustCheck(t, l)
			if got := l.Values(); !slices.Equal(got, ref) {
				t.Fatalf("step %d: values %v want %v", step, got, ref)
			}
		}
	}
}
