// Package arena implements a doubly-linked list stored in a dense slice.
//
// Nodes refer to each other by slot index instead of pointers. Removed slots
// are recorded in a free buffer and reused by later inserts. Compact moves the
// last live slots into the holes so the slice is gap free again, which is a
// precondition for uniform sampling with Random.
//
// Slot indices are only stable between two calls to Compact.
package arena

import (
	"fmt"
	"iter"
	"slices"
)

// None marks an absent link or an empty list end.
const None = -1

// Rand is the subset of *math/rand.Rand used for sampling.
type Rand interface {
	Intn(n int) int
}

type node[V any] struct {
	value V
	prev  int
	next  int
	used  bool
}

// List is a linked list of V backed by a slice of slots.
type List[V any] struct {
	nodes []node[V]
	head  int
	tail  int
	free  []int
	live  int
}

// New returns an empty list.
func New[V any]() *List[V] {
	return &List[V]{head: None, tail: None}
}

// Len returns the number of live elements.
func (l *List[V]) Len() int { return l.live }

// Slots returns the number of allocated slots, live or free.
func (l *List[V]) Slots() int { return len(l.nodes) }

// Pending returns the number of freed slots waiting for Compact.
func (l *List[V]) Pending() int { return len(l.free) }

func (l *List[V]) Head() int { return l.head }

func (l *List[V]) Tail() int { return l.tail }

// Next returns the successor slot of i, or None.
func (l *List[V]) Next(i int) int { return l.at(i).next }

// Prev returns the predecessor slot of i, or None.
func (l *List[V]) Prev(i int) int { return l.at(i).prev }

// Value returns the value stored in slot i.
func (l *List[V]) Value(i int) V { return l.at(i).value }

// ValuePtr returns a pointer to the value in slot i. The pointer is
// invalidated by any insert or Compact.
func (l *List[V]) ValuePtr(i int) *V { return &l.at(i).value }

func (l *List[V]) SetValue(i int, v V) { l.at(i).value = v }

// NextValue returns the value after slot i.
func (l *List[V]) NextValue(i int) (V, bool) {
	n := l.at(i).next
	if n == None {
		var zero V
		return zero, false
	}
	return l.nodes[n].value, true
}

// PrevValue returns the value before slot i.
func (l *List[V]) PrevValue(i int) (V, bool) {
	p := l.at(i).prev
	if p == None {
		var zero V
		return zero, false
	}
	return l.nodes[p].value, true
}

// PushFront inserts v before the head and returns its slot.
func (l *List[V]) PushFront(v V) int { return l.insert(l.head, v) }

// PushBack inserts v after the tail and returns its slot.
func (l *List[V]) PushBack(v V) int { return l.insert(None, v) }

// InsertAfter inserts v directly after slot i and returns the new slot.
func (l *List[V]) InsertAfter(i int, v V) int {
	return l.insert(l.at(i).next, v)
}

// InsertBefore inserts v directly before slot i and returns the new slot.
func (l *List[V]) InsertBefore(i int, v V) int {
	l.at(i)
	return l.insert(i, v)
}

// Remove unlinks slot i and records it as free. The slice is not compacted.
func (l *List[V]) Remove(i int) {
	n := l.at(i)
	if n.prev != None {
		l.nodes[n.prev].next = n.next
	} else {
		l.head = n.next
	}
	if n.next != None {
		l.nodes[n.next].prev = n.prev
	} else {
		l.tail = n.prev
	}
	var zero V
	*n = node[V]{value: zero, prev: None, next: None}
	l.free = append(l.free, i)
	l.live--
}

// Random returns a live slot chosen uniformly at random. It panics when
// slots are pending compaction since the sample would not be uniform.
func (l *List[V]) Random(rng Rand) (int, V, bool) {
	if len(l.free) != 0 {
		panic("arena: Random called with pending free slots, run Compact first")
	}
	if len(l.nodes) == 0 {
		var zero V
		return None, zero, false
	}
	i := rng.Intn(len(l.nodes))
	return i, l.nodes[i].value, true
}

// Compact moves live slots into freed holes until the first Len slots are
// all live. Every index obtained before the call is invalid afterwards.
func (l *List[V]) Compact() {
	if len(l.free) == 0 {
		return
	}
	slices.Sort(l.free)
	for len(l.free) > 0 {
		hole := l.free[len(l.free)-1]
		l.free = l.free[:len(l.free)-1]
		l.fill(hole)
	}
}

// fill moves the last slot into hole. Holes are filled from the highest
// index down, so the last slot is always live unless it is the hole itself.
func (l *List[V]) fill(hole int) {
	if l.nodes[hole].used {
		panic(fmt.Sprintf("arena: slot %d is in the free buffer but still live", hole))
	}
	last := len(l.nodes) - 1
	if hole == last {
		l.nodes = l.nodes[:last]
		return
	}
	moved := l.nodes[last]
	l.nodes = l.nodes[:last]
	if l.head == last {
		l.head = hole
	}
	if l.tail == last {
		l.tail = hole
	}
	if moved.next != None {
		l.nodes[moved.next].prev = hole
	}
	if moved.prev != None {
		l.nodes[moved.prev].next = hole
	}
	l.nodes[hole] = moved
}

// All iterates slots and values from head to tail.
func (l *List[V]) All() iter.Seq2[int, V] {
	return func(yield func(int, V) bool) {
		for i := l.head; i != None; i = l.nodes[i].next {
			if !yield(i, l.nodes[i].value) {
				return
			}
		}
	}
}

// Values returns the values from head to tail.
func (l *List[V]) Values() []V {
	out := make([]V, 0, l.live)
	for _, v := range l.All() {
		out = append(out, v)
	}
	return out
}

// Clone returns a deep copy of the list structure. Values are copied by
// assignment.
func (l *List[V]) Clone() *List[V] {
	return &List[V]{
		nodes: slices.Clone(l.nodes),
		head:  l.head,
		tail:  l.tail,
		free:  slices.Clone(l.free),
		live:  l.live,
	}
}

// Check walks the list in both directions and reports the first structural
// inconsistency. It is O(n) and meant for tests and debug verification.
func (l *List[V]) Check() error {
	if l.live == 0 {
		if l.head != None || l.tail != None {
			return fmt.Errorf("arena: empty list has head=%d tail=%d", l.head, l.tail)
		}
		return nil
	}
	forward := 0
	last := None
	for i := l.head; i != None; i = l.nodes[i].next {
		n := l.nodes[i]
		if !n.used {
			return fmt.Errorf("arena: free slot %d reachable from head", i)
		}
		if n.next == i || n.prev == i {
			return fmt.Errorf("arena: self loop at slot %d", i)
		}
		if n.prev != None && l.nodes[n.prev].next != i {
			return fmt.Errorf("arena: slot %d prev=%d does not link back", i, n.prev)
		}
		last = i
		forward++
		if forward > len(l.nodes) {
			return fmt.Errorf("arena: cycle detected after %d steps", forward)
		}
	}
	if last != l.tail {
		return fmt.Errorf("arena: forward walk ended at %d, tail is %d", last, l.tail)
	}
	backward := 0
	for i := l.tail; i != None; i = l.nodes[i].prev {
		n := l.nodes[i]
		if n.next != None && l.nodes[n.next].prev != i {
			return fmt.Errorf("arena: slot %d next=%d does not link back", i, n.next)
		}
		backward++
		if backward > len(l.nodes) {
			return fmt.Errorf("arena: cycle detected walking back after %d steps", backward)
		}
	}
	if forward != backward || forward != l.live {
		return fmt.Errorf("arena: forward=%d backward=%d live=%d", forward, backward, l.live)
	}
	return nil
}

// insert links v in front of slot before, or at the tail when before is None.
func (l *List[V]) insert(before int, v V) int {
	idx := l.slot()
	n := node[V]{value: v, prev: None, next: None, used: true}
	switch {
	case l.head == None:
		l.head, l.tail = idx, idx
	case before != None:
		prev := l.nodes[before].prev
		l.nodes[before].prev = idx
		if prev != None {
			l.nodes[prev].next = idx
		} else {
			l.head = idx
		}
		n.prev, n.next = prev, before
	default:
		l.nodes[l.tail].next = idx
		n.prev = l.tail
		l.tail = idx
	}
	if idx == len(l.nodes) {
		l.nodes = append(l.nodes, n)
	} else {
		l.nodes[idx] = n
	}
	l.live++
	return idx
}

func (l *List[V]) slot() int {
	if k := len(l.free); k > 0 {
		idx := l.free[k-1]
		l.free = l.free[:k-1]
		return idx
	}
	return len(l.nodes)
}

func (l *List[V]) at(i int) *node[V] {
	if i < 0 || i >= len(l.nodes) || !l.nodes[i].used {
		panic(fmt.Sprintf("arena: index %d out of range (slots=%d)", i, len(l.nodes)))
	}
	return &l.nodes[i]
}
