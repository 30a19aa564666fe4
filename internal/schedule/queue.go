package schedule

import "slices"

// Queue is a FIFO of order indices waiting to be scheduled.
type Queue struct {
	items []int
	head  int
}

func (q *Queue) Len() int { return len(q.items) - q.head }

func (q *Queue) Push(order int) { q.items = append(q.items, order) }

// Pop removes the front order.
func (q *Queue) Pop() (int, bool) {
	if q.head == len(q.items) {
		return 0, false
	}
	v := q.items[q.head]
	q.head++
	if q.head > 64 && q.head*2 > len(q.items) {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}
	return v, true
}

// Items returns the queued orders front to back.
func (q *Queue) Items() []int { return slices.Clone(q.items[q.head:]) }

func (q *Queue) Clone() *Queue {
	return &Queue{items: slices.Clone(q.items[q.head:])}
}
