package model

import "fmt"

// Matrix is a dense travel time table keyed by matrix id.
type Matrix struct {
	size  int
	times []Time
}

func NewMatrix(size int) *Matrix {
	return &Matrix{size: size, times: make([]Time, size*size)}
}

func (m *Matrix) Size() int { return m.size }

// Set stores the travel time from one id to another. Ids outside the
// matrix are a programming error.
func (m *Matrix) Set(from, to int, t Time) {
	m.times[m.index(from, to)] = t
}

// Between returns 0 for identical ids regardless of what was stored.
func (m *Matrix) Between(from, to int) Time {
	if from == to {
		return 0
	}
	return m.times[m.index(from, to)]
}

func (m *Matrix) index(from, to int) int {
	if from < 0 || to < 0 || from >= m.size || to >= m.size {
		panic(fmt.Sprintf("matrix: id pair (%d,%d) outside %d", from, to, m.size))
	}
	return from*m.size + to
}
