package model

import (
	"errors"
	"fmt"
)

// Time is a duration in centiseconds. All travel and service times use it.
type Time int64

const (
	Second   Time = 100
	Minute   Time = 60 * Second
	HalfHour Time = 30 * Minute
	// FullDay is the working day of one truck across both shifts.
	FullDay Time = 12 * 60 * Minute
)

// MaxCapacity is the volume one truck can carry per shift.
const MaxCapacity uint32 = 100_000

// DepotMatrixID is the distance matrix id of the dump location.
const DepotMatrixID = 287

// Minutes reports t in whole minutes.
func (t Time) Minutes() int64 { return int64(t / Minute) }

func (t Time) String() string {
	return fmt.Sprintf("%d.%02dmin", int64(t/Minute), int64(t%Minute)*100/int64(Minute))
}

// Frequency is the number of visits an order needs per week. Zero marks the depot.
type Frequency uint8

const (
	Depot Frequency = iota
	OncePerWeek
	TwicePerWeek
	ThricePerWeek
	FourPerWeek
)

func (f Frequency) String() string {
	if f == Depot {
		return "depot"
	}
	return fmt.Sprintf("%dPWK", f)
}

// Order is one collection point. Orders are immutable for the duration of a run.
type Order struct {
	ID          int       `json:"id"`
	Place       string    `json:"place"`
	Frequency   Frequency `json:"frequency"`
	Containers  int       `json:"containers"`
	Volume      uint32    `json:"volume"`
	ServiceTime Time      `json:"serviceTime"`
	MatrixID    int       `json:"matrixId"`
	X           int       `json:"x"`
	Y           int       `json:"y"`
}

// Penalty is the score charged while the order is not fully scheduled.
func (o Order) Penalty() Time {
	return 3 * Time(o.Frequency) * o.ServiceTime
}

// TravelTimes answers driving durations between two matrix ids.
type TravelTimes interface {
	Between(from, to int) Time
}

var ErrNoDepot = errors.New("dataset: last order must be the depot")

// Dataset is the read-only context shared by every solution built from it:
// the order list indexed 0..N-1 with the depot last, plus their travel times.
type Dataset struct {
	Orders []Order
	Travel TravelTimes
}

func NewDataset(orders []Order, travel TravelTimes) (*Dataset, error) {
	if len(orders) == 0 || orders[len(orders)-1].Frequency != Depot {
		return nil, ErrNoDepot
	}
	for i, o := range orders[:len(orders)-1] {
		if o.Frequency < OncePerWeek || o.Frequency > FourPerWeek {
			return nil, fmt.Errorf("dataset: order %d has frequency %d", o.ID, o.Frequency)
		}
		if o.Volume > MaxCapacity {
			return nil, fmt.Errorf("dataset: order %d (index %d) volume %d exceeds truck capacity", o.ID, i, o.Volume)
		}
	}
	return &Dataset{Orders: orders, Travel: travel}, nil
}

// Depot returns the order index of the depot sentinel.
func (d *Dataset) Depot() int { return len(d.Orders) - 1 }

// Len is the number of orders including the depot.
func (d *Dataset) Len() int { return len(d.Orders) }

// Time is the travel time between two order indices.
func (d *Dataset) Time(from, to int) Time {
	a, b := d.Orders[from].MatrixID, d.Orders[to].MatrixID
	if a == b {
		return 0
	}
	return d.Travel.Between(a, b)
}

// TotalPenalty is the score of a schedule without any visits.
func (d *Dataset) TotalPenalty() Time {
	var sum Time
	for _, o := range d.Orders {
		sum += o.Penalty()
	}
	return sum
}
