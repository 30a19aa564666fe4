package schedule

import (
	"fmt"
	"math/rand"
)

type Truck uint8

const (
	TruckOne Truck = iota
	TruckTwo
)

const NumTrucks = 2

func (t Truck) String() string { return fmt.Sprintf("truck %d", int(t)+1) }

type Weekday uint8

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
)

const NumDays = 5

var weekdayNames = [NumDays]string{"monday", "tuesday", "wednesday", "thursday", "friday"}

func (d Weekday) String() string {
	if int(d) < NumDays {
		return weekdayNames[d]
	}
	return fmt.Sprintf("weekday(%d)", d)
}

// Bit is the mask bit of d in an order's flags.
func (d Weekday) Bit() uint8 { return 1 << d }

type Shift uint8

const (
	Morning Shift = iota
	Afternoon
)

const NumShifts = 2

func (s Shift) String() string {
	if s == Morning {
		return "morning"
	}
	return "afternoon"
}

// RouteRef addresses one of the 20 shift routes of a solution.
type RouteRef struct {
	Truck Truck
	Day   Weekday
	Shift Shift
}

func (r RouteRef) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Truck, r.Day, r.Shift)
}

// DayRef addresses both shifts of one truck on one weekday.
type DayRef struct {
	Truck Truck
	Day   Weekday
}

func (r RouteRef) DayRef() DayRef { return DayRef{Truck: r.Truck, Day: r.Day} }

// AllRefs lists every route in truck, day, shift order.
func AllRefs() []RouteRef {
	refs := make([]RouteRef, 0, NumTrucks*NumDays*NumShifts)
	for t := range NumTrucks {
		for d := range NumDays {
			for s := range NumShifts {
				refs = append(refs, RouteRef{Truck(t), Weekday(d), Shift(s)})
			}
		}
	}
	return refs
}

// RefsOnDay lists the four routes that run on one weekday.
func RefsOnDay(d Weekday) [NumTrucks * NumShifts]RouteRef {
	return [...]RouteRef{
		{TruckOne, d, Morning}, {TruckOne, d, Afternoon},
		{TruckTwo, d, Morning}, {TruckTwo, d, Afternoon},
	}
}

func RandomTruck(rng *rand.Rand) Truck     { return Truck(rng.Intn(NumTrucks)) }
func RandomWeekday(rng *rand.Rand) Weekday { return Weekday(rng.Intn(NumDays)) }
func RandomShift(rng *rand.Rand) Shift     { return Shift(rng.Intn(NumShifts)) }

func RandomRef(rng *rand.Rand) RouteRef {
	return RouteRef{RandomTruck(rng), RandomWeekday(rng), RandomShift(rng)}
}
