package schedule

import "github.com/bjorn1004/route-finder/internal/model"

// Overtime is the penalty for a working day of the given length. Every
// minute beyond FullDay costs 3% extra.
func Overtime(total model.Time) model.Time {
	if total <= model.FullDay {
		return 0
	}
	return (total - model.FullDay) * 3 / 100
}

// DayCost is the score a truck day with the given total time contributes.
func DayCost(total model.Time) model.Time { return total + Overtime(total) }

// Day holds the morning and afternoon route of one truck.
type Day struct {
	Routes [NumShifts]*Route
}

func NewDay(ds *model.Dataset) Day {
	return Day{Routes: [NumShifts]*Route{NewRoute(ds), NewRoute(ds)}}
}

func (d *Day) Get(s Shift) *Route { return d.Routes[s] }

// TotalTime sums both shifts. Shifts without stops contribute nothing.
func (d *Day) TotalTime() model.Time {
	return d.Routes[Morning].Contribution() + d.Routes[Afternoon].Contribution()
}

func (d *Day) Cost() model.Time { return DayCost(d.TotalTime()) }

func (d Day) Clone() Day {
	return Day{Routes: [NumShifts]*Route{d.Routes[Morning].Clone(), d.Routes[Afternoon].Clone()}}
}

// Week is the schedule of one truck.
type Week struct {
	Days [NumDays]Day
}

func NewWeek(ds *model.Dataset) Week {
	var w Week
	for i := range w.Days {
		w.Days[i] = NewDay(ds)
	}
	return w
}

func (w *Week) Get(d Weekday) *Day { return &w.Days[d] }

func (w *Week) TotalTime() model.Time {
	var t model.Time
	for i := range w.Days {
		t += w.Days[i].TotalTime()
	}
	return t
}

// Cost includes per-day overtime.
func (w *Week) Cost() model.Time {
	var t model.Time
	for i := range w.Days {
		t += w.Days[i].Cost()
	}
	return t
}

func (w Week) Clone() Week {
	var c Week
	for i := range w.Days {
		c.Days[i] = w.Days[i].Clone()
	}
	return c
}
