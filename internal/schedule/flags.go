package schedule

import (
	"fmt"
	"math/bits"
	"math/rand"
	"slices"

	"github.com/bjorn1004/route-finder/internal/model"
)

// Day patterns an order may be visited on, per frequency. These are business
// rules: twice a week is Monday/Thursday or Tuesday/Friday, three times is
// Monday/Wednesday/Friday and four times is any four days.
var patterns = [...][]uint8{
	model.Depot:         nil,
	model.OncePerWeek:   {0b00001, 0b00010, 0b00100, 0b01000, 0b10000},
	model.TwicePerWeek:  {0b01001, 0b10010},
	model.ThricePerWeek: {0b10101},
	model.FourPerWeek:   {0b11110, 0b11101, 0b11011, 0b10111, 0b01111},
}

// AllowedDays returns the mask of days that may still be added to an order
// with the given visits so that it can complete one of its patterns.
func AllowedDays(mask uint8, freq model.Frequency) uint8 {
	if int(freq) >= len(patterns) || bits.OnesCount8(mask) >= int(freq) {
		return 0
	}
	var allowed uint8
	for _, p := range patterns[freq] {
		if p&mask == mask {
			allowed |= p
		}
	}
	return allowed &^ mask
}

// PickDay returns a uniformly random day from mask.
func PickDay(mask uint8, rng *rand.Rand) (Weekday, bool) {
	n := bits.OnesCount8(mask)
	if n == 0 {
		return 0, false
	}
	k := rng.Intn(n)
	for d := range NumDays {
		if mask&(1<<d) == 0 {
			continue
		}
		if k == 0 {
			return Weekday(d), true
		}
		k--
	}
	return 0, false
}

// Days expands a mask into weekdays in ascending order.
func Days(mask uint8) []Weekday {
	var out []Weekday
	for d := range NumDays {
		if mask&(1<<d) != 0 {
			out = append(out, Weekday(d))
		}
	}
	return out
}

// OrderFlags records on which weekdays each order currently has a visit.
type OrderFlags struct {
	masks []uint8
	freq  []model.Frequency
}

func NewOrderFlags(ds *model.Dataset) *OrderFlags {
	f := &OrderFlags{masks: make([]uint8, ds.Len()), freq: make([]model.Frequency, ds.Len())}
	for i, o := range ds.Orders {
		f.freq[i] = o.Frequency
	}
	return f
}

// Add marks a visit of order on day. Marking a day twice is a programming error.
func (f *OrderFlags) Add(order int, day Weekday) {
	if f.masks[order]&day.Bit() != 0 {
		panic(fmt.Sprintf("flags: order %d already visited on %s", order, day))
	}
	f.masks[order] ^= day.Bit()
}

// Remove clears the visit of order on day. Clearing an unset day is a programming error.
func (f *OrderFlags) Remove(order int, day Weekday) {
	if f.masks[order]&day.Bit() == 0 {
		panic(fmt.Sprintf("flags: order %d has no visit on %s", order, day))
	}
	f.masks[order] ^= day.Bit()
}

func (f *OrderFlags) Mask(order int) uint8 { return f.masks[order] }

func (f *OrderFlags) Has(order int, day Weekday) bool { return f.masks[order]&day.Bit() != 0 }

// Filled is the number of days order is visited on.
func (f *OrderFlags) Filled(order int) int { return bits.OnesCount8(f.masks[order]) }

// Complete reports whether the order has all visits its frequency needs.
func (f *OrderFlags) Complete(order int) bool {
	return f.freq[order] != model.Depot && f.Filled(order) == int(f.freq[order])
}

// RandomAllowedDay picks an unused weekday that keeps the order on one of its
// legal patterns. It reports false once the frequency is met.
func (f *OrderFlags) RandomAllowedDay(order int, rng *rand.Rand) (Weekday, bool) {
	return PickDay(AllowedDays(f.masks[order], f.freq[order]), rng)
}

// RandomDayToShiftTo picks a day the visit on excluding may move to.
func (f *OrderFlags) RandomDayToShiftTo(order int, excluding Weekday, rng *rand.Rand) (Weekday, bool) {
	mask := f.masks[order] &^ excluding.Bit()
	return PickDay(AllowedDays(mask, f.freq[order])&^excluding.Bit(), rng)
}

// OtherDays lists the visited days of order other than day.
func (f *OrderFlags) OtherDays(order int, day Weekday) []Weekday {
	return Days(f.masks[order] &^ day.Bit())
}

// Clear drops every visit of order.
func (f *OrderFlags) Clear(order int) { f.masks[order] = 0 }

func (f *OrderFlags) Clone() *OrderFlags {
	return &OrderFlags{masks: slices.Clone(f.masks), freq: f.freq}
}
