package opt

import "time"

// Weights are the relative chances of each neighbourhood per step.
type Weights struct {
	Add              float64 `yaml:"add" json:"add" env:"ADD" validate:"gte=0"`
	Remove           float64 `yaml:"remove" json:"remove" env:"REMOVE" validate:"gte=0"`
	ShiftInRoute     float64 `yaml:"shiftInRoute" json:"shiftInRoute" env:"SHIFT_IN_ROUTE" validate:"gte=0"`
	ShiftBetweenDays float64 `yaml:"shiftBetweenDays" json:"shiftBetweenDays" env:"SHIFT_BETWEEN_DAYS" validate:"gte=0"`
	ShiftInDay       float64 `yaml:"shiftInDay" json:"shiftInDay" env:"SHIFT_IN_DAY" validate:"gte=0"`
}

func (w Weights) slice() []float64 {
	return []float64{w.Add, w.Remove, w.ShiftInRoute, w.ShiftBetweenDays, w.ShiftInDay}
}

// Params tune one worker's annealing and iterated local search.
type Params struct {
	StartTemp float64
	EndTemp   float64
	// Q is the number of iterations between two cooling steps.
	Q     int
	Alpha float64

	ReheatTemp        float64
	PerturbTemp       float64
	PerturbIterations int
	// Rounds of perturb and re-anneal after the first anneal; 0 runs until stopped.
	Rounds int

	Weights        Weights
	PerturbWeights Weights

	// PublishEvery throttles status snapshots to one per that many iterations.
	PublishEvery int
	// RepublishInterval is how often a paused worker resends its snapshot.
	RepublishInterval time.Duration
	// MaxSelectAttempts bounds the retries when no move can be instantiated.
	MaxSelectAttempts int
}

func DefaultParams() Params {
	return Params{
		StartTemp:         10_000_000,
		EndTemp:           10,
		Q:                 500_000,
		Alpha:             0.99,
		ReheatTemp:        100_000,
		PerturbTemp:       10_000_000,
		PerturbIterations: 10_000,
		Weights:           Weights{Add: 8, Remove: 1, ShiftInRoute: 6, ShiftBetweenDays: 2, ShiftInDay: 3},
		PerturbWeights:    Weights{Add: 1, Remove: 3, ShiftInRoute: 1, ShiftBetweenDays: 1, ShiftInDay: 1},
		PublishEvery:      1000,
		RepublishInterval: 250 * time.Millisecond,
		MaxSelectAttempts: 1000,
	}
}

// withDefaults fills zero fields from DefaultParams.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.StartTemp <= 0 {
		p.StartTemp = d.StartTemp
	}
	if p.EndTemp <= 0 {
		p.EndTemp = d.EndTemp
	}
	if p.Q <= 0 {
		p.Q = d.Q
	}
	if p.Alpha <= 0 || p.Alpha >= 1 {
		p.Alpha = d.Alpha
	}
	if p.ReheatTemp <= 0 {
		p.ReheatTemp = d.ReheatTemp
	}
	if p.PerturbTemp <= 0 {
		p.PerturbTemp = d.PerturbTemp
	}
	if p.PerturbIterations < 0 {
		p.PerturbIterations = 0
	}
	if p.Weights == (Weights{}) {
		p.Weights = d.Weights
	}
	if p.PerturbWeights == (Weights{}) {
		p.PerturbWeights = d.PerturbWeights
	}
	if p.PublishEvery <= 0 {
		p.PublishEvery = d.PublishEvery
	}
	if p.RepublishInterval <= 0 {
		p.RepublishInterval = d.RepublishInterval
	}
	if p.MaxSelectAttempts <= 0 {
		p.MaxSelectAttempts = d.MaxSelectAttempts
	}
	return p
}
