// Package finance holds the numeric primitives behind the IRR pipeline.
package finance

import (
	"errors"
	"math"
)

const (
	defaultMaxIterations = 100
	defaultTolerance     = 1e-10

	// minDerivative is the slope under which a Newton step is considered unusable
	minDerivative = 1e-12

	// The bracket scan walks 1+r geometrically away from 1, reaching r ~ 2e4 upward and r ~ -0.99996 downward
	bracketSteps    = 1000
	bracketGrowth   = 1.01
	bracketShrink   = 1 / bracketGrowth
	maxBisectionRun = 200
)

var (
	ErrTooFewValues  = errors.New("at least two values are required")
	ErrNoSignChange  = errors.New("values must contain both a positive and a negative flow")
	ErrNoConvergence = errors.New("irr did not converge")
)

// Solver finds internal rates of return
// When a series has several roots the one nearest zero wins
type Solver struct {
	// MaxIterations caps the Newton steps taken inside a bracket before plain bisection takes over
	MaxIterations int
	Tolerance     float64
}

// NewSolver creates a Solver with default settings
func NewSolver() *Solver {
	return &Solver{
		MaxIterations: defaultMaxIterations,
		Tolerance:     defaultTolerance,
	}
}

// NPV returns the net present value of values at the given periodic rate
// values[0] is undiscounted, values[i] is discounted i periods
func NPV(rate float64, values []float64) float64 {
	npv := 0.0
	discount := 1.0
	for _, v := range values {
		npv += v / discount
		discount *= 1 + rate
	}
	return npv
}

// npvDerivative returns d(NPV)/d(rate)
func npvDerivative(rate float64, values []float64) float64 {
	d := 0.0
	discount := 1 + rate
	for i, v := range values {
		if i == 0 {
			continue
		}
		discount *= 1 + rate
		d -= float64(i) * v / discount
	}
	return d
}

// IRR returns the periodic rate r > -1 nearest zero at which NPV(r, values) is zero
// Logic:
//  1. Scan upward and downward from zero for the first sign change on each side
//  2. Refine each bracket found
//  3. Keep the root with the smallest absolute value
func (s *Solver) IRR(values []float64) (float64, error) {
	if len(values) < 2 {
		return 0, ErrTooFewValues
	}
	if !hasSignChange(values) {
		return 0, ErrNoSignChange
	}
	if NPV(0, values) == 0 {
		return 0, nil
	}

	best, found := 0.0, false
	for _, ratio := range []float64{bracketGrowth, bracketShrink} {
		lo, hi, ok := bracket(values, ratio)
		if !ok {
			continue
		}
		rate, err := s.refine(values, lo, hi)
		if err != nil {
			return 0, err
		}
		if !found || math.Abs(rate) < math.Abs(best) {
			best, found = rate, true
		}
	}
	if !found {
		return 0, ErrNoConvergence
	}
	return best, nil
}

// bracket walks 1+r away from 1 by ratio and returns the first interval, lo < hi,
// over which NPV changes sign
func bracket(values []float64, ratio float64) (float64, float64, bool) {
	prev, fPrev := 0.0, NPV(0, values)
	x := 1.0
	for i := 0; i < bracketSteps; i++ {
		x *= ratio
		next := x - 1
		fNext := NPV(next, values)
		if straddlesRoot(fPrev, fNext) {
			return math.Min(prev, next), math.Max(prev, next), true
		}
		prev, fPrev = next, fNext
	}
	return 0, 0, false
}

// straddlesRoot reports whether a root lies in the closed interval between two NPV samples
func straddlesRoot(a, b float64) bool {
	return a == 0 || b == 0 || (a < 0) != (b < 0)
}

// refine narrows a bracketed root, taking Newton steps while they stay inside the bracket
// and bisecting otherwise
func (s *Solver) refine(values []float64, lo, hi float64) (float64, error) {
	fLo := NPV(lo, values)
	if fLo == 0 {
		return lo, nil
	}
	if NPV(hi, values) == 0 {
		return hi, nil
	}

	rate := (lo + hi) / 2
	for i := 0; i < s.MaxIterations+maxBisectionRun; i++ {
		f := NPV(rate, values)
		if f == 0 {
			return rate, nil
		}
		if (f < 0) == (fLo < 0) {
			lo, fLo = rate, f
		} else {
			hi = rate
		}

		next := (lo + hi) / 2
		if i < s.MaxIterations {
			if df := npvDerivative(rate, values); math.Abs(df) >= minDerivative {
				if step := rate - f/df; step > lo && step < hi {
					next = step
				}
			}
		}
		if math.Abs(next-rate) < s.Tolerance || hi-lo < s.Tolerance {
			return next, nil
		}
		rate = next
	}
	return 0, ErrNoConvergence
}

func hasSignChange(values []float64) bool {
	positive, negative := false, false
	for _, v := range values {
		if v > 0 {
			positive = true
		} else if v < 0 {
			negative = true
		}
	}
	return positive && negative
}
