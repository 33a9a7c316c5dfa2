package amm

import (
	"math"
	"math/big"
)

// Gamma converts a fee in basis points to the fee-adjusted multiplier 1-f.
func Gamma(feeBps uint32) float64 {
	return 1 - float64(feeBps)/10_000
}

// ClosedForm is the closed-form front-run seed (sqrt(x*v*g) - x) / g.
// It is advisory and may be negative.
func ClosedForm(x, v, gamma float64) float64 {
	return (math.Sqrt(x*v*gamma) - x) / gamma
}

func amountOut(in, rIn, rOut, gamma float64) float64 {
	return rOut * in * gamma / (rIn + in*gamma)
}

// Profit is the continuous attacker profit P(a) for front-run a against
// reserves (x, y) and victim input v.
func Profit(a, x, y, v, gamma float64) float64 {
	b := amountOut(a, x, y, gamma)
	x1, y1 := x+a, y-b
	vo := amountOut(v, x1, y1, gamma)
	x2, y2 := x1+v, y1-vo
	return amountOut(b, y2, x2, gamma) - a
}

const goldenIterations = 200

// Optimum maximises Profit over [0, hi] by golden-section search, assuming
// P is unimodal on the interval. When the maximum is interior the result
// is the stationary point dP/da = 0.
func Optimum(x, y, v, gamma, hi float64) float64 {
	if hi <= 0 {
		return 0
	}
	phi := (math.Sqrt(5) - 1) / 2
	lo := 0.0
	c := hi - phi*(hi-lo)
	d := lo + phi*(hi-lo)
	pc, pd := Profit(c, x, y, v, gamma), Profit(d, x, y, v, gamma)
	for i := 0; i < goldenIterations && hi-lo > 1e-9*math.Max(1, hi); i++ {
		if pc < pd {
			lo = c
			c, pc = d, pd
			d = lo + phi*(hi-lo)
			pd = Profit(d, x, y, v, gamma)
		} else {
			hi = d
			d, pd = c, pc
			c = hi - phi*(hi-lo)
			pc = Profit(c, x, y, v, gamma)
		}
	}
	return (lo + hi) / 2
}

// Confidence is the linear price-impact penalty clamp(1 - 2a/x, 0, 1).
func Confidence(a, x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, 1-2*(a/x)))
}

func toFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

// floorInt converts a non-negative float back to the integer domain,
// always rounding down.
func floorInt(f float64) *big.Int {
	if f <= 0 || math.IsNaN(f) {
		return new(big.Int)
	}
	out, _ := new(big.Float).SetFloat64(math.Floor(f)).Int(nil)
	return out
}
