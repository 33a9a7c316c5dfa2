package amm

import (
	"math/big"
	"testing"
)

func TestGetAmountOutMatchesPairFormula(t *testing.T) {
	tests := []struct {
		name          string
		in, rIn, rOut int64
		want          int64
	}{
		{"zero input", 0, 1000, 1000, 0},
		{"small trade", 10, 1000, 1000, 9},
		{"half pool", 50, 100, 100, 33},
		{"asymmetric", 1_000, 50_000, 2_000_000, 39_100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := GetAmountOut(big.NewInt(tc.in), big.NewInt(tc.rIn), big.NewInt(tc.rOut), 30)
			if err != nil {
				t.Fatalf("GetAmountOut: %v", err)
			}
			if got.Int64() != tc.want {
				t.Fatalf("GetAmountOut(%d, %d, %d) = %s, want %d", tc.in, tc.rIn, tc.rOut, got, tc.want)
			}
		})
	}
}

func TestGetAmountOutRejectsEmptyReserves(t *testing.T) {
	if _, err := GetAmountOut(big.NewInt(1), big.NewInt(0), big.NewInt(10), 30); err != ErrInsufficientLiquidity {
		t.Fatalf("err = %v, want ErrInsufficientLiquidity", err)
	}
	if _, err := GetAmountOut(big.NewInt(-1), big.NewInt(10), big.NewInt(10), 30); err != ErrInsufficientInput {
		t.Fatalf("err = %v, want ErrInsufficientInput", err)
	}
}

func TestGetAmountInCoversRequestedOutput(t *testing.T) {
	rIn, rOut := big.NewInt(1_000_000), big.NewInt(2_000_000)
	for _, want := range []int64{1, 999, 50_000, 400_000} {
		in, err := GetAmountIn(big.NewInt(want), rIn, rOut, 30)
		if err != nil {
			t.Fatalf("GetAmountIn(%d): %v", want, err)
		}
		out, _ := GetAmountOut(in, rIn, rOut, 30)
		if out.Int64() < want {
			t.Fatalf("GetAmountIn(%d) = %s buys only %s", want, in, out)
		}
	}
	if _, err := GetAmountIn(rOut, rIn, rOut, 30); err != ErrInsufficientLiquidity {
		t.Fatalf("draining the pool: err = %v, want ErrInsufficientLiquidity", err)
	}
}

// Applying the pair formula three times never drives a reserve negative
// and never pays out more than the reserve on hand.
func TestSimulateConservesReserves(t *testing.T) {
	cases := []struct{ x, y, a, v int64 }{
		{1000, 1000, 3, 10},
		{100, 100, 15, 50},
		{5, 7, 100, 1000},
		{1_000_000, 3, 400_000, 900_000},
		{1, 1, 0, 1},
	}
	for _, c := range cases {
		x, y := big.NewInt(c.x), big.NewInt(c.y)
		sim, err := Simulate(x, y, big.NewInt(c.a), big.NewInt(c.v), 30)
		if err != nil {
			t.Fatalf("Simulate(%+v): %v", c, err)
		}
		if sim.FrontRunOut.Cmp(y) >= 0 {
			t.Fatalf("%+v: front-run out %s >= reserve %s", c, sim.FrontRunOut, y)
		}
		afterFront := new(big.Int).Sub(y, sim.FrontRunOut)
		if sim.VictimOut.Cmp(afterFront) >= 0 {
			t.Fatalf("%+v: victim out %s >= reserve %s", c, sim.VictimOut, afterFront)
		}
		inSide := big.NewInt(c.x + c.a + c.v)
		if sim.BackRunOut.Cmp(inSide) >= 0 {
			t.Fatalf("%+v: back-run out %s >= reserve %s", c, sim.BackRunOut, inSide)
		}
		if sim.FinalIn.Sign() <= 0 || sim.FinalOut.Sign() <= 0 {
			t.Fatalf("%+v: final reserves (%s, %s) not positive", c, sim.FinalIn, sim.FinalOut)
		}
		if x.Int64() != c.x || y.Int64() != c.y {
			t.Fatalf("%+v: inputs mutated", c)
		}
	}
}

func TestFormatUnits(t *testing.T) {
	wei, _ := new(big.Int).SetString("1500000000000000000", 10)
	if got := FormatUnits(wei, 18); got != "1.5" {
		t.Fatalf("FormatUnits = %q, want 1.5", got)
	}
	if got := FormatGwei(big.NewInt(25_000_000_000)); got != "25" {
		t.Fatalf("FormatGwei = %q, want 25", got)
	}
	if got := FormatUnits(nil, 18); got != "0" {
		t.Fatalf("FormatUnits(nil) = %q", got)
	}
}
