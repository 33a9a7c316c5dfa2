package amm

import (
	"math"
	"math/big"
	"testing"
)

func TestSizeSmallVictimClampsToZero(t *testing.T) {
	opt := New(DefaultConfig())
	s, err := opt.Size(Input{
		ReserveIn:  big.NewInt(1000),
		ReserveOut: big.NewInt(1000),
		VictimIn:   big.NewInt(10),
	})
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	want := (math.Sqrt(1000*10*0.997) - 1000) / 0.997
	if math.Abs(s.ClosedForm-want) > 1e-6 || s.ClosedForm >= 0 {
		t.Fatalf("ClosedForm = %f, want %f", s.ClosedForm, want)
	}
	if s.FrontRunIn.Sign() != 0 {
		t.Fatalf("FrontRunIn = %s, want 0", s.FrontRunIn)
	}
	if s.GrossProfit.Sign() != 0 {
		t.Fatalf("GrossProfit = %s, want 0", s.GrossProfit)
	}
	if s.Profitable {
		t.Fatal("zero front-run must not be profitable")
	}
}

func TestSizeLargeVictimHitsCap(t *testing.T) {
	opt := New(DefaultConfig())
	s, err := opt.Size(Input{
		ReserveIn:  big.NewInt(100),
		ReserveOut: big.NewInt(100),
		VictimIn:   big.NewInt(50),
	})
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if s.FrontRunIn.Int64() != 15 {
		t.Fatalf("FrontRunIn = %s, want 15", s.FrontRunIn)
	}
	if s.GrossProfit.Sign() <= 0 {
		t.Fatalf("GrossProfit = %s, want > 0", s.GrossProfit)
	}
	if s.FrontRunOut.Int64() != 13 || s.VictimOut.Int64() != 26 || s.BackRunOut.Int64() != 28 {
		t.Fatalf("hops = (%s, %s, %s), want (13, 26, 28)", s.FrontRunOut, s.VictimOut, s.BackRunOut)
	}
	if math.Abs(s.Confidence-0.7) > 1e-9 {
		t.Fatalf("Confidence = %f, want 0.7", s.Confidence)
	}
}

func TestSizeRespectsVictimSlippageGuard(t *testing.T) {
	opt := New(DefaultConfig())
	s, err := opt.Size(Input{
		ReserveIn:    big.NewInt(100),
		ReserveOut:   big.NewInt(100),
		VictimIn:     big.NewInt(50),
		VictimMinOut: big.NewInt(30),
	})
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if s.FrontRunIn.Int64() != 6 {
		t.Fatalf("FrontRunIn = %s, want 6", s.FrontRunIn)
	}
	if s.VictimOut.Int64() < 30 {
		t.Fatalf("VictimOut = %s breaks the victim guard", s.VictimOut)
	}
}

// The numerical optimum is a stationary point of the profit function.
func TestOptimumIsStationary(t *testing.T) {
	samples := []struct{ x, y, v float64 }{
		{1000, 1000, 10},
		{5000, 8000, 100},
		{1e6, 2e6, 5e3},
		{300, 200, 40},
	}
	gamma := Gamma(30)
	for _, s := range samples {
		hi := 64 * s.x
		a := Optimum(s.x, s.y, s.v, gamma, hi)
		if a <= 0 || a >= hi {
			t.Fatalf("%+v: optimum %f not interior", s, a)
		}
		eps := a * 1e-3
		p := Profit(a, s.x, s.y, s.v, gamma)
		if Profit(a-eps, s.x, s.y, s.v, gamma) >= p || Profit(a+eps, s.x, s.y, s.v, gamma) >= p {
			t.Fatalf("%+v: a=%f is not a local maximum", s, a)
		}
	}
}

func TestFrontRunWithinClamp(t *testing.T) {
	opt := New(DefaultConfig())
	for _, x := range []int64{10, 1_000, 1_000_000} {
		for _, y := range []int64{7, 1_000, 5_000_000} {
			for _, v := range []int64{1, 9, 500, 2_000_000} {
				s, err := opt.Size(Input{
					ReserveIn:  big.NewInt(x),
					ReserveOut: big.NewInt(y),
					VictimIn:   big.NewInt(v),
				})
				if err != nil {
					t.Fatalf("Size(%d, %d, %d): %v", x, y, v, err)
				}
				limit := big.NewInt(v * 3 / 10)
				if s.FrontRunIn.Sign() < 0 || s.FrontRunIn.Cmp(limit) > 0 {
					t.Fatalf("Size(%d, %d, %d): front-run %s outside [0, %s]", x, y, v, s.FrontRunIn, limit)
				}
				if s.Confidence < 0 || s.Confidence > 1 {
					t.Fatalf("Size(%d, %d, %d): confidence %f", x, y, v, s.Confidence)
				}
			}
		}
	}
}

func TestSizeNetProfitSubtractsCosts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseFlashLoan = true
	cfg.FlashLoanFeeBips = 100
	cfg.GasUnits = 2
	cfg.MinProfit = big.NewInt(1)
	opt := New(cfg)

	s, err := opt.Size(Input{
		ReserveIn:       big.NewInt(100_000),
		ReserveOut:      big.NewInt(100_000),
		VictimIn:        big.NewInt(50_000),
		VictimGasPrice:  big.NewInt(100),
		NetworkGasPrice: big.NewInt(10),
	})
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	wantFee := new(big.Int).Quo(new(big.Int).Mul(s.FrontRunIn, big.NewInt(100)), big.NewInt(10_000))
	if s.FlashLoanFee.Cmp(wantFee) != 0 {
		t.Fatalf("FlashLoanFee = %s, want %s", s.FlashLoanFee, wantFee)
	}
	if s.GasPrice.Int64() != 115 || s.GasCost.Int64() != 230 {
		t.Fatalf("gas = %s x 2 = %s, want 115 x 2 = 230", s.GasPrice, s.GasCost)
	}
	want := new(big.Int).Sub(s.GrossProfit, s.FlashLoanFee)
	want.Sub(want, s.GasCost)
	if s.NetProfit.Cmp(want) != 0 {
		t.Fatalf("NetProfit = %s, want %s", s.NetProfit, want)
	}
	if !s.Profitable || !s.Executable {
		t.Fatalf("Profitable=%v Executable=%v, want both", s.Profitable, s.Executable)
	}
}

func TestSizeConvertsProfitToReference(t *testing.T) {
	opt := New(DefaultConfig())
	double := func(v *big.Int) *big.Int { return new(big.Int).Mul(v, big.NewInt(2)) }
	s, err := opt.Size(Input{
		ReserveIn:   big.NewInt(100),
		ReserveOut:  big.NewInt(100),
		VictimIn:    big.NewInt(50),
		ToReference: double,
	})
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if s.NetProfit.Int64() != 26 {
		t.Fatalf("NetProfit = %s, want 26", s.NetProfit)
	}
}

func TestSizeRejectsEmptyInputs(t *testing.T) {
	opt := New(DefaultConfig())
	if _, err := opt.Size(Input{ReserveIn: big.NewInt(0), ReserveOut: big.NewInt(1), VictimIn: big.NewInt(1)}); err != ErrInsufficientLiquidity {
		t.Fatalf("err = %v, want ErrInsufficientLiquidity", err)
	}
	if _, err := opt.Size(Input{ReserveIn: big.NewInt(1), ReserveOut: big.NewInt(1), VictimIn: big.NewInt(0)}); err != ErrInsufficientInput {
		t.Fatalf("err = %v, want ErrInsufficientInput", err)
	}
}

func TestGasPrice(t *testing.T) {
	gwei := func(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000)) }
	tests := []struct {
		name       string
		max        *big.Int
		victim     *big.Int
		network    *big.Int
		want       *big.Int
		executable bool
	}{
		{"victim dominates", nil, gwei(100), gwei(50), gwei(115), true},
		{"network dominates", nil, gwei(10), gwei(100), gwei(110), true},
		{"cap still outbids", gwei(110), gwei(100), gwei(50), gwei(110), true},
		{"cap below victim", gwei(90), gwei(100), gwei(50), gwei(90), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MaxGasPrice = tc.max
			got, ok := New(cfg).GasPrice(tc.victim, tc.network)
			if got.Cmp(tc.want) != 0 || ok != tc.executable {
				t.Fatalf("GasPrice = (%s, %v), want (%s, %v)", got, ok, tc.want, tc.executable)
			}
		})
	}
}

func TestAboveMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxGasPrice = big.NewInt(100)
	opt := New(cfg)
	if !opt.AboveMax(big.NewInt(101)) || opt.AboveMax(big.NewInt(100)) {
		t.Fatal("AboveMax boundary wrong")
	}
	if New(DefaultConfig()).AboveMax(big.NewInt(1 << 60)) {
		t.Fatal("no maximum configured must never be above max")
	}
}
