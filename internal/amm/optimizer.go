package amm

import (
	"fmt"
	"math"
	"math/big"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// Config holds sizing and cost parameters.
type Config struct {
	FeeBps           uint32
	MaxFrontRunRatio float64
	UseFlashLoan     bool
	FlashLoanFeeBips uint32
	GasUnits         uint64
	MinProfit        *big.Int
	VictimGasBumpBps uint32
	NetGasBumpBps    uint32
	MaxGasPrice      *big.Int
}

// DefaultConfig returns UniswapV2 fee, a 0.3v front-run cap, 1.15x/1.10x
// gas bumps and no profit floor.
func DefaultConfig() Config {
	return Config{
		FeeBps:           domain.DefaultPoolFeeBps,
		MaxFrontRunRatio: 0.3,
		FlashLoanFeeBips: 9,
		GasUnits:         350_000,
		MinProfit:        new(big.Int),
		VictimGasBumpBps: 1_500,
		NetGasBumpBps:    1_000,
	}
}

// Input describes one sizing problem. Reserves are oriented so the victim
// sells the ReserveIn side.
type Input struct {
	ReserveIn       *big.Int
	ReserveOut      *big.Int
	VictimIn        *big.Int
	VictimMinOut    *big.Int // nil when the victim guard does not bind this hop
	VictimGasPrice  *big.Int
	NetworkGasPrice *big.Int
	// ToReference converts input-token amounts to reference-asset (wei)
	// terms. Nil means the input token is the reference asset.
	ToReference func(*big.Int) *big.Int
}

// Optimizer computes the profit-maximising front-run for a victim swap.
type Optimizer struct {
	cfg Config
}

// New creates an Optimizer. Zero-valued fields fall back to DefaultConfig.
func New(cfg Config) *Optimizer {
	def := DefaultConfig()
	if cfg.FeeBps == 0 {
		cfg.FeeBps = def.FeeBps
	}
	if cfg.MaxFrontRunRatio <= 0 {
		cfg.MaxFrontRunRatio = def.MaxFrontRunRatio
	}
	if cfg.MinProfit == nil {
		cfg.MinProfit = def.MinProfit
	}
	return &Optimizer{cfg: cfg}
}

// Config returns the active configuration.
func (o *Optimizer) Config() Config { return o.cfg }

// Size runs the full sizing pipeline: seed, clamp, exact search, three-hop
// simulation, confidence, costs and gas price. A negative or zero optimum
// yields a zero front-run and zero profit, never an error.
func (o *Optimizer) Size(in Input) (domain.Sizing, error) {
	if in.ReserveIn == nil || in.ReserveOut == nil || in.ReserveIn.Sign() <= 0 || in.ReserveOut.Sign() <= 0 {
		return domain.Sizing{}, ErrInsufficientLiquidity
	}
	if in.VictimIn == nil || in.VictimIn.Sign() <= 0 {
		return domain.Sizing{}, ErrInsufficientInput
	}

	gamma := Gamma(o.cfg.FeeBps)
	x, v := toFloat(in.ReserveIn), toFloat(in.VictimIn)

	front, sim, err := o.searchFrontRun(in, gamma)
	if err != nil {
		return domain.Sizing{}, fmt.Errorf("amm: size: %w", err)
	}

	out := domain.Sizing{
		ClosedForm:  ClosedForm(x, v, gamma),
		FrontRunIn:  front,
		FrontRunOut: sim.FrontRunOut,
		VictimOut:   sim.VictimOut,
		BackRunOut:  sim.BackRunOut,
		GrossProfit: sim.GrossProfit,
		Confidence:  Confidence(toFloat(front), x),
	}

	out.FlashLoanFee = new(big.Int)
	if o.cfg.UseFlashLoan {
		out.FlashLoanFee = FlashLoanFee(front, o.cfg.FlashLoanFeeBips)
	}

	out.GasPrice, out.Executable = o.GasPrice(in.VictimGasPrice, in.NetworkGasPrice)
	out.GasCost = new(big.Int).Mul(new(big.Int).SetUint64(o.cfg.GasUnits), out.GasPrice)

	net := toReference(new(big.Int).Sub(out.GrossProfit, out.FlashLoanFee), in.ToReference)
	out.NetProfit = net.Sub(net, out.GasCost)
	out.Profitable = out.GrossProfit.Sign() > 0 && out.NetProfit.Cmp(o.cfg.MinProfit) >= 0
	return out, nil
}

// FrontRunCap is floor(MaxFrontRunRatio * v). The ratio is applied in
// basis points so 0.3 * 50 is exactly 15.
func (o *Optimizer) FrontRunCap(victimIn *big.Int) *big.Int {
	ratioBps := int64(math.Round(o.cfg.MaxFrontRunRatio * 10_000))
	if ratioBps <= 0 || victimIn.Sign() <= 0 {
		return new(big.Int)
	}
	capped := new(big.Int).Mul(victimIn, big.NewInt(ratioBps))
	return capped.Quo(capped, bpsDenominator)
}

// searchFrontRun picks the integer front-run in [0, cap] with the best exact
// gross profit. Candidates are the clamped closed-form seed, the continuous
// optimum on the clamp window and its integer neighbours, and the window
// edges. A victim slippage guard narrows the window first.
func (o *Optimizer) searchFrontRun(in Input, gamma float64) (*big.Int, Simulation, error) {
	limit := o.FrontRunCap(in.VictimIn)
	if in.VictimMinOut != nil && in.VictimMinOut.Sign() > 0 {
		guarded, err := o.guardLimit(in, limit)
		if err != nil {
			return nil, Simulation{}, err
		}
		limit = guarded
	}

	x, y, v := toFloat(in.ReserveIn), toFloat(in.ReserveOut), toFloat(in.VictimIn)
	hi := toFloat(limit)

	seed := floorInt(ClosedForm(x, v, gamma))
	cont := floorInt(Optimum(x, y, v, gamma, hi))
	candidates := []*big.Int{
		seed,
		cont,
		new(big.Int).Add(cont, big.NewInt(1)),
		new(big.Int).Set(limit),
	}

	best := new(big.Int)
	bestSim, err := Simulate(in.ReserveIn, in.ReserveOut, best, in.VictimIn, o.cfg.FeeBps)
	if err != nil {
		return nil, Simulation{}, err
	}
	for _, c := range candidates {
		if c.Sign() <= 0 {
			continue
		}
		if c.Cmp(limit) > 0 {
			c = new(big.Int).Set(limit)
		}
		sim, err := Simulate(in.ReserveIn, in.ReserveOut, c, in.VictimIn, o.cfg.FeeBps)
		if err != nil {
			return nil, Simulation{}, err
		}
		if sim.GrossProfit.Cmp(bestSim.GrossProfit) > 0 {
			best, bestSim = c, sim
		}
	}
	if bestSim.GrossProfit.Sign() <= 0 {
		zero, err := Simulate(in.ReserveIn, in.ReserveOut, new(big.Int), in.VictimIn, o.cfg.FeeBps)
		return new(big.Int), zero, err
	}
	return best, bestSim, nil
}

// guardLimit returns the largest front-run in [0, limit] after which the
// victim still receives at least VictimMinOut. Victim output falls as the
// front-run grows, so a binary search suffices.
func (o *Optimizer) guardLimit(in Input, limit *big.Int) (*big.Int, error) {
	ok := func(a *big.Int) (bool, error) {
		sim, err := Simulate(in.ReserveIn, in.ReserveOut, a, in.VictimIn, o.cfg.FeeBps)
		if err != nil {
			return false, err
		}
		return sim.VictimOut.Cmp(in.VictimMinOut) >= 0, nil
	}
	if fits, err := ok(limit); err != nil || fits {
		return limit, err
	}
	if fits, err := ok(new(big.Int)); err != nil || !fits {
		return new(big.Int), err
	}
	lo, hi := new(big.Int), new(big.Int).Set(limit)
	one := big.NewInt(1)
	for new(big.Int).Sub(hi, lo).Cmp(one) > 0 {
		mid := new(big.Int).Add(lo, hi)
		mid.Rsh(mid, 1)
		fits, err := ok(mid)
		if err != nil {
			return nil, err
		}
		if fits {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo, nil
}

func toReference(amount *big.Int, convert func(*big.Int) *big.Int) *big.Int {
	if convert == nil || amount.Sign() == 0 {
		return amount
	}
	v := convert(new(big.Int).Abs(amount))
	if v == nil {
		return new(big.Int)
	}
	v = new(big.Int).Set(v)
	if amount.Sign() < 0 {
		v.Neg(v)
	}
	return v
}

// FlashLoanFee is loan * feeBips / 10000, floored.
func FlashLoanFee(loan *big.Int, feeBips uint32) *big.Int {
	fee := new(big.Int).Mul(loan, big.NewInt(int64(feeBips)))
	return fee.Quo(fee, bpsDenominator)
}
