// Package amm implements constant-product pool math and sandwich sizing.
//
// Every amount that ends up in a transaction is computed with math/big and
// floor division, matching the integer truncation of UniswapV2 pairs.
// Floating point is only used to search for the optimum.
package amm

import (
	"errors"
	"math/big"
)

var (
	ErrInsufficientInput     = errors.New("amm: insufficient input amount")
	ErrInsufficientOutput    = errors.New("amm: insufficient output amount")
	ErrInsufficientLiquidity = errors.New("amm: insufficient liquidity")
)

var bpsDenominator = big.NewInt(10_000)

// GetAmountOut returns the output of selling amountIn into a pair with the
// given reserves, floored. A zero input yields zero.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint32) (*big.Int, error) {
	if amountIn.Sign() < 0 {
		return nil, ErrInsufficientInput
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	if amountIn.Sign() == 0 {
		return new(big.Int), nil
	}
	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(int64(10_000-feeBps)))
	num := new(big.Int).Mul(inWithFee, reserveOut)
	den := new(big.Int).Mul(reserveIn, bpsDenominator)
	den.Add(den, inWithFee)
	return num.Quo(num, den), nil
}

// GetAmountIn returns the minimum input that buys amountOut, rounded up
// by one unit the way the router does.
func GetAmountIn(amountOut, reserveIn, reserveOut *big.Int, feeBps uint32) (*big.Int, error) {
	if amountOut.Sign() <= 0 {
		return nil, ErrInsufficientOutput
	}
	if reserveIn.Sign() <= 0 || reserveOut.Cmp(amountOut) <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	num := new(big.Int).Mul(reserveIn, amountOut)
	num.Mul(num, bpsDenominator)
	den := new(big.Int).Sub(reserveOut, amountOut)
	den.Mul(den, big.NewInt(int64(10_000-feeBps)))
	num.Quo(num, den)
	return num.Add(num, big.NewInt(1)), nil
}

// Simulation is the result of replaying front-run, victim and back-run
// against one pair.
type Simulation struct {
	FrontRunOut *big.Int
	VictimOut   *big.Int
	BackRunOut  *big.Int
	GrossProfit *big.Int
	// Reserves after all three hops, (in-side, out-side).
	FinalIn  *big.Int
	FinalOut *big.Int
}

// Simulate applies the three swaps in order, updating reserves after each
// hop. reserveIn is the side the victim sells.
func Simulate(reserveIn, reserveOut, frontIn, victimIn *big.Int, feeBps uint32) (Simulation, error) {
	x := new(big.Int).Set(reserveIn)
	y := new(big.Int).Set(reserveOut)

	frontOut, err := GetAmountOut(frontIn, x, y, feeBps)
	if err != nil {
		return Simulation{}, err
	}
	x.Add(x, frontIn)
	y.Sub(y, frontOut)

	victimOut, err := GetAmountOut(victimIn, x, y, feeBps)
	if err != nil {
		return Simulation{}, err
	}
	x.Add(x, victimIn)
	y.Sub(y, victimOut)

	backOut, err := GetAmountOut(frontOut, y, x, feeBps)
	if err != nil {
		return Simulation{}, err
	}
	y.Add(y, frontOut)
	x.Sub(x, backOut)

	return Simulation{
		FrontRunOut: frontOut,
		VictimOut:   victimOut,
		BackRunOut:  backOut,
		GrossProfit: new(big.Int).Sub(backOut, frontIn),
		FinalIn:     x,
		FinalOut:    y,
	}, nil
}
