package domain

import (
	"bytes"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultPoolFeeBps is the UniswapV2 swap fee (0.3%).
const DefaultPoolFeeBps = 30

// Pool is a snapshot of a constant-product pair.
type Pool struct {
	Address   common.Address `json:"address"`
	Factory   common.Address `json:"factory"`
	Token0    common.Address `json:"token0"`
	Token1    common.Address `json:"token1"`
	Reserve0  *big.Int       `json:"reserve0"`
	Reserve1  *big.Int       `json:"reserve1"`
	FeeBps    uint32         `json:"fee_bps"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SortTokens orders two addresses the way pair contracts do (lower first).
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return a, b
	}
	return b, a
}

// Has reports whether token is one of the pool's constituents.
func (p Pool) Has(token common.Address) bool {
	return p.Token0 == token || p.Token1 == token
}

// ReservesFor returns (reserveIn, reserveOut) for a swap that sells tokenIn.
func (p Pool) ReservesFor(tokenIn common.Address) (in, out *big.Int, ok bool) {
	switch tokenIn {
	case p.Token0:
		return p.Reserve0, p.Reserve1, true
	case p.Token1:
		return p.Reserve1, p.Reserve0, true
	}
	return nil, nil, false
}

// ReserveOf returns the reserve held for token, or nil.
func (p Pool) ReserveOf(token common.Address) *big.Int {
	switch token {
	case p.Token0:
		return p.Reserve0
	case p.Token1:
		return p.Reserve1
	}
	return nil
}

// Stale reports whether the snapshot is older than maxAge at now.
func (p Pool) Stale(now time.Time, maxAge time.Duration) bool {
	return p.UpdatedAt.IsZero() || now.Sub(p.UpdatedAt) > maxAge
}

// Empty reports whether either reserve is missing or zero.
func (p Pool) Empty() bool {
	return p.Reserve0 == nil || p.Reserve1 == nil || p.Reserve0.Sign() <= 0 || p.Reserve1.Sign() <= 0
}

// LiquidityReport is the outcome of a pool depth scan for a token pair.
type LiquidityReport struct {
	IsLiquid         bool     `json:"is_liquid"`
	IsTooDeep        bool     `json:"is_too_deep"`
	ValueInReference *big.Int `json:"value_in_reference"`
	BestPool         *Pool    `json:"best_pool,omitempty"`
}
