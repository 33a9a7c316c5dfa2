// Package classifier turns pending router transactions into TradeIntents
// and gates them on token risk, pool depth and victim size.
package classifier

import (
	"context"
	"errors"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// Registry is the subset of the token registry the gates consult.
type Registry interface {
	IsBlacklisted(ctx context.Context, addr common.Address) bool
	PoolLiquidity(ctx context.Context, a, b common.Address) (domain.LiquidityReport, error)
	ValueInReferenceAsset(ctx context.Context, token common.Address, amount *big.Int) *big.Int
}

// Config lists the recognised routers and gate thresholds.
type Config struct {
	Routers     []common.Address
	WETH        common.Address
	MinVictimIn *big.Int // reference-asset units
}

// Classifier decodes and gates pending transactions. It is safe for
// concurrent use; the selector table is built once and only read.
type Classifier struct {
	routers   map[common.Address]struct{}
	variants  map[[4]byte]variant
	weth      common.Address
	minVictim *big.Int
	registry  Registry
	logger    *slog.Logger
}

// New creates a Classifier.
func New(cfg Config, registry Registry, logger *slog.Logger) *Classifier {
	routers := make(map[common.Address]struct{}, len(cfg.Routers))
	for _, r := range cfg.Routers {
		routers[r] = struct{}{}
	}
	minVictim := new(big.Int)
	if cfg.MinVictimIn != nil {
		minVictim.Set(cfg.MinVictimIn)
	}
	return &Classifier{
		routers:   routers,
		variants:  buildVariants(),
		weth:      cfg.WETH,
		minVictim: minVictim,
		registry:  registry,
		logger:    logger.With(slog.String("component", "classifier")),
	}
}

// IsRouter reports whether addr is a recognised router.
func (c *Classifier) IsRouter(addr common.Address) bool {
	_, ok := c.routers[addr]
	return ok
}

// Decode extracts a TradeIntent without consulting the registry. It is a
// pure function of the transaction: the same input always yields the same
// intent or the same reason.
func (c *Classifier) Decode(tx domain.PendingTx) (*domain.TradeIntent, domain.RejectReason) {
	if tx.To == nil || !c.IsRouter(*tx.To) {
		return nil, domain.RejectNotRouter
	}
	if len(tx.Data) < 4 {
		return nil, domain.RejectUnknownSelector
	}
	var sel [4]byte
	copy(sel[:], tx.Data[:4])
	v, ok := c.variants[sel]
	if !ok {
		return nil, domain.RejectUnknownSelector
	}

	args, err := v.method.Inputs.Unpack(tx.Data[4:])
	if err != nil {
		return nil, domain.RejectMalformedCalldata
	}
	intent, err := v.extract(args, tx, c.weth)
	if errors.Is(err, errShortPath) {
		return nil, domain.RejectShortPath
	}
	if err != nil {
		c.logger.Debug("calldata rejected",
			slog.String("tx", tx.Hash.Hex()),
			slog.String("variant", string(v.name)),
			slog.String("error", err.Error()),
		)
		return nil, domain.RejectMalformedCalldata
	}
	return &intent, domain.RejectNone
}

// Classify decodes tx and applies the risk, liquidity and size gates. A nil
// intent always comes with a reason; RPC failures surface as rejections.
func (c *Classifier) Classify(ctx context.Context, tx domain.PendingTx) (*domain.TradeIntent, domain.RejectReason) {
	intent, reason := c.Decode(tx)
	if intent == nil {
		return nil, reason
	}

	tokenIn, tokenOut := intent.TokenIn(), intent.TokenOut()
	if c.registry.IsBlacklisted(ctx, tokenIn) || c.registry.IsBlacklisted(ctx, tokenOut) {
		return nil, domain.RejectBlacklisted
	}

	report, err := c.registry.PoolLiquidity(ctx, tokenIn, tokenOut)
	if err != nil {
		c.logger.WarnContext(ctx, "liquidity lookup failed",
			slog.String("tx", tx.Hash.Hex()),
			slog.String("error", err.Error()),
		)
		return nil, domain.RejectReservesUnavailable
	}
	if report.IsTooDeep {
		return nil, domain.RejectTooDeep
	}
	if !report.IsLiquid {
		return nil, domain.RejectIlliquid
	}

	value := c.registry.ValueInReferenceAsset(ctx, tokenIn, intent.AmountIn)
	if value == nil || value.Cmp(c.minVictim) < 0 {
		return nil, domain.RejectVictimTooSmall
	}
	return intent, domain.RejectNone
}
