// Package token resolves token metadata, risk and pool liquidity for the
// sandwich pipeline, caching chain reads with fixed TTLs.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/sandwichbot/internal/amm"
	"github.com/alanyoungcy/sandwichbot/internal/chain"
	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// ChainReader is the subset of the RPC client the registry queries.
type ChainReader interface {
	chain.Caller
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// Config tunes the registry. Liquidity thresholds are in reference-asset
// (wei) units.
type Config struct {
	MetadataTTL        time.Duration
	ReserveTTL         time.Duration
	PairTTL            time.Duration
	Factories          []common.Address
	Reference          common.Address
	Intermediate       common.Address
	Denylist           []common.Address
	Allowlist          []common.Address
	MinLiquidity       *big.Int
	MaxLiquidity       *big.Int
	FallbackHaircutBps uint32
	FeeBps             uint32
	ScanWorkers        int
}

func (c *Config) applyDefaults() {
	if c.MetadataTTL <= 0 {
		c.MetadataTTL = 10 * time.Minute
	}
	if c.ReserveTTL <= 0 {
		c.ReserveTTL = 30 * time.Second
	}
	if c.PairTTL <= 0 {
		c.PairTTL = time.Hour
	}
	if c.FeeBps == 0 {
		c.FeeBps = domain.DefaultPoolFeeBps
	}
	if c.ScanWorkers <= 0 {
		c.ScanWorkers = 4
	}
	if c.MinLiquidity == nil {
		c.MinLiquidity = new(big.Int)
	}
}

type pairKey struct {
	factory common.Address
	token0  common.Address
	token1  common.Address
}

type pairMeta struct {
	factory common.Address
	token0  common.Address
	token1  common.Address
}

// Registry resolves token metadata, risk classes and pool liquidity.
type Registry struct {
	reader ChainReader
	index  domain.PairIndex
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	deny  map[common.Address]struct{}
	allow map[common.Address]struct{}

	tokens *ttlCache[common.Address, domain.Token]
	pools  *ttlCache[common.Address, domain.Pool]
	pairs  *ttlCache[pairKey, common.Address]

	mu   sync.RWMutex
	risk map[common.Address]domain.RiskClass
	meta map[common.Address]pairMeta
}

// New creates a Registry. index may be nil, in which case pair lookups
// always go to the factories.
func New(reader ChainReader, index domain.PairIndex, cfg Config, logger *slog.Logger) *Registry {
	return newRegistry(reader, index, cfg, logger, time.Now)
}

func newRegistry(reader ChainReader, index domain.PairIndex, cfg Config, logger *slog.Logger, now func() time.Time) *Registry {
	cfg.applyDefaults()
	r := &Registry{
		reader: reader,
		index:  index,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "token_registry")),
		now:    now,
		deny:   make(map[common.Address]struct{}, len(cfg.Denylist)),
		allow:  make(map[common.Address]struct{}, len(cfg.Allowlist)+2),
		tokens: newTTLCache[common.Address, domain.Token](cfg.MetadataTTL, now),
		pools:  newTTLCache[common.Address, domain.Pool](cfg.ReserveTTL, now),
		pairs:  newTTLCache[pairKey, common.Address](cfg.PairTTL, now),
		risk:   make(map[common.Address]domain.RiskClass),
		meta:   make(map[common.Address]pairMeta),
	}
	for _, a := range cfg.Denylist {
		r.deny[a] = struct{}{}
	}
	for _, a := range cfg.Allowlist {
		r.allow[a] = struct{}{}
	}
	r.allow[cfg.Reference] = struct{}{}
	if cfg.Intermediate != (common.Address{}) {
		r.allow[cfg.Intermediate] = struct{}{}
	}
	return r
}

// Resolve returns token metadata, fetching and caching it on a miss.
// Metadata failures yield 18 decimals and an UNKNOWN symbol instead of an
// error; such placeholders are not cached.
func (r *Registry) Resolve(ctx context.Context, addr common.Address) domain.Token {
	if t, ok := r.tokens.Get(addr); ok {
		return t
	}

	tok := domain.DefaultToken(addr, r.now())
	complete := true
	if dec, err := chain.Decimals(ctx, r.reader, addr); err == nil {
		tok.Decimals = dec
	} else {
		complete = false
		r.logger.DebugContext(ctx, "decimals unavailable, using default",
			slog.String("token", addr.Hex()),
			slog.String("error", err.Error()),
		)
	}
	if sym, err := chain.Symbol(ctx, r.reader, addr); err == nil {
		tok.Symbol = sym
	}
	if name, err := chain.Name(ctx, r.reader, addr); err == nil {
		tok.Name = name
	}

	class, err := r.classify(ctx, addr)
	if err != nil {
		complete = false
	}
	tok.Risk = r.record(addr, class, true)

	if complete {
		r.tokens.Put(addr, tok)
	}
	return tok
}

// IsBlacklisted reports whether addr must not be traded: statically denied,
// or flagged by the bytecode heuristic. Any error while checking yields true.
func (r *Registry) IsBlacklisted(ctx context.Context, addr common.Address) bool {
	if _, ok := r.deny[addr]; ok {
		return true
	}
	if _, ok := r.allow[addr]; ok {
		return false
	}
	if class := r.knownRisk(addr); class != domain.RiskUnknown {
		return class.Blocked()
	}

	class, err := r.classify(ctx, addr)
	if err != nil {
		r.logger.WarnContext(ctx, "risk check failed, treating token as blacklisted",
			slog.String("token", addr.Hex()),
			slog.String("error", err.Error()),
		)
		return true
	}
	return r.record(addr, class, true).Blocked()
}

// Reclassify raises the risk class of addr. Downgrades are ignored, and an
// unresolved Unknown is never lowered to Clean.
func (r *Registry) Reclassify(addr common.Address, class domain.RiskClass) domain.RiskClass {
	return r.record(addr, class, false)
}

// record stores class for addr. Unknown never overwrites a recorded class.
// When resolving, a bytecode verdict replaces an unresolved Unknown, since
// Unknown there only means an earlier check failed. Otherwise severity only
// rises.
func (r *Registry) record(addr common.Address, class domain.RiskClass, resolving bool) domain.RiskClass {
	r.mu.Lock()
	next := class
	if cur, ok := r.risk[addr]; ok {
		switch {
		case class == domain.RiskUnknown:
			next = cur
		case resolving && cur == domain.RiskUnknown:
			next = class
		default:
			next = cur.Upgrade(class)
		}
	}
	r.risk[addr] = next
	r.mu.Unlock()

	r.tokens.Replace(addr, func(t domain.Token) domain.Token {
		t.Risk = next
		return t
	})
	return next
}

func (r *Registry) knownRisk(addr common.Address) domain.RiskClass {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.risk[addr]; ok {
		return c
	}
	return domain.RiskUnknown
}

func (r *Registry) classify(ctx context.Context, addr common.Address) (domain.RiskClass, error) {
	if _, ok := r.deny[addr]; ok {
		return domain.RiskBlacklisted, nil
	}
	if _, ok := r.allow[addr]; ok {
		return domain.RiskClean, nil
	}
	code, err := r.reader.CodeAt(ctx, addr, nil)
	if err != nil {
		return domain.RiskUnknown, fmt.Errorf("token: code at %s: %w", addr.Hex(), err)
	}
	return ClassifyBytecode(code)
}

// PoolReserves returns the pool snapshot, refetching it when older than the
// reserve TTL.
func (r *Registry) PoolReserves(ctx context.Context, pool common.Address) (domain.Pool, error) {
	if p, ok := r.pools.Get(pool); ok {
		return p, nil
	}
	return r.RefreshPool(ctx, pool)
}

// RefreshPool always reads the pool's reserves from chain and caches them.
func (r *Registry) RefreshPool(ctx context.Context, pool common.Address) (domain.Pool, error) {
	r.mu.RLock()
	m, ok := r.meta[pool]
	r.mu.RUnlock()
	if !ok {
		t0, t1, err := chain.PairTokens(ctx, r.reader, pool)
		if err != nil {
			return domain.Pool{}, fmt.Errorf("token: pool tokens: %w", err)
		}
		m = pairMeta{token0: t0, token1: t1}
		r.mu.Lock()
		r.meta[pool] = m
		r.mu.Unlock()
	}

	r0, r1, err := chain.GetReserves(ctx, r.reader, pool)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("token: reserves: %w", err)
	}
	p := domain.Pool{
		Address:   pool,
		Factory:   m.factory,
		Token0:    m.token0,
		Token1:    m.token1,
		Reserve0:  r0,
		Reserve1:  r1,
		FeeBps:    r.cfg.FeeBps,
		UpdatedAt: r.now(),
	}
	r.pools.Put(pool, p)
	return p, nil
}

// pairFor finds the pool a factory created for (a, b), consulting the
// in-memory cache, then the persistent index, then the factory. The zero
// address means no pair.
func (r *Registry) pairFor(ctx context.Context, factory, a, b common.Address) (common.Address, error) {
	t0, t1 := domain.SortTokens(a, b)
	key := pairKey{factory: factory, token0: t0, token1: t1}
	if addr, ok := r.pairs.Get(key); ok {
		return addr, nil
	}

	var addr common.Address
	if r.index != nil {
		found, err := r.index.Lookup(ctx, factory, t0, t1)
		switch {
		case err == nil:
			addr = found
		case !errors.Is(err, domain.ErrNotFound):
			r.logger.WarnContext(ctx, "pair index lookup failed", slog.String("error", err.Error()))
		}
	}
	if addr == (common.Address{}) {
		found, err := chain.GetPair(ctx, r.reader, factory, t0, t1)
		if err != nil {
			return common.Address{}, err
		}
		addr = found
		if addr != (common.Address{}) && r.index != nil {
			if err := r.index.Save(ctx, factory, t0, t1, addr); err != nil {
				r.logger.WarnContext(ctx, "pair index save failed", slog.String("error", err.Error()))
			}
		}
	}

	if addr != (common.Address{}) {
		r.mu.Lock()
		r.meta[addr] = pairMeta{factory: factory, token0: t0, token1: t1}
		r.mu.Unlock()
	}
	r.pairs.Put(key, addr)
	return addr, nil
}

// poolsFor returns fresh snapshots of every factory's pool for (a, b).
// Individual factory failures are skipped; an error is returned only when
// every factory failed.
func (r *Registry) poolsFor(ctx context.Context, a, b common.Address) ([]domain.Pool, error) {
	found := make([]*domain.Pool, len(r.cfg.Factories))
	errs := make([]error, len(r.cfg.Factories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.ScanWorkers)
	for i, factory := range r.cfg.Factories {
		g.Go(func() error {
			addr, err := r.pairFor(gctx, factory, a, b)
			if err != nil {
				errs[i] = err
				return nil
			}
			if addr == (common.Address{}) {
				return nil
			}
			p, err := r.PoolReserves(gctx, addr)
			if err != nil {
				errs[i] = err
				return nil
			}
			if !p.Empty() {
				found[i] = &p
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.Pool, 0, len(found))
	failed := 0
	for i, p := range found {
		if p != nil {
			out = append(out, *p)
		}
		if errs[i] != nil {
			failed++
		}
	}
	if len(out) == 0 && failed > 0 && failed == len(r.cfg.Factories) {
		return nil, fmt.Errorf("token: scan %s/%s: %w", a.Hex(), b.Hex(), errors.Join(errs...))
	}
	return out, nil
}

// PoolLiquidity scans every configured factory for (a, b), picks the pool
// with the greatest reference-valued depth, and applies the min/max
// liquidity thresholds.
func (r *Registry) PoolLiquidity(ctx context.Context, a, b common.Address) (domain.LiquidityReport, error) {
	report := domain.LiquidityReport{ValueInReference: new(big.Int)}
	pools, err := r.poolsFor(ctx, a, b)
	if err != nil {
		return report, err
	}

	for i := range pools {
		depth := r.depth(ctx, pools[i])
		if report.BestPool == nil || depth.Cmp(report.ValueInReference) > 0 {
			p := pools[i]
			report.BestPool = &p
			report.ValueInReference = depth
		}
	}
	if report.BestPool == nil {
		return report, nil
	}
	report.IsLiquid = report.ValueInReference.Cmp(r.cfg.MinLiquidity) >= 0
	report.IsTooDeep = r.cfg.MaxLiquidity != nil && r.cfg.MaxLiquidity.Sign() > 0 &&
		report.ValueInReference.Cmp(r.cfg.MaxLiquidity) > 0
	return report, nil
}

// depth values a pool as twice its reference-side reserve, or twice the
// reference value of token0's reserve when neither side is the reference.
func (r *Registry) depth(ctx context.Context, p domain.Pool) *big.Int {
	if res := p.ReserveOf(r.cfg.Reference); res != nil {
		return new(big.Int).Lsh(res, 1)
	}
	v := r.ValueInReferenceAsset(ctx, p.Token0, p.Reserve0)
	return v.Lsh(v, 1)
}

// ValueInReferenceAsset converts amount of token to reference-asset units:
// through a direct pool when one exists, else through the intermediate
// asset, else a haircut estimate. It never fails; less information means a
// smaller estimate.
func (r *Registry) ValueInReferenceAsset(ctx context.Context, token common.Address, amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int)
	}
	if token == r.cfg.Reference {
		return new(big.Int).Set(amount)
	}
	if v, ok := r.quote(ctx, token, r.cfg.Reference, amount); ok {
		return v
	}
	mid := r.cfg.Intermediate
	if mid != (common.Address{}) && mid != token {
		if m, ok := r.quote(ctx, token, mid, amount); ok {
			if v, ok := r.quote(ctx, mid, r.cfg.Reference, m); ok {
				return v
			}
		}
	}
	return r.fallbackValue(ctx, token, amount)
}

// quote sells amount of from into the deepest (by to-side reserve) pool
// for the pair, returning the floored output.
func (r *Registry) quote(ctx context.Context, from, to common.Address, amount *big.Int) (*big.Int, bool) {
	pools, err := r.poolsFor(ctx, from, to)
	if err != nil || len(pools) == 0 {
		return nil, false
	}
	var best *domain.Pool
	for i := range pools {
		if best == nil || pools[i].ReserveOf(to).Cmp(best.ReserveOf(to)) > 0 {
			best = &pools[i]
		}
	}
	rIn, rOut, ok := best.ReservesFor(from)
	if !ok {
		return nil, false
	}
	out, err := amm.GetAmountOut(amount, rIn, rOut, best.FeeBps)
	if err != nil {
		return nil, false
	}
	return out, true
}

// fallbackValue normalises amount to 18 decimals and keeps only
// FallbackHaircutBps of it.
func (r *Registry) fallbackValue(ctx context.Context, token common.Address, amount *big.Int) *big.Int {
	if r.cfg.FallbackHaircutBps == 0 {
		return new(big.Int)
	}
	tok := r.Resolve(ctx, token)
	v := new(big.Int).Set(amount)
	switch {
	case tok.Decimals < 18:
		v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18-tok.Decimals)), nil))
	case tok.Decimals > 18:
		v.Quo(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(tok.Decimals-18)), nil))
	}
	v.Mul(v, big.NewInt(int64(r.cfg.FallbackHaircutBps)))
	return v.Quo(v, big.NewInt(10_000))
}

// Sweep evicts expired cache entries. Call periodically.
func (r *Registry) Sweep() {
	r.tokens.Sweep()
	r.pools.Sweep()
	r.pairs.Sweep()
}
