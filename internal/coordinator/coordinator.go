// Package coordinator admits sized opportunities into a bounded in-flight
// set and dispatches them against a single nonce sequence on a fixed cycle.
package coordinator

import (
	"context"
	"log/slog"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sandwichbot/internal/amm"
	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// Classifier turns a pending transaction into a gated TradeIntent.
type Classifier interface {
	Classify(ctx context.Context, tx domain.PendingTx) (*domain.TradeIntent, domain.RejectReason)
}

// Market supplies pool snapshots and reference-asset valuations.
type Market interface {
	PoolLiquidity(ctx context.Context, a, b common.Address) (domain.LiquidityReport, error)
	RefreshPool(ctx context.Context, pool common.Address) (domain.Pool, error)
	ValueInReferenceAsset(ctx context.Context, token common.Address, amount *big.Int) *big.Int
}

// GasOracle reports the current network gas price.
type GasOracle interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

// Dispatcher submits sandwich transactions and reports their receipts.
// Receipt returns nil while the transaction is not yet mined.
type Dispatcher interface {
	Submit(ctx context.Context, order domain.SandwichOrder) (common.Hash, error)
	Receipt(ctx context.Context, txHash common.Hash) (*domain.AttemptReceipt, error)
}

// Metrics receives coordinator counters. All methods must be cheap.
type Metrics interface {
	Classified()
	Rejected(reason domain.RejectReason)
	InFlight(n int)
	Dispatched(latency time.Duration)
	AttemptResolved(state domain.AttemptState)
	StreamDropped(stream string)
	SinkFailed(sink string)
}

type noopMetrics struct{}

func (noopMetrics) Classified()                         {}
func (noopMetrics) Rejected(domain.RejectReason)        {}
func (noopMetrics) InFlight(int)                        {}
func (noopMetrics) Dispatched(time.Duration)            {}
func (noopMetrics) AttemptResolved(domain.AttemptState) {}
func (noopMetrics) StreamDropped(string)                {}
func (noopMetrics) SinkFailed(string)                   {}

// Config tunes admission, dispatch and tracking.
type Config struct {
	Capacity            int
	OpportunityTimeout  time.Duration
	CycleInterval       time.Duration
	AttemptTimeout      time.Duration
	ReceiptPollInterval time.Duration
	GasLimit            uint64
	MinConfidence       float64
	StreamBuffer        int
	LockTTL             time.Duration
	MaxRPCFailures      int
	// PoolMaxAge bounds how old a reserve snapshot may be when sizing.
	PoolMaxAge time.Duration
	// DryRun sizes and streams opportunities but never dispatches.
	DryRun bool
}

// DefaultConfig returns 1024 slots, a 10s opportunity timeout, a 100ms
// cycle, a 120s attempt timeout and a 0.7 confidence floor.
func DefaultConfig() Config {
	return Config{
		Capacity:            1024,
		OpportunityTimeout:  10 * time.Second,
		CycleInterval:       100 * time.Millisecond,
		AttemptTimeout:      120 * time.Second,
		ReceiptPollInterval: time.Second,
		GasLimit:            500_000,
		MinConfidence:       0.7,
		StreamBuffer:        256,
		LockTTL:             5 * time.Second,
		MaxRPCFailures:      5,
		PoolMaxAge:          30 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = def.Capacity
	}
	if c.OpportunityTimeout <= 0 {
		c.OpportunityTimeout = def.OpportunityTimeout
	}
	if c.CycleInterval <= 0 {
		c.CycleInterval = def.CycleInterval
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = def.AttemptTimeout
	}
	if c.ReceiptPollInterval <= 0 {
		c.ReceiptPollInterval = def.ReceiptPollInterval
	}
	if c.GasLimit == 0 {
		c.GasLimit = def.GasLimit
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = def.MinConfidence
	}
	if c.StreamBuffer <= 0 {
		c.StreamBuffer = def.StreamBuffer
	}
	if c.LockTTL <= 0 {
		c.LockTTL = def.LockTTL
	}
	if c.MaxRPCFailures <= 0 {
		c.MaxRPCFailures = def.MaxRPCFailures
	}
	if c.PoolMaxAge <= 0 {
		c.PoolMaxAge = def.PoolMaxAge
	}
}

// Deps are the coordinator's collaborators. Dispatcher and Nonces may be
// nil in dry-run mode; Locker and Metrics are optional.
type Deps struct {
	Classifier Classifier
	Market     Market
	Gas        GasOracle
	Optimizer  *amm.Optimizer
	Dispatcher Dispatcher
	Nonces     *NonceManager
	Locker     domain.LockManager
	Metrics    Metrics
}

// Status is a point-in-time view for the control surface.
type Status struct {
	Paused          bool      `json:"paused"`
	Degraded        bool      `json:"degraded"`
	DryRun          bool      `json:"dry_run"`
	InFlight        int       `json:"in_flight"`
	Capacity        int       `json:"capacity"`
	PendingAttempts int       `json:"pending_attempts"`
	RPCFailures     int64     `json:"rpc_failures"`
	NextNonce       *uint64   `json:"next_nonce,omitempty"`
	LastCycle       time.Time `json:"last_cycle"`
}

// Coordinator drives opportunities from detection to dispatch. Ingest and
// Run may be called from different goroutines; they share only the
// in-flight set, the nonce counter and the attempt table.
type Coordinator struct {
	cfg     Config
	deps    Deps
	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time

	flight   *inflight
	attempts *tracker

	paused      atomic.Bool
	rpcFailures atomic.Int64
	lastCycle   atomic.Int64
	gas         atomic.Pointer[gasQuote]

	oppCh     chan domain.Opportunity
	attemptCh chan domain.ExecutionAttempt
}

// New creates a Coordinator.
func New(cfg Config, deps Deps, logger *slog.Logger) *Coordinator {
	cfg.applyDefaults()
	m := deps.Metrics
	if m == nil {
		m = noopMetrics{}
	}
	return &Coordinator{
		cfg:       cfg,
		deps:      deps,
		metrics:   m,
		logger:    logger.With(slog.String("component", "coordinator")),
		now:       time.Now,
		flight:    newInflight(cfg.Capacity, cfg.OpportunityTimeout),
		attempts:  newTracker(),
		oppCh:     make(chan domain.Opportunity, cfg.StreamBuffer),
		attemptCh: make(chan domain.ExecutionAttempt, cfg.StreamBuffer),
	}
}

// Opportunities streams every opportunity state change. Sends never block;
// records are dropped when the consumer lags.
func (c *Coordinator) Opportunities() <-chan domain.Opportunity { return c.oppCh }

// Attempts streams every execution attempt change.
func (c *Coordinator) Attempts() <-chan domain.ExecutionAttempt { return c.attemptCh }

// Pause stops admission and dispatch. In-flight entries keep expiring.
func (c *Coordinator) Pause() {
	if !c.paused.Swap(true) {
		c.logger.Info("coordinator paused")
	}
}

// Resume re-enables admission and dispatch.
func (c *Coordinator) Resume() {
	if c.paused.Swap(false) {
		c.logger.Info("coordinator resumed")
	}
}

// Paused reports whether the coordinator is paused.
func (c *Coordinator) Paused() bool { return c.paused.Load() }

// Degraded reports whether consecutive RPC failures crossed the limit.
func (c *Coordinator) Degraded() bool {
	return c.rpcFailures.Load() >= int64(c.cfg.MaxRPCFailures)
}

// Status returns a snapshot of coordinator state.
func (c *Coordinator) Status() Status {
	s := Status{
		Paused:          c.Paused(),
		Degraded:        c.Degraded(),
		DryRun:          c.cfg.DryRun,
		InFlight:        c.flight.len(),
		Capacity:        c.cfg.Capacity,
		PendingAttempts: c.attempts.pending(),
		RPCFailures:     c.rpcFailures.Load(),
	}
	if ns := c.lastCycle.Load(); ns != 0 {
		s.LastCycle = time.Unix(0, ns).UTC()
	}
	if c.deps.Nonces != nil {
		if n, ok := c.deps.Nonces.Peek(); ok {
			s.NextNonce = &n
		}
	}
	return s
}

// InFlight lists admitted opportunities, oldest first.
func (c *Coordinator) InFlight() []domain.Opportunity { return c.flight.snapshot() }

// RecentAttempts lists tracked attempts, newest first.
func (c *Coordinator) RecentAttempts() []domain.ExecutionAttempt { return c.attempts.list() }

func (c *Coordinator) rpcOK() {
	if c.rpcFailures.Swap(0) >= int64(c.cfg.MaxRPCFailures) {
		c.logger.Info("rpc recovered, admitting new opportunities")
	}
}

func (c *Coordinator) rpcFailed() {
	if c.rpcFailures.Add(1) == int64(c.cfg.MaxRPCFailures) {
		c.logger.Error("rpc failures crossed limit, rejecting new opportunities",
			slog.Int("limit", c.cfg.MaxRPCFailures))
	}
}

func (c *Coordinator) emitOpportunity(opp domain.Opportunity) {
	select {
	case c.oppCh <- opp:
	default:
		c.metrics.StreamDropped("opportunities")
	}
}

func (c *Coordinator) emitAttempt(a domain.ExecutionAttempt) {
	select {
	case c.attemptCh <- a:
	default:
		c.metrics.StreamDropped("attempts")
	}
}

// reject records a decision that ends an opportunity before admission.
func (c *Coordinator) reject(ctx context.Context, opp *domain.Opportunity, reason domain.RejectReason) {
	c.metrics.Rejected(reason)
	if opp == nil {
		return
	}
	if err := opp.Supersede(reason, c.now()); err != nil {
		c.logger.ErrorContext(ctx, "supersede failed",
			slog.String("key", opp.Key.Hex()),
			slog.String("error", err.Error()),
		)
		return
	}
	c.logger.DebugContext(ctx, "opportunity superseded",
		slog.String("key", opp.Key.Hex()),
		slog.String("reason", string(reason)),
	)
	c.emitOpportunity(*opp)
}

// Ingest classifies, validates and sizes tx and admits it into the in-flight
// set when profitable. It performs only the chain reads classification and
// sizing need and never waits on the processing cycle.
func (c *Coordinator) Ingest(ctx context.Context, tx domain.PendingTx) domain.RejectReason {
	if c.paused.Load() {
		c.metrics.Rejected(domain.RejectPaused)
		return domain.RejectPaused
	}
	if c.Degraded() {
		c.metrics.Rejected(domain.RejectDegraded)
		return domain.RejectDegraded
	}
	if c.flight.contains(tx.Hash) || c.attempts.seen(tx.Hash) {
		c.metrics.Rejected(domain.RejectDuplicate)
		return domain.RejectDuplicate
	}

	intent, reason := c.deps.Classifier.Classify(ctx, tx)
	if intent == nil {
		c.metrics.Rejected(reason)
		return reason
	}
	c.metrics.Classified()

	now := c.now()
	opp := domain.NewOpportunity(*intent, now)
	if intent.Expired(now) {
		c.reject(ctx, &opp, domain.RejectDeadlinePassed)
		return domain.RejectDeadlinePassed
	}
	if err := opp.Transition(domain.OppValidated, now); err != nil {
		c.logger.ErrorContext(ctx, "validate transition", slog.String("error", err.Error()))
		return domain.RejectMalformedCalldata
	}

	tokenIn, next := intent.FirstHop()
	report, err := c.deps.Market.PoolLiquidity(ctx, tokenIn, next)
	if err != nil || report.BestPool == nil {
		if err != nil {
			c.rpcFailed()
		}
		c.reject(ctx, &opp, domain.RejectReservesUnavailable)
		return domain.RejectReservesUnavailable
	}
	c.rpcOK()
	opp.Pool = *report.BestPool

	gas, err := c.gasPrice(ctx)
	if err != nil {
		c.rpcFailed()
		c.reject(ctx, &opp, domain.RejectReservesUnavailable)
		return domain.RejectReservesUnavailable
	}

	if reason := c.size(ctx, &opp, gas); reason != domain.RejectNone {
		c.reject(ctx, &opp, reason)
		return reason
	}
	if err := opp.Transition(domain.OppSized, c.now()); err != nil {
		c.logger.ErrorContext(ctx, "size transition", slog.String("error", err.Error()))
		return domain.RejectUnprofitable
	}

	admitted, reason := c.flight.admit(opp, c.now())
	if reason != domain.RejectNone {
		// Duplicates are a no-op against the existing entry.
		c.metrics.Rejected(reason)
		if reason == domain.RejectCapacity {
			c.reject(ctx, &opp, reason)
		}
		return reason
	}
	c.metrics.InFlight(c.flight.len())
	c.logger.InfoContext(ctx, "opportunity admitted",
		slog.String("key", admitted.Key.Hex()),
		slog.String("pool", admitted.Pool.Address.Hex()),
		slog.String("front_run_in", admitted.Sizing.FrontRunIn.String()),
		slog.String("net_profit_wei", admitted.Sizing.NetProfit.String()),
		slog.Float64("confidence", admitted.Sizing.Confidence),
	)
	c.emitOpportunity(admitted)
	return domain.RejectNone
}

// gasQuoteTTL is how long Ingest reuses a network gas price read.
const gasQuoteTTL = time.Second

type gasQuote struct {
	price *big.Int
	at    time.Time
}

func (c *Coordinator) storeGas(price *big.Int) {
	c.gas.Store(&gasQuote{price: new(big.Int).Set(price), at: c.now()})
}

// gasPrice returns the last network gas price when it is younger than
// gasQuoteTTL and reads a fresh one otherwise.
func (c *Coordinator) gasPrice(ctx context.Context) (*big.Int, error) {
	if q := c.gas.Load(); q != nil && c.now().Sub(q.at) < gasQuoteTTL {
		return new(big.Int).Set(q.price), nil
	}
	price, err := c.deps.Gas.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	c.storeGas(price)
	return price, nil
}

// size derives the victim's first-hop input, runs the optimizer and applies
// the profitability, confidence and gas gates. A snapshot older than
// PoolMaxAge is refreshed first.
func (c *Coordinator) size(ctx context.Context, opp *domain.Opportunity, networkGas *big.Int) domain.RejectReason {
	if opp.Pool.Stale(c.now(), c.cfg.PoolMaxAge) {
		pool, err := c.deps.Market.RefreshPool(ctx, opp.Pool.Address)
		if err != nil {
			c.rpcFailed()
			return domain.RejectReservesUnavailable
		}
		c.rpcOK()
		opp.Pool = pool
	}
	intent := opp.Intent
	reserveIn, reserveOut, ok := opp.Pool.ReservesFor(intent.TokenIn())
	if !ok || opp.Pool.Empty() {
		return domain.RejectReservesUnavailable
	}

	victimIn, minOut := victimLeg(intent, reserveIn, reserveOut, c.deps.Optimizer.Config().FeeBps)
	if victimIn == nil || victimIn.Sign() <= 0 {
		return domain.RejectVictimTooSmall
	}
	opp.VictimIn = victimIn

	tokenIn := intent.TokenIn()
	sizing, err := c.deps.Optimizer.Size(amm.Input{
		ReserveIn:       reserveIn,
		ReserveOut:      reserveOut,
		VictimIn:        victimIn,
		VictimMinOut:    minOut,
		VictimGasPrice:  intent.GasPrice,
		NetworkGasPrice: networkGas,
		ToReference: func(v *big.Int) *big.Int {
			return c.deps.Market.ValueInReferenceAsset(ctx, tokenIn, v)
		},
	})
	if err != nil {
		c.logger.DebugContext(ctx, "sizing failed",
			slog.String("key", opp.Key.Hex()),
			slog.String("error", err.Error()),
		)
		return domain.RejectReservesUnavailable
	}
	opp.Sizing = sizing

	switch {
	case !sizing.Profitable:
		return domain.RejectUnprofitable
	case sizing.Confidence < c.cfg.MinConfidence:
		return domain.RejectLowConfidence
	case !sizing.Executable:
		return domain.RejectUnexecutableGas
	}
	return domain.RejectNone
}

// victimLeg returns the victim's input on the first hop and, when it binds
// that hop, its minimum output. Exact-output swaps over a single pool are
// converted with GetAmountIn and capped by the declared maximum; multi-hop
// exact-output swaps fall back to the declared maximum without a guard.
func victimLeg(intent domain.TradeIntent, reserveIn, reserveOut *big.Int, feeBps uint32) (*big.Int, *big.Int) {
	singleHop := len(intent.Path) == 2
	if intent.Kind == domain.ExactInput {
		if singleHop {
			return intent.AmountIn, intent.AmountOutMin
		}
		return intent.AmountIn, nil
	}
	if !singleHop || intent.AmountOut == nil {
		return intent.AmountIn, nil
	}
	need, err := amm.GetAmountIn(intent.AmountOut, reserveIn, reserveOut, feeBps)
	if err != nil {
		return nil, nil
	}
	if intent.AmountIn != nil && need.Cmp(intent.AmountIn) > 0 {
		// The router would revert this swap at current reserves.
		return nil, nil
	}
	return need, intent.AmountOut
}

// Run drives the processing cycle and receipt polling until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("coordinator started",
		slog.Int("capacity", c.cfg.Capacity),
		slog.Duration("cycle", c.cfg.CycleInterval),
		slog.Bool("dry_run", c.cfg.DryRun),
	)
	defer c.logger.Info("coordinator stopped")

	cycle := time.NewTicker(c.cfg.CycleInterval)
	defer cycle.Stop()
	receipts := time.NewTicker(c.cfg.ReceiptPollInterval)
	defer receipts.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cycle.C:
			c.Cycle(ctx)
		case <-receipts.C:
			c.PollAttempts(ctx)
		}
	}
}

// Cycle runs one processing pass: purge expired entries, then refresh,
// re-size and dispatch each admitted opportunity. While degraded it reads
// the gas price even with nothing in flight, so a healthy node clears the
// failure count.
func (c *Coordinator) Cycle(ctx context.Context) {
	now := c.now()
	c.lastCycle.Store(now.UnixNano())

	for _, opp := range c.flight.purge(now) {
		c.reject(ctx, &opp, domain.RejectExpired)
	}
	c.metrics.InFlight(c.flight.len())

	var entries []domain.Opportunity
	if !c.paused.Load() {
		entries = c.flight.snapshot()
	}
	if len(entries) == 0 && !c.Degraded() {
		return
	}

	networkGas, err := c.deps.Gas.GasPrice(ctx)
	if err != nil {
		c.rpcFailed()
		c.logger.WarnContext(ctx, "gas price unavailable, skipping cycle", slog.String("error", err.Error()))
		return
	}
	c.rpcOK()
	c.storeGas(networkGas)
	if len(entries) == 0 {
		return
	}
	if c.deps.Optimizer.AboveMax(networkGas) {
		c.metrics.Rejected(domain.RejectGasTooHigh)
		c.logger.DebugContext(ctx, "network gas above max, skipping cycle",
			slog.String("gas_price_gwei", amm.FormatGwei(networkGas)))
		return
	}

	for _, opp := range entries {
		if ctx.Err() != nil {
			return
		}
		c.process(ctx, opp, networkGas)
	}
}

// process re-validates one admitted opportunity against fresh data and
// dispatches it.
func (c *Coordinator) process(ctx context.Context, opp domain.Opportunity, networkGas *big.Int) {
	drop := func(reason domain.RejectReason) {
		if _, ok := c.flight.remove(opp.Key); ok {
			c.reject(ctx, &opp, reason)
		}
	}

	if opp.Intent.Expired(c.now()) {
		drop(domain.RejectDeadlinePassed)
		return
	}

	pool, err := c.deps.Market.RefreshPool(ctx, opp.Pool.Address)
	if err != nil {
		c.rpcFailed()
		drop(domain.RejectReservesUnavailable)
		return
	}
	c.rpcOK()
	opp.Pool = pool

	if reason := c.size(ctx, &opp, networkGas); reason != domain.RejectNone {
		drop(reason)
		return
	}
	if !c.flight.update(opp) {
		return
	}
	if !c.canDispatch() {
		return
	}
	c.dispatch(ctx, opp)
}
