package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/sandwichbot/internal/cache/redis"
	"github.com/alanyoungcy/sandwichbot/internal/chain"
	"github.com/alanyoungcy/sandwichbot/internal/coordinator"
	"github.com/alanyoungcy/sandwichbot/internal/domain"
	"github.com/alanyoungcy/sandwichbot/internal/notify"
	"github.com/alanyoungcy/sandwichbot/internal/server"
	"github.com/alanyoungcy/sandwichbot/internal/server/handler"
	"github.com/alanyoungcy/sandwichbot/internal/server/ws"
	"github.com/alanyoungcy/sandwichbot/internal/store/postgres"
)

const (
	// statusPublishInterval is how often a dispatching process refreshes the
	// shared status snapshot; statusTTL lets it lapse when the process dies.
	statusPublishInterval = 2 * time.Second
	statusTTL             = 10 * time.Second

	// streamFollowInterval is how often an api-mode hub polls the streams.
	streamFollowInterval = 250 * time.Millisecond
)

// RunMode detects, sizes and dispatches sandwiches. With dry_run set it
// behaves like ObserveMode.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	return a.pipeline(ctx, deps, !dispatches(a.cfg))
}

// ObserveMode runs detection and sizing and streams every opportunity, but
// never signs or submits a transaction.
func (a *App) ObserveMode(ctx context.Context, deps *Dependencies) error {
	return a.pipeline(ctx, deps, true)
}

// APIMode serves the control surface from the database and the Redis status
// snapshot. Gas bumps need the dispatching process and are refused here.
func (a *App) APIMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)
	hub := a.startHTTPServer(ctx, g, deps, nil, false)
	if hub != nil && deps.SignalBus != nil {
		g.Go(func() error {
			return hub.Follow(ctx, deps.SignalBus, streamFollowInterval)
		})
	}
	return g.Wait()
}

func (a *App) pipeline(ctx context.Context, deps *Dependencies, dryRun bool) error {
	g, ctx := errgroup.WithContext(ctx)
	cc := a.cfg.Coordinator

	coordDeps := coordinator.Deps{
		Classifier: deps.Classifier,
		Market:     deps.Registry,
		Gas:        deps.Chain,
		Optimizer:  deps.Optimizer,
	}
	if deps.Metrics != nil {
		coordDeps.Metrics = deps.Metrics
	}
	if deps.Locks != nil {
		coordDeps.Locker = deps.Locks
	}
	if !dryRun && deps.Executor != nil {
		coordDeps.Dispatcher = deps.Executor
		coordDeps.Nonces = coordinator.NewNonceManager(deps.Chain, deps.Executor.Address(), cc.NonceMaxAge.Duration, a.logger)
	}
	coord := coordinator.New(coordinator.Config{
		Capacity:            cc.Capacity,
		OpportunityTimeout:  cc.OpportunityTimeout.Duration,
		CycleInterval:       cc.CycleInterval.Duration,
		AttemptTimeout:      cc.AttemptTimeout.Duration,
		ReceiptPollInterval: cc.ReceiptPollInterval.Duration,
		GasLimit:            cc.GasLimit,
		MinConfidence:       cc.MinConfidence,
		StreamBuffer:        cc.StreamBuffer,
		LockTTL:             cc.LockTTL.Duration,
		MaxRPCFailures:      cc.MaxRPCFailures,
		PoolMaxAge:          cc.PoolMaxAge.Duration,
		DryRun:              dryRun,
	}, coordDeps, a.logger)

	// --- Sinks ---
	var sinks []coordinator.Sink
	if deps.SignalBus != nil {
		sinks = append(sinks, redis.NewStreamSink(deps.SignalBus))
	}
	if deps.Opportunities != nil {
		sinks = append(sinks, &postgres.Sink{Opportunities: deps.Opportunities, Attempts: deps.Attempts})
	}
	if deps.Archiver != nil {
		sinks = append(sinks, deps.Archiver)
		g.Go(func() error { return deps.Archiver.Run(ctx) })
	}
	sinks = append(sinks, notify.NewAttemptSink(deps.Notifier))

	if hub := a.startHTTPServer(ctx, g, deps, coord, !dryRun); hub != nil {
		sinks = append(sinks, hub)
	}
	g.Go(func() error {
		return coordinator.Fanout(ctx, coord, sinks, a.logger)
	})

	// --- Pending feed -> Ingest ---
	feed := chain.NewFeed(deps.Chain, deps.Chain, types.LatestSignerForChainID(deps.Chain.ID()), chain.FeedConfig{
		Workers:        a.cfg.Chain.FeedWorkers,
		ResubscribeGap: a.cfg.Chain.ResubscribeGap.Duration,
		FetchTimeout:   a.cfg.Chain.FetchTimeout.Duration,
		DedupTTL:       a.cfg.Chain.DedupTTL.Duration,
	}, a.logger)
	pending := make(chan domain.PendingTx, cc.StreamBuffer)
	g.Go(func() error { return feed.Run(ctx, pending) })

	ingestWorkers := a.cfg.Chain.FeedWorkers
	if ingestWorkers <= 0 {
		ingestWorkers = 8
	}
	for i := 0; i < ingestWorkers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case tx, ok := <-pending:
					if !ok {
						return nil
					}
					coord.Ingest(ctx, tx)
				}
			}
		})
	}

	// --- Coordinator ---
	g.Go(func() error { return coord.Run(ctx) })

	g.Go(func() error {
		return a.sweepRegistry(ctx, deps)
	})

	if deps.Control != nil {
		g.Go(func() error {
			return syncPause(ctx, coord, deps.Control, a.logger)
		})
	}

	g.Go(func() error {
		return a.monitor(ctx, coord, deps, feed)
	})

	a.logger.InfoContext(ctx, "pipeline started",
		slog.Bool("dry_run", dryRun),
		slog.Int("sinks", len(sinks)),
		slog.Int("ingest_workers", ingestWorkers),
	)
	return g.Wait()
}

// sweepRegistry evicts expired registry entries on a fixed interval.
func (a *App) sweepRegistry(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Registry.SweepInterval.Duration
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			deps.Registry.Sweep()
			if deps.PairIndex != nil {
				if n, err := deps.PairIndex.Count(ctx); err == nil {
					a.logger.DebugContext(ctx, "registry swept", slog.Int64("indexed_pairs", n))
				}
			}
		}
	}
}

// monitor publishes the status snapshot and raises degraded/recovered
// notifications on transitions.
func (a *App) monitor(ctx context.Context, coord *coordinator.Coordinator, deps *Dependencies, feed *chain.Feed) error {
	ticker := time.NewTicker(statusPublishInterval)
	defer ticker.Stop()

	degraded := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		st := coord.Status()
		if st.Degraded != degraded {
			degraded = st.Degraded
			a.notifyHealth(ctx, deps.Notifier, st)
		}

		if deps.StatusCache != nil {
			payload, err := json.Marshal(st)
			if err == nil {
				err = deps.StatusCache.Put(ctx, payload, statusTTL)
			}
			if err != nil {
				a.logger.WarnContext(ctx, "status publish failed", slog.String("error", err.Error()))
			}
		}

		if dropped := feed.Dropped(); dropped > 0 {
			a.logger.DebugContext(ctx, "pending feed backlog", slog.Int64("dropped_total", dropped))
		}
	}
}

func (a *App) notifyHealth(ctx context.Context, n *notify.Notifier, st coordinator.Status) {
	event, title := notify.EventRecovered, "Sandwich bot recovered"
	msg := "RPC calls are succeeding again; new opportunities are admitted."
	if st.Degraded {
		event, title = notify.EventDegraded, "Sandwich bot degraded"
		msg = fmt.Sprintf("%d consecutive RPC failures; rejecting new opportunities.", st.RPCFailures)
		a.logger.ErrorContext(ctx, "coordinator degraded", slog.Int64("rpc_failures", st.RPCFailures))
	} else {
		a.logger.InfoContext(ctx, "coordinator recovered")
	}
	if err := n.Notify(ctx, event, title, msg); err != nil {
		a.logger.WarnContext(ctx, "health notification failed", slog.String("error", err.Error()))
	}
}

// startHTTPServer adds the control surface to g when the server is enabled
// and returns its websocket hub, or nil. coord is nil in api mode.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, coord *coordinator.Coordinator, dispatching bool) *ws.Hub {
	if !a.cfg.Server.Enabled {
		return nil
	}

	var status handler.StatusSource
	switch {
	case coord != nil:
		status = localStatus{c: coord}
	case deps.StatusCache != nil:
		status = cachedStatus{cache: deps.StatusCache}
	default:
		status = unavailableStatus{}
	}

	var opps handler.OpportunityReader
	var attempts handler.AttemptReader
	switch {
	case deps.Opportunities != nil:
		opps, attempts = deps.Opportunities, deps.Attempts
	case coord != nil:
		opps, attempts = memoryOpportunities{c: coord}, memoryAttempts{c: coord}
	}

	var bumper handler.GasBumper
	if coord != nil && dispatching {
		bumper = coord
	}

	var audit domain.AuditStore
	if deps.Audit != nil {
		audit = deps.Audit
	}

	var limiter domain.RateLimiter
	if deps.RateLimiter != nil {
		limiter = deps.RateLimiter
	}

	pause := pauseSwitch{coord: coord, control: deps.Control}

	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(status, a.logger),
		Status:        handler.NewStatusHandler(a.cfg.Mode, status, a.logger),
		Opportunities: handler.NewOpportunityHandler(opps, a.logger),
		Attempts:      handler.NewAttemptHandler(attempts, bumper, audit, a.logger),
		Control:       handler.NewControlHandler(pause, audit, a.logger),
	}
	if audit != nil {
		handlers.Audit = handler.NewAuditHandler(audit, a.logger)
	}
	if deps.Metrics != nil {
		handlers.Metrics = deps.Metrics.Handler()
	}

	hub := ws.NewHub(a.logger, ws.Config{Mode: a.cfg.Mode, StartedAt: time.Now().UTC()})
	g.Go(func() error { return hub.Run(ctx) })

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
	}, handlers, hub, limiter, a.logger)
	g.Go(func() error { return srv.Run(ctx) })

	a.logger.InfoContext(ctx, "HTTP server enabled",
		slog.Int("port", a.cfg.Server.Port),
		slog.Bool("gas_bump", bumper != nil),
		slog.Bool("auth", a.cfg.Server.APIKey != ""),
	)
	return hub
}
