package chain

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// PendingSource subscribes to mempool transaction hashes.
type PendingSource interface {
	SubscribePending(ctx context.Context, ch chan<- common.Hash) (Subscription, error)
}

// TxFetcher loads a transaction body by hash.
type TxFetcher interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

// FeedConfig tunes the pending transaction feed.
type FeedConfig struct {
	Workers        int
	ResubscribeGap time.Duration
	FetchTimeout   time.Duration
	DedupTTL       time.Duration
}

// Feed turns a hash subscription into a stream of decoded PendingTx
// values. Body fetches run on a bounded worker group; hashes that arrive
// while every worker is busy are dropped.
type Feed struct {
	src     PendingSource
	fetch   TxFetcher
	signer  types.Signer
	cfg     FeedConfig
	logger  *slog.Logger
	seen    *Dedup
	dropped atomic.Int64
	now     func() time.Time
}

// NewFeed creates a Feed. signer recovers senders, typically
// types.LatestSignerForChainID(chainID).
func NewFeed(src PendingSource, fetch TxFetcher, signer types.Signer, cfg FeedConfig, logger *slog.Logger) *Feed {
	if cfg.Workers <= 0 {
		cfg.Workers = 32
	}
	if cfg.ResubscribeGap <= 0 {
		cfg.ResubscribeGap = 5 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 2 * time.Second
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 2 * time.Minute
	}
	return &Feed{
		src:    src,
		fetch:  fetch,
		signer: signer,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "pending_feed")),
		seen:   NewDedup(cfg.DedupTTL),
		now:    time.Now,
	}
}

// Dropped returns how many hashes were skipped because workers were busy.
func (f *Feed) Dropped() int64 { return f.dropped.Load() }

// Run subscribes and delivers transactions to out until ctx is cancelled,
// resubscribing after subscription errors.
func (f *Feed) Run(ctx context.Context, out chan<- domain.PendingTx) error {
	hashes := make(chan common.Hash, 1024)
	for {
		sub, err := f.src.SubscribePending(ctx, hashes)
		if err != nil {
			f.logger.WarnContext(ctx, "subscribe failed, retrying",
				slog.String("error", err.Error()),
				slog.Duration("backoff", f.cfg.ResubscribeGap),
			)
			select {
			case <-time.After(f.cfg.ResubscribeGap):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := f.loop(ctx, hashes, sub, out); err != nil && !errors.Is(err, context.Canceled) {
			f.logger.WarnContext(ctx, "subscription ended", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		f.logger.InfoContext(ctx, "resubscribing to pending transactions")
	}
}

func (f *Feed) loop(ctx context.Context, hashes <-chan common.Hash, sub Subscription, out chan<- domain.PendingTx) error {
	defer sub.Unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Workers)
	defer func() { _ = g.Wait() }()

	cleanup := time.NewTicker(30 * time.Second)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case <-cleanup.C:
			f.seen.Cleanup()
		case h := <-hashes:
			if f.seen.Seen(h) {
				continue
			}
			if !g.TryGo(func() error {
				f.deliver(gctx, h, out)
				return nil
			}) {
				f.dropped.Add(1)
			}
		}
	}
}

func (f *Feed) deliver(ctx context.Context, hash common.Hash, out chan<- domain.PendingTx) {
	fctx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	tx, pending, err := f.fetch.TransactionByHash(fctx, hash)
	if err != nil || tx == nil || !pending {
		return
	}
	ptx, err := ToPendingTx(tx, f.signer, f.now())
	if err != nil {
		f.logger.Debug("sender recovery failed", slog.String("tx", hash.Hex()), slog.String("error", err.Error()))
		return
	}
	select {
	case out <- ptx:
	case <-ctx.Done():
	}
}

// ToPendingTx converts a go-ethereum transaction, recovering the sender.
func ToPendingTx(tx *types.Transaction, signer types.Signer, seen time.Time) (domain.PendingTx, error) {
	from, err := types.Sender(signer, tx)
	if err != nil {
		return domain.PendingTx{}, err
	}
	return domain.PendingTx{
		Hash:      tx.Hash(),
		From:      from,
		To:        tx.To(),
		Data:      tx.Data(),
		Value:     tx.Value(),
		GasPrice:  tx.GasPrice(),
		Gas:       tx.Gas(),
		Nonce:     tx.Nonce(),
		FirstSeen: seen,
	}, nil
}
