package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

const (
	kindOpportunities = "opportunities"
	kindAttempts      = "attempts"
	jsonlContentType  = "application/x-ndjson"
	flushTimeout      = 30 * time.Second
)

// ArchiverConfig controls batching.
type ArchiverConfig struct {
	Prefix        string
	FlushInterval time.Duration
	FlushRecords  int
}

type batch struct {
	buf     bytes.Buffer
	n       int
	started time.Time
}

// Archiver buffers opportunity and attempt records as JSONL and uploads one
// object per batch under <prefix>/<kind>/YYYY/MM/DD/. A batch is written
// when it reaches FlushRecords or when FlushInterval elapses in Run. A
// failed upload is put back at the head of the next batch.
type Archiver struct {
	writer domain.BlobWriter
	cfg    ArchiverConfig
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	batches map[string]*batch
}

// NewArchiver creates an Archiver on writer.
func NewArchiver(writer domain.BlobWriter, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Minute
	}
	if cfg.FlushRecords <= 0 {
		cfg.FlushRecords = 500
	}
	return &Archiver{
		writer:  writer,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "s3_archiver")),
		now:     time.Now,
		batches: make(map[string]*batch),
	}
}

// Name identifies the sink in logs.
func (a *Archiver) Name() string { return "s3_archive" }

// OpportunityUpdated buffers opp.
func (a *Archiver) OpportunityUpdated(ctx context.Context, opp domain.Opportunity) error {
	return a.add(ctx, kindOpportunities, opp)
}

// AttemptUpdated buffers att.
func (a *Archiver) AttemptUpdated(ctx context.Context, att domain.ExecutionAttempt) error {
	return a.add(ctx, kindAttempts, att)
}

func (a *Archiver) add(ctx context.Context, kind string, record any) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("s3blob: encode %s record: %w", kind, err)
	}

	a.mu.Lock()
	b := a.batches[kind]
	if b == nil {
		b = &batch{started: a.now()}
		a.batches[kind] = b
	}
	b.buf.Write(line)
	b.buf.WriteByte('\n')
	b.n++
	var full *batch
	if b.n >= a.cfg.FlushRecords {
		full = b
		delete(a.batches, kind)
	}
	a.mu.Unlock()

	if full == nil {
		return nil
	}
	return a.upload(ctx, kind, full)
}

// Run flushes on FlushInterval until ctx is done, then flushes what is
// left with a fresh deadline.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			err := a.Flush(fctx)
			cancel()
			if err != nil {
				a.logger.Error("final flush failed", slog.String("error", err.Error()))
			}
			return ctx.Err()
		case <-ticker.C:
			if err := a.Flush(ctx); err != nil {
				a.logger.WarnContext(ctx, "flush failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Flush uploads every non-empty batch.
func (a *Archiver) Flush(ctx context.Context) error {
	a.mu.Lock()
	pending := a.batches
	a.batches = make(map[string]*batch)
	a.mu.Unlock()

	var errs []error
	for kind, b := range pending {
		if b.n == 0 {
			continue
		}
		if err := a.upload(ctx, kind, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pending returns the number of buffered records.
func (a *Archiver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, b := range a.batches {
		n += b.n
	}
	return n
}

func (a *Archiver) upload(ctx context.Context, kind string, b *batch) error {
	key := objectKey(a.cfg.Prefix, kind, b.started)
	data := b.buf.Bytes()

	var err error
	if int64(len(data)) > minPartSize {
		err = a.writer.PutMultipart(ctx, key, bytes.NewReader(data), minPartSize)
	} else {
		err = a.writer.Put(ctx, key, bytes.NewReader(data), jsonlContentType)
	}
	if err != nil {
		a.requeue(kind, b)
		return fmt.Errorf("s3blob: archive %d %s records: %w", b.n, kind, err)
	}
	a.logger.DebugContext(ctx, "archived batch",
		slog.String("key", key),
		slog.Int("records", b.n),
		slog.Int("bytes", len(data)),
	)
	return nil
}

// requeue puts a failed batch back ahead of records buffered since.
func (a *Archiver) requeue(kind string, failed *batch) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cur := a.batches[kind]; cur != nil {
		failed.buf.Write(cur.buf.Bytes())
		failed.n += cur.n
	}
	a.batches[kind] = failed
}

// objectKey builds <prefix>/<kind>/YYYY/MM/DD/<unixnano>-<id>.jsonl.
func objectKey(prefix, kind string, started time.Time) string {
	started = started.UTC()
	name := fmt.Sprintf("%d-%s.jsonl", started.UnixNano(), uuid.NewString()[:8])
	return path.Join(prefix, kind, started.Format("2006/01/02"), name)
}
