// Package sqlite persists the factory pair index in a local SQLite file so
// restarts do not repeat getPair lookups.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	_ "modernc.org/sqlite"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

const defaultPath = "pairs.db"

// PairIndex implements domain.PairIndex on SQLite.
type PairIndex struct {
	db *sql.DB
}

var _ domain.PairIndex = (*PairIndex)(nil)

// Open opens (creating if needed) the index at path. An empty path uses
// pairs.db in the working directory; ":memory:" is accepted for tests.
func Open(ctx context.Context, path string) (*PairIndex, error) {
	if path == "" {
		path = defaultPath
	}
	dsn := path
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One connection keeps ":memory:" databases shared and avoids
	// SQLITE_BUSY between pooled writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	idx := &PairIndex{db: db}
	if err := idx.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (p *PairIndex) init(ctx context.Context) error {
	const createTable = `
CREATE TABLE IF NOT EXISTS pairs (
	factory TEXT NOT NULL,
	token0 TEXT NOT NULL,
	token1 TEXT NOT NULL,
	pool TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (factory, token0, token1)
);`
	if _, err := p.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("sqlite: create pairs: %w", err)
	}
	return nil
}

// Lookup returns the stored pool for (factory, tokenA, tokenB) in either
// token order, or domain.ErrNotFound.
func (p *PairIndex) Lookup(ctx context.Context, factory, tokenA, tokenB common.Address) (common.Address, error) {
	t0, t1 := domain.SortTokens(tokenA, tokenB)
	var pool string
	err := p.db.QueryRowContext(ctx,
		`SELECT pool FROM pairs WHERE factory = ? AND token0 = ? AND token1 = ?`,
		factory.Hex(), t0.Hex(), t1.Hex(),
	).Scan(&pool)
	if errors.Is(err, sql.ErrNoRows) {
		return common.Address{}, domain.ErrNotFound
	}
	if err != nil {
		return common.Address{}, fmt.Errorf("sqlite: lookup pair: %w", err)
	}
	return common.HexToAddress(pool), nil
}

// Save records a discovered pool. Existing rows are left untouched.
func (p *PairIndex) Save(ctx context.Context, factory, tokenA, tokenB, pool common.Address) error {
	t0, t1 := domain.SortTokens(tokenA, tokenB)
	_, err := p.db.ExecContext(ctx, `
INSERT INTO pairs (factory, token0, token1, pool)
VALUES (?, ?, ?, ?)
ON CONFLICT(factory, token0, token1) DO NOTHING;`,
		factory.Hex(), t0.Hex(), t1.Hex(), pool.Hex(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save pair: %w", err)
	}
	return nil
}

// Count returns the number of indexed pairs.
func (p *PairIndex) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pairs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count pairs: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (p *PairIndex) Close() error {
	return p.db.Close()
}
