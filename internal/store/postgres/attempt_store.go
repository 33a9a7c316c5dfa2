package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

const attemptColumns = `id, opportunity_key, signer, nonce, gas_price::text, gas_limit, tx_hash,
	expected_profit::text, realized_profit::text, gas_used, block_number, replaces, state, error,
	submitted_at, resolved_at`

// AttemptStore implements domain.AttemptStore, one row per attempt id.
type AttemptStore struct {
	pool *pgxpool.Pool
}

// NewAttemptStore creates a new AttemptStore.
func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

// Upsert inserts a or overwrites its mutable columns.
func (s *AttemptStore) Upsert(ctx context.Context, a domain.ExecutionAttempt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attempts (id, opportunity_key, signer, nonce, gas_price, gas_limit, tx_hash,
			expected_profit, realized_profit, gas_used, block_number, replaces, state, error, submitted_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8::numeric, $9::numeric, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			realized_profit = EXCLUDED.realized_profit,
			gas_used        = EXCLUDED.gas_used,
			block_number    = EXCLUDED.block_number,
			state           = EXCLUDED.state,
			error           = EXCLUDED.error,
			resolved_at     = EXCLUDED.resolved_at`,
		a.ID, a.OpportunityKey.Hex(), a.Signer.Hex(), int64(a.Nonce), numeric(a.GasPrice), int64(a.GasLimit),
		a.TxHash.Hex(), numeric(a.ExpectedProfit), numeric(a.RealizedProfit), int64(a.GasUsed),
		int64(a.BlockNumber), a.Replaces, string(a.State), a.Err, a.SubmittedAt, a.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert attempt %s: %w", a.ID, err)
	}
	return nil
}

// GetByID returns the attempt or domain.ErrNotFound.
func (s *AttemptStore) GetByID(ctx context.Context, id string) (domain.ExecutionAttempt, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ExecutionAttempt{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ExecutionAttempt{}, fmt.Errorf("postgres: get attempt %s: %w", id, err)
	}
	return a, nil
}

// ListRecent returns attempts newest first.
func (s *AttemptStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.ExecutionAttempt, error) {
	query, args := listQuery(`SELECT `+attemptColumns+` FROM attempts WHERE 1=1`, "submitted_at", opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.ExecutionAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan attempt: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list attempts rows: %w", err)
	}
	return out, nil
}

func scanAttempt(row pgx.Row) (domain.ExecutionAttempt, error) {
	var (
		a                          domain.ExecutionAttempt
		key, signer, txHash, state string
		nonce, gasLimit            int64
		gasUsed, block             int64
		gasPrice                   string
		expected, realized         *string
		resolvedAt                 *time.Time
	)
	if err := row.Scan(&a.ID, &key, &signer, &nonce, &gasPrice, &gasLimit, &txHash,
		&expected, &realized, &gasUsed, &block, &a.Replaces, &state, &a.Err,
		&a.SubmittedAt, &resolvedAt,
	); err != nil {
		return a, err
	}
	a.OpportunityKey = common.HexToHash(key)
	a.Signer = common.HexToAddress(signer)
	a.TxHash = common.HexToHash(txHash)
	a.Nonce = uint64(nonce)
	a.GasLimit = uint64(gasLimit)
	a.GasUsed = uint64(gasUsed)
	a.BlockNumber = uint64(block)
	a.State = domain.AttemptState(state)
	a.ResolvedAt = resolvedAt

	var err error
	if a.GasPrice, err = parseNumeric(&gasPrice); err != nil {
		return a, err
	}
	if a.ExpectedProfit, err = parseNumeric(expected); err != nil {
		return a, err
	}
	if a.RealizedProfit, err = parseNumeric(realized); err != nil {
		return a, err
	}
	return a, nil
}

var _ domain.AttemptStore = (*AttemptStore)(nil)
