package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore. Every state change
// is a new row; the full record travels in the payload column.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Insert appends opp.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	payload, err := json.Marshal(opp)
	if err != nil {
		return fmt.Errorf("postgres: marshal opportunity %s: %w", opp.Key.Hex(), err)
	}
	var tokenIn, tokenOut string
	if len(opp.Intent.Path) > 0 {
		tokenIn, tokenOut = opp.Intent.TokenIn().Hex(), opp.Intent.TokenOut().Hex()
	}
	var pool string
	if opp.Pool.Address != (common.Address{}) {
		pool = opp.Pool.Address.Hex()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO opportunities (victim_tx, state, reason, router, variant, token_in, token_out, pool,
			victim_in, front_run_in, net_profit, confidence, attempt_id, payload, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10::numeric, $11::numeric, $12, $13, $14, $15)`,
		opp.Key.Hex(), string(opp.State), string(opp.Reason), opp.Intent.Router.Hex(), string(opp.Intent.Variant),
		tokenIn, tokenOut, pool,
		numeric(opp.VictimIn), numeric(opp.Sizing.FrontRunIn), numeric(opp.Sizing.NetProfit),
		opp.Sizing.Confidence, opp.AttemptID, payload, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.Key.Hex(), err)
	}
	return nil
}

// ListRecent returns the latest recorded state changes, newest first.
func (s *OpportunityStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error) {
	query, args := listQuery(`SELECT payload FROM opportunities WHERE 1=1`, "recorded_at", opts)
	return s.query(ctx, query, args...)
}

// History returns every recorded state of the opportunity for victim tx
// key, oldest first.
func (s *OpportunityStore) History(ctx context.Context, key string) ([]domain.Opportunity, error) {
	return s.query(ctx, `SELECT payload FROM opportunities WHERE victim_tx = $1 ORDER BY id`, key)
}

func (s *OpportunityStore) query(ctx context.Context, query string, args ...any) ([]domain.Opportunity, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var out []domain.Opportunity
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		var opp domain.Opportunity
		if err := json.Unmarshal(payload, &opp); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal opportunity: %w", err)
		}
		out = append(out, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list opportunities rows: %w", err)
	}
	return out, nil
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)
