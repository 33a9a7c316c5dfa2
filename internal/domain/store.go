package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OpportunityStore is the append-only log of opportunity decisions.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
	ListRecent(ctx context.Context, opts ListOpts) ([]Opportunity, error)
}

// AttemptStore persists execution attempts, one row per attempt id.
type AttemptStore interface {
	Upsert(ctx context.Context, attempt ExecutionAttempt) error
	GetByID(ctx context.Context, id string) (ExecutionAttempt, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]ExecutionAttempt, error)
}

// PairIndex remembers which pool a factory created for a token pair.
type PairIndex interface {
	Lookup(ctx context.Context, factory, tokenA, tokenB common.Address) (common.Address, error)
	Save(ctx context.Context, factory, tokenA, tokenB, pool common.Address) error
}

// AuditEntry is one operator action recorded by the control surface.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore records operator actions such as pause, resume and gas bumps.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
