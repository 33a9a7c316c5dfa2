package postgres

import (
	"context"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// Sink records the coordinator streams: every opportunity change as a new
// row and every attempt change as an upsert.
type Sink struct {
	Opportunities domain.OpportunityStore
	Attempts      domain.AttemptStore
}

// Name identifies the sink in logs.
func (s *Sink) Name() string { return "postgres" }

// OpportunityUpdated appends opp.
func (s *Sink) OpportunityUpdated(ctx context.Context, opp domain.Opportunity) error {
	return s.Opportunities.Insert(ctx, opp)
}

// AttemptUpdated upserts a.
func (s *Sink) AttemptUpdated(ctx context.Context, a domain.ExecutionAttempt) error {
	return s.Attempts.Upsert(ctx, a)
}
