package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// StreamSink appends every opportunity and attempt record to the signal bus
// streams so other processes can follow the pipeline.
type StreamSink struct {
	bus domain.SignalBus
}

// NewStreamSink creates a StreamSink on bus.
func NewStreamSink(bus domain.SignalBus) *StreamSink {
	return &StreamSink{bus: bus}
}

// Name identifies the sink in logs.
func (s *StreamSink) Name() string { return "redis_stream" }

// OpportunityUpdated appends opp to domain.StreamOpportunities.
func (s *StreamSink) OpportunityUpdated(ctx context.Context, opp domain.Opportunity) error {
	payload, err := json.Marshal(opp)
	if err != nil {
		return fmt.Errorf("redis: encode opportunity %s: %w", opp.Key.Hex(), err)
	}
	return s.bus.StreamAppend(ctx, domain.StreamOpportunities, payload)
}

// AttemptUpdated appends a to domain.StreamAttempts.
func (s *StreamSink) AttemptUpdated(ctx context.Context, a domain.ExecutionAttempt) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("redis: encode attempt %s: %w", a.ID, err)
	}
	return s.bus.StreamAppend(ctx, domain.StreamAttempts, payload)
}
