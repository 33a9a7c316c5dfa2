package coordinator

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// Sink receives every record the coordinator streams. Implementations may
// block on I/O; Fanout runs them off the coordinator's goroutines.
type Sink interface {
	Name() string
	OpportunityUpdated(ctx context.Context, opp domain.Opportunity) error
	AttemptUpdated(ctx context.Context, attempt domain.ExecutionAttempt) error
}

// Fanout drains the coordinator streams into sinks until ctx is done. A
// failing sink is logged and skipped for that record only.
func Fanout(ctx context.Context, c *Coordinator, sinks []Sink, logger *slog.Logger) error {
	logger = logger.With(slog.String("component", "fanout"))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case opp := <-c.Opportunities():
			for _, s := range sinks {
				if err := s.OpportunityUpdated(ctx, opp); err != nil {
					c.metrics.SinkFailed(s.Name())
					logger.WarnContext(ctx, "sink failed",
						slog.String("sink", s.Name()),
						slog.String("key", opp.Key.Hex()),
						slog.String("error", err.Error()),
					)
				}
			}
		case a := <-c.Attempts():
			for _, s := range sinks {
				if err := s.AttemptUpdated(ctx, a); err != nil {
					c.metrics.SinkFailed(s.Name())
					logger.WarnContext(ctx, "sink failed",
						slog.String("sink", s.Name()),
						slog.String("attempt", a.ID),
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}
}
