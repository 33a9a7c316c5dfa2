package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/sandwichbot/internal/cache/redis"
	"github.com/alanyoungcy/sandwichbot/internal/coordinator"
	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// localStatus reads the in-process coordinator.
type localStatus struct {
	c *coordinator.Coordinator
}

func (s localStatus) Status(context.Context) (coordinator.Status, error) {
	return s.c.Status(), nil
}

// cachedStatus reads the snapshot a dispatching process published to Redis.
type cachedStatus struct {
	cache *redis.StatusCache
}

func (s cachedStatus) Status(ctx context.Context) (coordinator.Status, error) {
	raw, err := s.cache.Get(ctx)
	if err != nil {
		return coordinator.Status{}, fmt.Errorf("app: status snapshot: %w", err)
	}
	var st coordinator.Status
	if err := json.Unmarshal(raw, &st); err != nil {
		return coordinator.Status{}, fmt.Errorf("app: decode status snapshot: %w", err)
	}
	return st, nil
}

// unavailableStatus serves api mode without Redis.
type unavailableStatus struct{}

func (unavailableStatus) Status(context.Context) (coordinator.Status, error) {
	return coordinator.Status{}, fmt.Errorf("app: status: %w", domain.ErrUnavailable)
}

// pauseSwitch applies the pause flag to the local coordinator and shares it
// through Redis when configured. Either side may be nil.
type pauseSwitch struct {
	coord   *coordinator.Coordinator
	control *redis.Control
}

func (p pauseSwitch) SetPaused(ctx context.Context, paused bool) error {
	if p.coord == nil && p.control == nil {
		return fmt.Errorf("app: pause: %w", domain.ErrUnavailable)
	}
	if p.control != nil {
		if err := p.control.SetPaused(ctx, paused); err != nil {
			return err
		}
	}
	if p.coord != nil {
		applyPause(p.coord, paused)
	}
	return nil
}

func applyPause(c *coordinator.Coordinator, paused bool) {
	if paused {
		c.Pause()
	} else {
		c.Resume()
	}
}

// syncPause loads the shared flag at startup, then follows changes until
// ctx is done.
func syncPause(ctx context.Context, c *coordinator.Coordinator, control *redis.Control, logger *slog.Logger) error {
	paused, err := control.Paused(ctx)
	if err != nil {
		logger.WarnContext(ctx, "shared pause flag unavailable, starting unpaused", slog.String("error", err.Error()))
	} else if paused {
		c.Pause()
	}
	return control.Watch(ctx, func(paused bool) { applyPause(c, paused) }, logger)
}

// memoryOpportunities lists the coordinator's in-flight set when no
// database is configured. Newest first.
type memoryOpportunities struct {
	c *coordinator.Coordinator
}

func (m memoryOpportunities) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.Opportunity, error) {
	inflight := m.c.InFlight()
	out := make([]domain.Opportunity, 0, len(inflight))
	for i := len(inflight) - 1; i >= 0; i-- {
		if opts.Since != nil && inflight[i].UpdatedAt.Before(*opts.Since) {
			continue
		}
		out = append(out, inflight[i])
	}
	return page(out, opts), nil
}

// memoryAttempts serves the coordinator's attempt table when no database is
// configured.
type memoryAttempts struct {
	c *coordinator.Coordinator
}

func (m memoryAttempts) GetByID(_ context.Context, id string) (domain.ExecutionAttempt, error) {
	for _, a := range m.c.RecentAttempts() {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.ExecutionAttempt{}, fmt.Errorf("app: attempt %s: %w", id, domain.ErrNotFound)
}

func (m memoryAttempts) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.ExecutionAttempt, error) {
	all := m.c.RecentAttempts()
	out := make([]domain.ExecutionAttempt, 0, len(all))
	for _, a := range all {
		if opts.Since != nil && a.SubmittedAt.Before(*opts.Since) {
			continue
		}
		out = append(out, a)
	}
	return page(out, opts), nil
}

func page[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset >= len(items) {
		return nil
	}
	items = items[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}
