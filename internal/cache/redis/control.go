package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

const pausedKey = "sandwich:paused"

// Control shares the pause flag between processes. The flag is stored in a
// key so late joiners see it, and every change is announced on
// domain.ChannelControl.
type Control struct {
	rdb *redis.Client
	bus domain.SignalBus
}

// NewControl creates a Control on c, announcing changes through bus.
func NewControl(c *Client, bus domain.SignalBus) *Control {
	return &Control{rdb: c.Underlying(), bus: bus}
}

// SetPaused stores and announces the pause flag.
func (ctl *Control) SetPaused(ctx context.Context, paused bool) error {
	cmd := domain.CommandResume
	if paused {
		cmd = domain.CommandPause
	}
	if err := ctl.rdb.Set(ctx, pausedKey, string(cmd), 0).Err(); err != nil {
		return fmt.Errorf("redis: set pause flag: %w", err)
	}
	return ctl.bus.Publish(ctx, domain.ChannelControl, []byte(cmd))
}

// Paused reads the stored flag. An absent key means running.
func (ctl *Control) Paused(ctx context.Context) (bool, error) {
	v, err := ctl.rdb.Get(ctx, pausedKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis: get pause flag: %w", err)
	}
	return domain.ControlCommand(v) == domain.CommandPause, nil
}

// Watch calls apply for every pause or resume announced on the control
// channel until ctx is done. Unknown commands are logged and ignored.
func (ctl *Control) Watch(ctx context.Context, apply func(paused bool), logger *slog.Logger) error {
	msgs, err := ctl.bus.Subscribe(ctx, domain.ChannelControl)
	if err != nil {
		return err
	}
	for msg := range msgs {
		switch cmd := domain.ControlCommand(msg); cmd {
		case domain.CommandPause:
			apply(true)
		case domain.CommandResume:
			apply(false)
		default:
			logger.WarnContext(ctx, "unknown control command", slog.String("command", string(cmd)))
		}
	}
	return ctx.Err()
}
