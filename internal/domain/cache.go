package domain

import (
	"context"
	"time"
)

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// Stream and channel names used on the SignalBus.
const (
	StreamOpportunities = "sandwich:opportunities"
	StreamAttempts      = "sandwich:attempts"
	ChannelControl      = "sandwich:control"
)

// ControlCommand is a message on ChannelControl.
type ControlCommand string

const (
	CommandPause  ControlCommand = "pause"
	CommandResume ControlCommand = "resume"
)

// RateLimiter admits at most limit requests per key within window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
