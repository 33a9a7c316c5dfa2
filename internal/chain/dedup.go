package chain

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Dedup remembers transaction hashes for a TTL so a hash announced twice
// (node reconnects, resubscription replays) is fetched once. It is safe
// for concurrent use.
type Dedup struct {
	mu   sync.Mutex
	seen map[common.Hash]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewDedup creates a Dedup with the given ttl.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[common.Hash]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Seen reports whether h was recorded within the TTL, recording it if not.
func (d *Dedup) Seen(h common.Hash) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, ok := d.seen[h]; ok && now.Sub(at) < d.ttl {
		return true
	}
	d.seen[h] = now
	return false
}

// Cleanup forgets expired hashes.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for h, at := range d.seen {
		if now.Sub(at) >= d.ttl {
			delete(d.seen, h)
		}
	}
}

// Len is the number of remembered hashes.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
