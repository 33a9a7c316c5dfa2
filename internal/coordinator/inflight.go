package coordinator

import (
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// inflight is the bounded, expiring set of admitted opportunities keyed by
// victim transaction hash. Reads during the processing cycle take the read
// lock; admission, update and purge take the write lock. No method blocks
// on anything but the lock.
type inflight struct {
	mu       sync.RWMutex
	entries  map[common.Hash]domain.Opportunity
	capacity int
	timeout  time.Duration
}

func newInflight(capacity int, timeout time.Duration) *inflight {
	return &inflight{
		entries:  make(map[common.Hash]domain.Opportunity, capacity),
		capacity: capacity,
		timeout:  timeout,
	}
}

// admit moves opp to Admitted and stores it. A key already present is a
// no-op reported as RejectDuplicate; a full set reports RejectCapacity.
func (m *inflight) admit(opp domain.Opportunity, now time.Time) (domain.Opportunity, domain.RejectReason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[opp.Key]; ok {
		return opp, domain.RejectDuplicate
	}
	if len(m.entries) >= m.capacity {
		return opp, domain.RejectCapacity
	}
	// Only Sized opportunities are admissible.
	if err := opp.Transition(domain.OppAdmitted, now); err != nil {
		return opp, domain.RejectDuplicate
	}
	m.entries[opp.Key] = opp
	return opp, domain.RejectNone
}

// contains reports whether key is in flight.
func (m *inflight) contains(key common.Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key]
	return ok
}

// get returns a copy of the entry for key.
func (m *inflight) get(key common.Hash) (domain.Opportunity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	opp, ok := m.entries[key]
	return opp, ok
}

// update replaces a stored entry. Entries removed meanwhile stay removed.
func (m *inflight) update(opp domain.Opportunity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[opp.Key]; !ok {
		return false
	}
	m.entries[opp.Key] = opp
	return true
}

// remove deletes key and returns what was stored.
func (m *inflight) remove(key common.Hash) (domain.Opportunity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	opp, ok := m.entries[key]
	if ok {
		delete(m.entries, key)
	}
	return opp, ok
}

// purge removes entries older than the timeout and returns them.
func (m *inflight) purge(now time.Time) []domain.Opportunity {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []domain.Opportunity
	for key, opp := range m.entries {
		if opp.Expired(now, m.timeout) {
			expired = append(expired, opp)
			delete(m.entries, key)
		}
	}
	return expired
}

// snapshot copies the current entries, oldest first.
func (m *inflight) snapshot() []domain.Opportunity {
	m.mu.RLock()
	out := make([]domain.Opportunity, 0, len(m.entries))
	for _, opp := range m.entries {
		out = append(out, opp)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.Before(out[j].DetectedAt) })
	return out
}

func (m *inflight) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
