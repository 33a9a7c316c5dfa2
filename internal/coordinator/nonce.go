package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// NonceSource reads the pending nonce of an account from the chain.
type NonceSource interface {
	NonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// NonceManager owns the next-nonce counter for one signing address. The
// mutex guards only the counter; chain refreshes happen outside it.
type NonceManager struct {
	source  NonceSource
	account common.Address
	maxAge  time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	next      uint64
	valid     bool
	fetchedAt time.Time
}

// NewNonceManager creates a NonceManager that refreshes from source when it
// holds no value or the value is older than maxAge.
func NewNonceManager(source NonceSource, account common.Address, maxAge time.Duration, logger *slog.Logger) *NonceManager {
	if maxAge <= 0 {
		maxAge = 30 * time.Second
	}
	return &NonceManager{
		source:  source,
		account: account,
		maxAge:  maxAge,
		logger:  logger.With(slog.String("component", "nonce"), slog.String("account", account.Hex())),
		now:     time.Now,
	}
}

// Account is the signing address the counter belongs to.
func (n *NonceManager) Account() common.Address { return n.account }

// Next returns a nonce no other caller has received and advances the
// counter. It fails with domain.ErrNonceUnavailable when no value is held
// and the chain cannot be read.
func (n *NonceManager) Next(ctx context.Context) (uint64, error) {
	n.mu.Lock()
	if n.valid && n.now().Sub(n.fetchedAt) <= n.maxAge {
		v := n.next
		n.next++
		n.mu.Unlock()
		return v, nil
	}
	n.mu.Unlock()

	fetched, err := n.source.NonceAt(ctx, n.account)

	n.mu.Lock()
	defer n.mu.Unlock()
	if err != nil {
		if !n.valid {
			return 0, fmt.Errorf("%w: %v", domain.ErrNonceUnavailable, err)
		}
		n.logger.WarnContext(ctx, "nonce refresh failed, using held value",
			slog.Uint64("next", n.next),
			slog.String("error", err.Error()),
		)
	} else {
		// Concurrent refreshers may return after another caller already
		// advanced the counter; never move it backwards.
		if !n.valid || fetched > n.next {
			n.next = fetched
		}
		n.valid = true
		n.fetchedAt = n.now()
	}
	v := n.next
	n.next++
	return v, nil
}

// Invalidate drops the held value so the next call re-reads the chain.
// Called after any submission error.
func (n *NonceManager) Invalidate() {
	n.mu.Lock()
	n.valid = false
	n.mu.Unlock()
}

// Peek returns the next nonce without consuming it.
func (n *NonceManager) Peek() (uint64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.next, n.valid
}
