package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// tracker holds submitted attempts until they resolve and for a retention
// window afterwards, so the operator can bump or inspect them. spent records
// victims whose submission failed outright; they never produced an attempt
// but must not be admitted again.
type tracker struct {
	mu       sync.Mutex
	attempts map[string]*domain.ExecutionAttempt
	opps     map[common.Hash]*domain.Opportunity
	spent    map[common.Hash]time.Time
}

func newTracker() *tracker {
	return &tracker{
		attempts: make(map[string]*domain.ExecutionAttempt),
		opps:     make(map[common.Hash]*domain.Opportunity),
		spent:    make(map[common.Hash]time.Time),
	}
}

func (t *tracker) markSpent(key common.Hash, now time.Time) {
	t.mu.Lock()
	t.spent[key] = now
	t.mu.Unlock()
}

// seen reports whether key was ever dispatched, or failed dispatch, within
// the retention window. A victim gets at most one automatic attempt.
func (t *tracker) seen(key common.Hash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.opps[key]; ok {
		return true
	}
	_, ok := t.spent[key]
	return ok
}

func (t *tracker) add(a domain.ExecutionAttempt, opp domain.Opportunity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[a.ID] = &a
	if _, ok := t.opps[opp.Key]; !ok {
		t.opps[opp.Key] = &opp
	}
}

func (t *tracker) get(id string) (domain.ExecutionAttempt, domain.Opportunity, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.attempts[id]
	if !ok {
		return domain.ExecutionAttempt{}, domain.Opportunity{}, false
	}
	return *a, *t.opps[a.OpportunityKey], true
}

func (t *tracker) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, a := range t.attempts {
		if !a.State.Resolved() {
			n++
		}
	}
	return n
}

func (t *tracker) pendingList() []domain.ExecutionAttempt {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []domain.ExecutionAttempt
	for _, a := range t.attempts {
		if !a.State.Resolved() {
			out = append(out, *a)
		}
	}
	return out
}

// list returns every tracked attempt, newest first.
func (t *tracker) list() []domain.ExecutionAttempt {
	t.mu.Lock()
	out := make([]domain.ExecutionAttempt, 0, len(t.attempts))
	for _, a := range t.attempts {
		out = append(out, *a)
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out
}

// resolution is the set of records changed by one resolve call.
type resolution struct {
	attempts    []domain.ExecutionAttempt
	opportunity *domain.Opportunity
}

// resolve settles attempt id. A mined attempt also settles every other
// pending attempt sharing its nonce, since only one can be included.
func (t *tracker) resolve(id string, state domain.AttemptState, rcpt *domain.AttemptReceipt, now time.Time) resolution {
	t.mu.Lock()
	defer t.mu.Unlock()

	var res resolution
	a, ok := t.attempts[id]
	if !ok || a.State.Resolved() {
		return res
	}
	if rcpt != nil {
		a.GasUsed = rcpt.GasUsed
		a.BlockNumber = rcpt.BlockNumber
		a.RealizedProfit = rcpt.RealizedProfit
	}
	a.Resolve(state, now)
	res.attempts = append(res.attempts, *a)

	if rcpt != nil {
		for _, other := range t.attempts {
			if other.ID == a.ID || other.State.Resolved() {
				continue
			}
			if other.Signer == a.Signer && other.Nonce == a.Nonce {
				other.Err = fmt.Sprintf("nonce %d consumed by attempt %s", a.Nonce, a.ID)
				other.Resolve(domain.AttemptTimedOut, now)
				res.attempts = append(res.attempts, *other)
			}
		}
	}

	if opp, ok := t.opps[a.OpportunityKey]; ok && opp.State == domain.OppDispatched {
		if err := opp.Transition(state.OpportunityOutcome(), now); err == nil {
			cp := *opp
			res.opportunity = &cp
		}
	}
	return res
}

// prune forgets resolved attempts older than cutoff, opportunities with no
// attempts left, and failed dispatches recorded before cutoff.
func (t *tracker) prune(cutoff time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	live := make(map[common.Hash]bool, len(t.opps))
	for id, a := range t.attempts {
		if a.State.Resolved() && a.ResolvedAt != nil && a.ResolvedAt.Before(cutoff) {
			delete(t.attempts, id)
			continue
		}
		live[a.OpportunityKey] = true
	}
	for key := range t.opps {
		if !live[key] {
			delete(t.opps, key)
		}
	}
	for key, at := range t.spent {
		if at.Before(cutoff) {
			delete(t.spent, key)
		}
	}
}

// attemptRetention is how long resolved attempts stay queryable in memory.
const attemptRetention = time.Hour

// PollAttempts checks receipts for pending attempts and times out those
// older than the attempt timeout. Timed-out attempts are never retried
// automatically.
func (c *Coordinator) PollAttempts(ctx context.Context) {
	if c.deps.Dispatcher == nil {
		return
	}
	for _, a := range c.attempts.pendingList() {
		if ctx.Err() != nil {
			return
		}
		rcpt, err := c.deps.Dispatcher.Receipt(ctx, a.TxHash)
		if err != nil {
			c.rpcFailed()
			c.logger.WarnContext(ctx, "receipt lookup failed",
				slog.String("attempt", a.ID),
				slog.String("tx", a.TxHash.Hex()),
				slog.String("error", err.Error()),
			)
		} else {
			c.rpcOK()
		}

		now := c.now()
		switch {
		case rcpt != nil && rcpt.Success:
			c.settle(ctx, a.ID, domain.AttemptConfirmed, rcpt, now)
		case rcpt != nil:
			c.settle(ctx, a.ID, domain.AttemptReverted, rcpt, now)
		case now.Sub(a.SubmittedAt) > c.cfg.AttemptTimeout:
			c.settle(ctx, a.ID, domain.AttemptTimedOut, nil, now)
		}
	}
	c.attempts.prune(c.now().Add(-attemptRetention))
}

func (c *Coordinator) settle(ctx context.Context, id string, state domain.AttemptState, rcpt *domain.AttemptReceipt, now time.Time) {
	res := c.attempts.resolve(id, state, rcpt, now)
	for _, a := range res.attempts {
		c.metrics.AttemptResolved(a.State)
		attrs := []any{
			slog.String("attempt", a.ID),
			slog.String("tx", a.TxHash.Hex()),
			slog.String("state", string(a.State)),
			slog.Uint64("nonce", a.Nonce),
		}
		if a.RealizedProfit != nil {
			attrs = append(attrs, slog.String("realized_profit", a.RealizedProfit.String()))
		}
		if a.State == domain.AttemptConfirmed {
			c.logger.InfoContext(ctx, "attempt resolved", attrs...)
		} else {
			c.logger.WarnContext(ctx, "attempt resolved", attrs...)
		}
		c.emitAttempt(a)
	}
	if res.opportunity != nil {
		c.emitOpportunity(*res.opportunity)
	}
}
