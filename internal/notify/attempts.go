package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/alanyoungcy/sandwichbot/internal/amm"
	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// AttemptSink turns resolved execution attempts into notifications. It
// ignores opportunity records and pending attempts.
type AttemptSink struct {
	notifier *Notifier
}

// NewAttemptSink creates an AttemptSink on n.
func NewAttemptSink(n *Notifier) *AttemptSink {
	return &AttemptSink{notifier: n}
}

// Name identifies the sink in logs.
func (s *AttemptSink) Name() string { return "notify" }

// OpportunityUpdated is a no-op.
func (s *AttemptSink) OpportunityUpdated(context.Context, domain.Opportunity) error { return nil }

// AttemptUpdated notifies on confirmed, reverted and timed-out attempts.
func (s *AttemptSink) AttemptUpdated(ctx context.Context, a domain.ExecutionAttempt) error {
	event, title := attemptEvent(a.State)
	if event == "" {
		return nil
	}
	return s.notifier.Notify(ctx, event, title, FormatAttempt(a))
}

func attemptEvent(state domain.AttemptState) (event, title string) {
	switch state {
	case domain.AttemptConfirmed:
		return EventAttemptConfirmed, "Sandwich confirmed"
	case domain.AttemptReverted:
		return EventAttemptReverted, "Sandwich reverted"
	case domain.AttemptTimedOut:
		return EventAttemptTimedOut, "Sandwich timed out"
	}
	return "", ""
}

// FormatAttempt renders the fields an operator needs to follow up on an
// attempt. Amounts are shown in ether and gwei.
func FormatAttempt(a domain.ExecutionAttempt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "victim: %s\n", a.OpportunityKey.Hex())
	fmt.Fprintf(&b, "tx: %s (nonce %d)\n", a.TxHash.Hex(), a.Nonce)
	fmt.Fprintf(&b, "gas price: %s gwei\n", amm.FormatGwei(a.GasPrice))
	if a.ExpectedProfit != nil {
		fmt.Fprintf(&b, "expected: %s ETH\n", amm.FormatUnits(a.ExpectedProfit, 18))
	}
	if a.RealizedProfit != nil {
		fmt.Fprintf(&b, "realized: %s ETH\n", amm.FormatUnits(a.RealizedProfit, 18))
	}
	if a.BlockNumber != 0 {
		fmt.Fprintf(&b, "block: %d, gas used: %d\n", a.BlockNumber, a.GasUsed)
	}
	if a.Err != "" {
		fmt.Fprintf(&b, "error: %s\n", a.Err)
	}
	return strings.TrimRight(b.String(), "\n")
}
