package domain

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestOpportunityTransitions(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	opp := NewOpportunity(TradeIntent{TxHash: common.HexToHash("0x01")}, now)
	if opp.State != OppDetected {
		t.Fatalf("initial state = %s, want detected", opp.State)
	}
	if opp.Key != common.HexToHash("0x01") {
		t.Fatalf("key = %s", opp.Key)
	}

	// Skipping Validated is refused.
	if err := opp.Transition(OppSized, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("detected -> sized: err = %v, want ErrInvalidTransition", err)
	}

	for _, next := range []OpportunityState{OppValidated, OppSized, OppAdmitted, OppDispatched, OppConfirmed} {
		if err := opp.Transition(next, now.Add(time.Second)); err != nil {
			t.Fatalf("-> %s: %v", next, err)
		}
	}
	if !opp.State.Terminal() {
		t.Fatalf("confirmed should be terminal")
	}
	if !opp.UpdatedAt.Equal(now.Add(time.Second)) {
		t.Fatalf("UpdatedAt not advanced")
	}
}

func TestSupersedeOnlyBeforeDispatch(t *testing.T) {
	now := time.Now()
	tests := []struct {
		from OpportunityState
		ok   bool
	}{
		{OppDetected, true},
		{OppValidated, true},
		{OppSized, true},
		{OppAdmitted, true},
		{OppDispatched, false},
		{OppConfirmed, false},
		{OppSuperseded, false},
	}
	for _, tt := range tests {
		opp := Opportunity{State: tt.from}
		err := opp.Supersede(RejectUnprofitable, now)
		if tt.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tt.from, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("%s: supersede should fail", tt.from)
		}
		if tt.ok && opp.Reason != RejectUnprofitable {
			t.Errorf("%s: reason = %q", tt.from, opp.Reason)
		}
	}
}

func TestOpportunityExpired(t *testing.T) {
	now := time.Now()
	opp := Opportunity{DetectedAt: now}
	if opp.Expired(now.Add(10*time.Second), 10*time.Second) {
		t.Fatalf("expired at exactly the timeout")
	}
	if !opp.Expired(now.Add(10*time.Second+time.Millisecond), 10*time.Second) {
		t.Fatalf("not expired past the timeout")
	}
}

func TestRiskUpgradeNeverDowngrades(t *testing.T) {
	tests := []struct {
		cur, next, want RiskClass
	}{
		{RiskClean, RiskUnknown, RiskUnknown},
		{RiskUnknown, RiskClean, RiskUnknown},
		{RiskRebasing, RiskFeeOnTransfer, RiskFeeOnTransfer},
		{RiskBlacklisted, RiskClean, RiskBlacklisted},
		{RiskFeeOnTransfer, RiskRebasing, RiskFeeOnTransfer},
		{RiskClean, RiskClass("bogus"), RiskClass("bogus")},
		{RiskUnknown, RiskClass("bogus"), RiskUnknown},
	}
	for _, tt := range tests {
		if got := tt.cur.Upgrade(tt.next); got != tt.want {
			t.Errorf("%s.Upgrade(%s) = %s, want %s", tt.cur, tt.next, got, tt.want)
		}
	}
}

func TestRiskBlocked(t *testing.T) {
	for class, want := range map[RiskClass]bool{
		RiskClean:         false,
		RiskUnknown:       false,
		RiskRebasing:      true,
		RiskFeeOnTransfer: true,
		RiskBlacklisted:   true,
	} {
		if got := class.Blocked(); got != want {
			t.Errorf("%s.Blocked() = %v, want %v", class, got, want)
		}
	}
}

func TestSortTokensAndReserves(t *testing.T) {
	lo := common.HexToAddress("0x1000000000000000000000000000000000000000")
	hi := common.HexToAddress("0x2000000000000000000000000000000000000000")
	a, b := SortTokens(hi, lo)
	if a != lo || b != hi {
		t.Fatalf("SortTokens = %s, %s", a, b)
	}

	p := Pool{Token0: lo, Token1: hi, Reserve0: big.NewInt(100), Reserve1: big.NewInt(200)}
	in, out, ok := p.ReservesFor(hi)
	if !ok || in.Int64() != 200 || out.Int64() != 100 {
		t.Fatalf("ReservesFor(token1) = %v, %v, %v", in, out, ok)
	}
	if _, _, ok := p.ReservesFor(common.Address{}); ok {
		t.Fatalf("ReservesFor(foreign token) should fail")
	}
	if p.Empty() {
		t.Fatalf("pool with reserves reported empty")
	}
	p.Reserve1 = new(big.Int)
	if !p.Empty() {
		t.Fatalf("zero reserve not reported empty")
	}
}

func TestPoolStale(t *testing.T) {
	now := time.Now()
	if !(Pool{}).Stale(now, 30*time.Second) {
		t.Fatalf("zero UpdatedAt should be stale")
	}
	p := Pool{UpdatedAt: now.Add(-29 * time.Second)}
	if p.Stale(now, 30*time.Second) {
		t.Fatalf("29s old snapshot reported stale")
	}
	p.UpdatedAt = now.Add(-31 * time.Second)
	if !p.Stale(now, 30*time.Second) {
		t.Fatalf("31s old snapshot not stale")
	}
}

func TestAttemptOutcome(t *testing.T) {
	for state, want := range map[AttemptState]OpportunityState{
		AttemptPending:   OppDispatched,
		AttemptConfirmed: OppConfirmed,
		AttemptReverted:  OppReverted,
		AttemptTimedOut:  OppTimedOut,
	} {
		if got := state.OpportunityOutcome(); got != want {
			t.Errorf("%s -> %s, want %s", state, got, want)
		}
	}

	var a ExecutionAttempt
	a.State = AttemptPending
	if a.State.Resolved() {
		t.Fatalf("pending reported resolved")
	}
	a.Resolve(AttemptTimedOut, time.Now())
	if !a.State.Resolved() || a.ResolvedAt == nil {
		t.Fatalf("Resolve did not record state/time")
	}
}
