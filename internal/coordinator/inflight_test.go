package coordinator

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

func sizedOpportunity(n int64, detected time.Time) domain.Opportunity {
	opp := domain.NewOpportunity(domain.TradeIntent{TxHash: common.BigToHash(big.NewInt(n))}, detected)
	for _, s := range []domain.OpportunityState{domain.OppValidated, domain.OppSized} {
		if err := opp.Transition(s, detected); err != nil {
			panic(err)
		}
	}
	return opp
}

func TestInflightAdmit(t *testing.T) {
	m := newInflight(2, 10*time.Second)

	got, r := m.admit(sizedOpportunity(1, t0), t0)
	if r != domain.RejectNone || got.State != domain.OppAdmitted {
		t.Fatalf("admit = %s, %q", got.State, r)
	}
	if _, r := m.admit(sizedOpportunity(1, t0), t0); r != domain.RejectDuplicate {
		t.Errorf("duplicate admit = %q", r)
	}
	if _, r := m.admit(sizedOpportunity(2, t0), t0); r != domain.RejectNone {
		t.Errorf("second admit = %q", r)
	}
	if _, r := m.admit(sizedOpportunity(3, t0), t0); r != domain.RejectCapacity {
		t.Errorf("admit over capacity = %q", r)
	}
	if m.len() != 2 {
		t.Errorf("len = %d, want 2", m.len())
	}
}

func TestInflightRejectsUnsizedOpportunity(t *testing.T) {
	m := newInflight(4, 10*time.Second)
	opp := domain.NewOpportunity(domain.TradeIntent{TxHash: common.HexToHash("0x01")}, t0)
	if _, r := m.admit(opp, t0); r == domain.RejectNone {
		t.Fatal("admitted an opportunity that skipped sizing")
	}
	if m.len() != 0 {
		t.Fatal("rejected opportunity stored")
	}
}

func TestInflightPurge(t *testing.T) {
	m := newInflight(8, 10*time.Second)
	m.admit(sizedOpportunity(1, t0), t0)
	m.admit(sizedOpportunity(2, t0.Add(5*time.Second)), t0)

	if got := m.purge(t0.Add(10 * time.Second)); len(got) != 0 {
		t.Fatalf("purged %d at exactly the timeout, want 0", len(got))
	}
	got := m.purge(t0.Add(11 * time.Second))
	if len(got) != 1 || got[0].Key != common.BigToHash(big.NewInt(1)) {
		t.Fatalf("purged = %+v", got)
	}
	if m.len() != 1 {
		t.Fatalf("len = %d, want 1", m.len())
	}
	// A purged key frees its slot for a fresh admission.
	if _, r := m.admit(sizedOpportunity(1, t0.Add(11*time.Second)), t0); r != domain.RejectNone {
		t.Errorf("readmit after purge = %q", r)
	}
}

func TestInflightSnapshotOrderAndUpdate(t *testing.T) {
	m := newInflight(8, 10*time.Second)
	m.admit(sizedOpportunity(2, t0.Add(time.Second)), t0)
	m.admit(sizedOpportunity(1, t0), t0)

	snap := m.snapshot()
	if len(snap) != 2 || snap[0].Key != common.BigToHash(big.NewInt(1)) {
		t.Fatalf("snapshot not oldest first: %+v", snap)
	}

	removed, _ := m.remove(snap[0].Key)
	removed.Reason = domain.RejectExpired
	if m.update(removed) {
		t.Error("update resurrected a removed entry")
	}
	if m.contains(removed.Key) {
		t.Error("removed key still present")
	}
}
