package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AttemptState is the resolution state of an ExecutionAttempt.
type AttemptState string

const (
	AttemptPending   AttemptState = "pending"
	AttemptConfirmed AttemptState = "confirmed"
	AttemptReverted  AttemptState = "reverted"
	AttemptTimedOut  AttemptState = "timed_out"
)

// Resolved reports whether the attempt has left the Pending state.
func (s AttemptState) Resolved() bool { return s != AttemptPending }

// ExecutionAttempt is one submission of the sandwich transaction.
type ExecutionAttempt struct {
	ID             string         `json:"id"`
	OpportunityKey common.Hash    `json:"opportunity_key"`
	Signer         common.Address `json:"signer"`
	Nonce          uint64         `json:"nonce"`
	GasPrice       *big.Int       `json:"gas_price"`
	GasLimit       uint64         `json:"gas_limit"`
	TxHash         common.Hash    `json:"tx_hash"`
	ExpectedProfit *big.Int       `json:"expected_profit"`
	RealizedProfit *big.Int       `json:"realized_profit,omitempty"`
	GasUsed        uint64         `json:"gas_used,omitempty"`
	BlockNumber    uint64         `json:"block_number,omitempty"`
	Replaces       string         `json:"replaces,omitempty"`
	State          AttemptState   `json:"state"`
	Err            string         `json:"error,omitempty"`
	SubmittedAt    time.Time      `json:"submitted_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
}

// Resolve records a terminal state at now.
func (a *ExecutionAttempt) Resolve(state AttemptState, now time.Time) {
	a.State = state
	a.ResolvedAt = &now
}

// OpportunityOutcome maps an attempt resolution onto the opportunity state
// machine.
func (s AttemptState) OpportunityOutcome() OpportunityState {
	switch s {
	case AttemptConfirmed:
		return OppConfirmed
	case AttemptReverted:
		return OppReverted
	case AttemptTimedOut:
		return OppTimedOut
	}
	return OppDispatched
}

// SandwichOrder is what the dispatcher needs to submit one sandwich
// transaction for an admitted opportunity.
type SandwichOrder struct {
	Opportunity   Opportunity
	Nonce         uint64
	GasPrice      *big.Int
	GasLimit      uint64
	MinBackRunOut *big.Int
	Deadline      uint64
}

// AttemptReceipt is the mined outcome of a sandwich transaction.
type AttemptReceipt struct {
	TxHash         common.Hash
	Success        bool
	GasUsed        uint64
	BlockNumber    uint64
	RealizedProfit *big.Int // nil when no SandwichExecuted log was found
}
