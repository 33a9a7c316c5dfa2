package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// OpportunityState is the lifecycle position of an Opportunity.
type OpportunityState string

const (
	OppDetected   OpportunityState = "detected"
	OppValidated  OpportunityState = "validated"
	OppSized      OpportunityState = "sized"
	OppAdmitted   OpportunityState = "admitted"
	OppDispatched OpportunityState = "dispatched"
	OppConfirmed  OpportunityState = "confirmed"
	OppReverted   OpportunityState = "reverted"
	OppTimedOut   OpportunityState = "timed_out"
	OppSuperseded OpportunityState = "superseded"
)

var oppTransitions = map[OpportunityState][]OpportunityState{
	OppDetected:   {OppValidated, OppSuperseded},
	OppValidated:  {OppSized, OppSuperseded},
	OppSized:      {OppAdmitted, OppSuperseded},
	OppAdmitted:   {OppDispatched, OppSuperseded},
	OppDispatched: {OppConfirmed, OppReverted, OppTimedOut},
}

// CanTransition reports whether next directly follows s.
func (s OpportunityState) CanTransition(next OpportunityState) bool {
	for _, n := range oppTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s OpportunityState) Terminal() bool {
	return len(oppTransitions[s]) == 0
}

// Sizing is the optimizer output for one opportunity. Integer fields are
// token-native units of the input token unless noted.
type Sizing struct {
	ClosedForm   float64  `json:"closed_form"`
	FrontRunIn   *big.Int `json:"front_run_in"`
	FrontRunOut  *big.Int `json:"front_run_out"`
	VictimOut    *big.Int `json:"victim_out"`
	BackRunOut   *big.Int `json:"back_run_out"`
	GrossProfit  *big.Int `json:"gross_profit"`
	Confidence   float64  `json:"confidence"`
	FlashLoanFee *big.Int `json:"flash_loan_fee"`
	GasPrice     *big.Int `json:"gas_price"`
	GasCost      *big.Int `json:"gas_cost"`
	NetProfit    *big.Int `json:"net_profit"`
	Profitable   bool     `json:"profitable"`
	Executable   bool     `json:"executable"`
}

// Opportunity is a validated TradeIntent with a pool snapshot and sizing,
// keyed by the victim transaction hash.
type Opportunity struct {
	Key        common.Hash      `json:"key"`
	Intent     TradeIntent      `json:"intent"`
	Pool       Pool             `json:"pool"`
	VictimIn   *big.Int         `json:"victim_in"`
	Sizing     Sizing           `json:"sizing"`
	State      OpportunityState `json:"state"`
	Reason     RejectReason     `json:"reason,omitempty"`
	AttemptID  string           `json:"attempt_id,omitempty"`
	DetectedAt time.Time        `json:"detected_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// NewOpportunity starts the lifecycle for intent in the Detected state.
func NewOpportunity(intent TradeIntent, now time.Time) Opportunity {
	return Opportunity{
		Key:        intent.TxHash,
		Intent:     intent,
		State:      OppDetected,
		DetectedAt: now,
		UpdatedAt:  now,
	}
}

// Transition moves o to next, refusing skipped or out-of-order steps.
func (o *Opportunity) Transition(next OpportunityState, now time.Time) error {
	if !o.State.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.State, next)
	}
	o.State = next
	o.UpdatedAt = now
	return nil
}

// Supersede discards o before dispatch, recording why.
func (o *Opportunity) Supersede(reason RejectReason, now time.Time) error {
	if err := o.Transition(OppSuperseded, now); err != nil {
		return err
	}
	o.Reason = reason
	return nil
}

// Expired reports whether o has outlived timeout at now.
func (o Opportunity) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(o.DetectedAt) > timeout
}
