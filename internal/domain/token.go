package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RiskClass classifies the transfer behaviour of a token.
type RiskClass string

const (
	RiskClean         RiskClass = "clean"
	RiskUnknown       RiskClass = "unknown"
	RiskRebasing      RiskClass = "rebasing"
	RiskFeeOnTransfer RiskClass = "fee_on_transfer"
	RiskBlacklisted   RiskClass = "blacklisted"
)

// Token metadata defaults used when the chain cannot be queried.
const (
	DefaultDecimals uint8 = 18
	UnknownSymbol         = "UNKNOWN"
)

var riskSeverity = map[RiskClass]int{
	RiskClean:         0,
	RiskUnknown:       1,
	RiskRebasing:      2,
	RiskFeeOnTransfer: 3,
	RiskBlacklisted:   4,
}

// Severity orders risk classes from Clean (0) to Blacklisted (4).
// Unrecognised values rank as Unknown.
func (r RiskClass) Severity() int {
	if s, ok := riskSeverity[r]; ok {
		return s
	}
	return riskSeverity[RiskUnknown]
}

// Upgrade returns the more severe of r and next. Risk never downgrades.
func (r RiskClass) Upgrade(next RiskClass) RiskClass {
	if next.Severity() > r.Severity() {
		return next
	}
	return r
}

// Blocked reports whether tokens of this class must not be traded.
func (r RiskClass) Blocked() bool {
	return r.Severity() >= riskSeverity[RiskRebasing]
}

// Token is cached ERC20 metadata plus its risk classification.
type Token struct {
	Address   common.Address `json:"address"`
	Decimals  uint8          `json:"decimals"`
	Symbol    string         `json:"symbol"`
	Name      string         `json:"name"`
	Risk      RiskClass      `json:"risk"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// DefaultToken is the permissive placeholder returned when metadata is
// unavailable.
func DefaultToken(addr common.Address, now time.Time) Token {
	return Token{
		Address:   addr,
		Decimals:  DefaultDecimals,
		Symbol:    UnknownSymbol,
		Risk:      RiskUnknown,
		FetchedAt: now,
	}
}
