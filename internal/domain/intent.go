package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SwapVariant names the router function a TradeIntent was decoded from.
type SwapVariant string

const (
	SwapExactTokensForTokens    SwapVariant = "swapExactTokensForTokens"
	SwapTokensForExactTokens    SwapVariant = "swapTokensForExactTokens"
	SwapExactETHForTokens       SwapVariant = "swapExactETHForTokens"
	SwapTokensForExactETH       SwapVariant = "swapTokensForExactETH"
	SwapExactTokensForETH       SwapVariant = "swapExactTokensForETH"
	SwapETHForExactTokens       SwapVariant = "swapETHForExactTokens"
	SwapExactTokensForTokensFee SwapVariant = "swapExactTokensForTokensSupportingFeeOnTransferTokens"
	SwapExactETHForTokensFee    SwapVariant = "swapExactETHForTokensSupportingFeeOnTransferTokens"
	SwapExactTokensForETHFee    SwapVariant = "swapExactTokensForETHSupportingFeeOnTransferTokens"
)

// AmountKind tells which declared amount of a TradeIntent is authoritative.
type AmountKind string

const (
	ExactInput  AmountKind = "exact_input"
	ExactOutput AmountKind = "exact_output"
)

// TradeIntent is the canonical form of a decoded router swap. It is never
// mutated after construction.
//
// For ExactInput intents AmountIn is the declared input and AmountOutMin
// the slippage guard. For ExactOutput intents AmountOut is the requested
// output and AmountIn is the declared maximum input.
type TradeIntent struct {
	TxHash       common.Hash      `json:"tx_hash"`
	From         common.Address   `json:"from"`
	Router       common.Address   `json:"router"`
	Variant      SwapVariant      `json:"variant"`
	Kind         AmountKind       `json:"kind"`
	Path         []common.Address `json:"path"`
	AmountIn     *big.Int         `json:"amount_in"`
	AmountOutMin *big.Int         `json:"amount_out_min,omitempty"`
	AmountOut    *big.Int         `json:"amount_out,omitempty"`
	Recipient    common.Address   `json:"recipient"`
	Deadline     uint64           `json:"deadline"`
	GasPrice     *big.Int         `json:"gas_price"`
	Value        *big.Int         `json:"value"`
	NativeIn     bool             `json:"native_in"`
	NativeOut    bool             `json:"native_out"`
	DetectedAt   time.Time        `json:"detected_at"`
}

// TokenIn is the first token of the path.
func (t TradeIntent) TokenIn() common.Address { return t.Path[0] }

// TokenOut is the last token of the path.
func (t TradeIntent) TokenOut() common.Address { return t.Path[len(t.Path)-1] }

// FirstHop returns the pair the victim trades against first.
func (t TradeIntent) FirstHop() (common.Address, common.Address) {
	return t.Path[0], t.Path[1]
}

// Expired reports whether the router deadline has passed at now.
func (t TradeIntent) Expired(now time.Time) bool {
	return t.Deadline != 0 && uint64(now.Unix()) > t.Deadline
}
