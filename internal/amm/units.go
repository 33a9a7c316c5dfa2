package amm

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatUnits renders a token-native amount with the given decimals, e.g.
// 1500000000000000000 with 18 decimals becomes "1.5".
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// FormatGwei renders a wei gas price in gwei.
func FormatGwei(wei *big.Int) string {
	return FormatUnits(wei, 9)
}
