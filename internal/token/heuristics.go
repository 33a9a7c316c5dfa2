package token

import (
	"bytes"
	"errors"

	"golang.org/x/crypto/sha3"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

var errNoCode = errors.New("token: no contract code")

// Function signatures whose selectors betray transfer taxes or reflection.
var feeOnTransferSignatures = []string{
	"_taxFee()",
	"taxFee()",
	"_liquidityFee()",
	"setTaxFeePercent(uint256)",
	"setLiquidityFeePercent(uint256)",
	"excludeFromFee(address)",
	"isExcludedFromFee(address)",
	"reflectionFromToken(uint256,bool)",
	"tokenFromReflection(uint256)",
	"deliver(uint256)",
	"setSwapAndLiquifyEnabled(bool)",
	"_maxTxAmount()",
	"buyTotalFees()",
	"sellTotalFees()",
}

// Function signatures used by elastic-supply tokens.
var rebaseSignatures = []string{
	"rebase(uint256,int256)",
	"rebase(uint256,uint256)",
	"rebase()",
	"gonsPerFragment()",
	"_gonsPerFragment()",
	"scaledBalanceOf(address)",
	"scaledTotalSupply()",
	"setRebaseRate(uint256)",
}

// Selector returns the 4-byte function selector of a canonical signature.
func Selector(signature string) [4]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	var out [4]byte
	copy(out[:], h.Sum(nil)[:4])
	return out
}

func push4Patterns(signatures []string) [][]byte {
	out := make([][]byte, 0, len(signatures))
	for _, s := range signatures {
		sel := Selector(s)
		// PUSH4 <selector> as emitted by the solidity dispatcher.
		out = append(out, append([]byte{0x63}, sel[:]...))
	}
	return out
}

var (
	feePatterns    = push4Patterns(feeOnTransferSignatures)
	rebasePatterns = push4Patterns(rebaseSignatures)
)

// ClassifyBytecode inspects runtime bytecode for dispatcher entries of
// known fee-on-transfer or rebase functions. It is a best-effort signal:
// novel fee mechanisms slip through and unrelated selectors can collide.
func ClassifyBytecode(code []byte) (domain.RiskClass, error) {
	if len(code) == 0 {
		return domain.RiskUnknown, errNoCode
	}
	for _, p := range feePatterns {
		if bytes.Contains(code, p) {
			return domain.RiskFeeOnTransfer, nil
		}
	}
	for _, p := range rebasePatterns {
		if bytes.Contains(code, p) {
			return domain.RiskRebasing, nil
		}
	}
	return domain.RiskClean, nil
}
