package classifier

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sandwichbot/internal/chain"
	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

var errShortPath = errors.New("path shorter than two tokens")

// fromValue marks an amount taken from the transaction's native value.
const fromValue = -1

// layout locates the fields of one router function's arguments. For exact
// input swaps amount is amountIn and limit is amountOutMin; for exact output
// swaps amount is amountOut and limit is amountInMax.
type layout struct {
	kind      domain.AmountKind
	nativeIn  bool
	nativeOut bool
	amount    int
	limit     int
	path      int
	to        int
	deadline  int
}

type variant struct {
	name   domain.SwapVariant
	method abi.Method
	layout layout
}

var layouts = map[domain.SwapVariant]layout{
	domain.SwapExactTokensForTokens:    {kind: domain.ExactInput, amount: 0, limit: 1, path: 2, to: 3, deadline: 4},
	domain.SwapTokensForExactTokens:    {kind: domain.ExactOutput, amount: 0, limit: 1, path: 2, to: 3, deadline: 4},
	domain.SwapExactETHForTokens:       {kind: domain.ExactInput, nativeIn: true, amount: fromValue, limit: 0, path: 1, to: 2, deadline: 3},
	domain.SwapTokensForExactETH:       {kind: domain.ExactOutput, nativeOut: true, amount: 0, limit: 1, path: 2, to: 3, deadline: 4},
	domain.SwapExactTokensForETH:       {kind: domain.ExactInput, nativeOut: true, amount: 0, limit: 1, path: 2, to: 3, deadline: 4},
	domain.SwapETHForExactTokens:       {kind: domain.ExactOutput, nativeIn: true, amount: 0, limit: fromValue, path: 1, to: 2, deadline: 3},
	domain.SwapExactTokensForTokensFee: {kind: domain.ExactInput, amount: 0, limit: 1, path: 2, to: 3, deadline: 4},
	domain.SwapExactETHForTokensFee:    {kind: domain.ExactInput, nativeIn: true, amount: fromValue, limit: 0, path: 1, to: 2, deadline: 3},
	domain.SwapExactTokensForETHFee:    {kind: domain.ExactInput, nativeOut: true, amount: 0, limit: 1, path: 2, to: 3, deadline: 4},
}

// buildVariants keys every supported router function by its selector.
func buildVariants() map[[4]byte]variant {
	out := make(map[[4]byte]variant, len(layouts))
	for name, l := range layouts {
		m, ok := chain.RouterABI.Methods[string(name)]
		if !ok {
			panic("classifier: router abi has no " + string(name))
		}
		var sel [4]byte
		copy(sel[:], m.ID)
		out[sel] = variant{name: name, method: m, layout: l}
	}
	return out
}

func bigArg(args []any, idx int, value *big.Int) (*big.Int, error) {
	if idx == fromValue {
		if value == nil {
			return new(big.Int), nil
		}
		return new(big.Int).Set(value), nil
	}
	v, ok := args[idx].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("argument %d: unexpected type %T", idx, args[idx])
	}
	return new(big.Int).Set(v), nil
}

// extract builds a TradeIntent from unpacked arguments. Native legs must
// already be expressed with the wrapped-native address, as the router
// itself requires.
func (v variant) extract(args []any, tx domain.PendingTx, weth common.Address) (domain.TradeIntent, error) {
	l := v.layout
	if len(args) != len(v.method.Inputs) {
		return domain.TradeIntent{}, fmt.Errorf("argument count %d", len(args))
	}
	rawPath, ok := args[l.path].([]common.Address)
	if !ok {
		return domain.TradeIntent{}, fmt.Errorf("path: unexpected type %T", args[l.path])
	}
	if len(rawPath) < 2 {
		return domain.TradeIntent{}, errShortPath
	}
	if l.nativeIn && rawPath[0] != weth {
		return domain.TradeIntent{}, fmt.Errorf("native input path starts at %s", rawPath[0].Hex())
	}
	if l.nativeOut && rawPath[len(rawPath)-1] != weth {
		return domain.TradeIntent{}, fmt.Errorf("native output path ends at %s", rawPath[len(rawPath)-1].Hex())
	}
	path := append([]common.Address(nil), rawPath...)

	to, ok := args[l.to].(common.Address)
	if !ok {
		return domain.TradeIntent{}, fmt.Errorf("to: unexpected type %T", args[l.to])
	}
	deadline, err := bigArg(args, l.deadline, nil)
	if err != nil {
		return domain.TradeIntent{}, err
	}
	amount, err := bigArg(args, l.amount, tx.Value)
	if err != nil {
		return domain.TradeIntent{}, err
	}
	limit, err := bigArg(args, l.limit, tx.Value)
	if err != nil {
		return domain.TradeIntent{}, err
	}

	intent := domain.TradeIntent{
		TxHash:     tx.Hash,
		From:       tx.From,
		Router:     *tx.To,
		Variant:    v.name,
		Kind:       l.kind,
		Path:       path,
		Recipient:  to,
		GasPrice:   copyBig(tx.GasPrice),
		Value:      copyBig(tx.Value),
		NativeIn:   l.nativeIn,
		NativeOut:  l.nativeOut,
		DetectedAt: tx.FirstSeen,
	}
	if deadline.IsUint64() {
		intent.Deadline = deadline.Uint64()
	}
	switch l.kind {
	case domain.ExactInput:
		intent.AmountIn = amount
		intent.AmountOutMin = limit
	case domain.ExactOutput:
		intent.AmountOut = amount
		intent.AmountIn = limit
	}
	return intent, nil
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
