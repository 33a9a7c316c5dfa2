package chain

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Caller executes read-only contract calls. *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// call packs method, executes it against the latest state and unpacks the
// outputs.
func call(ctx context.Context, c Caller, parsed abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	input, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	out, err := c.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s on %s: %w", method, to.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("chain: call %s on %s: empty result", method, to.Hex())
	}
	raw, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	return raw, nil
}

func asBig(v any, what string) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		return n, nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case uint32:
		return big.NewInt(int64(n)), nil
	default:
		return nil, fmt.Errorf("chain: unexpected %s type %T", what, v)
	}
}

func asAddress(v any, what string) (common.Address, error) {
	switch a := v.(type) {
	case common.Address:
		return a, nil
	case [20]byte:
		return common.BytesToAddress(a[:]), nil
	default:
		return common.Address{}, fmt.Errorf("chain: unexpected %s type %T", what, v)
	}
}

// GetReserves returns the pair's (reserve0, reserve1).
func GetReserves(ctx context.Context, c Caller, pair common.Address) (*big.Int, *big.Int, error) {
	raw, err := call(ctx, c, PairABI, pair, "getReserves")
	if err != nil {
		return nil, nil, err
	}
	if len(raw) != 3 {
		return nil, nil, fmt.Errorf("chain: unexpected getReserves return length %d", len(raw))
	}
	r0, err := asBig(raw[0], "reserve0")
	if err != nil {
		return nil, nil, err
	}
	r1, err := asBig(raw[1], "reserve1")
	if err != nil {
		return nil, nil, err
	}
	return r0, r1, nil
}

// PairTokens returns token0 and token1 of a pair.
func PairTokens(ctx context.Context, c Caller, pair common.Address) (common.Address, common.Address, error) {
	var out [2]common.Address
	for i, method := range []string{"token0", "token1"} {
		raw, err := call(ctx, c, PairABI, pair, method)
		if err != nil {
			return common.Address{}, common.Address{}, err
		}
		if len(raw) != 1 {
			return common.Address{}, common.Address{}, fmt.Errorf("chain: unexpected %s return length %d", method, len(raw))
		}
		if out[i], err = asAddress(raw[0], method); err != nil {
			return common.Address{}, common.Address{}, err
		}
	}
	return out[0], out[1], nil
}

// GetPair asks a factory for the pair of tokenA and tokenB. The zero
// address means no pair exists.
func GetPair(ctx context.Context, c Caller, factory, tokenA, tokenB common.Address) (common.Address, error) {
	raw, err := call(ctx, c, FactoryABI, factory, "getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	if len(raw) != 1 {
		return common.Address{}, fmt.Errorf("chain: unexpected getPair return length %d", len(raw))
	}
	return asAddress(raw[0], "pair")
}

// Decimals returns an ERC20's decimals.
func Decimals(ctx context.Context, c Caller, token common.Address) (uint8, error) {
	raw, err := call(ctx, c, ERC20ABI, token, "decimals")
	if err != nil {
		return 0, err
	}
	if len(raw) != 1 {
		return 0, fmt.Errorf("chain: unexpected decimals return length %d", len(raw))
	}
	switch v := raw[0].(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("chain: decimals %s out of range", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("chain: unexpected decimals type %T", raw[0])
	}
}

// Symbol returns an ERC20's symbol, accepting the legacy bytes32 encoding.
func Symbol(ctx context.Context, c Caller, token common.Address) (string, error) {
	return stringOrBytes32(ctx, c, token, "symbol")
}

// Name returns an ERC20's name, accepting the legacy bytes32 encoding.
func Name(ctx context.Context, c Caller, token common.Address) (string, error) {
	return stringOrBytes32(ctx, c, token, "name")
}

func stringOrBytes32(ctx context.Context, c Caller, token common.Address, method string) (string, error) {
	raw, err := call(ctx, c, ERC20ABI, token, method)
	if err == nil && len(raw) == 1 {
		if s, ok := raw[0].(string); ok {
			return s, nil
		}
	}
	legacy, lerr := call(ctx, c, bytes32ERC20ABI, token, method)
	if lerr != nil {
		if err != nil {
			return "", err
		}
		return "", lerr
	}
	b, ok := legacy[0].([32]byte)
	if !ok {
		return "", fmt.Errorf("chain: unexpected %s type %T", method, legacy[0])
	}
	return string(bytes.TrimRight(b[:], "\x00")), nil
}

// BalanceOf returns owner's balance of token.
func BalanceOf(ctx context.Context, c Caller, token, owner common.Address) (*big.Int, error) {
	raw, err := call(ctx, c, ERC20ABI, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	if len(raw) != 1 {
		return nil, fmt.Errorf("chain: unexpected balanceOf return length %d", len(raw))
	}
	return asBig(raw[0], "balance")
}

// SimulateSandwich asks the sandwich contract to dry-run a front-run of
// frontRunIn ahead of victimIn on pair.
func SimulateSandwich(ctx context.Context, c Caller, contract, pair, tokenIn common.Address, frontRunIn, victimIn *big.Int) (backRunOut, profit *big.Int, err error) {
	raw, err := call(ctx, c, SandwichABI, contract, "simulateSandwich", pair, tokenIn, frontRunIn, victimIn)
	if err != nil {
		return nil, nil, err
	}
	if len(raw) != 2 {
		return nil, nil, fmt.Errorf("chain: unexpected simulateSandwich return length %d", len(raw))
	}
	if backRunOut, err = asBig(raw[0], "backRunOut"); err != nil {
		return nil, nil, err
	}
	if profit, err = asBig(raw[1], "profit"); err != nil {
		return nil, nil, err
	}
	return backRunOut, profit, nil
}
