package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type fakeCaller struct {
	results map[string][]byte
	calls   int
}

func callKey(to common.Address, selector []byte) string {
	return to.Hex() + ":" + common.Bytes2Hex(selector)
}

func (f *fakeCaller) set(t *testing.T, to common.Address, parsed abi.ABI, method string, outputs ...any) {
	t.Helper()
	m, ok := parsed.Methods[method]
	if !ok {
		t.Fatalf("no method %s", method)
	}
	data, err := m.Outputs.Pack(outputs...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	if f.results == nil {
		f.results = map[string][]byte{}
	}
	f.results[callKey(to, m.ID)] = data
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	if data, ok := f.results[callKey(*msg.To, msg.Data[:4])]; ok {
		return data, nil
	}
	return nil, errors.New("execution reverted")
}

var (
	pairAddr    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	factoryAddr = common.HexToAddress("0x00000000000000000000000000000000000000fa")
	tokenA      = common.HexToAddress("0x0000000000000000000000000000000000000001")
	tokenB      = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

func TestGetReserves(t *testing.T) {
	f := &fakeCaller{}
	f.set(t, pairAddr, PairABI, "getReserves", big.NewInt(1_000), big.NewInt(2_000), uint32(42))

	r0, r1, err := GetReserves(context.Background(), f, pairAddr)
	if err != nil {
		t.Fatalf("GetReserves: %v", err)
	}
	if r0.Int64() != 1_000 || r1.Int64() != 2_000 {
		t.Fatalf("reserves = (%s, %s), want (1000, 2000)", r0, r1)
	}
}

func TestPairTokensAndGetPair(t *testing.T) {
	f := &fakeCaller{}
	f.set(t, pairAddr, PairABI, "token0", tokenA)
	f.set(t, pairAddr, PairABI, "token1", tokenB)
	f.set(t, factoryAddr, FactoryABI, "getPair", pairAddr)

	t0, t1, err := PairTokens(context.Background(), f, pairAddr)
	if err != nil || t0 != tokenA || t1 != tokenB {
		t.Fatalf("PairTokens = (%s, %s, %v)", t0.Hex(), t1.Hex(), err)
	}
	got, err := GetPair(context.Background(), f, factoryAddr, tokenA, tokenB)
	if err != nil || got != pairAddr {
		t.Fatalf("GetPair = (%s, %v), want %s", got.Hex(), err, pairAddr.Hex())
	}
}

func TestERC20Metadata(t *testing.T) {
	f := &fakeCaller{}
	f.set(t, tokenA, ERC20ABI, "decimals", uint8(6))
	f.set(t, tokenA, ERC20ABI, "symbol", "USDC")
	f.set(t, tokenA, ERC20ABI, "balanceOf", big.NewInt(77))

	dec, err := Decimals(context.Background(), f, tokenA)
	if err != nil || dec != 6 {
		t.Fatalf("Decimals = (%d, %v), want 6", dec, err)
	}
	sym, err := Symbol(context.Background(), f, tokenA)
	if err != nil || sym != "USDC" {
		t.Fatalf("Symbol = (%q, %v), want USDC", sym, err)
	}
	bal, err := BalanceOf(context.Background(), f, tokenA, tokenB)
	if err != nil || bal.Int64() != 77 {
		t.Fatalf("BalanceOf = (%v, %v), want 77", bal, err)
	}
}

func TestSymbolBytes32Fallback(t *testing.T) {
	var raw [32]byte
	copy(raw[:], "MKR")
	f := &fakeCaller{}
	f.set(t, tokenB, bytes32ERC20ABI, "symbol", raw)

	sym, err := Symbol(context.Background(), f, tokenB)
	if err != nil || sym != "MKR" {
		t.Fatalf("Symbol = (%q, %v), want MKR", sym, err)
	}
}

func TestCallErrorsAreWrapped(t *testing.T) {
	_, err := Decimals(context.Background(), &fakeCaller{}, tokenA)
	if err == nil {
		t.Fatal("expected error for reverted call")
	}
}

func TestFindSandwichExecuted(t *testing.T) {
	contract := common.HexToAddress("0x0000000000000000000000000000000000005a5a")
	victim := common.HexToHash("0xbeef")
	event := SandwichABI.Events["SandwichExecuted"]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(15), big.NewInt(28), big.NewInt(13))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	receipt := &types.Receipt{Logs: []*types.Log{
		{Address: common.HexToAddress("0x01"), Topics: []common.Hash{event.ID, victim, common.BytesToHash(pairAddr.Bytes())}, Data: data},
		{Address: contract, Topics: []common.Hash{event.ID, victim, common.BytesToHash(pairAddr.Bytes())}, Data: data},
	}}

	ev, ok, err := FindSandwichExecuted(receipt, contract)
	if err != nil || !ok {
		t.Fatalf("FindSandwichExecuted = (%v, %v)", ok, err)
	}
	if ev.VictimTx != victim || ev.Pair != pairAddr || ev.Profit.Int64() != 13 || ev.BackRunOut.Int64() != 28 {
		t.Fatalf("decoded %+v", ev)
	}

	if _, ok, _ := FindSandwichExecuted(&types.Receipt{}, contract); ok {
		t.Fatal("empty receipt must not report the event")
	}
}
