package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/sandwichbot/internal/chain"
	"github.com/alanyoungcy/sandwichbot/internal/crypto"
	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

var (
	contract = common.HexToAddress("0x00000000000000000000000000000000000c0ffe")
	weth     = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc     = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	pair     = common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")
	victim   = common.HexToHash("0x5151")
)

type fakeBackend struct {
	mu       sync.Mutex
	sent     []*types.Transaction
	profit   *big.Int
	receipts map[common.Hash]*types.Receipt
	calls    int
}

func (b *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if msg.To == nil || *msg.To != contract {
		return nil, errors.New("unexpected call target")
	}
	return chain.SandwichABI.Methods["simulateSandwich"].Outputs.Pack(big.NewInt(1_000), b.profit)
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) Receipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.receipts[h], nil
}

func testSigner(t *testing.T) *crypto.Signer {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	return crypto.NewSigner(key, big.NewInt(1))
}

func testOrder(tokenIn, tokenOut common.Address) domain.SandwichOrder {
	return domain.SandwichOrder{
		Opportunity: domain.Opportunity{
			Key:      victim,
			Intent:   domain.TradeIntent{TxHash: victim, Path: []common.Address{tokenIn, tokenOut}},
			Pool:     domain.Pool{Address: pair},
			VictimIn: big.NewInt(50_000),
			Sizing:   domain.Sizing{FrontRunIn: big.NewInt(15_000)},
		},
		Nonce:         9,
		GasPrice:      big.NewInt(40_000_000_000),
		GasLimit:      400_000,
		MinBackRunOut: big.NewInt(15_001),
		Deadline:      1_700_000_120,
	}
}

func newTestExecutor(t *testing.T, b *fakeBackend, cfg Config) (*Executor, *crypto.Signer) {
	s := testSigner(t)
	cfg.Contract, cfg.WETH = contract, weth
	return New(b, s, cfg, slog.New(slog.NewTextHandler(io.Discard, nil))), s
}

func TestSubmitExecuteSandwich(t *testing.T) {
	b := &fakeBackend{}
	e, s := newTestExecutor(t, b, Config{})

	hash, err := e.Submit(context.Background(), testOrder(usdc, weth))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(b.sent) != 1 || b.sent[0].Hash() != hash {
		t.Fatalf("sent = %d", len(b.sent))
	}
	tx := b.sent[0]
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1)), tx)
	if err != nil || from != s.Address() {
		t.Fatalf("sender = %s, %v", from.Hex(), err)
	}
	if *tx.To() != contract || tx.Nonce() != 9 || tx.Gas() != 400_000 || tx.Value().Sign() != 0 {
		t.Fatalf("tx fields: to=%s nonce=%d gas=%d value=%s", tx.To().Hex(), tx.Nonce(), tx.Gas(), tx.Value())
	}

	method := chain.SandwichABI.Methods["executeSandwich"]
	if string(tx.Data()[:4]) != string(method.ID) {
		t.Fatalf("selector = %x", tx.Data()[:4])
	}
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		t.Fatal(err)
	}
	if args[0].(common.Address) != pair || args[1].(common.Address) != usdc || args[2].(common.Address) != weth {
		t.Errorf("addresses = %v", args[:3])
	}
	if args[3].(*big.Int).Int64() != 15_000 || args[4].(*big.Int).Int64() != 15_001 {
		t.Errorf("amounts = %v %v", args[3], args[4])
	}
	if common.Hash(args[5].([32]byte)) != victim {
		t.Errorf("victim = %x", args[5])
	}
	if b.calls != 0 {
		t.Errorf("simulation ran while disabled")
	}
}

func TestSubmitWithETH(t *testing.T) {
	b := &fakeBackend{}
	e, _ := newTestExecutor(t, b, Config{PayWithETH: true})

	if _, err := e.Submit(context.Background(), testOrder(weth, usdc)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	tx := b.sent[0]
	if string(tx.Data()[:4]) != string(chain.SandwichABI.Methods["executeSandwichWithETH"].ID) {
		t.Fatalf("selector = %x", tx.Data()[:4])
	}
	if tx.Value().Int64() != 15_000 {
		t.Errorf("value = %s, want 15000", tx.Value())
	}
}

func TestSubmitSimulationGate(t *testing.T) {
	b := &fakeBackend{profit: big.NewInt(-3)}
	e, _ := newTestExecutor(t, b, Config{Simulate: true})

	_, err := e.Submit(context.Background(), testOrder(usdc, weth))
	if !errors.Is(err, ErrSimulationRejected) {
		t.Fatalf("Submit err = %v, want ErrSimulationRejected", err)
	}
	if len(b.sent) != 0 {
		t.Fatal("transaction sent after failed simulation")
	}

	b.profit = big.NewInt(40)
	if _, err := e.Submit(context.Background(), testOrder(usdc, weth)); err != nil {
		t.Fatalf("Submit with profitable simulation: %v", err)
	}
}

func TestSubmitRejectsEmptyFrontRun(t *testing.T) {
	e, _ := newTestExecutor(t, &fakeBackend{}, Config{})
	order := testOrder(usdc, weth)
	order.Opportunity.Sizing.FrontRunIn = new(big.Int)
	if _, err := e.Submit(context.Background(), order); err == nil {
		t.Fatal("Submit accepted a zero front-run")
	}
}

func TestReceiptDecodesRealizedProfit(t *testing.T) {
	event := chain.SandwichABI.Events["SandwichExecuted"]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(15_000), big.NewInt(15_013), big.NewInt(13))
	if err != nil {
		t.Fatal(err)
	}
	mined := common.HexToHash("0xfeed")
	b := &fakeBackend{receipts: map[common.Hash]*types.Receipt{
		mined: {
			Status:      types.ReceiptStatusSuccessful,
			GasUsed:     210_000,
			BlockNumber: big.NewInt(19_000_000),
			Logs: []*types.Log{{
				Address: contract,
				Topics:  []common.Hash{event.ID, victim, common.BytesToHash(pair.Bytes())},
				Data:    data,
			}},
		},
	}}
	e, _ := newTestExecutor(t, b, Config{})

	pending, err := e.Receipt(context.Background(), common.HexToHash("0x01"))
	if err != nil || pending != nil {
		t.Fatalf("pending receipt = %+v, %v", pending, err)
	}

	r, err := e.Receipt(context.Background(), mined)
	if err != nil {
		t.Fatalf("Receipt: %v", err)
	}
	if !r.Success || r.GasUsed != 210_000 || r.BlockNumber != 19_000_000 {
		t.Errorf("receipt = %+v", r)
	}
	if r.RealizedProfit == nil || r.RealizedProfit.Int64() != 13 {
		t.Errorf("realized profit = %v, want 13", r.RealizedProfit)
	}
}
