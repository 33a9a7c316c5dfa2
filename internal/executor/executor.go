// Package executor builds, signs and submits sandwich transactions and
// reads back their receipts.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/sandwichbot/internal/chain"
	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// ErrSimulationRejected is returned when the pre-flight simulation shows no
// profit at current state.
var ErrSimulationRejected = errors.New("executor: simulation shows no profit")

// Backend is the chain access the executor needs.
type Backend interface {
	chain.Caller
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// TxSigner signs transactions for the dispatch account.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction) (*types.Transaction, error)
}

// Config describes the deployed sandwich contract.
type Config struct {
	Contract common.Address
	WETH     common.Address
	// PayWithETH funds WETH-input front-runs with native value through
	// executeSandwichWithETH instead of contract-held WETH.
	PayWithETH bool
	// Simulate runs simulateSandwich before every submission.
	Simulate bool
}

// Executor submits sandwich orders through the sandwich contract. It
// implements coordinator.Dispatcher.
type Executor struct {
	backend Backend
	signer  TxSigner
	cfg     Config
	logger  *slog.Logger
}

// New creates an Executor.
func New(backend Backend, signer TxSigner, cfg Config, logger *slog.Logger) *Executor {
	return &Executor{
		backend: backend,
		signer:  signer,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "executor")),
	}
}

// Address is the dispatch account.
func (e *Executor) Address() common.Address { return e.signer.Address() }

// Calldata encodes the contract call for order and the native value it
// carries.
func (e *Executor) Calldata(order domain.SandwichOrder) ([]byte, *big.Int, error) {
	opp := order.Opportunity
	tokenIn, tokenOut := opp.Intent.FirstHop()
	front := opp.Sizing.FrontRunIn
	if front == nil || front.Sign() <= 0 {
		return nil, nil, fmt.Errorf("executor: calldata %s: empty front-run", opp.Key.Hex())
	}
	deadline := new(big.Int).SetUint64(order.Deadline)

	if e.cfg.PayWithETH && tokenIn == e.cfg.WETH {
		data, err := chain.SandwichABI.Pack("executeSandwichWithETH",
			opp.Pool.Address, tokenOut, order.MinBackRunOut, [32]byte(opp.Key), deadline)
		if err != nil {
			return nil, nil, fmt.Errorf("executor: pack executeSandwichWithETH: %w", err)
		}
		return data, new(big.Int).Set(front), nil
	}
	data, err := chain.SandwichABI.Pack("executeSandwich",
		opp.Pool.Address, tokenIn, tokenOut, front, order.MinBackRunOut, [32]byte(opp.Key), deadline)
	if err != nil {
		return nil, nil, fmt.Errorf("executor: pack executeSandwich: %w", err)
	}
	return data, new(big.Int), nil
}

// Submit signs and broadcasts one sandwich transaction for order.
func (e *Executor) Submit(ctx context.Context, order domain.SandwichOrder) (common.Hash, error) {
	opp := order.Opportunity
	if e.cfg.Simulate {
		if err := e.simulate(ctx, opp); err != nil {
			return common.Hash{}, err
		}
	}

	data, value, err := e.Calldata(order)
	if err != nil {
		return common.Hash{}, err
	}
	contract := e.cfg.Contract
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    order.Nonce,
		To:       &contract,
		Value:    value,
		Gas:      order.GasLimit,
		GasPrice: order.GasPrice,
		Data:     data,
	})
	signed, err := e.signer.SignTx(tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("executor: submit %s: %w", opp.Key.Hex(), err)
	}
	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("executor: send %s: %w", signed.Hash().Hex(), err)
	}

	e.logger.InfoContext(ctx, "sandwich submitted",
		slog.String("tx", signed.Hash().Hex()),
		slog.String("victim", opp.Key.Hex()),
		slog.Uint64("nonce", order.Nonce),
	)
	return signed.Hash(), nil
}

func (e *Executor) simulate(ctx context.Context, opp domain.Opportunity) error {
	tokenIn, _ := opp.Intent.FirstHop()
	_, profit, err := chain.SimulateSandwich(ctx, e.backend, e.cfg.Contract,
		opp.Pool.Address, tokenIn, opp.Sizing.FrontRunIn, opp.VictimIn)
	if err != nil {
		return fmt.Errorf("executor: simulate %s: %w", opp.Key.Hex(), err)
	}
	if profit.Sign() <= 0 {
		return fmt.Errorf("%w: %s profit %s", ErrSimulationRejected, opp.Key.Hex(), profit)
	}
	return nil
}

// Receipt returns the mined outcome of txHash, or nil while it is pending.
// Realized profit comes from the SandwichExecuted log when present.
func (e *Executor) Receipt(ctx context.Context, txHash common.Hash) (*domain.AttemptReceipt, error) {
	r, err := e.backend.Receipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("executor: receipt: %w", err)
	}
	if r == nil {
		return nil, nil
	}

	out := &domain.AttemptReceipt{
		TxHash:  txHash,
		Success: r.Status == types.ReceiptStatusSuccessful,
		GasUsed: r.GasUsed,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	ev, ok, err := chain.FindSandwichExecuted(r, e.cfg.Contract)
	if err != nil {
		e.logger.WarnContext(ctx, "settlement log undecodable",
			slog.String("tx", txHash.Hex()),
			slog.String("error", err.Error()),
		)
	} else if ok {
		out.RealizedProfit = ev.Profit
	}
	return out, nil
}
