package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/sandwichbot/internal/amm"
	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// signerLockKey scopes the dispatch lock to one signing address so two
// processes never submit from the same account at once.
func signerLockKey(signer common.Address) string {
	return "sandwich:signer:" + strings.ToLower(signer.Hex())
}

// minBackRunOut is the contract-side revert threshold: the back-run must
// return the front-run plus any flash loan fee.
func minBackRunOut(s domain.Sizing) *big.Int {
	out := new(big.Int).Set(s.FrontRunIn)
	if s.FlashLoanFee != nil {
		out.Add(out, s.FlashLoanFee)
	}
	return out.Add(out, big.NewInt(1))
}

func (c *Coordinator) canDispatch() bool {
	return !c.cfg.DryRun && c.deps.Dispatcher != nil && c.deps.Nonces != nil
}

func (c *Coordinator) lock(ctx context.Context) (func(), error) {
	if c.deps.Locker == nil {
		return func() {}, nil
	}
	return c.deps.Locker.Acquire(ctx, signerLockKey(c.deps.Nonces.Account()), c.cfg.LockTTL)
}

// assignNonce takes the next nonce under the signer lock. The lock covers
// only the assignment; the submission itself runs unlocked.
func (c *Coordinator) assignNonce(ctx context.Context) (uint64, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return 0, fmt.Errorf("signer lock: %w", err)
	}
	defer unlock()
	nonce, err := c.deps.Nonces.Next(ctx)
	if err != nil {
		c.rpcFailed()
		return 0, fmt.Errorf("nonce unavailable: %w", err)
	}
	return nonce, nil
}

// dispatch submits opp. Lock contention and nonce unavailability leave the
// entry in flight for the next cycle; a submission error supersedes it and
// forces a nonce refresh.
func (c *Coordinator) dispatch(ctx context.Context, opp domain.Opportunity) {
	log := c.logger.With(slog.String("key", opp.Key.Hex()))

	nonce, err := c.assignNonce(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrLockHeld) {
			log.WarnContext(ctx, "dispatch held", slog.String("error", err.Error()))
		}
		return
	}

	start := c.now()
	order := domain.SandwichOrder{
		Opportunity:   opp,
		Nonce:         nonce,
		GasPrice:      opp.Sizing.GasPrice,
		GasLimit:      c.cfg.GasLimit,
		MinBackRunOut: minBackRunOut(opp.Sizing),
		Deadline:      uint64(start.Add(c.cfg.AttemptTimeout).Unix()),
	}
	txHash, err := c.deps.Dispatcher.Submit(ctx, order)
	if err != nil {
		c.deps.Nonces.Invalidate()
		log.ErrorContext(ctx, "submission failed",
			slog.Uint64("nonce", nonce),
			slog.String("error", err.Error()),
		)
		if _, ok := c.flight.remove(opp.Key); ok {
			c.reject(ctx, &opp, domain.RejectDispatchFailed)
		}
		c.attempts.markSpent(opp.Key, c.now())
		return
	}
	now := c.now()
	c.metrics.Dispatched(now.Sub(start))

	attempt := domain.ExecutionAttempt{
		ID:             uuid.New().String(),
		OpportunityKey: opp.Key,
		Signer:         c.deps.Nonces.Account(),
		Nonce:          nonce,
		GasPrice:       new(big.Int).Set(order.GasPrice),
		GasLimit:       order.GasLimit,
		TxHash:         txHash,
		ExpectedProfit: new(big.Int).Set(opp.Sizing.NetProfit),
		State:          domain.AttemptPending,
		SubmittedAt:    now,
	}
	if err := opp.Transition(domain.OppDispatched, now); err != nil {
		log.ErrorContext(ctx, "dispatch transition", slog.String("error", err.Error()))
	}
	opp.AttemptID = attempt.ID

	// Track before leaving the in-flight set so a duplicate notification
	// never finds the key absent from both.
	c.attempts.add(attempt, opp)
	c.flight.remove(opp.Key)
	c.metrics.InFlight(c.flight.len())

	log.InfoContext(ctx, "sandwich dispatched",
		slog.String("attempt", attempt.ID),
		slog.String("tx", txHash.Hex()),
		slog.Uint64("nonce", nonce),
		slog.String("gas_price_gwei", amm.FormatGwei(order.GasPrice)),
		slog.String("expected_profit_wei", attempt.ExpectedProfit.String()),
	)
	c.emitOpportunity(opp)
	c.emitAttempt(attempt)
}

// BumpGas resubmits a pending or timed-out attempt with the same nonce and
// a gas price raised by percent. It is the only path that resubmits. The
// nonce is already assigned, so no signer lock is taken.
func (c *Coordinator) BumpGas(ctx context.Context, attemptID string, percent uint32) (domain.ExecutionAttempt, error) {
	if !c.canDispatch() {
		return domain.ExecutionAttempt{}, fmt.Errorf("coordinator: bump gas: dispatch disabled")
	}
	if percent == 0 {
		return domain.ExecutionAttempt{}, fmt.Errorf("coordinator: bump gas: percent must be positive")
	}
	prev, opp, ok := c.attempts.get(attemptID)
	if !ok {
		return domain.ExecutionAttempt{}, fmt.Errorf("coordinator: bump gas %s: %w", attemptID, domain.ErrNotFound)
	}
	if prev.State == domain.AttemptConfirmed || prev.State == domain.AttemptReverted {
		return domain.ExecutionAttempt{}, fmt.Errorf("coordinator: bump gas %s: %w", attemptID, domain.ErrAttemptResolved)
	}

	gas := new(big.Int).Mul(prev.GasPrice, big.NewInt(int64(100+percent)))
	gas.Quo(gas, big.NewInt(100))
	if gas.Cmp(prev.GasPrice) <= 0 {
		gas.Add(prev.GasPrice, big.NewInt(1))
	}
	if ceiling := c.deps.Optimizer.Config().MaxGasPrice; ceiling != nil && ceiling.Sign() > 0 && gas.Cmp(ceiling) > 0 {
		return domain.ExecutionAttempt{}, fmt.Errorf("coordinator: bump gas %s to %s gwei: %w",
			attemptID, amm.FormatGwei(gas), domain.ErrGasTooHigh)
	}

	start := c.now()
	order := domain.SandwichOrder{
		Opportunity:   opp,
		Nonce:         prev.Nonce,
		GasPrice:      gas,
		GasLimit:      prev.GasLimit,
		MinBackRunOut: minBackRunOut(opp.Sizing),
		Deadline:      uint64(start.Add(c.cfg.AttemptTimeout).Unix()),
	}
	txHash, err := c.deps.Dispatcher.Submit(ctx, order)
	if err != nil {
		c.deps.Nonces.Invalidate()
		return domain.ExecutionAttempt{}, fmt.Errorf("coordinator: bump gas %s: submit: %w", attemptID, err)
	}

	now := c.now()
	attempt := domain.ExecutionAttempt{
		ID:             uuid.New().String(),
		OpportunityKey: prev.OpportunityKey,
		Signer:         prev.Signer,
		Nonce:          prev.Nonce,
		GasPrice:       gas,
		GasLimit:       prev.GasLimit,
		TxHash:         txHash,
		ExpectedProfit: prev.ExpectedProfit,
		Replaces:       prev.ID,
		State:          domain.AttemptPending,
		SubmittedAt:    now,
	}
	c.attempts.add(attempt, opp)
	c.logger.InfoContext(ctx, "attempt gas bumped",
		slog.String("attempt", attempt.ID),
		slog.String("replaces", prev.ID),
		slog.String("tx", txHash.Hex()),
		slog.String("gas_price_gwei", amm.FormatGwei(gas)),
		slog.Duration("since_previous", now.Sub(prev.SubmittedAt)),
	)
	c.emitAttempt(attempt)
	return attempt, nil
}
