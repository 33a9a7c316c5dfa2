package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// SandwichExecuted is the decoded settlement event of the sandwich contract.
type SandwichExecuted struct {
	VictimTx   common.Hash
	Pair       common.Address
	FrontRunIn *big.Int
	BackRunOut *big.Int
	Profit     *big.Int
}

// FindSandwichExecuted scans receipt logs emitted by contract for the
// settlement event. ok is false when the event is absent.
func FindSandwichExecuted(receipt *types.Receipt, contract common.Address) (ev SandwichExecuted, ok bool, err error) {
	event := SandwichABI.Events["SandwichExecuted"]
	for _, lg := range receipt.Logs {
		if lg.Address != contract || len(lg.Topics) != 3 || lg.Topics[0] != event.ID {
			continue
		}
		vals, err := event.Inputs.NonIndexed().Unpack(lg.Data)
		if err != nil {
			return SandwichExecuted{}, false, fmt.Errorf("chain: unpack SandwichExecuted: %w", err)
		}
		if len(vals) != 3 {
			return SandwichExecuted{}, false, fmt.Errorf("chain: unexpected SandwichExecuted field count %d", len(vals))
		}
		ev = SandwichExecuted{
			VictimTx: lg.Topics[1],
			Pair:     common.BytesToAddress(lg.Topics[2].Bytes()),
		}
		if ev.FrontRunIn, err = asBig(vals[0], "frontRunIn"); err != nil {
			return SandwichExecuted{}, false, err
		}
		if ev.BackRunOut, err = asBig(vals[1], "backRunOut"); err != nil {
			return SandwichExecuted{}, false, err
		}
		if ev.Profit, err = asBig(vals[2], "profit"); err != nil {
			return SandwichExecuted{}, false, err
		}
		return ev, true, nil
	}
	return SandwichExecuted{}, false, nil
}
