package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PendingTx is a mempool transaction as observed from the chain feed.
type PendingTx struct {
	Hash      common.Hash
	From      common.Address
	To        *common.Address
	Data      []byte
	Value     *big.Int
	GasPrice  *big.Int
	Gas       uint64
	Nonce     uint64
	FirstSeen time.Time
}
