// Package chain adapts go-ethereum's RPC client to the reads, writes and
// subscriptions the sandwich pipeline needs.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Subscription is the part of an RPC subscription the feed relies on.
type Subscription interface {
	Err() <-chan error
	Unsubscribe()
}

// Client wraps an ethclient with the raw RPC handle needed for
// newPendingTransactions subscriptions.
type Client struct {
	*ethclient.Client
	rpc     *rpc.Client
	chainID *big.Int
}

// Dial connects to url (http, ws or ipc) and caches the chain id.
func Dial(ctx context.Context, url string) (*Client, error) {
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("chain: dial: %w", err)
	}
	c := &Client{Client: ethclient.NewClient(rc), rpc: rc}
	id, err := c.Client.ChainID(ctx)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("chain: chain id: %w", err)
	}
	c.chainID = id
	return c, nil
}

// ID returns the chain id read at dial time.
func (c *Client) ID() *big.Int { return new(big.Int).Set(c.chainID) }

// SubscribePending streams hashes of transactions entering the node's
// mempool. Requires a websocket or ipc endpoint.
func (c *Client) SubscribePending(ctx context.Context, ch chan<- common.Hash) (Subscription, error) {
	sub, err := c.rpc.EthSubscribe(ctx, ch, "newPendingTransactions")
	if err != nil {
		return nil, fmt.Errorf("chain: subscribe pending: %w", err)
	}
	return sub, nil
}

// NonceAt returns the pending nonce for account.
func (c *Client) NonceAt(ctx context.Context, account common.Address) (uint64, error) {
	n, err := c.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("chain: pending nonce: %w", err)
	}
	return n, nil
}

// GasPrice returns the node's suggested gas price.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	p, err := c.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: gas price: %w", err)
	}
	return p, nil
}

// Receipt returns the receipt for hash, or (nil, nil) while the
// transaction is still pending.
func (c *Client) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	r, err := c.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("chain: receipt %s: %w", hash.Hex(), err)
	}
	return r, nil
}
