package eth

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/better-wallet/walletd/internal/provider"
)

// Client is a wallet provider reached over JSON-RPC (HTTP, WebSocket or IPC).
// Wallet events are synthesized by polling, see Watch.
type Client struct {
	client       *rpc.Client
	pollInterval time.Duration
	feed         event.Feed

	mu       sync.Mutex
	primed   bool
	accounts []common.Address
	chainID  *big.Int
}

// NewClient dials the provider and checks that it answers eth_chainId
func NewClient(ctx context.Context, providerURL string, pollInterval time.Duration) (*Client, error) {
	if providerURL == "" {
		return nil, fmt.Errorf("provider URL is required")
	}

	client, err := rpc.DialContext(ctx, providerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to provider: %w", err)
	}

	c := NewClientFromRPC(client, pollInterval)

	// Probe the provider before handing it out
	var chainID hexutil.Big
	if err := client.CallContext(ctx, &chainID, "eth_chainId"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return c, nil
}

// NewClientFromRPC wraps an existing RPC client
func NewClientFromRPC(client *rpc.Client, pollInterval time.Duration) *Client {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Client{
		client:       client,
		pollInterval: pollInterval,
	}
}

// Request forwards an EIP-1193 request to the provider
func (c *Client) Request(ctx context.Context, result any, method string, params ...any) error {
	return c.client.CallContext(ctx, result, method, params...)
}

// SubscribeEvents delivers accountsChanged and chainChanged events to ch
func (c *Client) SubscribeEvents(ch chan<- provider.Event) event.Subscription {
	return c.feed.Subscribe(ch)
}

// Close closes the client connection
func (c *Client) Close() {
	c.client.Close()
}
