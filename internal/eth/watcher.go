package eth

import (
	"context"
	"math/big"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/better-wallet/walletd/internal/logger"
	"github.com/better-wallet/walletd/internal/provider"
)

// Watch polls eth_accounts and eth_chainId until ctx is done and emits an
// event whenever either changes. The first successful poll only records state.
func (c *Client) Watch(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		c.Poll(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll performs one watch iteration and returns the events it emitted
func (c *Client) Poll(ctx context.Context) []provider.Event {
	var accounts []common.Address
	if err := c.Request(ctx, &accounts, "eth_accounts"); err != nil {
		logger.Debug(ctx, "provider poll failed", "method", "eth_accounts", "error", err)
		return nil
	}

	var chainID hexutil.Big
	if err := c.Request(ctx, &chainID, "eth_chainId"); err != nil {
		logger.Debug(ctx, "provider poll failed", "method", "eth_chainId", "error", err)
		return nil
	}

	events := c.diff(accounts, chainID.ToInt())
	for _, ev := range events {
		logger.Info(ctx, "provider event", "event", string(ev.Name), "accounts", len(ev.Accounts), "chain_id", chainString(ev.ChainID))
		c.feed.Send(ev)
	}
	return events
}

// diff records the latest observation and returns the events it implies.
// A chain change is reported before an account change.
func (c *Client) diff(accounts []common.Address, chainID *big.Int) []provider.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.primed {
		c.primed = true
		c.accounts = accounts
		c.chainID = chainID
		return nil
	}

	var events []provider.Event
	if c.chainID.Cmp(chainID) != 0 {
		events = append(events, provider.Event{Name: provider.EventChainChanged, ChainID: new(big.Int).Set(chainID)})
	}
	if !slices.Equal(c.accounts, accounts) {
		events = append(events, provider.Event{Name: provider.EventAccountsChanged, Accounts: slices.Clone(accounts)})
	}

	c.accounts = accounts
	c.chainID = chainID
	return events
}

func chainString(id *big.Int) string {
	if id == nil {
		return ""
	}
	return id.String()
}
