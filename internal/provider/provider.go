// Package provider isolates every call to the injected wallet provider behind
// a typed Adapter. Provider-specific error shapes are normalized here into
// pkg/errors kinds so nothing above this layer sees raw RPC failures.
package provider

import (
	"context"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/better-wallet/walletd/internal/logger"
	apperrors "github.com/better-wallet/walletd/pkg/errors"
)

// EventName identifies a provider event
type EventName string

// Provider events
const (
	EventAccountsChanged EventName = "accountsChanged"
	EventChainChanged    EventName = "chainChanged"
)

// Event is emitted by a Provider when the wallet's accounts or chain change.
// Accounts is set for accountsChanged, ChainID for chainChanged.
type Event struct {
	Name     EventName
	Accounts []common.Address
	ChainID  *big.Int
}

// Provider is the injected wallet: an EIP-1193 style request function plus an
// event stream for accountsChanged and chainChanged.
type Provider interface {
	Request(ctx context.Context, result any, method string, params ...any) error
	SubscribeEvents(ch chan<- Event) event.Subscription
}

// DefaultPollInterval is the receipt polling interval used by AwaitConfirmation
const DefaultPollInterval = 2 * time.Second

// Adapter exposes the wallet operations the session layer needs.
// It performs no retries.
type Adapter struct {
	provider     Provider
	pollInterval time.Duration
}

// NewAdapter creates an adapter. A nil provider is valid and makes every
// operation fail with provider_unavailable.
func NewAdapter(p Provider, pollInterval time.Duration) *Adapter {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Adapter{provider: p, pollInterval: pollInterval}
}

// Available reports whether a provider was injected
func (a *Adapter) Available() bool {
	return a.provider != nil
}

func (a *Adapter) request(ctx context.Context, result any, method string, params ...any) error {
	if a.provider == nil {
		return apperrors.ProviderUnavailable("no wallet provider injected")
	}
	return a.provider.Request(ctx, result, method, params...)
}

// ListAccounts returns already-authorized accounts without prompting the user
func (a *Adapter) ListAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := a.request(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, classify(err, unavailable)
	}
	return accounts, nil
}

// RequestAccounts prompts the user to authorize accounts
func (a *Adapter) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := a.request(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, classify(err, unavailable)
	}
	return accounts, nil
}

// NetworkID returns the provider's current chain id
func (a *Adapter) NetworkID(ctx context.Context) (int64, error) {
	var id hexutil.Uint64
	if err := a.request(ctx, &id, "eth_chainId"); err != nil {
		return 0, classify(err, unavailable)
	}
	return int64(id), nil
}

// RequestNetworkSwitch asks the wallet to switch to chainID
func (a *Adapter) RequestNetworkSwitch(ctx context.Context, chainID int64) error {
	param := map[string]string{"chainId": hexutil.EncodeUint64(uint64(chainID))}
	err := a.request(ctx, nil, "wallet_switchEthereumChain", param)
	if err == nil {
		return nil
	}
	if code, ok := rpcCode(err); ok && (code == codeUnrecognizedChain || code == codeMethodNotFound) {
		return apperrors.NetworkUnrecognized(chainID)
	}
	return classify(err, func(err error) *apperrors.AppError {
		return apperrors.NetworkUnrecognized(chainID)
	})
}

// NativeBalance returns the native currency balance in wei
func (a *Adapter) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	var balance hexutil.Big
	if err := a.request(ctx, &balance, "eth_getBalance", owner, "latest"); err != nil {
		return nil, classify(err, readFallback("eth_getBalance"))
	}
	return balance.ToInt(), nil
}

// callArgs is the eth_call / eth_sendTransaction argument object
type callArgs struct {
	From *common.Address `json:"from,omitempty"`
	To   common.Address  `json:"to"`
	Data hexutil.Bytes   `json:"data"`
}

// CallRead packs a token ABI call, executes it with eth_call and returns the decoded outputs
func (a *Adapter) CallRead(ctx context.Context, contract common.Address, method string, args ...any) ([]any, error) {
	data, err := tokenABI.Pack(method, args...)
	if err != nil {
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid contract call", err.Error(), http.StatusBadRequest)
	}

	var out hexutil.Bytes
	if err := a.request(ctx, &out, "eth_call", callArgs{To: contract, Data: data}, "latest"); err != nil {
		return nil, classify(err, readFallback("eth_call "+method))
	}

	values, err := tokenABI.Unpack(method, out)
	if err != nil {
		return nil, apperrors.BalanceFetchFailed("decode " + method + ": " + err.Error())
	}
	return values, nil
}

// SubmitTransfer signs and broadcasts transfer(recipient, amount) on the token contract
func (a *Adapter) SubmitTransfer(ctx context.Context, from, contract, recipient common.Address, amount *big.Int) (common.Hash, error) {
	data, err := tokenABI.Pack("transfer", recipient, amount)
	if err != nil {
		return common.Hash{}, apperrors.SubmissionFailed("encode transfer: " + err.Error())
	}

	var hash common.Hash
	tx := callArgs{From: &from, To: contract, Data: data}
	if err := a.request(ctx, &hash, "eth_sendTransaction", tx); err != nil {
		return common.Hash{}, classify(err, func(err error) *apperrors.AppError {
			return apperrors.SubmissionFailed(providerMessage(err))
		})
	}
	return hash, nil
}

// AwaitConfirmation polls for the receipt of hash until it is mined or timeout elapses.
// A reverted receipt yields transaction_reverted; an expired wait yields timeout,
// which says nothing about the on-chain outcome.
func (a *Adapter) AwaitConfirmation(ctx context.Context, hash common.Hash, timeout time.Duration) (*ethtypes.Receipt, error) {
	if a.provider == nil {
		return nil, apperrors.ProviderUnavailable("no wallet provider injected")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		var receipt *ethtypes.Receipt
		err := a.provider.Request(ctx, &receipt, "eth_getTransactionReceipt", hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == ethtypes.ReceiptStatusFailed {
				return receipt, apperrors.TransactionReverted(hash.Hex())
			}
			return receipt, nil
		case err != nil && ctx.Err() == nil:
			logger.Debug(ctx, "receipt poll failed", "tx_hash", hash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, apperrors.Timeout(hash.Hex())
		case <-ticker.C:
		}
	}
}

func unavailable(err error) *apperrors.AppError {
	return apperrors.ProviderUnavailable(providerMessage(err))
}

func readFallback(op string) func(error) *apperrors.AppError {
	return func(err error) *apperrors.AppError {
		return apperrors.BalanceFetchFailed(op + ": " + providerMessage(err))
	}
}
