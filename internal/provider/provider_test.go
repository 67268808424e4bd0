package provider_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/better-wallet/walletd/internal/provider"
	"github.com/better-wallet/walletd/internal/provider/providertest"
	apperrors "github.com/better-wallet/walletd/pkg/errors"
)

var (
	alice = common.HexToAddress("0xABC0000000000000000000000000000000000001")
	bob   = common.HexToAddress("0xDEF0000000000000000000000000000000000002")
	token = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

func newAdapter(t *testing.T) (*provider.Adapter, *providertest.MockWallet) {
	t.Helper()
	wallet := providertest.NewMockWallet()
	return provider.NewAdapter(wallet, 5*time.Millisecond), wallet
}

func TestAdapter_NoProvider(t *testing.T) {
	ctx := context.Background()
	a := provider.NewAdapter(nil, 0)

	assert.False(t, a.Available())

	_, err := a.ListAccounts(ctx)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeProviderUnavailable))

	_, err = a.RequestAccounts(ctx)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeProviderUnavailable))

	_, err = a.NetworkID(ctx)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeProviderUnavailable))

	_, err = a.SubmitTransfer(ctx, alice, token, bob, big.NewInt(1))
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeProviderUnavailable))

	_, err = a.AwaitConfirmation(ctx, common.HexToHash("0x1"), time.Second)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeProviderUnavailable))

	sub := a.Subscribe(provider.EventChainChanged, func(provider.Event) {})
	a.Unsubscribe(sub)
}

func TestAdapter_Accounts(t *testing.T) {
	ctx := context.Background()
	a, wallet := newAdapter(t)

	accounts, err := a.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	wallet.Authorized = []common.Address{alice, bob}
	accounts, err = a.RequestAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{alice, bob}, accounts)
	assert.Equal(t, 1, wallet.Calls("eth_requestAccounts"))
}

func TestAdapter_RequestAccountsRejected(t *testing.T) {
	a, wallet := newAdapter(t)
	wallet.Handle("eth_requestAccounts", func(ctx context.Context, params []any) (any, error) {
		return nil, providertest.ErrUserRejected
	})

	_, err := a.RequestAccounts(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeUserRejected))
}

func TestAdapter_NetworkID(t *testing.T) {
	a, wallet := newAdapter(t)
	wallet.ChainID = 11155111

	id, err := a.NetworkID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(11155111), id)
}

func TestAdapter_RequestNetworkSwitch(t *testing.T) {
	tests := []struct {
		name     string
		response error
		wantCode string
	}{
		{name: "success", response: nil},
		{name: "user rejected", response: providertest.ErrUserRejected, wantCode: apperrors.ErrCodeUserRejected},
		{name: "unrecognized chain", response: &providertest.RPCError{Code: 4902, Message: "Unrecognized chain ID"}, wantCode: apperrors.ErrCodeNetworkUnrecognized},
		{name: "method missing", response: &providertest.RPCError{Code: -32601, Message: "method not found"}, wantCode: apperrors.ErrCodeNetworkUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, wallet := newAdapter(t)
			if tt.response != nil {
				wallet.Handle("wallet_switchEthereumChain", func(ctx context.Context, params []any) (any, error) {
					return nil, tt.response
				})
			}

			err := a.RequestNetworkSwitch(context.Background(), 137)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, int64(137), wallet.ChainID)
				return
			}
			assert.True(t, apperrors.Is(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestAdapter_Balances(t *testing.T) {
	ctx := context.Background()
	a, wallet := newAdapter(t)

	wei, _ := new(big.Int).SetString("1250000000000000000", 10)
	wallet.SetNativeBalance(alice, wei)
	wallet.SetTokenBalance(alice, big.NewInt(340000000))

	native, err := a.NativeBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, wei.String(), native.String())

	dec, err := a.TokenDecimals(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), dec)

	bal, err := a.TokenBalance(ctx, token, alice)
	require.NoError(t, err)
	assert.Equal(t, "340000000", bal.String())

	symbol, err := a.TokenString(ctx, token, "symbol")
	require.NoError(t, err)
	assert.Equal(t, "USDC", symbol)

	name, err := a.TokenString(ctx, token, "name")
	require.NoError(t, err)
	assert.Equal(t, "USD Coin", name)
}

func TestAdapter_CallReadFailure(t *testing.T) {
	a, wallet := newAdapter(t)
	wallet.FailCall("balanceOf", errors.New("header not found"))

	_, err := a.TokenBalance(context.Background(), token, alice)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeBalanceFetchFailed))
}

func TestAdapter_CallReadUnknownMethod(t *testing.T) {
	a, _ := newAdapter(t)

	_, err := a.CallRead(context.Background(), token, "allowance", alice, bob)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeBadRequest))
}

func TestAdapter_SubmitTransfer(t *testing.T) {
	a, wallet := newAdapter(t)
	wallet.NextHash = common.HexToHash("0xfeed")

	var sent struct {
		From common.Address `json:"from"`
		To   common.Address `json:"to"`
		Data hexutil.Bytes  `json:"data"`
	}
	wallet.Handle("eth_sendTransaction", func(ctx context.Context, params []any) (any, error) {
		raw, err := json.Marshal(params[0])
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &sent); err != nil {
			return nil, err
		}
		return common.HexToHash("0xfeed"), nil
	})

	hash, err := a.SubmitTransfer(context.Background(), alice, token, bob, big.NewInt(10_000_000))
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0xfeed"), hash)

	assert.Equal(t, alice, sent.From)
	assert.Equal(t, token, sent.To)

	tokenABI := provider.TokenABI()
	method, err := tokenABI.MethodById(sent.Data[:4])
	require.NoError(t, err)
	assert.Equal(t, "transfer", method.Name)

	args, err := method.Inputs.Unpack(sent.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, bob, args[0])
	assert.Equal(t, "10000000", args[1].(*big.Int).String())
}

func TestAdapter_SubmitTransferErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"rejected", providertest.ErrUserRejected, apperrors.ErrCodeUserRejected},
		{"insufficient funds", &providertest.RPCError{Code: -32000, Message: "insufficient funds for gas * price + value"}, apperrors.ErrCodeSubmissionFailed},
		{"plain error", errors.New("nonce too low"), apperrors.ErrCodeSubmissionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, wallet := newAdapter(t)
			wallet.Handle("eth_sendTransaction", func(ctx context.Context, params []any) (any, error) {
				return nil, tt.err
			})

			_, err := a.SubmitTransfer(context.Background(), alice, token, bob, big.NewInt(1))
			appErr, ok := apperrors.IsAppError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, appErr.Code)
			if tt.wantCode == apperrors.ErrCodeSubmissionFailed {
				assert.Contains(t, appErr.Detail, tt.err.Error())
			}
		})
	}
}

func TestAdapter_AwaitConfirmation(t *testing.T) {
	ctx := context.Background()
	hash := common.HexToHash("0xabc")

	t.Run("confirmed", func(t *testing.T) {
		a, wallet := newAdapter(t)
		wallet.SetReceipt(hash, ethtypes.ReceiptStatusSuccessful)

		receipt, err := a.AwaitConfirmation(ctx, hash, time.Second)
		require.NoError(t, err)
		assert.Equal(t, hash, receipt.TxHash)
	})

	t.Run("mined after a few polls", func(t *testing.T) {
		a, wallet := newAdapter(t)
		polls := 0
		wallet.Handle("eth_getTransactionReceipt", func(ctx context.Context, params []any) (any, error) {
			polls++
			if polls < 3 {
				return nil, nil
			}
			return &ethtypes.Receipt{TxHash: hash, Status: ethtypes.ReceiptStatusSuccessful}, nil
		})

		_, err := a.AwaitConfirmation(ctx, hash, time.Second)
		require.NoError(t, err)
		assert.Equal(t, 3, polls)
	})

	t.Run("reverted", func(t *testing.T) {
		a, wallet := newAdapter(t)
		wallet.SetReceipt(hash, ethtypes.ReceiptStatusFailed)

		_, err := a.AwaitConfirmation(ctx, hash, time.Second)
		appErr, ok := apperrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeTransactionReverted, appErr.Code)
		assert.Equal(t, hash.Hex(), appErr.TxHash)
	})

	t.Run("timeout", func(t *testing.T) {
		a, _ := newAdapter(t)

		start := time.Now()
		_, err := a.AwaitConfirmation(ctx, hash, 30*time.Millisecond)
		appErr, ok := apperrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeTimeout, appErr.Code)
		assert.Equal(t, hash.Hex(), appErr.TxHash)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("transient poll errors keep waiting", func(t *testing.T) {
		a, wallet := newAdapter(t)
		polls := 0
		wallet.Handle("eth_getTransactionReceipt", func(ctx context.Context, params []any) (any, error) {
			polls++
			if polls == 1 {
				return nil, errors.New("connection reset")
			}
			return &ethtypes.Receipt{TxHash: hash, Status: ethtypes.ReceiptStatusSuccessful}, nil
		})

		_, err := a.AwaitConfirmation(ctx, hash, time.Second)
		require.NoError(t, err)
	})
}

func TestAdapter_Subscribe(t *testing.T) {
	a, wallet := newAdapter(t)

	var mu sync.Mutex
	var got []provider.Event
	done := make(chan struct{}, 4)

	sub := a.Subscribe(provider.EventAccountsChanged, func(ev provider.Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
		done <- struct{}{}
	})

	wallet.Emit(provider.Event{Name: provider.EventChainChanged, ChainID: big.NewInt(5)})
	wallet.Emit(provider.Event{Name: provider.EventAccountsChanged, Accounts: []common.Address{alice}})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("accountsChanged not delivered")
	}

	a.Unsubscribe(sub)
	assert.Equal(t, 0, wallet.Emit(provider.Event{Name: provider.EventAccountsChanged}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, []common.Address{alice}, got[0].Accounts)
}
