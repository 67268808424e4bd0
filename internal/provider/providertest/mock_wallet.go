// Package providertest provides an in-memory wallet provider for tests.
package providertest

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/better-wallet/walletd/internal/provider"
)

// RPCError is a JSON-RPC error with an EIP-1193 code.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string { return e.Message }
func (e *RPCError) ErrorCode() int { return e.Code }

// ErrUserRejected is what a wallet returns when the user dismisses a prompt.
var ErrUserRejected = &RPCError{Code: 4001, Message: "User rejected the request."}

// HandlerFunc answers one request method.
type HandlerFunc func(ctx context.Context, params []any) (any, error)

// Call records one request.
type Call struct {
	Method string
	Params []any
}

// MockWallet is a scriptable provider.Provider. By default it serves an
// in-memory wallet state (accounts, chain, balances, one ERC-20 token);
// any method can be overridden with Handle.
type MockWallet struct {
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	callFail map[string]error
	calls    []Call
	feed     event.Feed

	Authorized []common.Address
	ChainID    int64
	Native     map[common.Address]*big.Int
	Tokens     map[common.Address]*big.Int
	Decimals   uint8
	Symbol     string
	Name       string
	Receipts   map[common.Hash]*ethtypes.Receipt
	NextHash   common.Hash
}

// NewMockWallet creates a mock wallet on chain 1 with a 6-decimals token.
func NewMockWallet() *MockWallet {
	return &MockWallet{
		handlers: make(map[string]HandlerFunc),
		callFail: make(map[string]error),
		ChainID:  1,
		Native:   make(map[common.Address]*big.Int),
		Tokens:   make(map[common.Address]*big.Int),
		Decimals: 6,
		Symbol:   "USDC",
		Name:     "USD Coin",
		Receipts: make(map[common.Hash]*ethtypes.Receipt),
		NextHash: common.HexToHash("0x01"),
	}
}

// Handle overrides the response for method.
func (m *MockWallet) Handle(method string, h HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method] = h
}

// FailCall makes eth_call for the named token method return err.
func (m *MockWallet) FailCall(tokenMethod string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.callFail, tokenMethod)
		return
	}
	m.callFail[tokenMethod] = err
}

// SetTokenBalance sets the raw token balance of owner.
func (m *MockWallet) SetTokenBalance(owner common.Address, raw *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tokens[owner] = raw
}

// SetNativeBalance sets the wei balance of owner.
func (m *MockWallet) SetNativeBalance(owner common.Address, wei *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Native[owner] = wei
}

// SetReceipt stores a receipt that eth_getTransactionReceipt will return.
func (m *MockWallet) SetReceipt(hash common.Hash, status uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Receipts[hash] = &ethtypes.Receipt{TxHash: hash, Status: status, BlockNumber: big.NewInt(1)}
}

// Emit delivers an event to all subscribers and returns the number reached.
func (m *MockWallet) Emit(ev provider.Event) int {
	return m.feed.Send(ev)
}

// Calls returns how many times method was requested.
func (m *MockWallet) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// TotalCalls returns the number of requests of any method.
func (m *MockWallet) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// ResetCalls clears the call log.
func (m *MockWallet) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// SubscribeEvents implements provider.Provider.
func (m *MockWallet) SubscribeEvents(ch chan<- provider.Event) event.Subscription {
	return m.feed.Subscribe(ch)
}

// Request implements provider.Provider.
func (m *MockWallet) Request(ctx context.Context, result any, method string, params ...any) error {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Method: method, Params: params})
	h, ok := m.handlers[method]
	m.mu.Unlock()

	if !ok {
		h = m.builtin(method)
	}
	if h == nil {
		return &RPCError{Code: -32601, Message: fmt.Sprintf("the method %s does not exist/is not available", method)}
	}

	v, err := h(ctx, params)
	if err != nil {
		return err
	}
	return assign(result, v)
}

func (m *MockWallet) builtin(method string) HandlerFunc {
	switch method {
	case "eth_accounts", "eth_requestAccounts":
		return func(ctx context.Context, params []any) (any, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			return append([]common.Address(nil), m.Authorized...), nil
		}
	case "eth_chainId":
		return func(ctx context.Context, params []any) (any, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			return hexutil.Uint64(m.ChainID), nil
		}
	case "wallet_switchEthereumChain":
		return func(ctx context.Context, params []any) (any, error) {
			var arg struct {
				ChainID hexutil.Uint64 `json:"chainId"`
			}
			if err := decodeParam(params, &arg); err != nil {
				return nil, err
			}
			m.mu.Lock()
			defer m.mu.Unlock()
			m.ChainID = int64(arg.ChainID)
			return nil, nil
		}
	case "eth_getBalance":
		return func(ctx context.Context, params []any) (any, error) {
			owner, _ := params[0].(common.Address)
			m.mu.Lock()
			defer m.mu.Unlock()
			return (*hexutil.Big)(orZero(m.Native[owner])), nil
		}
	case "eth_call":
		return m.ethCall
	case "eth_sendTransaction":
		return func(ctx context.Context, params []any) (any, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			return m.NextHash, nil
		}
	case "eth_getTransactionReceipt":
		return func(ctx context.Context, params []any) (any, error) {
			hash, _ := params[0].(common.Hash)
			m.mu.Lock()
			defer m.mu.Unlock()
			return m.Receipts[hash], nil
		}
	}
	return nil
}

func (m *MockWallet) ethCall(ctx context.Context, params []any) (any, error) {
	var arg struct {
		To   common.Address `json:"to"`
		Data hexutil.Bytes  `json:"data"`
	}
	if err := decodeParam(params, &arg); err != nil {
		return nil, err
	}
	if len(arg.Data) < 4 {
		return nil, &RPCError{Code: -32000, Message: "execution reverted"}
	}

	tokenABI := provider.TokenABI()
	method, err := tokenABI.MethodById(arg.Data[:4])
	if err != nil {
		return nil, &RPCError{Code: -32000, Message: "execution reverted"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.callFail[method.Name]; err != nil {
		return nil, err
	}

	var out []byte
	switch method.Name {
	case "decimals":
		out, err = method.Outputs.Pack(m.Decimals)
	case "symbol":
		out, err = method.Outputs.Pack(m.Symbol)
	case "name":
		out, err = method.Outputs.Pack(m.Name)
	case "balanceOf":
		args, uerr := method.Inputs.Unpack(arg.Data[4:])
		if uerr != nil {
			return nil, uerr
		}
		owner, _ := args[0].(common.Address)
		out, err = method.Outputs.Pack(orZero(m.Tokens[owner]))
	default:
		return nil, &RPCError{Code: -32000, Message: "execution reverted"}
	}
	if err != nil {
		return nil, err
	}
	return hexutil.Bytes(out), nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// decodeParam round-trips the first param through JSON, as a real transport would.
func decodeParam(params []any, dst any) error {
	if len(params) == 0 {
		return &RPCError{Code: -32602, Message: "missing params"}
	}
	raw, err := json.Marshal(params[0])
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// assign stores v into the pointer result, directly when the types match and
// through JSON otherwise.
func assign(result, v any) error {
	if result == nil {
		return nil
	}
	rv := reflect.ValueOf(result)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("result must be a non-nil pointer")
	}
	target := rv.Elem()
	if v == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}
	vv := reflect.ValueOf(v)
	if vv.Type().AssignableTo(target.Type()) {
		target.Set(vv)
		return nil
	}
	if vv.Kind() == reflect.Pointer && !vv.IsNil() && vv.Elem().Type().AssignableTo(target.Type()) {
		target.Set(vv.Elem())
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}
