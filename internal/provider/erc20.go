package provider

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/better-wallet/walletd/pkg/errors"
)

// tokenABIJSON is the minimal ERC-20 surface used by the wallet
const tokenABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

var tokenABI = mustParseABI(tokenABIJSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("provider: invalid token ABI: %v", err))
	}
	return parsed
}

// TokenABI returns the parsed ERC-20 ABI
func TokenABI() abi.ABI {
	return tokenABI
}

// TokenDecimals reads decimals() from the token contract
func (a *Adapter) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := a.CallRead(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	dec, ok := single[uint8](out)
	if !ok {
		return 0, apperrors.BalanceFetchFailed("decimals: unexpected output")
	}
	return dec, nil
}

// TokenBalance reads balanceOf(owner) from the token contract in base units
func (a *Adapter) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := a.CallRead(ctx, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	bal, ok := single[*big.Int](out)
	if !ok {
		return nil, apperrors.BalanceFetchFailed("balanceOf: unexpected output")
	}
	return bal, nil
}

// TokenString reads a string-returning view (symbol or name)
func (a *Adapter) TokenString(ctx context.Context, token common.Address, method string) (string, error) {
	out, err := a.CallRead(ctx, token, method)
	if err != nil {
		return "", err
	}
	s, ok := single[string](out)
	if !ok {
		return "", apperrors.BalanceFetchFailed(method + ": unexpected output")
	}
	return s, nil
}

func single[T any](out []any) (T, bool) {
	var zero T
	if len(out) != 1 {
		return zero, false
	}
	v, ok := out[0].(T)
	return v, ok
}
