package provider

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	apperrors "github.com/better-wallet/walletd/pkg/errors"
)

// EIP-1193 and JSON-RPC error codes
const (
	codeUserRejected      = 4001
	codeUnauthorized      = 4100
	codeUnsupportedMethod = 4200
	codeDisconnected      = 4900
	codeChainDisconnected = 4901
	codeUnrecognizedChain = 4902
	codeMethodNotFound    = -32601
)

// classify maps a provider failure onto the error taxonomy. Failures without a
// protocol-level meaning are handed to fallback.
func classify(err error, fallback func(error) *apperrors.AppError) *apperrors.AppError {
	if appErr, ok := apperrors.IsAppError(err); ok {
		return appErr
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fallback(err)
	}

	if code, ok := rpcCode(err); ok {
		switch code {
		case codeUserRejected:
			return apperrors.UserRejected(providerMessage(err))
		case codeUnauthorized, codeUnsupportedMethod, codeDisconnected, codeChainDisconnected:
			return apperrors.ProviderUnavailable(providerMessage(err))
		}
		return fallback(err)
	}

	if errors.Is(err, rpc.ErrClientQuit) {
		return apperrors.ProviderUnavailable(err.Error())
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return apperrors.ProviderUnavailable(httpErr.Error())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.ProviderUnavailable(err.Error())
	}

	return fallback(err)
}

// rpcCode extracts a JSON-RPC error code if err carries one
func rpcCode(err error) (int, bool) {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode(), true
	}
	return 0, false
}

// providerMessage returns the provider's message, preferring revert/data details when present
func providerMessage(err error) string {
	msg := err.Error()
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := dataErr.ErrorData().(string); ok && data != "" && !strings.Contains(msg, data) {
			msg = msg + ": " + data
		}
	}
	return msg
}
