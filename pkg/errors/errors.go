package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents a classified wallet error with an HTTP status code
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	TxHash     string `json:"tx_hash,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes
const (
	ErrCodeProviderUnavailable = "provider_unavailable"
	ErrCodeUserRejected        = "user_rejected"
	ErrCodeWrongNetwork        = "wrong_network"
	ErrCodeNetworkUnrecognized = "network_unrecognized"
	ErrCodeBalanceFetchFailed  = "balance_fetch_failed"
	ErrCodeInvalidAmount       = "invalid_amount"
	ErrCodeSubmissionFailed    = "submission_failed"
	ErrCodeTransactionReverted = "transaction_reverted"
	ErrCodeTimeout             = "timeout"
	ErrCodeAlreadyConnecting   = "already_connecting"
	ErrCodeNotConnected        = "not_connected"
	ErrCodeBadRequest          = "bad_request"
	ErrCodeNotFound            = "not_found"
	ErrCodeRateLimited         = "rate_limited"
	ErrCodeInternalError       = "internal_error"
)

// Predefined errors
var (
	ErrAlreadyConnecting = &AppError{
		Code:       ErrCodeAlreadyConnecting,
		Message:    "A connection request is already in progress",
		StatusCode: http.StatusConflict,
	}

	ErrNotConnected = &AppError{
		Code:       ErrCodeNotConnected,
		Message:    "Wallet is not connected",
		StatusCode: http.StatusConflict,
	}

	ErrNotFound = &AppError{
		Code:       ErrCodeNotFound,
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       ErrCodeBadRequest,
		Message:    "Invalid request parameters",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalError = &AppError{
		Code:       ErrCodeInternalError,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewWithDetail creates a new AppError with additional detail
func NewWithDetail(code, message, detail string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Detail:     detail,
		StatusCode: statusCode,
	}
}

// ProviderUnavailable is returned when no wallet provider can be reached
func ProviderUnavailable(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeProviderUnavailable,
		Message:    "Wallet provider unavailable",
		Detail:     detail,
		StatusCode: http.StatusServiceUnavailable,
	}
}

// UserRejected is returned when the user declines a wallet prompt
func UserRejected(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeUserRejected,
		Message:    "Request rejected by user",
		Detail:     detail,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// WrongNetwork reports a connected wallet on an unexpected chain
func WrongNetwork(expected, actual int64) *AppError {
	return &AppError{
		Code:       ErrCodeWrongNetwork,
		Message:    "Wallet is connected to the wrong network",
		Detail:     fmt.Sprintf("expected chain %d, got %d", expected, actual),
		StatusCode: http.StatusConflict,
	}
}

// NetworkUnrecognized is returned when the provider does not know the target chain
func NetworkUnrecognized(chainID int64) *AppError {
	return &AppError{
		Code:       ErrCodeNetworkUnrecognized,
		Message:    "Network not recognized by wallet",
		Detail:     fmt.Sprintf("chain_id: %d", chainID),
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// BalanceFetchFailed reports a failed balance read; last-known values are kept
func BalanceFetchFailed(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeBalanceFetchFailed,
		Message:    "Failed to fetch balance",
		Detail:     detail,
		StatusCode: http.StatusBadGateway,
	}
}

// InvalidAmount rejects a malformed, negative or zero transfer amount
func InvalidAmount(amount string) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidAmount,
		Message:    "Invalid transfer amount",
		Detail:     fmt.Sprintf("amount: %q", amount),
		StatusCode: http.StatusBadRequest,
	}
}

// SubmissionFailed is returned when the provider could not broadcast a transaction
func SubmissionFailed(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeSubmissionFailed,
		Message:    "Transaction submission failed",
		Detail:     detail,
		StatusCode: http.StatusBadGateway,
	}
}

// TransactionReverted is returned for a mined transaction whose receipt status is 0
func TransactionReverted(txHash string) *AppError {
	return &AppError{
		Code:       ErrCodeTransactionReverted,
		Message:    "Transaction reverted",
		Detail:     "transaction was mined but reverted; gas was consumed",
		TxHash:     txHash,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// Timeout is returned when a confirmation did not arrive in time.
// It does not mean the transaction failed.
func Timeout(txHash string) *AppError {
	return &AppError{
		Code:       ErrCodeTimeout,
		Message:    "Confirmation timed out",
		Detail:     "status unknown: the transaction may still be mined, check a block explorer",
		TxHash:     txHash,
		StatusCode: http.StatusGatewayTimeout,
	}
}

// NotConnected returns ErrNotConnected with detail
func NotConnected(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeNotConnected,
		Message:    ErrNotConnected.Message,
		Detail:     detail,
		StatusCode: ErrNotConnected.StatusCode,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err is an AppError with the given code
func Is(err error, code string) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Code == code
}

// Wrap converts any error into an AppError, keeping classified errors as-is
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := IsAppError(err); ok {
		return appErr
	}
	return NewWithDetail(ErrCodeInternalError, ErrInternalError.Message, err.Error(), http.StatusInternalServerError)
}
