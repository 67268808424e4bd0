package types

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionStatus is the wallet session state
type ConnectionStatus string

// ConnectionStatus constants
const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
)

// Default balance strings for a fresh session
const (
	ZeroBalance = "0"
)

// Session is a read-only snapshot of the process-wide wallet session.
// Address is set if and only if Status is StatusConnected.
type Session struct {
	Address           *string          `json:"address"`
	NetworkID         *int64           `json:"network_id"`
	Status            ConnectionStatus `json:"connection_status"`
	NativeBalance     string           `json:"native_balance"`
	TokenBalance      string           `json:"token_balance"`
	ExpectedNetworkID *int64           `json:"expected_network_id,omitempty"`
	WrongNetwork      bool             `json:"wrong_network"`
	Epoch             uint64           `json:"epoch"`
}

// NewSession returns a disconnected session with zeroed balances
func NewSession() Session {
	return Session{
		Status:        StatusDisconnected,
		NativeBalance: ZeroBalance,
		TokenBalance:  ZeroBalance,
	}
}

// IsConnected reports whether the session holds a connected account
func (s Session) IsConnected() bool {
	return s.Status == StatusConnected
}

// TxStatus is the lifecycle state of an in-flight transfer
type TxStatus string

// TxStatus constants
const (
	TxStatusBuilding          TxStatus = "building"
	TxStatusAwaitingSignature TxStatus = "awaiting_signature"
	TxStatusSubmitted         TxStatus = "submitted"
	TxStatusConfirmed         TxStatus = "confirmed"
	TxStatusFailed            TxStatus = "failed"
)

// IsFinal reports whether the status ends the transfer lifecycle
func (s TxStatus) IsFinal() bool {
	return s == TxStatusConfirmed || s == TxStatusFailed
}

// PendingTransaction represents a transfer that has not been reported yet
type PendingTransaction struct {
	ID            uuid.UUID `json:"id"`
	Recipient     string    `json:"recipient"`
	Amount        string    `json:"amount"`
	SubmittedHash *string   `json:"submitted_hash,omitempty"`
	Status        TxStatus  `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// TokenMetadata is immutable on-chain token metadata
type TokenMetadata struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// MaxTokenDecimals is the largest decimals value accepted from a token contract
const MaxTokenDecimals = 18

// NativeDecimals is the decimals of the native chain currency (wei)
const NativeDecimals = 18
