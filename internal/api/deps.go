package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/better-wallet/walletd/internal/storage"
	"github.com/better-wallet/walletd/pkg/types"
)

// SessionManager is the subset of session.Manager used by the API layer.
// It is an interface to allow handler-level unit tests without a wallet.
type SessionManager interface {
	Session() types.Session
	Connect(ctx context.Context) (types.Session, error)
	Disconnect() types.Session
	SwitchNetwork(ctx context.Context, chainID int64) (types.Session, error)
	RefreshBalances(ctx context.Context) (types.Session, error)
	Transfer(ctx context.Context, recipient, amount string, onSubmitted func(hash string)) (string, error)
	PendingTransactions() []types.PendingTransaction
	TokenMetadata(ctx context.Context) (types.TokenMetadata, error)
}

// TransferJournal records transfer history. storage.TransferRepository
// implements it; the server runs without one when no database is configured.
type TransferJournal interface {
	Create(ctx context.Context, t *storage.Transfer) error
	MarkSubmitted(ctx context.Context, id uuid.UUID, txHash string) error
	MarkStatus(ctx context.Context, id uuid.UUID, status types.TxStatus, errCode, errMessage *string) error
	GetByHash(ctx context.Context, txHash string) (*storage.Transfer, error)
}
