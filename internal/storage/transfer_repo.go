package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/better-wallet/walletd/pkg/types"
)

// Transfer is a journal row for one token transfer
type Transfer struct {
	ID           uuid.UUID
	ChainID      *int64
	FromAddress  string
	Recipient    string
	TokenAddress string
	Amount       string
	TxHash       *string
	Status       types.TxStatus
	ErrorCode    *string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TransferRepository persists transfer history. The wallet session keeps none.
type TransferRepository struct {
	db DBTX
}

// NewTransferRepository creates a repository on db
func NewTransferRepository(db DBTX) *TransferRepository {
	return &TransferRepository{db: db}
}

const transferColumns = `id, chain_id, from_address, recipient, token_address, amount,
	tx_hash, status, error_code, error_message, created_at, updated_at`

// Create inserts a new transfer record
func (r *TransferRepository) Create(ctx context.Context, t *Transfer) error {
	query := `
		INSERT INTO transfers (
			id, chain_id, from_address, recipient, token_address, amount, tx_hash, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		t.ID,
		t.ChainID,
		t.FromAddress,
		t.Recipient,
		t.TokenAddress,
		t.Amount,
		t.TxHash,
		string(t.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}

	return nil
}

// MarkSubmitted records the broadcast hash
func (r *TransferRepository) MarkSubmitted(ctx context.Context, id uuid.UUID, txHash string) error {
	query := `
		UPDATE transfers
		SET status = $2, tx_hash = $3, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, string(types.TxStatusSubmitted), txHash)
	if err != nil {
		return fmt.Errorf("failed to mark transfer submitted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transfer %s not found", id)
	}

	return nil
}

// MarkStatus records a final or intermediate status. errCode and errMessage
// are cleared when nil.
func (r *TransferRepository) MarkStatus(ctx context.Context, id uuid.UUID, status types.TxStatus, errCode, errMessage *string) error {
	query := `
		UPDATE transfers
		SET status = $2, error_code = $3, error_message = $4, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, string(status), errCode, errMessage)
	if err != nil {
		return fmt.Errorf("failed to update transfer status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transfer %s not found", id)
	}

	return nil
}

// GetByHash returns the transfer with the given hash, or nil if there is none
func (r *TransferRepository) GetByHash(ctx context.Context, txHash string) (*Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE tx_hash = $1`

	t, err := scanTransfer(r.db.QueryRow(ctx, query, txHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transfer by hash: %w", err)
	}

	return t, nil
}

// ListByAddress returns the most recent transfers sent from address
func (r *TransferRepository) ListByAddress(ctx context.Context, from string, limit int) ([]*Transfer, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + transferColumns + `
		FROM transfers
		WHERE from_address = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, from, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}

	return transfers, nil
}

func scanTransfer(row pgx.Row) (*Transfer, error) {
	var (
		t      Transfer
		status string
	)
	err := row.Scan(
		&t.ID,
		&t.ChainID,
		&t.FromAddress,
		&t.Recipient,
		&t.TokenAddress,
		&t.Amount,
		&t.TxHash,
		&status,
		&t.ErrorCode,
		&t.ErrorMessage,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = types.TxStatus(status)
	return &t, nil
}
