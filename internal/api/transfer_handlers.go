package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/better-wallet/walletd/internal/logger"
	"github.com/better-wallet/walletd/internal/session"
	"github.com/better-wallet/walletd/internal/storage"
	apperrors "github.com/better-wallet/walletd/pkg/errors"
	"github.com/better-wallet/walletd/pkg/types"
)

// TransferRequest is the body of POST /v1/transfers
type TransferRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// TransferResponse reports a submitted or confirmed transfer
type TransferResponse struct {
	ID     uuid.UUID      `json:"id"`
	TxHash string         `json:"tx_hash"`
	Status types.TxStatus `json:"status"`
}

// TransferRecord is a journaled transfer
type TransferRecord struct {
	ID           uuid.UUID      `json:"id"`
	ChainID      *int64         `json:"chain_id,omitempty"`
	From         string         `json:"from"`
	Recipient    string         `json:"recipient"`
	Token        string         `json:"token"`
	Amount       string         `json:"amount"`
	TxHash       *string        `json:"tx_hash,omitempty"`
	Status       types.TxStatus `json:"status"`
	ErrorCode    *string        `json:"error_code,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// handleTransfers handles POST /v1/transfers
func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, methodNotAllowed())
		return
	}
	s.handleCreateTransfer(w, r)
}

// handleTransferOperations routes /v1/transfers/pending and /v1/transfers/{hash}
func (s *Server) handleTransferOperations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, methodNotAllowed())
		return
	}

	key := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/transfers/"), "/")
	switch {
	case key == "":
		s.writeError(w, apperrors.ErrNotFound)
	case key == "pending":
		writeJSON(w, http.StatusOK, map[string]any{"transactions": s.manager.PendingTransactions()})
	default:
		s.handleGetTransfer(w, r, key)
	}
}

type transferOutcome struct {
	hash string
	err  error
}

// handleCreateTransfer starts a transfer. It answers 202 once the wallet has
// broadcast the transaction, or 200 after confirmation when ?wait=true.
// Confirmation continues in the background after a 202.
func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Recipient == "" || req.Amount == "" {
		s.writeError(w, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid request body", "recipient and amount are required", http.StatusBadRequest))
		return
	}

	// Rejected requests never reach the journal
	if err := session.ValidateTransfer(req.Recipient, req.Amount); err != nil {
		s.writeError(w, err)
		return
	}

	sess := s.manager.Session()
	if sess.WrongNetwork && sess.ExpectedNetworkID != nil && sess.NetworkID != nil {
		s.writeError(w, apperrors.WrongNetwork(*sess.ExpectedNetworkID, *sess.NetworkID))
		return
	}

	wait := r.URL.Query().Get("wait") == "true"
	id := uuid.New()
	// Logging context survives the request; cancellation does not
	ctx := logger.WithAttrs(logger.WithRequestID(s.baseCtx, logger.GetRequestID(r.Context())), "transfer_id", id.String())

	journaled := sess.Address != nil && s.journalCreate(ctx, &storage.Transfer{
		ID:           id,
		ChainID:      sess.NetworkID,
		FromAddress:  *sess.Address,
		Recipient:    req.Recipient,
		TokenAddress: s.config.TokenAddress,
		Amount:       req.Amount,
		Status:       types.TxStatusAwaitingSignature,
	})

	submitted := make(chan string, 1)
	done := make(chan transferOutcome, 1)
	go func() {
		hash, err := s.manager.Transfer(ctx, req.Recipient, req.Amount, func(hash string) {
			if journaled {
				s.journalSubmitted(ctx, id, hash)
			}
			submitted <- hash
		})
		if journaled {
			s.journalFinish(ctx, id, err)
		}
		done <- transferOutcome{hash: hash, err: err}
	}()

	if !wait {
		select {
		case hash := <-submitted:
			writeJSON(w, http.StatusAccepted, TransferResponse{ID: id, TxHash: hash, Status: types.TxStatusSubmitted})
		case out := <-done:
			s.writeOutcome(w, id, out)
		case <-r.Context().Done():
		}
		return
	}

	select {
	case out := <-done:
		s.writeOutcome(w, id, out)
	case <-r.Context().Done():
	}
}

func (s *Server) writeOutcome(w http.ResponseWriter, id uuid.UUID, out transferOutcome) {
	if out.err != nil {
		s.writeError(w, out.err)
		return
	}
	writeJSON(w, http.StatusOK, TransferResponse{ID: id, TxHash: out.hash, Status: types.TxStatusConfirmed})
}

func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request, hash string) {
	if s.journal != nil {
		t, err := s.journal.GetByHash(r.Context(), hash)
		if err != nil {
			logger.Error(r.Context(), "failed to read transfer journal", "tx_hash", hash, "error", err)
			s.writeError(w, apperrors.ErrInternalError)
			return
		}
		if t != nil {
			writeJSON(w, http.StatusOK, toTransferRecord(t))
			return
		}
	}

	for _, tx := range s.manager.PendingTransactions() {
		if tx.SubmittedHash != nil && strings.EqualFold(*tx.SubmittedHash, hash) {
			writeJSON(w, http.StatusOK, tx)
			return
		}
	}
	s.writeError(w, apperrors.ErrNotFound)
}

// journalCreate reports whether the transfer was journaled
func (s *Server) journalCreate(ctx context.Context, t *storage.Transfer) bool {
	if s.journal == nil {
		return false
	}
	if err := s.journal.Create(ctx, t); err != nil {
		logger.Error(ctx, "failed to journal transfer", "error", err)
		return false
	}
	return true
}

func (s *Server) journalSubmitted(ctx context.Context, id uuid.UUID, hash string) {
	if err := s.journal.MarkSubmitted(ctx, id, hash); err != nil {
		logger.Error(ctx, "failed to journal submitted transfer", "tx_hash", hash, "error", err)
	}
}

// journalFinish records the outcome. A timed-out confirmation stays
// submitted because its on-chain status is unknown.
func (s *Server) journalFinish(ctx context.Context, id uuid.UUID, err error) {
	status := types.TxStatusConfirmed
	var code, msg *string
	if err != nil {
		appErr := apperrors.Wrap(err)
		status = types.TxStatusFailed
		if appErr.Code == apperrors.ErrCodeTimeout {
			status = types.TxStatusSubmitted
		}
		c, m := appErr.Code, appErr.Message
		if appErr.Detail != "" {
			m += ": " + appErr.Detail
		}
		code, msg = &c, &m
	}
	if jerr := s.journal.MarkStatus(ctx, id, status, code, msg); jerr != nil {
		logger.Error(ctx, "failed to journal transfer outcome", "status", string(status), "error", jerr)
	}
}

func toTransferRecord(t *storage.Transfer) TransferRecord {
	return TransferRecord{
		ID:           t.ID,
		ChainID:      t.ChainID,
		From:         t.FromAddress,
		Recipient:    t.Recipient,
		Token:        t.TokenAddress,
		Amount:       t.Amount,
		TxHash:       t.TxHash,
		Status:       t.Status,
		ErrorCode:    t.ErrorCode,
		ErrorMessage: t.ErrorMessage,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}
