package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/better-wallet/walletd/internal/logger"
	"github.com/better-wallet/walletd/internal/metrics"
	"github.com/better-wallet/walletd/internal/validation"
	apperrors "github.com/better-wallet/walletd/pkg/errors"
	"github.com/better-wallet/walletd/pkg/types"
	"github.com/better-wallet/walletd/pkg/units"
)

// Submitter executes token transfers for the connected account and tracks
// them until their outcome is reported
type Submitter struct {
	manager *Manager
	timeout time.Duration

	mu      sync.Mutex
	pending map[uuid.UUID]*types.PendingTransaction
}

func newSubmitter(m *Manager, timeout time.Duration) *Submitter {
	return &Submitter{
		manager: m,
		timeout: timeout,
		pending: make(map[uuid.UUID]*types.PendingTransaction),
	}
}

// Transfer sends amount (human units) of the token to recipient and waits for
// confirmation. onSubmitted, if set, is called once with the transaction hash
// as soon as the wallet broadcasts it. On success the confirmed hash is
// returned and balances are refreshed once; on any failure the hash is empty
// and the error is an *errors.AppError. A timeout leaves balances untouched.
func (s *Submitter) Transfer(ctx context.Context, recipient, amount string, onSubmitted func(hash string)) (string, error) {
	hash, err := s.transfer(ctx, recipient, amount, onSubmitted)
	if err != nil {
		appErr := apperrors.Wrap(err)
		s.manager.metrics.ObserveTransfer(appErr.Code)
		logger.Warn(ctx, "transfer failed", "recipient", recipient, "amount", amount, "code", appErr.Code, "error", err)
		return "", appErr
	}
	s.manager.metrics.ObserveTransfer(metrics.OutcomeSuccess)
	return hash, nil
}

func (s *Submitter) transfer(ctx context.Context, recipient, amount string, onSubmitted func(hash string)) (string, error) {
	sess := s.manager.Session()
	if !sess.IsConnected() {
		return "", apperrors.NotConnected("transfer requires a connected wallet")
	}
	from := common.HexToAddress(*sess.Address)

	// Validated before any provider call
	value, to, err := parseTransfer(recipient, amount)
	if err != nil {
		return "", err
	}

	tx := s.track(to.Hex(), amount)
	defer s.untrack(tx.ID)

	decimals, err := s.manager.balances.Decimals(ctx)
	if err != nil {
		return "", err
	}
	raw, err := units.ToSmallestUnit(value, decimals)
	if err != nil {
		appErr := apperrors.InvalidAmount(amount)
		switch {
		case errors.Is(err, units.ErrTooPrecise):
			appErr.Detail = fmt.Sprintf("amount: %q has more than %d fractional digits", amount, decimals)
		case errors.Is(err, units.ErrTooLarge):
			appErr.Detail = fmt.Sprintf("amount: %q exceeds the largest token amount", amount)
		}
		return "", appErr
	}

	s.setStatus(tx.ID, types.TxStatusAwaitingSignature, nil)
	hash, err := s.manager.wallet.SubmitTransfer(ctx, from, s.manager.balances.Token(), to, raw)
	if err != nil {
		s.setStatus(tx.ID, types.TxStatusFailed, nil)
		return "", err
	}

	hex := hash.Hex()
	s.setStatus(tx.ID, types.TxStatusSubmitted, &hex)
	logger.Info(ctx, "transfer submitted", "tx_hash", hex, "recipient", to.Hex(), "amount", amount)
	if onSubmitted != nil {
		onSubmitted(hex)
	}

	start := time.Now()
	if _, err := s.manager.wallet.AwaitConfirmation(ctx, hash, s.timeout); err != nil {
		s.setStatus(tx.ID, types.TxStatusFailed, &hex)
		return "", err
	}
	s.manager.metrics.ObserveConfirmation(time.Since(start))
	s.setStatus(tx.ID, types.TxStatusConfirmed, &hex)
	logger.Info(ctx, "transfer confirmed", "tx_hash", hex, "duration", time.Since(start))

	if _, err := s.manager.RefreshBalances(ctx); err != nil {
		logger.Warn(ctx, "balance refresh after transfer failed", "tx_hash", hex, "error", err)
	}
	return hex, nil
}

// ValidateTransfer checks the recipient and amount of a transfer without
// contacting the provider. Precision against token decimals is checked later.
func ValidateTransfer(recipient, amount string) error {
	_, _, err := parseTransfer(recipient, amount)
	return err
}

func parseTransfer(recipient, amount string) (decimal.Decimal, common.Address, error) {
	value, err := units.ParseAmount(amount)
	if err != nil {
		appErr := apperrors.InvalidAmount(amount)
		if errors.Is(err, units.ErrTooLarge) {
			appErr.Detail = fmt.Sprintf("amount: %q exceeds the largest token amount", amount)
		}
		return decimal.Zero, common.Address{}, appErr
	}
	if err := validation.ValidateRecipient(recipient); err != nil {
		return decimal.Zero, common.Address{}, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, apperrors.ErrBadRequest.Message,
			"recipient: "+err.Error(), apperrors.ErrBadRequest.StatusCode)
	}
	return value, common.HexToAddress(recipient), nil
}

// Pending returns copies of the transfers still in flight, oldest first
func (s *Submitter) Pending() []types.PendingTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs := make([]types.PendingTransaction, 0, len(s.pending))
	for _, tx := range s.pending {
		c := *tx
		if tx.SubmittedHash != nil {
			h := *tx.SubmittedHash
			c.SubmittedHash = &h
		}
		txs = append(txs, c)
	}
	return sortedPending(txs)
}

func (s *Submitter) track(recipient, amount string) *types.PendingTransaction {
	tx := &types.PendingTransaction{
		ID:        uuid.New(),
		Recipient: recipient,
		Amount:    amount,
		Status:    types.TxStatusBuilding,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.pending[tx.ID] = tx
	s.mu.Unlock()
	return tx
}

// setStatus moves a tracked transfer forward; final statuses are never left
func (s *Submitter) setStatus(id uuid.UUID, status types.TxStatus, hash *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx, ok := s.pending[id]; ok && !tx.Status.IsFinal() {
		tx.Status = status
		if hash != nil {
			tx.SubmittedHash = hash
		}
	}
}

// untrack discards a transfer once its outcome has been reported
func (s *Submitter) untrack(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}
