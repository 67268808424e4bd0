// Package balance reads native and token balances for an address and renders
// them as human-readable decimal strings.
package balance

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/better-wallet/walletd/internal/logger"
	"github.com/better-wallet/walletd/internal/metrics"
	apperrors "github.com/better-wallet/walletd/pkg/errors"
	"github.com/better-wallet/walletd/pkg/types"
	"github.com/better-wallet/walletd/pkg/units"
)

// Reader is the subset of provider.Adapter the synchronizer needs
type Reader interface {
	NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error)
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	TokenString(ctx context.Context, token common.Address, method string) (string, error)
}

// Result holds formatted balances. A nil field means that read failed.
type Result struct {
	Native *string
	Token  *string
}

// Synchronizer produces formatted balances and caches token metadata
type Synchronizer struct {
	reader  Reader
	token   common.Address
	metrics *metrics.Metrics

	mu         sync.Mutex
	generation uint64
	decimals   *uint8
	metadata   *types.TokenMetadata
}

// NewSynchronizer creates a synchronizer for one token contract. m may be nil.
func NewSynchronizer(reader Reader, token common.Address, m *metrics.Metrics) *Synchronizer {
	return &Synchronizer{
		reader:  reader,
		token:   token,
		metrics: m,
	}
}

// Token returns the token contract address
func (s *Synchronizer) Token() common.Address {
	return s.token
}

// Sync reads both balances concurrently. On partial failure the succeeding
// value is still returned alongside a balance_fetch_failed error.
func (s *Synchronizer) Sync(ctx context.Context, owner common.Address) (Result, error) {
	var (
		wg       sync.WaitGroup
		result   Result
		nativeErr error
		tokenErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		wei, err := s.reader.NativeBalance(ctx, owner)
		if err != nil {
			nativeErr = err
			return
		}
		v := units.FormatUnits(wei, types.NativeDecimals, units.NativePlaces)
		result.Native = &v
	}()
	go func() {
		defer wg.Done()
		v, err := s.tokenBalance(ctx, owner)
		if err != nil {
			tokenErr = err
			return
		}
		result.Token = &v
	}()
	wg.Wait()

	var failures []string
	if nativeErr != nil {
		s.metrics.ObserveBalanceFailure("native")
		failures = append(failures, "native: "+errorDetail(nativeErr))
	}
	if tokenErr != nil {
		s.metrics.ObserveBalanceFailure("token")
		failures = append(failures, "token: "+errorDetail(tokenErr))
	}
	if len(failures) > 0 {
		logger.Warn(ctx, "balance sync incomplete", "address", owner.Hex(), "failures", failures)
		return result, apperrors.BalanceFetchFailed(strings.Join(failures, "; "))
	}
	return result, nil
}

func (s *Synchronizer) tokenBalance(ctx context.Context, owner common.Address) (string, error) {
	decimals, err := s.Decimals(ctx)
	if err != nil {
		return "", err
	}
	raw, err := s.reader.TokenBalance(ctx, s.token, owner)
	if err != nil {
		return "", err
	}
	return units.FormatUnits(raw, decimals, units.TokenPlaces), nil
}

// Decimals returns the token decimals, reading them once per metadata lifetime
func (s *Synchronizer) Decimals(ctx context.Context) (uint8, error) {
	s.mu.Lock()
	if s.decimals != nil {
		d := *s.decimals
		s.mu.Unlock()
		return d, nil
	}
	gen := s.generation
	s.mu.Unlock()

	d, err := s.reader.TokenDecimals(ctx, s.token)
	if err != nil {
		return 0, err
	}
	if d > types.MaxTokenDecimals {
		return 0, apperrors.BalanceFetchFailed(fmt.Sprintf("token decimals %d exceeds %d", d, types.MaxTokenDecimals))
	}

	s.mu.Lock()
	if s.generation == gen {
		s.decimals = &d
	}
	s.mu.Unlock()
	return d, nil
}

// Metadata returns the token metadata. Decimals are required; symbol and
// name are best-effort and left empty when the contract does not provide them.
func (s *Synchronizer) Metadata(ctx context.Context) (types.TokenMetadata, error) {
	s.mu.Lock()
	if s.metadata != nil {
		md := *s.metadata
		s.mu.Unlock()
		return md, nil
	}
	gen := s.generation
	s.mu.Unlock()

	decimals, err := s.Decimals(ctx)
	if err != nil {
		return types.TokenMetadata{}, err
	}

	md := types.TokenMetadata{
		Address:  s.token.Hex(),
		Decimals: decimals,
	}
	if symbol, err := s.reader.TokenString(ctx, s.token, "symbol"); err == nil {
		md.Symbol = symbol
	} else {
		logger.Debug(ctx, "token symbol unavailable", "token", s.token.Hex(), "error", err)
	}
	if name, err := s.reader.TokenString(ctx, s.token, "name"); err == nil {
		md.Name = name
	} else {
		logger.Debug(ctx, "token name unavailable", "token", s.token.Hex(), "error", err)
	}

	s.mu.Lock()
	if s.generation == gen {
		s.metadata = &md
	}
	s.mu.Unlock()
	return md, nil
}

// Reset drops cached metadata. Reads already in flight do not repopulate the cache.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.decimals = nil
	s.metadata = nil
}

func errorDetail(err error) string {
	if appErr, ok := apperrors.IsAppError(err); ok {
		if appErr.Detail != "" {
			return appErr.Detail
		}
		return appErr.Message
	}
	return err.Error()
}
