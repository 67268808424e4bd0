// Package session owns the process-wide wallet session. All session mutation
// goes through Manager transition methods; provider events are routed to the
// same methods.
package session

import (
	"context"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/better-wallet/walletd/internal/balance"
	"github.com/better-wallet/walletd/internal/logger"
	"github.com/better-wallet/walletd/internal/metrics"
	"github.com/better-wallet/walletd/internal/provider"
	"github.com/better-wallet/walletd/internal/validation"
	apperrors "github.com/better-wallet/walletd/pkg/errors"
	"github.com/better-wallet/walletd/pkg/types"
)

// DefaultConfirmationTimeout bounds AwaitConfirmation when no timeout is configured
const DefaultConfirmationTimeout = 3 * time.Minute

// Wallet is the provider surface the manager drives. *provider.Adapter implements it.
type Wallet interface {
	ListAccounts(ctx context.Context) ([]common.Address, error)
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	NetworkID(ctx context.Context) (int64, error)
	RequestNetworkSwitch(ctx context.Context, chainID int64) error
	SubmitTransfer(ctx context.Context, from, contract, recipient common.Address, amount *big.Int) (common.Hash, error)
	AwaitConfirmation(ctx context.Context, hash common.Hash, timeout time.Duration) (*ethtypes.Receipt, error)
	Subscribe(name provider.EventName, h provider.Handler) event.Subscription
}

// Balances is the balance reader the manager drives. *balance.Synchronizer implements it.
type Balances interface {
	Token() common.Address
	Sync(ctx context.Context, owner common.Address) (balance.Result, error)
	Decimals(ctx context.Context) (uint8, error)
	Metadata(ctx context.Context) (types.TokenMetadata, error)
	Reset()
}

// Options configures a Manager
type Options struct {
	// ExpectedNetworkID is the chain the wallet should be on, nil for any
	ExpectedNetworkID *int64
	// ConfirmationTimeout bounds the wait for a transfer receipt
	ConfirmationTimeout time.Duration
	// Metrics may be nil
	Metrics *metrics.Metrics
	// OnReset runs after a chainChanged reset and before the session is re-probed
	OnReset func()
}

// Manager is the wallet session state machine
type Manager struct {
	wallet   Wallet
	balances Balances
	metrics  *metrics.Metrics
	onReset  func()

	submitter *Submitter

	mu       sync.Mutex
	session  types.Session
	expected *int64

	// eventMu serializes provider event handlers
	eventMu sync.Mutex
	subMu   sync.Mutex
	subs    []event.Subscription
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewManager creates a manager in the disconnected state
func NewManager(wallet Wallet, balances Balances, opts Options) *Manager {
	timeout := opts.ConfirmationTimeout
	if timeout <= 0 {
		timeout = DefaultConfirmationTimeout
	}

	m := &Manager{
		wallet:   wallet,
		balances: balances,
		metrics:  opts.Metrics,
		onReset:  opts.OnReset,
		expected: cloneInt64(opts.ExpectedNetworkID),
		ctx:      context.Background(),
		cancel:   func() {},
	}
	m.session = m.freshLocked(0)
	m.submitter = newSubmitter(m, timeout)
	return m
}

// Session returns a snapshot of the current session
func (m *Manager) Session() types.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Start subscribes to provider events and probes for an already-authorized
// account. A probe failure leaves the session disconnected and is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.subMu.Lock()
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.subs = append(m.subs,
		m.wallet.Subscribe(provider.EventAccountsChanged, m.onEvent),
		m.wallet.Subscribe(provider.EventChainChanged, m.onEvent),
	)
	m.subMu.Unlock()

	return m.Probe(ctx)
}

// Close unsubscribes from provider events
func (m *Manager) Close() {
	m.subMu.Lock()
	subs, cancel := m.subs, m.cancel
	m.subs = nil
	m.subMu.Unlock()

	// Unsubscribe waits for a running handler, which may need subMu
	cancel()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// Probe adopts the first already-authorized account without prompting.
// It only acts on a disconnected session.
func (m *Manager) Probe(ctx context.Context) error {
	m.mu.Lock()
	if m.session.Status != types.StatusDisconnected {
		m.mu.Unlock()
		return nil
	}
	epoch := m.session.Epoch
	m.mu.Unlock()

	accounts, err := m.wallet.ListAccounts(ctx)
	if err != nil {
		logger.Warn(ctx, "wallet probe failed", "error", err)
		return err
	}
	if len(accounts) == 0 {
		logger.Info(ctx, "no authorized wallet account")
		return nil
	}

	chainID, err := m.wallet.NetworkID(ctx)
	if err != nil {
		logger.Warn(ctx, "wallet probe failed", "error", err)
		return err
	}

	m.mu.Lock()
	if m.session.Epoch != epoch || m.session.Status != types.StatusDisconnected {
		m.mu.Unlock()
		return nil
	}
	epoch = m.connectLocked(m.session.Epoch+1, accounts[0], chainID)
	m.mu.Unlock()

	m.published(ctx, "wallet session restored")
	m.syncBalances(ctx, epoch, accounts[0])
	return nil
}

// Connect prompts the wallet for account access. While a connect is in flight
// a second call fails with already_connecting. When already connected the
// current session is returned without prompting.
func (m *Manager) Connect(ctx context.Context) (types.Session, error) {
	m.mu.Lock()
	switch m.session.Status {
	case types.StatusConnecting:
		m.mu.Unlock()
		m.metrics.ObserveConnect(apperrors.ErrCodeAlreadyConnecting)
		return types.Session{}, apperrors.ErrAlreadyConnecting
	case types.StatusConnected:
		snap := m.session
		m.mu.Unlock()
		return snap, nil
	}
	epoch := m.beginLocked()
	m.mu.Unlock()

	m.published(ctx, "wallet connecting")

	accounts, err := m.wallet.RequestAccounts(ctx)
	if err == nil && len(accounts) == 0 {
		err = apperrors.ProviderUnavailable("wallet returned no accounts")
	}
	if err != nil {
		return m.connectFailed(ctx, epoch, err)
	}

	return m.establish(ctx, epoch, accounts[0])
}

// Disconnect resets the session. It cannot revoke the wallet's authorization.
func (m *Manager) Disconnect() types.Session {
	m.mu.Lock()
	m.session = m.freshLocked(m.session.Epoch + 1)
	snap := m.session
	m.mu.Unlock()

	m.published(context.Background(), "wallet disconnected")
	return snap
}

// SwitchNetwork asks the wallet to change chain. The target becomes the
// expected network and one verification read updates the session; later
// chainChanged events remain authoritative.
func (m *Manager) SwitchNetwork(ctx context.Context, chainID int64) (types.Session, error) {
	if err := validation.ValidateChainID(chainID); err != nil {
		return types.Session{}, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, apperrors.ErrBadRequest.Message, err.Error(), apperrors.ErrBadRequest.StatusCode)
	}

	m.mu.Lock()
	if m.session.Status != types.StatusConnected {
		m.mu.Unlock()
		return types.Session{}, apperrors.NotConnected("switching network requires a connected wallet")
	}
	epoch := m.session.Epoch
	m.mu.Unlock()

	if err := m.wallet.RequestNetworkSwitch(ctx, chainID); err != nil {
		logger.Warn(ctx, "network switch failed", "chain_id", chainID, "error", err)
		return types.Session{}, err
	}

	m.mu.Lock()
	m.expected = &chainID
	m.session.ExpectedNetworkID = cloneInt64(m.expected)
	m.session.WrongNetwork = m.wrongNetworkLocked(m.session.NetworkID)
	m.mu.Unlock()

	actual, err := m.wallet.NetworkID(ctx)
	if err != nil {
		logger.Warn(ctx, "network switch verification failed", "chain_id", chainID, "error", err)
		return m.Session(), nil
	}

	m.mu.Lock()
	if m.session.Epoch == epoch && m.session.Status == types.StatusConnected {
		m.session.NetworkID = &actual
		m.session.WrongNetwork = m.wrongNetworkLocked(&actual)
	}
	snap := m.session
	m.mu.Unlock()

	if actual != chainID {
		logger.Warn(ctx, "wallet did not switch network", "expected", chainID, "actual", actual)
	} else {
		logger.Info(ctx, "network switched", "chain_id", chainID, "network", validation.ChainName(chainID), "epoch", snap.Epoch)
	}
	return snap, nil
}

// RefreshBalances re-reads both balances. Failed reads keep the last-known
// value and the failure is returned alongside the updated session.
func (m *Manager) RefreshBalances(ctx context.Context) (types.Session, error) {
	m.mu.Lock()
	if m.session.Status != types.StatusConnected {
		m.mu.Unlock()
		return types.Session{}, apperrors.NotConnected("refreshing balances requires a connected wallet")
	}
	epoch := m.session.Epoch
	owner := common.HexToAddress(*m.session.Address)
	m.mu.Unlock()

	err := m.syncBalances(ctx, epoch, owner)
	return m.Session(), err
}

// Transfer sends amount tokens to recipient, see Submitter.Transfer
func (m *Manager) Transfer(ctx context.Context, recipient, amount string, onSubmitted func(hash string)) (string, error) {
	return m.submitter.Transfer(ctx, recipient, amount, onSubmitted)
}

// PendingTransactions lists transfers that have not finished yet
func (m *Manager) PendingTransactions() []types.PendingTransaction {
	return m.submitter.Pending()
}

// TokenMetadata returns the cached token metadata, fetching it on first use
func (m *Manager) TokenMetadata(ctx context.Context) (types.TokenMetadata, error) {
	md, err := m.balances.Metadata(ctx)
	if err != nil {
		return types.TokenMetadata{}, apperrors.Wrap(err)
	}
	return md, nil
}

// establish finishes a connect sequence started in epoch for address
func (m *Manager) establish(ctx context.Context, epoch uint64, address common.Address) (types.Session, error) {
	chainID, err := m.wallet.NetworkID(ctx)
	if err != nil {
		return m.connectFailed(ctx, epoch, err)
	}

	m.mu.Lock()
	if m.session.Epoch != epoch {
		m.mu.Unlock()
		m.metrics.ObserveConnect(apperrors.ErrCodeNotConnected)
		return types.Session{}, apperrors.NotConnected("connection superseded")
	}
	m.connectLocked(epoch, address, chainID)
	m.mu.Unlock()

	m.metrics.ObserveConnect(metrics.OutcomeSuccess)
	m.published(ctx, "wallet connected")

	// Balance failures are non-fatal for the connection
	_ = m.syncBalances(ctx, epoch, address)
	return m.Session(), nil
}

func (m *Manager) connectFailed(ctx context.Context, epoch uint64, err error) (types.Session, error) {
	appErr := apperrors.Wrap(err)
	m.metrics.ObserveConnect(appErr.Code)

	m.mu.Lock()
	if m.session.Epoch == epoch && m.session.Status == types.StatusConnecting {
		m.session = m.freshLocked(epoch)
	}
	m.mu.Unlock()

	logger.Warn(ctx, "wallet connect failed", "epoch", epoch, "code", appErr.Code, "error", err)
	return types.Session{}, appErr
}

// syncBalances reads balances and applies them only if epoch is still current
func (m *Manager) syncBalances(ctx context.Context, epoch uint64, owner common.Address) error {
	res, err := m.balances.Sync(ctx, owner)

	m.mu.Lock()
	stale := m.session.Epoch != epoch || m.session.Status != types.StatusConnected
	if !stale {
		if res.Native != nil {
			m.session.NativeBalance = *res.Native
		}
		if res.Token != nil {
			m.session.TokenBalance = *res.Token
		}
	}
	m.mu.Unlock()

	if stale {
		logger.Debug(ctx, "discarding stale balance result", "epoch", epoch)
		return nil
	}
	if err != nil {
		return apperrors.Wrap(err)
	}
	return nil
}

// adopt switches the session to address without prompting
func (m *Manager) adopt(ctx context.Context, address common.Address) {
	m.mu.Lock()
	epoch := m.beginLocked()
	m.mu.Unlock()

	if _, err := m.establish(ctx, epoch, address); err != nil {
		logger.Warn(ctx, "failed to adopt wallet account", "address", address.Hex(), "error", err)
	}
}

// reset tears the session down after a network change and re-probes
func (m *Manager) reset(ctx context.Context) {
	m.mu.Lock()
	m.session = m.freshLocked(m.session.Epoch + 1)
	m.mu.Unlock()

	m.balances.Reset()
	m.published(ctx, "wallet session reset")
	if m.onReset != nil {
		m.onReset()
	}

	if err := m.Probe(ctx); err != nil {
		logger.Warn(ctx, "re-probe after network change failed", "error", err)
	}
}

func (m *Manager) onEvent(ev provider.Event) {
	m.eventMu.Lock()
	defer m.eventMu.Unlock()

	m.subMu.Lock()
	ctx := m.ctx
	m.subMu.Unlock()
	ctx = logger.WithAttrs(ctx, "event", string(ev.Name))

	m.metrics.ObserveEvent(string(ev.Name))

	switch ev.Name {
	case provider.EventAccountsChanged:
		m.handleAccountsChanged(ctx, ev.Accounts)
	case provider.EventChainChanged:
		logger.Info(ctx, "wallet network changed", "chain_id", chainString(ev.ChainID))
		m.reset(ctx)
	}
}

func (m *Manager) handleAccountsChanged(ctx context.Context, accounts []common.Address) {
	if len(accounts) == 0 {
		m.Disconnect()
		return
	}

	first := accounts[0]
	m.mu.Lock()
	status := m.session.Status
	same := m.session.Address != nil && common.HexToAddress(*m.session.Address) == first
	m.mu.Unlock()

	// A connect in flight resolves with its own accounts
	if status == types.StatusConnecting || (status == types.StatusConnected && same) {
		return
	}
	m.adopt(ctx, first)
}

// beginLocked enters Connecting in a new epoch
func (m *Manager) beginLocked() uint64 {
	m.session = m.freshLocked(m.session.Epoch + 1)
	m.session.Status = types.StatusConnecting
	return m.session.Epoch
}

func (m *Manager) connectLocked(epoch uint64, address common.Address, chainID int64) uint64 {
	addr := address.Hex()
	s := m.freshLocked(epoch)
	s.Status = types.StatusConnected
	s.Address = &addr
	s.NetworkID = &chainID
	s.WrongNetwork = m.wrongNetworkLocked(&chainID)
	m.session = s
	return epoch
}

func (m *Manager) freshLocked(epoch uint64) types.Session {
	s := types.NewSession()
	s.Epoch = epoch
	s.ExpectedNetworkID = cloneInt64(m.expected)
	return s
}

func (m *Manager) wrongNetworkLocked(actual *int64) bool {
	return m.expected != nil && actual != nil && *m.expected != *actual
}

// published logs the current session and updates metrics
func (m *Manager) published(ctx context.Context, msg string) {
	snap := m.Session()
	m.metrics.SetSession(snap.Epoch, snap.IsConnected())

	args := []any{"status", string(snap.Status), "epoch", snap.Epoch}
	if snap.Address != nil {
		args = append(args, "address", *snap.Address)
	}
	if snap.NetworkID != nil {
		args = append(args, "network_id", *snap.NetworkID)
	}
	if snap.WrongNetwork {
		args = append(args, "wrong_network", true)
	}
	logger.Info(ctx, msg, args...)
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func chainString(id *big.Int) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// sortedPending orders pending transactions by creation time
func sortedPending(txs []types.PendingTransaction) []types.PendingTransaction {
	slices.SortFunc(txs, func(a, b types.PendingTransaction) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return txs
}
