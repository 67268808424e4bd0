// Package metrics exposes Prometheus instrumentation for the wallet session.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels
const (
	OutcomeSuccess = "success"
)

// Metrics holds the wallet session collectors
type Metrics struct {
	ConnectTotal         *prometheus.CounterVec
	TransferTotal        *prometheus.CounterVec
	ConfirmationDuration prometheus.Histogram
	BalanceFetchFailures *prometheus.CounterVec
	ProviderEvents       *prometheus.CounterVec
	SessionEpoch         prometheus.Gauge
	Connected            prometheus.Gauge
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "walletd_connect_total",
			Help: "Wallet connection attempts by outcome",
		}, []string{"outcome"}),
		TransferTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "walletd_transfer_total",
			Help: "Token transfers by outcome",
		}, []string{"outcome"}),
		ConfirmationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "walletd_confirmation_duration_seconds",
			Help:    "Time from submission to confirmed receipt",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 180, 300},
		}),
		BalanceFetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "walletd_balance_fetch_failures_total",
			Help: "Failed balance reads by currency",
		}, []string{"currency"}),
		ProviderEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "walletd_provider_events_total",
			Help: "Provider events handled by name",
		}, []string{"event"}),
		SessionEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "walletd_session_epoch",
			Help: "Current wallet session epoch",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "walletd_session_connected",
			Help: "1 when a wallet account is connected",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ConnectTotal,
			m.TransferTotal,
			m.ConfirmationDuration,
			m.BalanceFetchFailures,
			m.ProviderEvents,
			m.SessionEpoch,
			m.Connected,
		)
	}

	return m
}

// ObserveConnect counts a connection attempt. outcome is "success" or an error code.
func (m *Metrics) ObserveConnect(outcome string) {
	if m == nil {
		return
	}
	m.ConnectTotal.WithLabelValues(outcome).Inc()
}

// ObserveTransfer counts a finished transfer
func (m *Metrics) ObserveTransfer(outcome string) {
	if m == nil {
		return
	}
	m.TransferTotal.WithLabelValues(outcome).Inc()
}

// ObserveConfirmation records how long a confirmation took
func (m *Metrics) ObserveConfirmation(d time.Duration) {
	if m == nil {
		return
	}
	m.ConfirmationDuration.Observe(d.Seconds())
}

// ObserveBalanceFailure counts a failed native or token read
func (m *Metrics) ObserveBalanceFailure(currency string) {
	if m == nil {
		return
	}
	m.BalanceFetchFailures.WithLabelValues(currency).Inc()
}

// ObserveEvent counts a handled provider event
func (m *Metrics) ObserveEvent(name string) {
	if m == nil {
		return
	}
	m.ProviderEvents.WithLabelValues(name).Inc()
}

// SetSession publishes the session epoch and connection state
func (m *Metrics) SetSession(epoch uint64, connected bool) {
	if m == nil {
		return
	}
	m.SessionEpoch.Set(float64(epoch))
	if connected {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}
