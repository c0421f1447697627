// Package metrics provides prometheus-backed implementations of the
// per-service metrics collector interfaces.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WalletMetrics implements wallet.MetricsCollector.
type WalletMetrics struct {
	operations    *prometheus.CounterVec
	balanceDeltas *prometheus.HistogramVec
}

func NewWalletMetrics() *WalletMetrics {
	return &WalletMetrics{
		operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "payflow_wallet_operations_total",
			Help: "Wallet operations by type and outcome.",
		}, []string{"operation", "outcome"}),
		balanceDeltas: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payflow_wallet_balance_delta",
			Help:    "Absolute amounts moved through wallet ledger entries.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"type"}),
	}
}

func (m *WalletMetrics) RecordWalletOperation(operation, outcome string) {
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *WalletMetrics) RecordBalanceChange(walletID string, oldBalance, newBalance float64) {
	// The wallet ID is deliberately not a label; per-wallet series would blow
	// up cardinality.
	delta := newBalance - oldBalance
	entryType := "credit"
	if delta < 0 {
		entryType = "debit"
		delta = -delta
	}
	m.balanceDeltas.WithLabelValues(entryType).Observe(delta)
}

// ChargeMetrics implements charge.MetricsCollector.
type ChargeMetrics struct {
	charges *prometheus.CounterVec
}

func NewChargeMetrics() *ChargeMetrics {
	return &ChargeMetrics{
		charges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "payflow_charges_total",
			Help: "Charge outcomes by payment method and status.",
		}, []string{"method", "status"}),
	}
}

func (m *ChargeMetrics) RecordCharge(method, status string) {
	m.charges.WithLabelValues(method, status).Inc()
}

// WebhookMetrics implements webhook.MetricsCollector.
type WebhookMetrics struct {
	deliveries *prometheus.CounterVec
}

func NewWebhookMetrics() *WebhookMetrics {
	return &WebhookMetrics{
		deliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "payflow_webhook_deliveries_total",
			Help: "Webhook delivery attempts by event type and outcome.",
		}, []string{"event_type", "outcome"}),
	}
}

func (m *WebhookMetrics) RecordDelivery(eventType, outcome string) {
	m.deliveries.WithLabelValues(eventType, outcome).Inc()
}
