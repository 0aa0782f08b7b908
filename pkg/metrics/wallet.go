package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Wallet operation outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// WalletMetrics tracks ledger operations and reconciliation drift.
type WalletMetrics struct {
	operations *prometheus.CounterVec
	drift      prometheus.Gauge
	checked    prometheus.Counter
}

func NewWalletMetrics(reg prometheus.Registerer) *WalletMetrics {
	if reg == nil {
		return &WalletMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "wallet",
		Name:      "operations_total",
		Help:      "Wallet ledger operations by type and outcome.",
	}, []string{"type", "outcome"})
	drift := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "wallet",
		Name:      "ledger_drift",
		Help:      "Wallets whose balance disagreed with ledger replay in the last reconciliation.",
	})
	checked := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "wallet",
		Name:      "reconciled_total",
		Help:      "Wallets replayed by the reconciliation job.",
	})
	reg.MustRegister(operations, drift, checked)
	return &WalletMetrics{operations: operations, drift: drift, checked: checked}
}

// ObserveOperation counts one ledger operation.
func (w *WalletMetrics) ObserveOperation(opType, outcome string) {
	if w == nil || w.operations == nil {
		return
	}
	w.operations.WithLabelValues(normalizeLabel(opType), normalizeLabel(outcome)).Inc()
}

// SetDrift publishes the number of drifting wallets seen in a run.
func (w *WalletMetrics) SetDrift(count int) {
	if w == nil || w.drift == nil {
		return
	}
	w.drift.Set(float64(count))
}

func (w *WalletMetrics) AddReconciled(n int) {
	if w == nil || w.checked == nil {
		return
	}
	w.checked.Add(float64(n))
}
