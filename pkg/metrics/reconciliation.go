package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Reconciliation outcome labels.
const (
	OutcomeRecorded   = "recorded"
	OutcomeDuplicate  = "duplicate"
	OutcomeUnresolved = "unresolved"
	OutcomeFailed     = "failed"
)

// ReconciliationMetrics records what happened to each inbound payment event.
type ReconciliationMetrics struct {
	outcomes *prometheus.CounterVec
	sms      *prometheus.CounterVec
}

// NewReconciliationMetrics registers the payment metrics on the provided registerer.
func NewReconciliationMetrics(reg prometheus.Registerer) *ReconciliationMetrics {
	if reg == nil {
		return &ReconciliationMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconciliation_total",
		Help: "Inbound payment events by reconciliation outcome.",
	}, []string{"outcome"})
	sms := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sms_dispatch_total",
		Help: "SMS dispatch attempts by result.",
	}, []string{"result"})
	reg.MustRegister(outcomes, sms)
	return &ReconciliationMetrics{
		outcomes: outcomes,
		sms:      sms,
	}
}

// IncOutcome increments the counter for the named reconciliation outcome.
func (r *ReconciliationMetrics) IncOutcome(outcome string) {
	if r == nil || r.outcomes == nil {
		return
	}
	r.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncSMSSent increments the sent counter.
func (r *ReconciliationMetrics) IncSMSSent() {
	if r == nil || r.sms == nil {
		return
	}
	r.sms.WithLabelValues("sent").Inc()
}

// IncSMSFailed increments the failed counter.
func (r *ReconciliationMetrics) IncSMSFailed() {
	if r == nil || r.sms == nil {
		return
	}
	r.sms.WithLabelValues("failed").Inc()
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
