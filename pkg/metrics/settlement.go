package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records counters for the money pipeline.
type SettlementMetrics struct {
	payoutRequests   *prometheus.CounterVec
	payoutsSettled   prometheus.Counter
	payoutAmount     prometheus.Histogram
	disputesResolved *prometheus.CounterVec
	clawbacksFlagged prometheus.Counter
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	payoutRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_requests_total",
		Help: "Payout requests by outcome.",
	}, []string{"outcome"})
	payoutsSettled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payouts_settled_total",
		Help: "Payouts marked paid by an admin.",
	})
	payoutAmount := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "payout_amount_paise",
		Help:    "Requested payout amounts in paise.",
		Buckets: prometheus.ExponentialBuckets(50000, 4, 8),
	})
	disputesResolved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "disputes_resolved_total",
		Help: "Dispute resolutions by outcome.",
	}, []string{"outcome"})
	clawbacksFlagged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clawbacks_flagged_total",
		Help: "Dispute approvals that required manual clawback reconciliation.",
	})
	reg.MustRegister(payoutRequests, payoutsSettled, payoutAmount, disputesResolved, clawbacksFlagged)
	return &SettlementMetrics{
		payoutRequests:   payoutRequests,
		payoutsSettled:   payoutsSettled,
		payoutAmount:     payoutAmount,
		disputesResolved: disputesResolved,
		clawbacksFlagged: clawbacksFlagged,
	}
}

// ObservePayoutRequest records one payout request and its outcome label.
func (m *SettlementMetrics) ObservePayoutRequest(outcome string, amountPaise int64) {
	if m == nil || m.payoutRequests == nil {
		return
	}
	m.payoutRequests.WithLabelValues(normalizeLabel(outcome)).Inc()
	if amountPaise > 0 {
		m.payoutAmount.Observe(float64(amountPaise))
	}
}

// IncPayoutSettled increments the settled payout counter.
func (m *SettlementMetrics) IncPayoutSettled() {
	if m == nil || m.payoutsSettled == nil {
		return
	}
	m.payoutsSettled.Inc()
}

// IncDisputeResolved records a dispute resolution outcome.
func (m *SettlementMetrics) IncDisputeResolved(outcome string) {
	if m == nil || m.disputesResolved == nil {
		return
	}
	m.disputesResolved.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncClawbackFlagged increments the manual-reconciliation counter.
func (m *SettlementMetrics) IncClawbackFlagged() {
	if m == nil || m.clawbacksFlagged == nil {
		return
	}
	m.clawbacksFlagged.Inc()
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
