package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avellaneda_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avellaneda_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	QuotaReservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avellaneda_quota_reservations_total",
			Help: "Quota units reserved, by resource and charged source.",
		},
		[]string{"resource", "source"},
	)

	QuotaRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avellaneda_quota_rejections_total",
			Help: "Rejected quota operations, by resource and error code.",
		},
		[]string{"resource", "code"},
	)

	QuotaCreditedUnitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avellaneda_quota_credited_units_total",
			Help: "Extra quota units credited, by resource and reason.",
		},
		[]string{"resource", "reason"},
	)

	QuotaReconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avellaneda_quota_reconciliations_total",
			Help: "Stored usage counters corrected by the recount.",
		},
		[]string{"resource"},
	)

	RescheduleOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avellaneda_reschedule_outcomes_total",
			Help: "Broadcasts processed by agenda suspension, by outcome.",
		},
		[]string{"outcome"},
	)

	StoreTxRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "avellaneda_store_tx_retries_total",
			Help: "Transactions retried after a serialization failure.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		QuotaReservationsTotal,
		QuotaRejectionsTotal,
		QuotaCreditedUnitsTotal,
		QuotaReconciliationsTotal,
		RescheduleOutcomesTotal,
		StoreTxRetriesTotal,
	)
}
