package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DepositsTotal counts escrow deposits by outcome
	DepositsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_deposits_total",
			Help: "Total number of escrow deposits",
		},
		[]string{"status"},
	)

	// ReleasesTotal counts escrow releases by authorization mode and outcome
	ReleasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_releases_total",
			Help: "Total number of escrow releases",
		},
		[]string{"mode", "status"},
	)

	// RefundsTotal counts escrow refunds by outcome
	RefundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_refunds_total",
			Help: "Total number of escrow refunds",
		},
		[]string{"status"},
	)

	// OperationDuration tracks coordinator operation processing time
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "escrow_operation_duration_seconds",
			Help:    "Coordinator operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// TransferAmount tracks the amount of tokens escrowed
	TransferAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "escrow_transfer_amount",
			Help:    "Amount of tokens escrowed per transfer",
			Buckets: []float64{0.001, 0.01, 0.1, 1, 10, 100, 1000, 10000},
		},
	)

	// PendingTransfers tracks the number of transfers awaiting claim
	PendingTransfers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "escrow_pending_transfers",
			Help: "Number of transfers awaiting claim",
		},
	)

	// ExpiredTransfers tracks the number of claimable transfers past expiry
	ExpiredTransfers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "escrow_expired_transfers",
			Help: "Number of unclaimed transfers past their expiry date",
		},
	)

	// DepositsObserved counts ledger deposit events matched to pending transfers
	DepositsObserved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_deposits_observed_total",
			Help: "Total number of ledger deposit events observed by the watcher",
		},
		[]string{"status"},
	)

	// AuthorizationsIssued counts signature-mode authorizations issued
	AuthorizationsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "escrow_authorizations_issued_total",
			Help: "Total number of claim authorizations signed by the authority",
		},
	)

	// ErrorsTotal counts errors by component and type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
