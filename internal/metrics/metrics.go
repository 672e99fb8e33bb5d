// Package metrics exposes Prometheus instrumentation for the wide server.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

const (
	// Namespace is the Prometheus namespace for all wide metrics
	Namespace = "wide"

	LabelOperation  = "operation"
	LabelStatus     = "status"
	LabelReason     = "reason"
	LabelState      = "state"
	LabelMethod     = "method"
	LabelRoute      = "route"
	LabelStatusCode = "status_code"

	StatusSuccess = "success"
	StatusError   = "error"

	OpIssueChallenge   = "issue_challenge"
	OpVerifyChallenge  = "verify_challenge"
	OpSignOut          = "sign_out"
	OpStoreCredential  = "store_credential"
	OpDeleteCredential = "delete_credential"
	OpLogPayload       = "log_payload"
	OpLogPresentation  = "log_presentation"
	OpLedgerRead       = "ledger_read"
)

var (
	// OperationsTotal counts domain and ledger operations by outcome.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of operations by type and status",
		},
		[]string{LabelOperation, LabelStatus},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{LabelOperation},
	)

	// AuthFailuresTotal counts rejected challenge verifications by reason.
	AuthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "auth",
			Name:      "failures_total",
			Help:      "Total number of authentication failures by reason",
		},
		[]string{LabelReason},
	)

	// AnchorsTotal counts integrity proof anchoring outcomes.
	AnchorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "integrity",
			Name:      "anchors_total",
			Help:      "Total number of integrity anchoring attempts by resulting state",
		},
		[]string{LabelState},
	)

	LedgerGasUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "ledger",
			Name:      "gas_used_total",
			Help:      "Total gas used by ledger transactions",
		},
		[]string{LabelOperation},
	)

	// LedgerFees is denominated in ether.
	LedgerFees = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "ledger",
			Name:      "fees_eth_total",
			Help:      "Total fees paid for ledger transactions in ether",
		},
		[]string{LabelOperation},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route and status code",
		},
		[]string{LabelMethod, LabelRoute, LabelStatusCode},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelRoute},
	)

	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// RecordOperation records an operation with its duration and status.
func RecordOperation(operation, status string, duration time.Duration) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func RecordAuthFailure(reason string) {
	if !enabled.Load() {
		return
	}
	AuthFailuresTotal.WithLabelValues(reason).Inc()
}

func RecordAnchor(state string) {
	if !enabled.Load() {
		return
	}
	AnchorsTotal.WithLabelValues(state).Inc()
}

// RecordGas records the gas and fee of a mined ledger transaction.
func RecordGas(operation string, gasUsed uint64, fee decimal.Decimal) {
	if !enabled.Load() {
		return
	}
	LedgerGasUsed.WithLabelValues(operation).Add(float64(gasUsed))
	LedgerFees.WithLabelValues(operation).Add(fee.InexactFloat64())
}

func RecordHTTPRequest(method, route, statusCode string, duration time.Duration) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
func Disable() {
	enabled.Store(false)
}

func IsEnabled() bool {
	return enabled.Load()
}
