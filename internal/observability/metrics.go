// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Poll metrics
	PollCyclesTotal    *prometheus.CounterVec
	PollCycleDuration  prometheus.Histogram
	PositionsSnapshot  prometheus.Gauge
	FillsUpserted      prometheus.Counter
	RecordsSkipped     *prometheus.CounterVec
	FieldsDefaulted    *prometheus.CounterVec
	PersistenceErrors  *prometheus.CounterVec

	// Exchange metrics
	APICallLatency *prometheus.HistogramVec
	APICallErrors  *prometheus.CounterVec
	WSReconnects   prometheus.Counter

	// Risk metrics
	AccountValue      prometheus.Gauge
	TotalExposure     prometheus.Gauge
	MarginUtilization prometheus.Gauge
	PortfolioHeat     prometheus.Gauge
	ActiveWarnings    prometheus.Gauge

	// Health metrics
	LastSuccessfulPoll prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "perp_risk_monitor"
	}

	return &Metrics{
		// Poll metrics
		PollCyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "cycles_total",
			Help:      "Total number of poll cycles by status",
		}, []string{"status"}),
		PollCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "cycle_duration_seconds",
			Help:      "Poll cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		PositionsSnapshot: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "open_positions",
			Help:      "Number of open positions in the latest snapshot",
		}),
		FillsUpserted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "fills_upserted_total",
			Help:      "Total number of fills written to storage",
		}),
		RecordsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_skipped_total",
			Help:      "Total number of raw records skipped by reason",
		}, []string{"reason"}),
		FieldsDefaulted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "fields_defaulted_total",
			Help:      "Total number of numeric fields defaulted to zero by field",
		}, []string{"field"}),
		PersistenceErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "persistence_errors_total",
			Help:      "Total number of storage write failures by store",
		}, []string{"store"}),

		// Exchange metrics
		APICallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "api_call_latency_seconds",
			Help:      "Info API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		APICallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "api_call_errors_total",
			Help:      "Total number of info API call failures",
		}, []string{"endpoint"}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "ws_reconnects_total",
			Help:      "Total number of websocket reconnections",
		}),

		// Risk metrics
		AccountValue: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "account_value_usd",
			Help:      "Latest account equity in USD",
		}),
		TotalExposure: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "total_exposure_usd",
			Help:      "Latest total leveraged exposure in USD",
		}),
		MarginUtilization: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "margin_utilization_pct",
			Help:      "Latest margin utilization percentage",
		}),
		PortfolioHeat: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "portfolio_heat",
			Help:      "Latest portfolio heat score",
		}),
		ActiveWarnings: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "active_warnings",
			Help:      "Number of warnings raised by the latest risk assessment",
		}),

		// Health metrics
		LastSuccessfulPoll: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of last successful poll cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
