package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameHTTPRequestsTotal,
			Help: HelpTextHTTPRequestsTotal,
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameHTTPRequestDuration,
			Help:    HelpTextHTTPRequestDuration,
			Buckets: HTTPLatencyBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameHTTPRequestsInFlight,
			Help: HelpTextHTTPRequestsInFlight,
		},
	)
)

// Business Metrics
var (
	Draws = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameDraws,
			Help: HelpTextDraws,
		},
		[]string{LabelBanner, LabelTier},
	)

	HardPity = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameHardPity,
			Help: HelpTextHardPity,
		},
		[]string{LabelBanner, LabelTier},
	)

	FallThrough = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameFallThrough,
			Help: HelpTextFallThrough,
		},
		[]string{LabelBanner},
	)

	AdminDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameAdminDenials,
			Help: HelpTextAdminDenials,
		},
		[]string{LabelReason},
	)

	CatalogReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameCatalogReloads,
			Help: HelpTextCatalogReloads,
		},
		[]string{LabelResult},
	)
)
