// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "adsplice"

var (
	// PlaylistsProcessedTotal tracks playlist rewriting calls.
	// Labels:
	//   - status: success, error
	PlaylistsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playlists_processed_total",
			Help:      "Total number of playlists processed",
		},
		[]string{"status"},
	)

	// ForeignAdsStrippedTotal counts segments dropped as foreign pre-roll ads.
	ForeignAdsStrippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "foreign_ads_stripped_total",
			Help:      "Total number of foreign ad segments stripped from source playlists",
		},
	)

	// AdsInjectedTotal counts injected ad slots by role.
	// Labels:
	//   - role: pre-roll, mid-roll, post-roll
	AdsInjectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ads_injected_total",
			Help:      "Total number of ad slots injected into playlists",
		},
		[]string{"role"},
	)

	// ProbesTotal tracks format probe attempts.
	// Labels:
	//   - outcome: success, failure
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Total number of source format probes",
		},
		[]string{"outcome"},
	)

	// TranscodesTotal tracks ad variant transcode executions.
	// Labels:
	//   - outcome: success, failure
	TranscodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcodes_total",
			Help:      "Total number of ad variant transcode executions",
		},
		[]string{"outcome"},
	)

	// ProxySelectionsTotal tracks proxy route selections by purpose.
	// Labels:
	//   - purpose: probe, playlist, segment
	ProxySelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_selections_total",
			Help:      "Total number of proxy route selections",
		},
		[]string{"purpose"},
	)

	// ProxyReportsTotal tracks reported outcomes of calls made through routes.
	// Labels:
	//   - outcome: success, failure
	ProxyReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_reports_total",
			Help:      "Total number of proxy route outcome reports",
		},
		[]string{"outcome"},
	)

	// CacheOperationsTotal tracks playlist cache operations.
	// Labels:
	//   - operation: get, set
	//   - status: hit, miss, success, error
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "status"},
	)

	// SingleflightRequestsTotal tracks singleflight behavior.
	// Labels:
	//   - group: transcode, playlist
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"group", "result"},
	)
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
)

// Cache operation type constants.
const (
	CacheOpGet = "get"
	CacheOpSet = "set"
)

// Singleflight group constants.
const (
	SingleflightGroupTranscode = "transcode"
	SingleflightGroupPlaylist  = "playlist"
)

// Singleflight result constants.
const (
	SingleflightInitiated = "initiated"
	SingleflightShared    = "shared"
)
