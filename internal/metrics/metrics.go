// Package metrics holds the server's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_http_requests_total",
		Help: "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planner_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"route"})
	CollabClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_collab_clients",
		Help: "Connected collaboration clients",
	})
	CollabRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_collab_rooms",
		Help: "Projects with at least one connected client",
	})
	CollabOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_collab_ops_total",
		Help: "Collaboration operations by type and outcome",
	}, []string{"type", "result"})
	CollabDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "planner_collab_dropped_messages_total",
		Help: "Messages dropped because a client's send buffer was full",
	})
	SnapshotSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_snapshot_saves_total",
		Help: "Autosaved snapshots by outcome",
	}, []string{"result"})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "planner_snapshot_cache_hits_total",
		Help: "Latest-snapshot cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "planner_snapshot_cache_misses_total",
		Help: "Latest-snapshot cache misses",
	})
	AssetUploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_asset_uploads_total",
		Help: "Background image uploads by outcome",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDurationMs,
		CollabClients,
		CollabRooms,
		CollabOpsTotal,
		CollabDroppedTotal,
		SnapshotSavesTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		AssetUploadsTotal,
	)
}

// Handler serves the registered metrics for scraping.
func Handler() http.Handler { return promhttp.Handler() }
