package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var msBuckets = []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000}

var (
	PageRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drrm_page_requests_total",
		Help: "Total /api/page requests by result",
	}, []string{"result"})
	PageCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "drrm_page_cache_hits_total",
		Help: "Total redis page cache hits",
	})
	PageCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "drrm_page_cache_misses_total",
		Help: "Total redis page cache misses",
	})
	QueryRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drrm_query_requests_total",
		Help: "Total /api/query requests by result",
	}, []string{"result"})
	QueryDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "drrm_query_duration_ms",
		Help:    "Proxied SQL duration in milliseconds",
		Buckets: msBuckets,
	})
	DriveRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "drrm_drive_requests_total",
		Help: "Total Google Drive listing requests sent upstream",
	})
	DriveFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "drrm_drive_fail_total",
		Help: "Total Google Drive listing failures",
	})
	DriveCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "drrm_drive_cache_hits_total",
		Help: "Total Drive listings served from the local cache",
	})
	DriveDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "drrm_drive_duration_ms",
		Help:    "Google Drive listing duration in milliseconds",
		Buckets: msBuckets,
	})
	UploadFilesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drrm_upload_files_total",
		Help: "Uploaded map files by outcome",
	}, []string{"outcome"})
	MapLayers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "drrm_map_layers",
		Help: "Layers currently registered on the map",
	})
	MapEventSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "drrm_map_event_subscribers",
		Help: "Open websocket subscribers for map events",
	})
)

func init() {
	prometheus.MustRegister(PageRequestsTotal)
	prometheus.MustRegister(PageCacheHitsTotal)
	prometheus.MustRegister(PageCacheMissesTotal)
	prometheus.MustRegister(QueryRequestsTotal)
	prometheus.MustRegister(QueryDurationMs)
	prometheus.MustRegister(DriveRequestsTotal)
	prometheus.MustRegister(DriveFailTotal)
	prometheus.MustRegister(DriveCacheHitsTotal)
	prometheus.MustRegister(DriveDurationMs)
	prometheus.MustRegister(UploadFilesTotal)
	prometheus.MustRegister(MapLayers)
	prometheus.MustRegister(MapEventSubscribers)
}

// Handler：Prometheus 抓取入口，在主入口挂载到 API_BASE/metrics
func Handler() http.Handler { return promhttp.Handler() }
