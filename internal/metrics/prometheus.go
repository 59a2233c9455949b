package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	collectorOnce     sync.Once
	collectorInstance *Collector
)

// Collector provides Prometheus metrics for the analysis pipeline.
type Collector struct {
	// Engine lifecycle
	engineUp            prometheus.Gauge
	engineCrashesTotal  prometheus.Counter
	engineReloadsTotal  prometheus.Counter
	protocolLinesTotal  *prometheus.CounterVec
	searchDurationSecs  prometheus.Histogram

	// Analysis
	searchesStartedTotal prometheus.Counter
	stopsIssuedTotal     prometheus.Counter
	infoRecordsTotal     prometheus.Counter
	snapshotSeq          prometheus.Gauge

	// Snapshot cache
	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter
}

// NewCollector creates the metrics collector (process-wide singleton).
func NewCollector() *Collector {
	collectorOnce.Do(func() {
		collectorInstance = &Collector{
			engineUp: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "chesslens_engine_up",
					Help: "Whether the UCI engine process is running (1=up, 0=down)",
				},
			),
			engineCrashesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "chesslens_engine_crashes_total",
					Help: "Total number of unexpected engine process deaths",
				},
			),
			engineReloadsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "chesslens_engine_reloads_total",
					Help: "Total number of engine reloads",
				},
			),
			protocolLinesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chesslens_uci_lines_total",
					Help: "Total number of UCI lines processed by kind",
				},
				[]string{"kind"},
			),
			searchDurationSecs: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "chesslens_search_duration_seconds",
					Help:    "Duration of engine searches in seconds",
					Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
				},
			),
			searchesStartedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "chesslens_searches_started_total",
					Help: "Total number of go commands issued",
				},
			),
			stopsIssuedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "chesslens_stops_issued_total",
					Help: "Total number of stop commands issued",
				},
			),
			infoRecordsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "chesslens_info_records_total",
					Help: "Total number of parsed info records merged into snapshots",
				},
			),
			snapshotSeq: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "chesslens_snapshot_sequence",
					Help: "Sequence number of the latest published analysis snapshot",
				},
			),
			cacheHitsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "chesslens_snapshot_cache_hits_total",
					Help: "Total number of snapshot cache hits",
				},
			),
			cacheMissesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "chesslens_snapshot_cache_misses_total",
					Help: "Total number of snapshot cache misses",
				},
			),
		}
	})
	return collectorInstance
}

// RecordEngineStatus records whether the engine is running.
func (c *Collector) RecordEngineStatus(running bool) {
	value := 0.0
	if running {
		value = 1.0
	}
	c.engineUp.Set(value)
}

// RecordEngineCrash records an unexpected engine death.
func (c *Collector) RecordEngineCrash() {
	c.engineCrashesTotal.Inc()
}

// RecordEngineReload records an engine reload.
func (c *Collector) RecordEngineReload() {
	c.engineReloadsTotal.Inc()
}

// RecordProtocolLine records one processed UCI line of the given kind.
func (c *Collector) RecordProtocolLine(kind string) {
	c.protocolLinesTotal.WithLabelValues(kind).Inc()
}

// RecordSearchStarted records a go command.
func (c *Collector) RecordSearchStarted() {
	c.searchesStartedTotal.Inc()
}

// RecordStopIssued records a stop command.
func (c *Collector) RecordStopIssued() {
	c.stopsIssuedTotal.Inc()
}

// RecordSearchDuration records how long a search ran.
func (c *Collector) RecordSearchDuration(seconds float64) {
	c.searchDurationSecs.Observe(seconds)
}

// RecordInfoRecord records a merged info record.
func (c *Collector) RecordInfoRecord() {
	c.infoRecordsTotal.Inc()
}

// RecordSnapshotSeq records the latest published sequence number.
func (c *Collector) RecordSnapshotSeq(seq uint64) {
	c.snapshotSeq.Set(float64(seq))
}

// RecordCacheHit records a snapshot cache hit.
func (c *Collector) RecordCacheHit() {
	c.cacheHitsTotal.Inc()
}

// RecordCacheMiss records a snapshot cache miss.
func (c *Collector) RecordCacheMiss() {
	c.cacheMissesTotal.Inc()
}
