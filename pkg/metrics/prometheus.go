package metrics

import (
	"time"

	"MarketPull/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics on Prometheus.
type Recorder struct {
	crawls        *prometheus.CounterVec
	crawlDuration *prometheus.HistogramVec
	strategies    *prometheus.CounterVec
	cacheReads    *prometheus.CounterVec
	lastValue     *prometheus.GaugeVec
	archiveUp     prometheus.Gauge
}

// New creates a Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		crawls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpull_crawls_total",
				Help: "Crawl cycles by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		crawlDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpull_crawl_duration_seconds",
				Help:    "Duration of crawl cycles",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		strategies: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpull_strategy_attempts_total",
				Help: "Strategy attempts by source, kind and result",
			},
			[]string{"source", "kind", "result"},
		),
		cacheReads: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpull_cache_reads_total",
				Help: "Cache reads by source and hit/miss",
			},
			[]string{"source", "result"},
		),
		lastValue: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpull_last_value",
				Help: "Last accepted numeric value per source field",
			},
			[]string{"source", "field"},
		),
		archiveUp: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketpull_archive_up",
				Help: "1 when the archive answered the most recent call",
			},
		),
	}
}

func (r *Recorder) RecordCrawl(sourceID string, outcome models.Outcome, d time.Duration) {
	r.crawls.WithLabelValues(sourceID, string(outcome)).Inc()
	r.crawlDuration.WithLabelValues(sourceID).Observe(d.Seconds())
}

func (r *Recorder) RecordStrategy(sourceID, kind, result string) {
	r.strategies.WithLabelValues(sourceID, kind, result).Inc()
}

func (r *Recorder) RecordCacheRead(sourceID string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheReads.WithLabelValues(sourceID, result).Inc()
}

func (r *Recorder) RecordLastValue(sourceID, field string, v float64) {
	r.lastValue.WithLabelValues(sourceID, field).Set(v)
}

func (r *Recorder) SetArchiveUp(up bool) {
	if up {
		r.archiveUp.Set(1)
		return
	}
	r.archiveUp.Set(0)
}
