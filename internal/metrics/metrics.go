package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "elecdata_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	seriesFetchTotal   *prometheus.CounterVec
	seriesFetchLatency *prometheus.HistogramVec
	rateLookupTotal    *prometheus.CounterVec
	windowTotal        *prometheus.CounterVec
	rowsWrittenTotal   prometheus.Counter
	lastTimestamp      prometheus.Gauge
)

// Init registers the collectors with the default registry. Until Init is
// called every Observe function is a no-op.
func Init() {
	registerOnce.Do(func() {
		seriesFetchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "series_fetch_total",
				Help: "Series fetches by series and result",
			},
			[]string{"series", "result"},
		)
		seriesFetchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "series_fetch_latency_seconds",
				Help:    "Series fetch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"series"},
		)
		rateLookupTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exchange_rate_lookups_total",
				Help: "Fallback exchange rate lookups by result",
			},
			[]string{"result"},
		)
		windowTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "windows_total",
				Help: "Processed fetch windows by result",
			},
			[]string{"result"},
		)
		rowsWrittenTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_written_total",
				Help: "Dataset rows written",
			},
		)
		lastTimestamp = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "dataset_last_timestamp_seconds",
				Help: "Unix time of the last row written to the dataset",
			},
		)

		prometheus.MustRegister(
			seriesFetchTotal,
			seriesFetchLatency,
			rateLookupTotal,
			windowTotal,
			rowsWrittenTotal,
			lastTimestamp,
		)
	})
}

// ObserveSeriesFetch records one series fetch.
func ObserveSeriesFetch(series string, err error, duration time.Duration) {
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	if seriesFetchTotal != nil {
		seriesFetchTotal.WithLabelValues(series, result).Inc()
	}
	if seriesFetchLatency != nil {
		seriesFetchLatency.WithLabelValues(series).Observe(duration.Seconds())
	}
}

// ObserveRateLookup records one fallback exchange rate lookup.
func ObserveRateLookup(ok bool) {
	result := resultSuccess
	if !ok {
		result = resultError
	}
	if rateLookupTotal != nil {
		rateLookupTotal.WithLabelValues(result).Inc()
	}
}

// ObserveWindow records a processed window and its rows.
func ObserveWindow(err error, rows int, last time.Time) {
	if err != nil {
		if windowTotal != nil {
			windowTotal.WithLabelValues(resultError).Inc()
		}
		return
	}
	if windowTotal != nil {
		windowTotal.WithLabelValues(resultSuccess).Inc()
	}
	if rowsWrittenTotal != nil && rows > 0 {
		rowsWrittenTotal.Add(float64(rows))
	}
	if lastTimestamp != nil && !last.IsZero() {
		lastTimestamp.Set(float64(last.Unix()))
	}
}
