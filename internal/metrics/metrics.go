package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — счётчики пайплайна: транспорт, детектор, гейт, нотификатор.
type Metrics struct {
	CandlesTotal      prometheus.Counter
	MalformedTotal    prometheus.Counter
	ReconnectsTotal   prometheus.Counter
	SignalsDetected   prometheus.Counter
	SignalsEmitted    prometheus.Counter
	SignalsSuppressed prometheus.Counter
	NotifyErrors      prometheus.Counter
	SeriesCount       prometheus.Gauge
	DedupRecords      prometheus.Gauge
}

// New создаёт метрики без регистрации; регистрацию делает health-модуль
// на своём Registry (и тесты — на своих).
func New() *Metrics {
	return &Metrics{
		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_candles_total",
			Help: "Normalized candles accepted from the feed",
		}),
		MalformedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_malformed_events_total",
			Help: "Feed events dropped by the normalizer",
		}),
		ReconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_ws_reconnects_total",
			Help: "WebSocket reconnect attempts",
		}),
		SignalsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_signals_detected_total",
			Help: "Signals produced by the detector before the alert gate",
		}),
		SignalsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_signals_emitted_total",
			Help: "Signals that passed the alert gate",
		}),
		SignalsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_signals_suppressed_total",
			Help: "Signals dropped by dedup/rate-limit",
		}),
		NotifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_notify_errors_total",
			Help: "Failed notification deliveries",
		}),
		SeriesCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_series_count",
			Help: "Number of (symbol, timeframe) series in the rolling store",
		}),
		DedupRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_dedup_records",
			Help: "Live records in the alert gate dedup map",
		}),
	}
}

func (m *Metrics) MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		m.CandlesTotal,
		m.MalformedTotal,
		m.ReconnectsTotal,
		m.SignalsDetected,
		m.SignalsEmitted,
		m.SignalsSuppressed,
		m.NotifyErrors,
		m.SeriesCount,
		m.DedupRecords,
	)
}
