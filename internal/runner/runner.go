package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"signal_bot/internal/alert"
	"signal_bot/internal/detector"
	"signal_bot/internal/metrics"
	"signal_bot/internal/models"
	"signal_bot/internal/series"
	"signal_bot/pkg/logger"

	"github.com/opentracing/opentracing-go"
)

// Notifier — исходящий канал алертов; реализует telegram-сервис.
type Notifier interface {
	SendAlert(ctx context.Context, text string) error
	SendService(ctx context.Context, format string, args ...any)
}

// Runner — оркестратор пайплайна: append → detect → gate → notify.
// Обрабатывает свечи строго по одной (единственный консьюмер канала),
// так что append+detect атомарны в пределах ключа.
type Runner struct {
	store *series.Store
	det   *detector.Detector
	gate  *alert.Gate
	n     Notifier
	m     *metrics.Metrics

	now func() time.Time

	mu      sync.RWMutex
	lastKey models.SeriesKey
	lastAn  detector.Analysis
	hasLast bool
}

func New(store *series.Store, det *detector.Detector, gate *alert.Gate, n Notifier, m *metrics.Metrics) *Runner {
	return &Runner{
		store: store,
		det:   det,
		gate:  gate,
		n:     n,
		m:     m,
		now:   time.Now,
	}
}

// OnCandle прогоняет одну свечу через пайплайн её серии.
func (r *Runner) OnCandle(ctx context.Context, ev models.CandleEvent) {
	window := r.store.Append(ev.Key, ev.Candle)
	r.m.SeriesCount.Set(float64(len(r.store.Keys())))

	an := r.det.Analyze(window)
	r.rememberAnalysis(ev.Key, an)

	sig, ok := r.det.Detect(window)
	if !ok {
		return
	}
	sig.Key = ev.Key
	r.m.SignalsDetected.Inc()

	if !r.gate.ShouldEmit(sig, r.now()) {
		r.m.SignalsSuppressed.Inc()
		logger.Info("signal suppressed by gate: %s", alert.DedupKey(sig))
		return
	}

	span := opentracing.StartSpan("alert.send")
	span.SetTag("symbol", sig.Key.Symbol)
	span.SetTag("timeframe_min", sig.Key.TimeframeMin)
	span.SetTag("direction", string(sig.Direction))
	defer span.Finish()

	if err := r.n.SendAlert(ctx, FormatAlert(sig, r.now())); err != nil {
		// доставка не ретраится: сигнал считается "попыткой", очереди нет
		r.m.NotifyErrors.Inc()
		logger.Error("alert delivery failed: %v", err)
		return
	}
	r.m.SignalsEmitted.Inc()
	logger.Info("alert sent: %s conf=%d entry=%.2f", alert.DedupKey(sig), sig.Confidence, sig.Entry)
}

// SweepGate — периодическая уборка dedup-мапы.
func (r *Runner) SweepGate() {
	if removed := r.gate.Sweep(r.now()); removed > 0 {
		logger.Info("dedup sweep: removed %d stale records", removed)
	}
	r.m.DedupRecords.Set(float64(r.gate.Size()))
}

func (r *Runner) rememberAnalysis(key models.SeriesKey, an detector.Analysis) {
	r.mu.Lock()
	r.lastKey = key
	r.lastAn = an
	r.hasLast = true
	r.mu.Unlock()
}

// LastAnalysis — последний разбор для /status.
func (r *Runner) LastAnalysis() (models.SeriesKey, detector.Analysis, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastKey, r.lastAn, r.hasLast
}

// FormatAlert — markdown-сообщение с уровнями сделки.
func FormatAlert(sig models.Signal, now time.Time) string {
	return fmt.Sprintf(
		"📈 *%s %dmin %s*\n"+
			"➡️ Entry: `%.2f`\n"+
			"🛑 Stop: `%.2f`\n"+
			"🎯 Target: `%.2f`\n"+
			"⏰ %s",
		sig.Key.Symbol, sig.Key.TimeframeMin, sig.Direction,
		sig.Entry, sig.Stop, sig.Target,
		now.UTC().Format("15:04")+" UTC",
	)
}
