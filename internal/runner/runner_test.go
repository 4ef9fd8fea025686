package runner

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"signal_bot/internal/alert"
	"signal_bot/internal/detector"
	"signal_bot/internal/metrics"
	"signal_bot/internal/models"
	"signal_bot/internal/series"
	"signal_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeNotifier struct {
	alerts []string
	fail   bool
}

func (f *fakeNotifier) SendAlert(_ context.Context, text string) error {
	if f.fail {
		return errors.New("telegram down")
	}
	f.alerts = append(f.alerts, text)
	return nil
}

func (f *fakeNotifier) SendService(_ context.Context, _ string, _ ...any) {}

// свечи сценария "пробой вверх": плоские лои 100, растущие хаи до 130,
// H&S-горб в хвосте закрытий, финальное закрытие 132
func breakoutCandles() []models.Candle {
	closes := []float64{
		105, 106, 107, 108, 109, 110, 111, 112, 113, 114, 115, 116, 117,
		118, 119, 123, 121, 120, 124, 132,
	}
	out := make([]models.Candle, 20)
	for i := 0; i < 20; i++ {
		out[i] = models.Candle{
			Time:  time.Unix(int64(1700000000+i*300), 0),
			Open:  closes[i],
			High:  111 + float64(i),
			Low:   100,
			Close: closes[i],
		}
	}
	return out
}

func newRunner(n Notifier, gate *alert.Gate, now func() time.Time) *Runner {
	r := New(series.NewStore(100), detector.New(5), gate, n, metrics.New())
	r.now = now
	return r
}

func feed(r *Runner, key models.SeriesKey) {
	for _, c := range breakoutCandles() {
		r.OnCandle(context.Background(), models.CandleEvent{Key: key, Candle: c})
	}
}

func TestPipelineEmitsSingleAlert(t *testing.T) {
	t0 := time.Date(2026, 8, 23, 14, 5, 0, 0, time.UTC)
	n := &fakeNotifier{}
	r := newRunner(n, alert.NewGate(25*time.Minute), func() time.Time { return t0 })
	key := models.SeriesKey{Symbol: "frxXAUUSD", TimeframeMin: 5}

	feed(r, key)

	if len(n.alerts) != 1 {
		t.Fatalf("want exactly 1 alert, got %d", len(n.alerts))
	}
	msg := n.alerts[0]
	for _, part := range []string{
		"*frxXAUUSD 5min LONG*",
		"Entry: `132.00`",
		"Stop: `100.00`",
		"Target: `130.00`",
		"14:05 UTC",
	} {
		if !strings.Contains(msg, part) {
			t.Fatalf("alert missing %q:\n%s", part, msg)
		}
	}

	gotKey, an, ok := r.LastAnalysis()
	if !ok || gotKey != key || an.Confidence < 5 {
		t.Fatalf("last analysis: key=%v conf=%d ok=%v", gotKey, an.Confidence, ok)
	}
}

func TestGateSuppressesRecomputedSignal(t *testing.T) {
	now := time.Date(2026, 8, 23, 14, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	gate := alert.NewGate(25 * time.Minute)
	key := models.SeriesKey{Symbol: "R_75", TimeframeMin: 1}

	n1 := &fakeNotifier{}
	feed(newRunner(n1, gate, clock), key)
	if len(n1.alerts) != 1 {
		t.Fatalf("first pass: want 1 alert, got %d", len(n1.alerts))
	}

	// тот же сигнал пересчитан через 10 минут — гейт молчит
	now = now.Add(10 * time.Minute)
	n2 := &fakeNotifier{}
	feed(newRunner(n2, gate, clock), key)
	if len(n2.alerts) != 0 {
		t.Fatalf("second pass: want suppression, got %d alerts", len(n2.alerts))
	}

	// окно истекло — снова можно
	now = now.Add(16 * time.Minute)
	n3 := &fakeNotifier{}
	feed(newRunner(n3, gate, clock), key)
	if len(n3.alerts) != 1 {
		t.Fatalf("third pass: want 1 alert after window, got %d", len(n3.alerts))
	}
}

func TestNotifierFailureIsNotRetried(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	n := &fakeNotifier{fail: true}
	gate := alert.NewGate(25 * time.Minute)
	r := newRunner(n, gate, func() time.Time { return t0 })

	feed(r, models.SeriesKey{Symbol: "R_75S", TimeframeMin: 10})

	if len(n.alerts) != 0 {
		t.Fatalf("failed notifier recorded alerts: %d", len(n.alerts))
	}
	// попытка была засчитана гейтом — немедленного ресенда не будет
	if gate.Size() != 1 {
		t.Fatalf("gate should hold the attempted record, size=%d", gate.Size())
	}
}
