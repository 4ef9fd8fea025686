package alert

import (
	"fmt"
	"sync"
	"time"

	"signal_bot/internal/models"
)

// staleAfterWindows — через сколько окон запись считается мусором.
// Протухшая запись уже ничего не подавляет, так что уборка поведения не меняет,
// только держит мапу конечной.
const staleAfterWindows = 4

// Gate — единственный шлюз между детектором и нотификатором: дедупликация
// плюс rate-limit по ключу (серия, направление, округлённый вход).
type Gate struct {
	window time.Duration

	mu   sync.Mutex
	sent map[string]time.Time // dedup key -> lastSentAt
}

func NewGate(window time.Duration) *Gate {
	if window <= 0 {
		window = 25 * time.Minute
	}
	return &Gate{
		window: window,
		sent:   make(map[string]time.Time),
	}
}

// DedupKey — вход округляется до двух знаков: повторный сигнал на той же цене
// схлопывается, сосед через тик — нет.
func DedupKey(sig models.Signal) string {
	return fmt.Sprintf("%s_%d_%s_%.2f", sig.Key.Symbol, sig.Key.TimeframeMin, sig.Direction, sig.Entry)
}

// ShouldEmit решает, уходит ли сигнал наружу, и при "да" фиксирует время
// отправки. При "нет" состояние не трогается.
func (g *Gate) ShouldEmit(sig models.Signal, now time.Time) bool {
	key := DedupKey(sig)

	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.sent[key]; ok && now.Sub(last) < g.window {
		return false
	}
	g.sent[key] = now
	return true
}

// Sweep выкидывает записи старше staleAfterWindows окон. Возвращает число удалённых.
func (g *Gate) Sweep(now time.Time) int {
	cutoff := now.Add(-time.Duration(staleAfterWindows) * g.window)

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for key, last := range g.sent {
		if last.Before(cutoff) {
			delete(g.sent, key)
			removed++
		}
	}
	return removed
}

func (g *Gate) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}
