package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"signal_bot/internal/metrics"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	healthsvc "signal_bot/internal/modules/health/service"
	"signal_bot/pkg/logger"

	"github.com/gorilla/websocket"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeNotifier struct {
	mu       sync.Mutex
	services []string
}

func (f *fakeNotifier) SendService(_ context.Context, format string, _ ...any) {
	f.mu.Lock()
	f.services = append(f.services, format)
	f.mu.Unlock()
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.services)
}

func testConfig(endpoint string) *config.Config {
	cfg := &config.Config{
		Symbols:             []string{"R_75"},
		Timeframes:          []int{1},
		SeriesCapacity:      100,
		ReconnectBackoffSec: 0, // в тесте реконнектимся сразу
	}
	cfg.Deriv.AppID = "1089"
	cfg.Deriv.Token = "test-token"
	cfg.Deriv.Endpoint = endpoint
	return cfg
}

// Сервер рвёт соединение после первой сессии; клиент обязан переподключиться,
// заново авторизоваться и подписаться, а уведомление о коннекте отправить
// только один раз.
func TestReconnectResubscribes(t *testing.T) {
	var (
		mu       sync.Mutex
		sessions int
		subSeen  []string
	)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		mu.Lock()
		sessions++
		n := sessions
		mu.Unlock()

		// authorize
		_, auth, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if !strings.Contains(string(auth), `"authorize":"test-token"`) {
			t.Errorf("session %d: bad authorize payload: %s", n, auth)
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"msg_type":"authorize","authorize":{"loginid":"CR1"}}`))

		// подписка: 1 символ × 1 таймфрейм, бэкфил на глубину стора
		_, sub, err := conn.ReadMessage()
		if err != nil {
			return
		}
		mu.Lock()
		subSeen = append(subSeen, string(sub))
		mu.Unlock()

		if n == 1 {
			// чужой конверт + одна живая свеча, затем обрыв транспорта
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"msg_type":"tick","tick":{"quote":100.1}}`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"msg_type":"ohlc","ohlc":{"symbol":"R_75","granularity":60,"epoch":1700000000,"open":"100","high":"101","low":"99","close":"100.5"}}`))
			return
		}

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"msg_type":"ohlc","ohlc":{"symbol":"R_75","granularity":60,"epoch":1700000060,"open":"100.5","high":"102","low":"100","close":"101.5"}}`))
		// держим соединение до остановки клиента
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	n := &fakeNotifier{}
	state := healthsvc.NewState()
	c := NewClient(testConfig("ws"+strings.TrimPrefix(srv.URL, "http")), n, state, metrics.New())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan models.CandleEvent, 16)
	go c.Start(ctx, out)

	var events []models.CandleEvent
	deadline := time.After(5 * time.Second)
	for len(events) < 2 {
		select {
		case ev := <-out:
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("timed out waiting for candles, got %d", len(events))
		}
	}
	cancel()

	if events[0].Candle.Close != 100.5 || events[1].Candle.Close != 101.5 {
		t.Fatalf("candles out of order or lost: %+v", events)
	}

	mu.Lock()
	gotSessions := sessions
	subs := append([]string(nil), subSeen...)
	mu.Unlock()

	if gotSessions < 2 {
		t.Fatalf("expected a reconnect, sessions=%d", gotSessions)
	}
	if len(subs) < 2 {
		t.Fatalf("expected resubscription on reconnect, got %d", len(subs))
	}
	for i, s := range subs[:2] {
		for _, part := range []string{`"ticks_history":"R_75"`, `"count":100`, `"granularity":60`, `"subscribe":1`} {
			if !strings.Contains(s, part) {
				t.Fatalf("subscription %d missing %s: %s", i, part, s)
			}
		}
	}
	if n.count() != 1 {
		t.Fatalf("connected notification must fire exactly once, got %d", n.count())
	}
	if !state.Ready() {
		t.Fatal("state must be ready after first subscribe")
	}
}
