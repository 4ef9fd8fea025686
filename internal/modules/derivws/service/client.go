package service

import (
	"context"
	"log"
	"sync"
	"time"

	"signal_bot/internal/metrics"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	healthsvc "signal_bot/internal/modules/health/service"
	"signal_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

type ServiceNotifier interface {
	SendService(ctx context.Context, format string, args ...any)
}

// Client — владелец соединения с фидом: connect → authorize → subscribe →
// stream, при обрыве — фиксированный бэкофф и заново. Историю свечей не
// держит, только проталкивает нормализованные свечи в канал.
type Client struct {
	cfg   *config.Config
	n     ServiceNotifier
	norm  *Normalizer
	state *healthsvc.State
	m     *metrics.Metrics

	wsDialer *websocket.Dialer

	mu            sync.Mutex
	connectedSent bool
}

func NewClient(cfg *config.Config, n ServiceNotifier, state *healthsvc.State, m *metrics.Metrics) *Client {
	return &Client{
		cfg:      cfg,
		n:        n,
		norm:     NewNormalizer(cfg.Symbols, cfg.Timeframes),
		state:    state,
		m:        m,
		wsDialer: &websocket.Dialer{},
	}
}

// Start крутит цикл сессий до отмены контекста. Обрывы транспорта не
// фатальны: лог, бэкофф, реконнект. Накопленные серии живут в сторе и
// реконнект их не трогает.
func (c *Client) Start(ctx context.Context, out chan<- models.CandleEvent) {
	for {
		if ctx.Err() != nil {
			return
		}

		if err := c.runSession(ctx, out); err != nil {
			logger.Warn("ws session: %v", err)
		}
		c.state.SetWSConnected(false)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.ReconnectBackoff()):
			c.m.ReconnectsTotal.Inc()
			c.state.IncReconnects()
		}
	}
}

func (c *Client) runSession(ctx context.Context, out chan<- models.CandleEvent) error {
	url := c.cfg.WSURL()
	log.Printf("[WS] connect %s", url)
	conn, _, err := c.wsDialer.DialContext(ctx, url, nil)
	if err != nil {
		return errors.Wrap(err, "dial")
	}
	defer func() { _ = conn.Close() }()

	// будим ReadMessage при остановке приложения
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	if err := c.authorize(conn); err != nil {
		return err
	}
	if err := c.subscribeAll(conn); err != nil {
		return err
	}
	log.Printf("[WS] subscribed %d series", len(c.cfg.Symbols)*len(c.cfg.Timeframes))

	c.state.SetWSConnected(true)
	c.state.SetReady(true)
	c.notifyConnectedOnce(ctx)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "read")
		}

		ev, err := c.norm.Normalize(msg)
		if err != nil {
			if errors.Is(err, errNotOHLC) {
				continue
			}
			c.m.MalformedTotal.Inc()
			logger.Warn("drop event: %v", err)
			continue
		}

		c.m.CandlesTotal.Inc()
		c.state.TouchCandle(ev.Candle.Time)

		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

// authorize шлёт токен и ждёт подтверждение; кадры до него пропускаем.
func (c *Client) authorize(conn *websocket.Conn) error {
	payload, err := sonic.Marshal(authorizeReq{Authorize: c.cfg.Deriv.Token})
	if err != nil {
		return errors.Wrap(err, "marshal authorize")
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errors.Wrap(err, "send authorize")
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "await authorize")
		}
		var frame inboundFrame
		if err := sonic.Unmarshal(msg, &frame); err != nil {
			continue
		}
		if frame.Error != nil {
			return errors.Errorf("authorize rejected: %s (%s)", frame.Error.Message, frame.Error.Code)
		}
		if frame.MsgType == "authorize" {
			return nil
		}
	}
}

// subscribeAll — по одной подписке на каждую пару (символ, таймфрейм),
// с бэкфилом на глубину стора.
func (c *Client) subscribeAll(conn *websocket.Conn) error {
	for _, sym := range c.cfg.Symbols {
		for _, tf := range c.cfg.Timeframes {
			req := ticksHistoryReq{
				TicksHistory:    sym,
				AdjustStartTime: 1,
				Count:           c.cfg.SeriesCapacity,
				Granularity:     tf * 60,
				Subscribe:       1,
			}
			payload, err := sonic.Marshal(req)
			if err != nil {
				return errors.Wrapf(err, "marshal subscribe %s %dm", sym, tf)
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return errors.Wrapf(err, "subscribe %s %dm", sym, tf)
			}
		}
	}
	return nil
}

// Уведомление о коннекте уходит один раз за жизнь процесса, не на каждый реконнект.
func (c *Client) notifyConnectedOnce(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectedSent {
		return
	}
	c.connectedSent = true
	if c.n != nil {
		c.n.SendService(ctx, "✅ Bot Connected and ready to analyze signals")
	}
}
