package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"signal_bot/internal/alert"
	"signal_bot/internal/detector"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	healthsvc "signal_bot/internal/modules/health/service"
	"signal_bot/internal/modules/telegram/service/pg"
	"signal_bot/internal/series"
	"signal_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DiagnosticsSource — последний разбор детектора для /status.
// Проставляется после сборки графа, чтобы не плодить цикл зависимостей.
type DiagnosticsSource interface {
	LastAnalysis() (models.SeriesKey, detector.Analysis, bool)
}

// Telegram — нотификатор + обработка команд /subscribe, /unsubscribe, /status.
type Telegram struct {
	bot   *tgbot.BotAPI
	cfg   *config.Config
	subs  *pg.Subscribers
	store *series.Store
	state *healthsvc.State
	gate  *alert.Gate

	mu   sync.RWMutex
	diag DiagnosticsSource
}

func NewTelegram(
	cfg *config.Config,
	subs *pg.Subscribers,
	store *series.Store,
	state *healthsvc.State,
	gate *alert.Gate,
) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:   b,
		cfg:   cfg,
		subs:  subs,
		store: store,
		state: state,
		gate:  gate,
	}, nil
}

func (t *Telegram) SetDiagnostics(d DiagnosticsSource) {
	t.mu.Lock()
	t.diag = d
	t.mu.Unlock()
}

// SendAlert — markdown-сообщение всем получателям. Ошибка доставки логируется
// и не эскалируется; вернём последнюю, чтобы раннер посчитал её в метриках.
func (t *Telegram) SendAlert(ctx context.Context, text string) error {
	var lastErr error
	for _, chatID := range t.recipients() {
		msg := tgbot.NewMessage(chatID, text)
		msg.ParseMode = tgbot.ModeMarkdown
		if _, err := t.bot.Send(msg); err != nil {
			logger.Error("telegram send to %d: %v", chatID, err)
			lastErr = err
		}
	}
	return lastErr
}

// SendService — служебные сообщения только в основной чат.
func (t *Telegram) SendService(ctx context.Context, format string, args ...any) {
	if t.cfg.Telegram.ChatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.cfg.Telegram.ChatID, fmt.Sprintf(format, args...))); err != nil {
		logger.Error("telegram service send: %v", err)
	}
}

func (t *Telegram) recipients() []int64 {
	seen := map[int64]struct{}{}
	out := []int64{}
	if t.cfg.Telegram.ChatID != 0 {
		seen[t.cfg.Telegram.ChatID] = struct{}{}
		out = append(out, t.cfg.Telegram.ChatID)
	}
	for _, id := range t.subs.All() {
		if _, ok := seen[id]; ok {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Start: long-polling для команд.
func (t *Telegram) Start(ctx context.Context) error {
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				if upd.Message == nil || upd.Message.Chat == nil || !upd.Message.IsCommand() {
					continue
				}
				chatID := upd.Message.Chat.ID
				switch upd.Message.Command() {
				case "subscribe":
					t.handleSubscribe(ctx, chatID)
				case "unsubscribe":
					t.handleUnsubscribe(ctx, chatID)
				case "status":
					t.handleStatus(chatID)
				}
			}
		}
	}()
	return nil
}

func (t *Telegram) Stop() {
	t.bot.StopReceivingUpdates()
}

func (t *Telegram) handleSubscribe(ctx context.Context, chatID int64) {
	if err := t.subs.Add(ctx, chatID); err != nil {
		logger.Error("subscribe %d: %v", chatID, err)
		t.reply(chatID, "❗️ Не удалось оформить подписку, попробуйте позже")
		return
	}
	t.reply(chatID, "🔔 Подписка оформлена: сигналы будут приходить сюда")
}

func (t *Telegram) handleUnsubscribe(ctx context.Context, chatID int64) {
	if err := t.subs.Remove(ctx, chatID); err != nil {
		logger.Error("unsubscribe %d: %v", chatID, err)
		t.reply(chatID, "❗️ Не удалось отписаться, попробуйте позже")
		return
	}
	t.reply(chatID, "🔕 Подписка отключена")
}

func (t *Telegram) handleStatus(chatID int64) {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Статус\n")
	fmt.Fprintf(&b, "WS: connected=%v reconnects=%d uptime=%s\n",
		t.state.WSConnected(), t.state.Reconnects(), t.state.Uptime().Round(time.Second))
	fmt.Fprintf(&b, "Dedup-записей: %d\n", t.gate.Size())

	keys := t.store.Keys()
	if len(keys) == 0 {
		b.WriteString("Серии: пока пусто\n")
	} else {
		b.WriteString("Серии:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %d/%d\n", k, t.store.Len(k), t.store.Capacity())
		}
	}

	t.mu.RLock()
	diag := t.diag
	t.mu.RUnlock()
	if diag != nil {
		if key, an, ok := diag.LastAnalysis(); ok {
			fmt.Fprintf(&b, "Последний разбор %s: conf=%d S=%.2f R=%.2f D=%.2f Sp=%.2f",
				key, an.Confidence, an.Support, an.Resistance, an.Demand, an.Supply)
			if an.Breakout != "" {
				fmt.Fprintf(&b, " %s", an.Breakout)
			}
			if an.Pattern != "" {
				fmt.Fprintf(&b, " %s", an.Pattern)
			}
			b.WriteString("\n")
		}
	}

	t.reply(chatID, b.String())
}

func (t *Telegram) reply(chatID int64, text string) {
	if _, err := t.bot.Send(tgbot.NewMessage(chatID, text)); err != nil {
		logger.Error("telegram reply to %d: %v", chatID, err)
	}
}
