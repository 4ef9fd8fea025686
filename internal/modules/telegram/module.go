package telegram

import (
	"context"

	derivsvc "signal_bot/internal/modules/derivws/service"
	"signal_bot/internal/modules/telegram/service"
	"signal_bot/internal/modules/telegram/service/pg"
	"signal_bot/internal/runner"
	"signal_bot/pkg/logger"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("telegram",
		// 1. Стор подписчиков
		fx.Provide(
			pg.NewSubscribers,
		),

		// 2. Сервис Telegram
		fx.Provide(
			service.NewTelegram,
		),

		// 3. Адаптеры: *service.Telegram -> интерфейсы потребителей
		fx.Provide(
			func(t *service.Telegram) runner.Notifier {
				return t
			},
			func(t *service.Telegram) derivsvc.ServiceNotifier {
				return t
			},
		),

		// Диагностика для /status проставляется после сборки графа
		fx.Invoke(
			func(t *service.Telegram, r *runner.Runner) {
				t.SetDiagnostics(r)
			},
		),

		// Запуск основного цикла через Lifecycle
		fx.Invoke(
			func(lc fx.Lifecycle, t *service.Telegram, subs *pg.Subscribers, ctx context.Context) {
				lc.Append(fx.Hook{
					OnStart: func(startCtx context.Context) error {
						if err := subs.Load(startCtx); err != nil {
							// бот работоспособен и без прогретого кэша
							logger.Warn("subscribers load: %v", err)
						}
						return t.Start(ctx)
					},
					OnStop: func(ctx context.Context) error {
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
