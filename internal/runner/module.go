package runner

import (
	"context"
	"time"

	"signal_bot/internal/alert"
	"signal_bot/internal/detector"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/series"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			func(cfg *config.Config) *series.Store {
				return series.NewStore(cfg.SeriesCapacity)
			},
			func(cfg *config.Config) *detector.Detector {
				return detector.New(cfg.ConfidenceThreshold)
			},
			func(cfg *config.Config) *alert.Gate {
				return alert.NewGate(cfg.RateLimitWindow())
			},
			New, // *Runner
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			r *Runner,
			cfg *config.Config,
			candles chan models.CandleEvent,
			ctx context.Context,
		) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					// единственный консьюмер: порядок и атомарность по ключу
					go func() {
						for {
							select {
							case <-ctx.Done():
								return
							case ev := <-candles:
								r.OnCandle(ctx, ev)
							}
						}
					}()
					// уборка dedup-мапы
					go func() {
						t := time.NewTicker(cfg.DedupSweepInterval)
						defer t.Stop()
						for {
							select {
							case <-ctx.Done():
								return
							case <-t.C:
								r.SweepGate()
							}
						}
					}()
					return nil
				},
			})
		}),
	)
}
