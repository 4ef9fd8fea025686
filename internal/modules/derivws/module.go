package derivws

import (
	"context"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/derivws/service"

	"go.uber.org/fx"
)

// Module поднимает стример свечей Deriv.
func Module() fx.Option {
	return fx.Module("derivws",
		fx.Provide(
			service.NewClient,
			func() chan models.CandleEvent {
				// общий буфер для свечей
				return make(chan models.CandleEvent, 1024)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, c *service.Client, out chan models.CandleEvent, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go c.Start(ctx, out)
					return nil
				},
			})
		}),
	)
}
