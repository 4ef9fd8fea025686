package main

import (
	"context"
	"os"
	"strconv"

	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/derivws"
	"signal_bot/internal/modules/health"
	"signal_bot/internal/modules/postgres"
	"signal_bot/internal/modules/telegram"
	"signal_bot/internal/runner"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"

	"go.uber.org/fx"
)

const serviceName = "signal_bot"

func main() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger.SetServiceName(serviceName)

	tracing.SetServiceName(serviceName)
	closer := initTracing()
	if closer != nil {
		defer closer()
	}

	app := fx.New(
		fx.Provide(
			// общий контекст приложения, гасится на OnStop
			func(lc fx.Lifecycle) context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						cancel()
						return nil
					},
				})
				return ctx
			},
		),
		config.Module(),
		postgres.Module(),
		health.Module(),
		runner.Module(),
		derivws.Module(),
		telegram.Module(),
	)
	app.Run()
}

// Трейсинг опционален: без агента бот работает, просто без спанов.
func initTracing() func() {
	host := os.Getenv("JAEGER_HOST")
	if host == "" {
		return nil
	}
	port := 6831
	if p := os.Getenv("JAEGER_PORT"); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	_, closer, err := tracing.InitTracer(tracing.Config{Host: host, Port: port})
	if err != nil {
		logger.Warn("init tracer: %v", err)
		return nil
	}
	return closer
}
