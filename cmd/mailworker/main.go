package main

import (
	"context"
	"log/slog"
	"os"

	"onboarding/config"
	"onboarding/internal/delivery"
	"onboarding/internal/delivery/worker"
	"onboarding/internal/delivery/worker/handler"
	"onboarding/internal/domain/service"
	logs "onboarding/internal/infra/log"
	"onboarding/internal/infra/mail"
	"onboarding/internal/infra/metrics"
	"onboarding/internal/usecase/impl"

	"go.uber.org/fx"
)

// The mail worker turns welcome events into emails. Events arrive over HTTP push
// (Google Pub/Sub or the local publisher) or from a RabbitMQ queue, depending on
// pubsub.provider; the HTTP server always runs for /health and /metrics.

type runParams struct {
	fx.In
	fx.Shutdowner

	Logger     *slog.Logger
	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		fx.Provide(
			config.New,
			logs.New,
			context.Background,
			metrics.New,
			func(m *metrics.Metrics) service.MetricsRecorder { return m },
			mail.NewLogMailer,
			impl.NewWelcomeMailService,
			handler.NewWelcomeHandler,
			fx.Annotate(worker.NewServer, fx.ResultTags(`group:"deliveries"`)),
			fx.Annotate(worker.NewConsumer, fx.ResultTags(`group:"deliveries"`)),
		),
		fx.Invoke(run),
	).Run()
}

// run serves every delivery; the first one to fail stops the whole worker.
func run(ctx context.Context, params runParams) {
	for _, d := range params.Deliveries {
		go func() {
			err := d.Serve(ctx)
			if err == nil {
				return
			}

			params.Logger.Error("Mail worker delivery stopped", slog.Any("error", err))
			if shutdownErr := params.Shutdown(); shutdownErr != nil {
				params.Logger.Error("Failed to shut down", slog.Any("error", shutdownErr))
				os.Exit(1)
			}
		}()
	}
}
