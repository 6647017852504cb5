package main

import (
	"context"
	"log/slog"
	"os"

	"onboarding/config"
	"onboarding/internal/delivery"
	"onboarding/internal/delivery/api"
	"onboarding/internal/delivery/api/router/handler"
	"onboarding/internal/delivery/middleware"
	"onboarding/internal/delivery/scheduler"
	"onboarding/internal/domain/service"
	"onboarding/internal/infra/auth"
	logs "onboarding/internal/infra/log"
	"onboarding/internal/infra/metrics"
	"onboarding/internal/infra/persistence/postgres"
	"onboarding/internal/infra/pubsub"
	"onboarding/internal/infra/qrcode"
	"onboarding/internal/usecase/impl"
	"onboarding/internal/validator"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle
	fx.Shutdowner

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		pubsub.Module,
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		postgres.New,
		validator.New,
		metrics.New,
		func(m *metrics.Metrics) service.MetricsRecorder { return m },
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			postgres.NewMerchantRepository,
			postgres.NewSetupTokenRepository,
			postgres.NewDocumentRepository,
			postgres.NewTransactionManager,
		),
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			auth.NewBcryptIssuer,
			auth.NewJWTService,
			qrcode.NewQRCodeService,
		),
	)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewWelcomeDispatcher,
			impl.NewProvisioningService,
			impl.NewSetupService,
			impl.NewDocumentService,
			impl.NewBulkActionService,
			impl.NewTokenPurgeService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			middleware.NewAuthMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewMerchantHandler,
			handler.NewSetupHandler,
			handler.NewDocumentHandler,
			handler.NewBulkHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				api.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
			fx.Annotate(
				scheduler.NewScheduler,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))

				// Trigger graceful shutdown to execute all OnStop hooks
				if shutdownErr := params.Shutdown(); shutdownErr != nil {
					slog.Error("Failed to shutdown gracefully", slog.Any("error", shutdownErr))
					os.Exit(1)
				}
			}
		}()
	}
}
