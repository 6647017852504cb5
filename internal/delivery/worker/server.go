// Package worker hosts the mail worker's inbound transports: the Pub/Sub push
// endpoint and the RabbitMQ consumer.
package worker

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"onboarding/config"
	"onboarding/internal/delivery"
	"onboarding/internal/delivery/middleware"
	"onboarding/internal/delivery/worker/handler"
	"onboarding/internal/domain/lifecycle"
	"onboarding/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

type ServerParams struct {
	fx.In

	Lc             fx.Lifecycle
	Cfg            *config.Config
	Logger         *slog.Logger
	WelcomeHandler *handler.WelcomeHandler
	Metrics        *metrics.Metrics `optional:"true"`
}

type pushServer struct {
	addr   string
	logger *slog.Logger
	echo   *echo.Echo
}

// NewServer serves POST /push for Pub/Sub push subscriptions and the local publisher.
// It also runs alongside the queue consumer so /health and /metrics stay reachable.
func NewServer(params ServerParams) (delivery.Delivery, error) {
	srv := &pushServer{
		addr:   net.JoinHostPort("0.0.0.0", strconv.Itoa(params.Cfg.HTTP.Port)),
		logger: params.Logger,
		echo:   newPushEcho(params.Cfg, params.Logger, params.WelcomeHandler, params.Metrics),
	}

	params.Lc.Append(fx.Hook{OnStop: srv.stop})

	return srv, nil
}

func newPushEcho(cfg *config.Config, logger *slog.Logger, welcome *handler.WelcomeHandler, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(
		echomiddleware.Recover(),
		middleware.NewRequestIDMiddleware(logger).Process,
		middleware.NewLoggerMiddleware(logger, cfg).Handle,
	)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
	e.POST("/push", welcome.HandlePush)

	return e
}

func (s *pushServer) Serve(_ context.Context) error {
	s.logger.Info("Starting mail worker HTTP server", slog.String("addr", s.addr))

	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve mail worker")
	}

	return nil
}

func (s *pushServer) stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	s.logger.Info("Shutting down mail worker HTTP server")

	return errors.WithStack(s.echo.Shutdown(ctx))
}
