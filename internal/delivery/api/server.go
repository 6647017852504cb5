// Package api serves the onboarding HTTP API: public setup links plus the
// admin and merchant route groups.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"onboarding/config"
	"onboarding/internal/delivery"
	apimiddleware "onboarding/internal/delivery/api/middleware"
	"onboarding/internal/delivery/api/router"
	"onboarding/internal/delivery/middleware"
	"onboarding/internal/domain/lifecycle"
	"onboarding/internal/errors"
	"onboarding/internal/validator"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"golang.org/x/net/http2"
)

type ServerParams struct {
	fx.In

	Lc           fx.Lifecycle
	Cfg          *config.Config
	Logger       *slog.Logger
	Validator    *validator.Validator
	RouterParams router.RouterParams
}

type apiServer struct {
	addr   string
	idle   http2.Server
	logger *slog.Logger
	echo   *echo.Echo
}

// NewServer builds the API on echo. It is served over h2c so a fronting proxy can
// speak HTTP/2 without TLS termination here.
func NewServer(params ServerParams) (delivery.Delivery, error) {
	srv := &apiServer{
		addr:   net.JoinHostPort("0.0.0.0", strconv.Itoa(params.Cfg.HTTP.Port)),
		idle:   http2.Server{IdleTimeout: params.Cfg.HTTP.Timeouts.IdleTimeout},
		logger: params.Logger,
		echo:   newEcho(params.Cfg, params.Logger, params.Validator, params.RouterParams),
	}

	params.Lc.Append(fx.Hook{OnStop: srv.stop})

	return srv, nil
}

func newEcho(cfg *config.Config, logger *slog.Logger, v echo.Validator, routerParams router.RouterParams) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.HTTP.Timeouts.ReadTimeout
	e.Server.ReadHeaderTimeout = cfg.HTTP.Timeouts.ReadHeaderTimeout
	e.Server.WriteTimeout = cfg.HTTP.Timeouts.WriteTimeout
	e.Server.IdleTimeout = cfg.HTTP.Timeouts.IdleTimeout
	e.Validator = v
	e.HTTPErrorHandler = apimiddleware.NewErrorMiddleware(logger).HandleHTTPError

	e.Use(apiMiddlewares(cfg, logger, routerParams)...)
	router.NewRouter(routerParams).RegisterRoutes(e)

	return e
}

// apiMiddlewares lists the chain outermost first. The request ID has to be in place
// before anything logs, and metrics wrap the logger so logging time is not observed.
func apiMiddlewares(cfg *config.Config, logger *slog.Logger, routerParams router.RouterParams) []echo.MiddlewareFunc {
	chain := []echo.MiddlewareFunc{
		echomiddleware.Recover(),
		middleware.NewRequestIDMiddleware(logger).Process,
	}
	if routerParams.Metrics != nil {
		chain = append(chain, middleware.HTTPMetrics(routerParams.Metrics))
	}
	chain = append(chain,
		middleware.NewLoggerMiddleware(logger, cfg).Handle,
		// Setup links carry a secret in the query string; keep it out of Referer headers.
		echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
			XSSProtection:      echomiddleware.DefaultSecureConfig.XSSProtection,
			ContentTypeNosniff: echomiddleware.DefaultSecureConfig.ContentTypeNosniff,
			XFrameOptions:      echomiddleware.DefaultSecureConfig.XFrameOptions,
			ReferrerPolicy:     "no-referrer",
		}),
		echomiddleware.CORS(),
	)
	if cfg.HTTP.MaxRequestBodySize != "" {
		chain = append(chain, echomiddleware.BodyLimit(cfg.HTTP.MaxRequestBodySize))
	}

	return chain
}

func (s *apiServer) Serve(_ context.Context) error {
	s.logger.Info("Starting API HTTP server", slog.String("addr", s.addr))

	if err := s.echo.StartH2CServer(s.addr, &s.idle); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve api")
	}

	return nil
}

func (s *apiServer) stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	s.logger.Info("Shutting down API HTTP server")

	return errors.WithStack(s.echo.Shutdown(ctx))
}
