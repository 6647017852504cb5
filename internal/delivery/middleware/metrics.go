package middleware

import (
	"time"

	"onboarding/internal/infra/metrics"

	"github.com/labstack/echo/v4"
)

// HTTPMetrics observes request latency per route template. Paths carrying merchant
// or document IDs collapse into one series each.
func HTTPMetrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == metricsPath {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = statusOf(err)
			}
			m.ObserveHTTP(c.Request().Method, routeOf(c), status, time.Since(start))

			return err
		}
	}
}

const metricsPath = "/metrics"
