package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"onboarding/config"
	deliverycontext "onboarding/internal/delivery/context"
	domainerrors "onboarding/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runLogged(t *testing.T, debug bool, handler echo.HandlerFunc) []map[string]any {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg := &config.Config{}
	cfg.Env.Debug = debug

	e := echo.New()
	e.Use(NewLoggerMiddleware(logger, cfg).Handle)
	e.GET("/merchants/:id", handler)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/merchants/abc", nil))

	var lines []map[string]any
	for _, raw := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(raw) == 0 {
			continue
		}
		var line map[string]any
		require.NoError(t, json.Unmarshal(raw, &line))
		lines = append(lines, line)
	}

	return lines
}

func TestLoggerMiddleware_QuietOutsideDebug(t *testing.T) {
	lines := runLogged(t, false, func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	assert.Empty(t, lines)
}

func TestLoggerMiddleware_LogsRouteTemplateInDebug(t *testing.T) {
	lines := runLogged(t, true, func(c echo.Context) error {
		deliverycontext.SetActor(c, &deliverycontext.Actor{Subject: "admin-cli"})
		return c.NoContent(http.StatusOK)
	})

	require.Len(t, lines, 1)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "/merchants/:id", lines[0]["route"])
	assert.Equal(t, "admin-cli", lines[0]["actor"])
	assert.EqualValues(t, http.StatusOK, lines[0]["status"])
}

func TestLoggerMiddleware_AlwaysLogsServerErrors(t *testing.T) {
	lines := runLogged(t, false, func(c echo.Context) error {
		return errors.Wrap(domainerrors.ErrProvisioningFailed, "create merchant")
	})

	require.Len(t, lines, 1)
	assert.Equal(t, "ERROR", lines[0]["level"])
	assert.EqualValues(t, http.StatusInternalServerError, lines[0]["status"])
	assert.Contains(t, lines[0]["error"], "create merchant")
}

func TestLoggerMiddleware_ClientErrorsLoggedAsWarnInDebug(t *testing.T) {
	lines := runLogged(t, true, func(c echo.Context) error {
		return domainerrors.ErrMerchantNotFound
	})

	require.Len(t, lines, 1)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.EqualValues(t, http.StatusNotFound, lines[0]["status"])
}
