package logs

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"onboarding/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger_JSONCarriesServiceName(t *testing.T) {
	cfg := &config.Config{}
	cfg.Env.ServiceName = "onboarding"
	cfg.Env.Log.Level = "info"

	var buf bytes.Buffer
	logger, err := newLogger(&buf, cfg)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("merchant provisioned", slog.String("merchantID", "m-1"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "onboarding", record["service"])
	assert.Equal(t, "merchant provisioned", record["msg"])
	assert.Equal(t, "m-1", record["merchantID"])
}

func TestNewLogger_RedactsSecrets(t *testing.T) {
	cfg := &config.Config{}

	var buf bytes.Buffer
	logger, err := newLogger(&buf, cfg)
	require.NoError(t, err)

	logger.Info("welcome sent",
		slog.String("setup_link", "https://merchant.example/setup?token=abc"),
		slog.Group("merchant", slog.String("temporaryPassword", "Xy9!abcd"), slog.String("email", "owner@shop.tw")),
	)

	out := buf.String()
	assert.NotContains(t, out, "token=abc")
	assert.NotContains(t, out, "Xy9!abcd")
	assert.Contains(t, out, "owner@shop.tw")
	assert.Contains(t, out, redacted)
}
