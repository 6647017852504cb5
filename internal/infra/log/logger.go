package logs

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"onboarding/config"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// Params defines the parameters required for the logger
type Params struct {
	fx.In

	Config *config.Config
}

// New creates the process logger. Every record carries the service name.
func New(params Params) (*slog.Logger, error) {
	return newLogger(os.Stdout, params.Config)
}

func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := parseLogLevel(cfg.Env.Log.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: redactSecrets}

	var handler slog.Handler
	if cfg.Env.Log.Pretty {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	if cfg.Env.ServiceName != "" {
		logger = logger.With(slog.String("service", cfg.Env.ServiceName))
	}

	return logger, nil
}

// secretKeys are attribute keys whose values grant access to a merchant account.
var secretKeys = map[string]struct{}{
	"password":          {},
	"temporarypassword": {},
	"passwordhash":      {},
	"token":             {},
	"setuptoken":        {},
	"setuplink":         {},
	"authorization":     {},
}

const redacted = "[REDACTED]"

// redactSecrets masks secret attributes at any group depth. Keys match case-insensitively
// and ignore underscores, so setup_link and setupLink are both caught.
func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	key := strings.ReplaceAll(strings.ToLower(a.Key), "_", "")
	if _, ok := secretKeys[key]; ok && a.Value.Kind() != slog.KindGroup {
		return slog.String(a.Key, redacted)
	}

	return a
}

// parseLogLevel converts string log level to slog.Level. Empty means info.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.Errorf("unknown log level: %s", level)
	}
}
