package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"onboarding/config"
	deliverycontext "onboarding/internal/delivery/context"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultSlowQueryThreshold = 200 * time.Millisecond
	maxLoggedSQLLength        = 2048
)

// sqlLogger routes GORM logs to the request-scoped slog logger.
// Bound values are dropped from logged SQL unless debug is on, since
// merchant rows carry password hashes and token digests.
type sqlLogger struct {
	logger         *slog.Logger
	level          logger.LogLevel
	slowThreshold  time.Duration
	withParameters bool
}

var (
	_ logger.Interface  = (*sqlLogger)(nil)
	_ gorm.ParamsFilter = (*sqlLogger)(nil)
)

func newSQLLogger(baseLogger *slog.Logger, cfg *config.Config) *sqlLogger {
	l := &sqlLogger{
		logger:        baseLogger,
		level:         logger.Warn,
		slowThreshold: defaultSlowQueryThreshold,
	}
	if cfg != nil && cfg.Env.Debug {
		l.level = logger.Info
		l.withParameters = true
	}

	return l
}

func (l *sqlLogger) LogMode(level logger.LogLevel) logger.Interface {
	cloned := *l
	cloned.level = level

	return &cloned
}

// ParamsFilter lets GORM render placeholders instead of values.
func (l *sqlLogger) ParamsFilter(_ context.Context, sql string, params ...any) (string, []any) {
	if l.withParameters {
		return sql, params
	}

	return sql, nil
}

func (l *sqlLogger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, logger.Info, slog.LevelInfo, msg, args...)
}

func (l *sqlLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, logger.Warn, slog.LevelWarn, msg, args...)
}

func (l *sqlLogger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, logger.Error, slog.LevelError, msg, args...)
}

func (l *sqlLogger) log(ctx context.Context, threshold logger.LogLevel, level slog.Level, msg string, args ...any) {
	if l.level < threshold || l.logger == nil {
		return
	}

	l.loggerFor(ctx).LogAttrs(ctx, level, "[DB] "+fmt.Sprintf(msg, args...))
}

func (l *sqlLogger) Trace(ctx context.Context, begin time.Time, sqlAndRowsFn func() (string, int64), err error) {
	if l.logger == nil || l.level == logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		attrs := append(queryAttrs(sqlAndRowsFn, elapsed), slog.String("error", err.Error()))
		l.loggerFor(ctx).LogAttrs(ctx, slog.LevelError, "[DB] Query failed", attrs...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= logger.Warn:
		attrs := append(queryAttrs(sqlAndRowsFn, elapsed), slog.Duration("slowThreshold", l.slowThreshold))
		l.loggerFor(ctx).LogAttrs(ctx, slog.LevelWarn, "[DB] Slow query", attrs...)
	case l.level >= logger.Info:
		l.loggerFor(ctx).LogAttrs(ctx, slog.LevelDebug, "[DB] Query", queryAttrs(sqlAndRowsFn, elapsed)...)
	}
}

func (l *sqlLogger) loggerFor(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, l.logger)
}

func queryAttrs(sqlAndRowsFn func() (string, int64), elapsed time.Duration) []slog.Attr {
	sql, rows := sqlAndRowsFn()
	if len(sql) > maxLoggedSQLLength {
		sql = sql[:maxLoggedSQLLength] + "..."
	}

	return []slog.Attr{
		slog.Duration("elapsed", elapsed),
		slog.Int64("rows", rows),
		slog.String("sql", sql),
	}
}
