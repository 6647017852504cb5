package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"onboarding/config"
	"onboarding/internal/domain/lifecycle"
	"onboarding/internal/errors"
	"onboarding/internal/infra/metrics"
	"onboarding/internal/infra/persistence/model"

	"github.com/prometheus/client_golang/prometheus/collectors"
	pgLib "github.com/slighter12/go-lib/database/postgres"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const (
	poolCheckInterval = 5 * time.Second
	poolWaitWarnAfter = 50 * time.Millisecond
)

type Params struct {
	fx.In
	fx.Lifecycle

	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

// New opens the merchant database. On start it pings, optionally migrates, exports
// pool statistics when a metrics registry is present, and starts the pool watcher.
func New(params Params) (*gorm.DB, error) {
	db, err := pgLib.New(params.Config.Postgres)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	db = db.Session(&gorm.Session{
		// Multi-step writes use TransactionManager; single statements need no implicit tx.
		SkipDefaultTransaction: true,
		Logger:                 newSQLLogger(params.Logger, params.Config),
	})

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "postgres sql.DB")
	}

	if params.Metrics != nil {
		if err := params.Metrics.Registry().Register(collectors.NewDBStatsCollector(sqlDB, "onboarding")); err != nil {
			return nil, errors.Wrap(err, "register db stats collector")
		}
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())

	params.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ctx, cancel := context.WithTimeout(startCtx, lifecycle.DefaultTimeout)
			defer cancel()

			if err := sqlDB.PingContext(ctx); err != nil {
				return errors.Wrap(err, "ping postgres")
			}

			if params.Config.Env.AutoMigrate {
				if err := Migrate(ctx, db); err != nil {
					return err
				}
			}

			go watchPool(watchCtx, params.Logger, sqlDB.Stats, poolCheckInterval)

			return nil
		},
		OnStop: func(_ context.Context) error {
			stopWatch()

			return sqlDB.Close()
		},
	})

	return db, nil
}

// Migrate creates or updates the merchants, setup_tokens and merchant_documents tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return errors.Wrap(err, "migrate schema")
	}

	return nil
}

// watchPool logs whenever callers had to wait for a connection since the last check.
// Bulk actions and the purge job share the pool with request traffic, so waits show up
// there first.
func watchPool(ctx context.Context, logger *slog.Logger, stats func() sql.DBStats, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := stats()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := stats()
			if level, attrs, waited := poolWait(prev, cur); waited {
				logger.LogAttrs(ctx, level, "[DB] Pool wait", attrs...)
			}
			prev = cur
		}
	}
}

func poolWait(prev, cur sql.DBStats) (slog.Level, []slog.Attr, bool) {
	waits := cur.WaitCount - prev.WaitCount
	if waits <= 0 {
		return 0, nil, false
	}

	waited := cur.WaitDuration - prev.WaitDuration
	attrs := []slog.Attr{
		slog.Int64("waits", waits),
		slog.Duration("waited", waited),
		slog.Duration("avg_wait", waited/time.Duration(waits)),
		slog.Int("open", cur.OpenConnections),
		slog.Int("in_use", cur.InUse),
		slog.Int("idle", cur.Idle),
		slog.Int("max_open", cur.MaxOpenConnections),
	}

	level := slog.LevelDebug
	if waited >= poolWaitWarnAfter {
		level = slog.LevelWarn
	}

	return level, attrs, true
}
