// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"onboarding/config"
	"onboarding/internal/delivery"
	deliverycontext "onboarding/internal/delivery/context"
	"onboarding/internal/domain/lifecycle"
	"onboarding/internal/errors"
	"onboarding/internal/usecase"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
)

const (
	defaultPurgeSchedule = "@hourly"
	purgeJobTimeout      = 5 * time.Minute
)

// Scheduler owns the cron runner for the setup-token purge.
type Scheduler struct {
	cron    *cron.Cron
	enabled bool
	purge   usecase.TokenPurgeUsecase
	logger  *slog.Logger
}

// SchedulerParams holds dependencies for the Scheduler, injected by Fx.
type SchedulerParams struct {
	fx.In

	Lc     fx.Lifecycle
	Cfg    *config.Config
	Logger *slog.Logger
	Purge  usecase.TokenPurgeUsecase
}

// NewScheduler registers the purge job. An invalid schedule fails start-up.
func NewScheduler(params SchedulerParams) (delivery.Delivery, error) {
	s, err := newScheduler(params.Cfg, params.Purge, params.Logger)
	if err != nil {
		return nil, err
	}

	params.Lc.Append(fx.Hook{
		OnStop: s.stop,
	})

	return s, nil
}

func newScheduler(cfg *config.Config, purge usecase.TokenPurgeUsecase, logger *slog.Logger) (*Scheduler, error) {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger))),
		purge:  purge,
		logger: logger,
	}

	schedule := defaultPurgeSchedule
	if cfg != nil && cfg.TokenPurge != nil {
		s.enabled = cfg.TokenPurge.Enabled
		if cfg.TokenPurge.Schedule != "" {
			schedule = cfg.TokenPurge.Schedule
		}
	}
	if !s.enabled {
		return s, nil
	}

	if _, err := s.cron.AddFunc(schedule, s.runPurge); err != nil {
		return nil, errors.Wrapf(err, "invalid token purge schedule %q", schedule)
	}
	logger.Info("Scheduled setup token purge", slog.String("schedule", schedule))

	return s, nil
}

// Serve starts the cron runner and returns; jobs run on the runner's own goroutine.
func (s *Scheduler) Serve(ctx context.Context) error {
	if !s.enabled {
		s.logger.Info("Setup token purge disabled")

		return nil
	}

	s.cron.Start()

	return nil
}

func (s *Scheduler) runPurge() {
	jobID := uuid.New().String()
	logger := s.logger.With(slog.String("request_id", jobID), slog.String("job", "token_purge"))

	ctx, cancel := context.WithTimeout(context.Background(), purgeJobTimeout)
	defer cancel()
	ctx = deliverycontext.WithRequestID(ctx, jobID)
	ctx = deliverycontext.WithLogger(ctx, logger)

	if _, err := s.purge.PurgeStaleTokens(ctx); err != nil {
		logger.Error("Setup token purge failed", slog.Any("error", err))
	}
}

// stop waits for a running job to finish, bounded by ctx.
func (s *Scheduler) stop(ctx context.Context) error {
	stopCtx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	s.logger.Info("Stopping scheduler")

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-stopCtx.Done():
		return errors.WithStack(stopCtx.Err())
	}
}
