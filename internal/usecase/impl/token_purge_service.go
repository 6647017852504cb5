package impl

import (
	"context"
	"log/slog"
	"time"

	"onboarding/config"
	deliverycontext "onboarding/internal/delivery/context"
	"onboarding/internal/domain/repository"
	"onboarding/internal/domain/service"
	"onboarding/internal/errors"
	"onboarding/internal/usecase"

	"go.uber.org/fx"
)

const defaultPurgeRetention = 7 * 24 * time.Hour

// tokenPurgeService deletes setup tokens that were consumed or expired longer ago than the retention.
type tokenPurgeService struct {
	tokenRepo repository.SetupTokenRepository
	metrics   service.MetricsRecorder
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// TokenPurgeServiceParams holds dependencies for TokenPurgeService, injected by Fx.
type TokenPurgeServiceParams struct {
	fx.In

	TokenRepo repository.SetupTokenRepository
	Metrics   service.MetricsRecorder
	Config    *config.Config
	Logger    *slog.Logger
}

// NewTokenPurgeService is the constructor for tokenPurgeService.
func NewTokenPurgeService(params TokenPurgeServiceParams) usecase.TokenPurgeUsecase {
	retention := defaultPurgeRetention
	if params.Config != nil && params.Config.TokenPurge != nil && params.Config.TokenPurge.Retention > 0 {
		retention = params.Config.TokenPurge.Retention
	}

	return &tokenPurgeService{
		tokenRepo: params.TokenRepo,
		metrics:   params.Metrics,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    params.Logger,
	}
}

// PurgeStaleTokens removes redeemed and expired tokens past the retention window.
// Live tokens are never touched.
func (srv *tokenPurgeService) PurgeStaleTokens(ctx context.Context) (int64, error) {
	cutoff := srv.now().Add(-srv.retention)

	deleted, err := srv.tokenRepo.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to purge stale setup tokens")
	}

	srv.metrics.SetupTokensPurged(deleted)
	deliverycontext.GetLoggerOrDefault(ctx, srv.logger).Info("Purged stale setup tokens",
		slog.Int64("deleted", deleted),
		slog.Time("cutoff", cutoff),
	)

	return deleted, nil
}
