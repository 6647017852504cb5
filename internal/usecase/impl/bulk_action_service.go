package impl

import (
	"context"
	"log/slog"

	"onboarding/config"
	deliverycontext "onboarding/internal/delivery/context"
	"onboarding/internal/domain/entity"
	domainerrors "onboarding/internal/domain/errors"
	"onboarding/internal/domain/repository"
	"onboarding/internal/domain/service"
	"onboarding/internal/domain/verification"
	"onboarding/internal/errors"
	"onboarding/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBulkMaxMerchants = 500
	defaultBulkConcurrency  = 8
)

// bulkActionService implements the BulkActionUsecase interface.
type bulkActionService struct {
	merchantRepo repository.MerchantRepository
	metrics      service.MetricsRecorder
	maxMerchants int
	concurrency  int
	maxAttempts  int
	logger       *slog.Logger
}

// BulkActionServiceParams holds dependencies for BulkActionService, injected by Fx.
type BulkActionServiceParams struct {
	fx.In

	MerchantRepo repository.MerchantRepository
	Metrics      service.MetricsRecorder
	Config       *config.Config
	Logger       *slog.Logger
}

// NewBulkActionService is the constructor for bulkActionService.
func NewBulkActionService(params BulkActionServiceParams) usecase.BulkActionUsecase {
	srv := &bulkActionService{
		merchantRepo: params.MerchantRepo,
		metrics:      params.Metrics,
		maxMerchants: defaultBulkMaxMerchants,
		concurrency:  defaultBulkConcurrency,
		maxAttempts:  defaultMerchantWriteAttempts,
		logger:       params.Logger,
	}

	if cfg := params.Config; cfg != nil && cfg.Bulk != nil {
		if cfg.Bulk.MaxMerchants > 0 {
			srv.maxMerchants = cfg.Bulk.MaxMerchants
		}
		if cfg.Bulk.Concurrency > 0 {
			srv.concurrency = cfg.Bulk.Concurrency
		}
		if cfg.Bulk.MaxAttempts > 0 {
			srv.maxAttempts = cfg.Bulk.MaxAttempts
		}
	}

	return srv
}

func (srv *bulkActionService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// ApplyBulkAction applies the action to each distinct merchant independently.
// Results keep the order of first appearance in the request.
func (srv *bulkActionService) ApplyBulkAction(ctx context.Context, request *entity.BulkActionRequest) (*entity.BulkActionResult, error) {
	if request == nil || !request.Action.IsValid() {
		return nil, domainerrors.ErrInvalidBulkAction.WithDetails("action must be verify or reject")
	}

	ids := dedupeIDs(request.MerchantIDs)
	if len(ids) == 0 {
		return nil, domainerrors.NewValidationError("merchantIds", "required")
	}
	if len(ids) > srv.maxMerchants {
		return nil, domainerrors.NewValidationError("merchantIds", "max")
	}

	results := make([]entity.BulkItemResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(srv.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = srv.applyOne(gctx, id, request.Action)

			return nil
		})
	}
	_ = g.Wait()

	modified := 0
	for _, result := range results {
		if result.Outcome == entity.OutcomeApplied {
			modified++
		}
		srv.metrics.BulkOutcome(string(request.Action), string(result.Outcome))
	}

	srv.log(ctx).Info("Bulk action applied",
		slog.String("action", string(request.Action)),
		slog.String("actor", request.Actor),
		slog.Int("requested", len(ids)),
		slog.Int("modified", modified),
	)

	return &entity.BulkActionResult{ModifiedCount: modified, Results: results}, nil
}

// applyOne transitions a single merchant, retrying when a concurrent write bumped its version.
func (srv *bulkActionService) applyOne(ctx context.Context, id uuid.UUID, action entity.BulkAction) entity.BulkItemResult {
	target := action.Target()
	result := entity.BulkItemResult{MerchantID: id}

	for attempt := 1; ; attempt++ {
		merchant, err := srv.merchantRepo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrMerchantNotFound) {
				result.Outcome = entity.OutcomeSkippedNotFound

				return result
			}
			srv.log(ctx).Error("Failed to load merchant for bulk action",
				slog.String("merchantID", id.String()),
				slog.Any("error", err),
			)
			result.Outcome = entity.OutcomeSkippedInvalidTransition

			return result
		}

		from := merchant.VerificationStatus
		result.Status = from

		changed, err := verification.Transition(from, target)
		if err != nil {
			result.Outcome = entity.OutcomeSkippedInvalidTransition

			return result
		}
		if !changed {
			result.Outcome = entity.OutcomeSkippedAlreadyInState

			return result
		}

		merchant.VerificationStatus = target
		err = srv.merchantRepo.UpdateIfVersion(ctx, merchant)
		if err == nil {
			srv.metrics.VerificationChanged(from.String(), target.String())
			result.Outcome = entity.OutcomeApplied
			result.Status = target

			return result
		}

		if errors.Is(err, repository.ErrVersionConflict) && attempt < srv.maxAttempts {
			continue
		}

		srv.log(ctx).Warn("Bulk action could not update merchant",
			slog.String("merchantID", id.String()),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		result.Outcome = entity.OutcomeSkippedInvalidTransition

		return result
	}
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}
