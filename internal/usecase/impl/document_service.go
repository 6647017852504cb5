package impl

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"onboarding/config"
	deliverycontext "onboarding/internal/delivery/context"
	"onboarding/internal/domain/entity"
	domainerrors "onboarding/internal/domain/errors"
	"onboarding/internal/domain/repository"
	"onboarding/internal/domain/service"
	"onboarding/internal/domain/verification"
	"onboarding/internal/errors"
	"onboarding/internal/usecase"
	"onboarding/internal/validator"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

// documentService implements the DocumentUsecase interface.
type documentService struct {
	txManager   repository.TransactionManager
	docRepo     repository.DocumentRepository
	validator   *validator.Validator
	metrics     service.MetricsRecorder
	maxAttempts int
	now         func() time.Time
	logger      *slog.Logger
}

// DocumentServiceParams holds dependencies for DocumentService, injected by Fx.
type DocumentServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	DocRepo   repository.DocumentRepository
	Validator *validator.Validator
	Metrics   service.MetricsRecorder
	Config    *config.Config
	Logger    *slog.Logger
}

// NewDocumentService is the constructor for documentService.
func NewDocumentService(params DocumentServiceParams) usecase.DocumentUsecase {
	maxAttempts := defaultMerchantWriteAttempts
	if params.Config != nil && params.Config.Documents != nil && params.Config.Documents.MaxAttempts > 0 {
		maxAttempts = params.Config.Documents.MaxAttempts
	}

	return &documentService{
		txManager:   params.TxManager,
		docRepo:     params.DocRepo,
		validator:   params.Validator,
		metrics:     params.Metrics,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      params.Logger,
	}
}

func (srv *documentService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// transitionStep is one verification change applied while recomputing the aggregate.
type transitionStep struct {
	from entity.VerificationStatus
	to   entity.VerificationStatus
}

// SubmitDocument stores a document in pending_review and recomputes the merchant's aggregate.
func (srv *documentService) SubmitDocument(ctx context.Context, input *usecase.SubmitDocumentInput) (*usecase.DocumentChangeOutput, error) {
	if input == nil {
		input = &usecase.SubmitDocumentInput{}
	}
	normalized := *input
	normalized.DocumentType = strings.TrimSpace(normalized.DocumentType)
	normalized.FileURL = strings.TrimSpace(normalized.FileURL)
	if err := srv.validator.Validate(&normalized); err != nil {
		return nil, err
	}

	document := &entity.Document{
		ID:           uuid.New(),
		MerchantID:   normalized.MerchantID,
		DocumentType: normalized.DocumentType,
		FileURL:      normalized.FileURL,
		Status:       entity.DocumentPendingReview,
		UploadedAt:   srv.now(),
	}

	output, steps, err := srv.withMerchantRetry(ctx, true, func(repos repository.TxRepositories) (*entity.Document, *entity.Merchant, error) {
		merchant, err := repos.Merchants().FindByID(ctx, document.MerchantID)
		if err != nil {
			return nil, nil, err
		}
		if err := repos.Documents().Create(ctx, document); err != nil {
			return nil, nil, err
		}

		return document, merchant, nil
	})
	if err != nil {
		return nil, err
	}

	srv.recordSteps(steps)
	srv.log(ctx).Info("Document submitted",
		slog.String("documentID", document.ID.String()),
		slog.String("merchantID", document.MerchantID.String()),
		slog.String("documentStatus", output.DocumentStatus.String()),
	)

	return output, nil
}

// ReviewDocument records an administrator's decision and recomputes the merchant's aggregate.
func (srv *documentService) ReviewDocument(ctx context.Context, input *usecase.ReviewDocumentInput) (*usecase.DocumentChangeOutput, error) {
	if input == nil {
		input = &usecase.ReviewDocumentInput{}
	}
	normalized := *input
	normalized.Reviewer = strings.TrimSpace(normalized.Reviewer)
	if err := srv.validator.Validate(&normalized); err != nil {
		return nil, err
	}

	output, steps, err := srv.withMerchantRetry(ctx, false, func(repos repository.TxRepositories) (*entity.Document, *entity.Merchant, error) {
		docRepo := repos.Documents()

		document, err := docRepo.FindByID(ctx, normalized.DocumentID)
		if err != nil {
			return nil, nil, err
		}
		reviewedAt := srv.now()
		document.Status = normalized.Status
		document.ReviewedBy = normalized.Reviewer
		document.ReviewedAt = &reviewedAt
		if err := docRepo.UpdateReview(ctx, document); err != nil {
			return nil, nil, err
		}

		merchant, err := repos.Merchants().FindByID(ctx, document.MerchantID)
		if err != nil {
			return nil, nil, err
		}

		return document, merchant, nil
	})
	if err != nil {
		return nil, err
	}

	srv.metrics.DocumentReviewed(string(normalized.Status))
	srv.recordSteps(steps)
	srv.log(ctx).Info("Document reviewed",
		slog.String("documentID", normalized.DocumentID.String()),
		slog.String("status", string(normalized.Status)),
		slog.String("verificationStatus", output.VerificationStatus.String()),
	)

	return output, nil
}

// ListDocuments returns a merchant's documents in upload order.
func (srv *documentService) ListDocuments(ctx context.Context, merchantID uuid.UUID) ([]*entity.Document, error) {
	var documents []*entity.Document
	err := srv.txManager.Execute(ctx, func(repos repository.TxRepositories) error {
		if _, err := repos.Merchants().FindByID(ctx, merchantID); err != nil {
			return err
		}

		var err error
		documents, err = repos.Documents().ListByMerchantID(ctx, merchantID)

		return err
	})
	if err != nil {
		return nil, translateDocumentError(err)
	}

	return documents, nil
}

// withMerchantRetry runs mutate and the aggregate recomputation in one transaction.
// The merchant write is always version-guarded, so two document changes racing on the
// same merchant serialize; the loser re-runs from scratch. uploaded marks a new document.
func (srv *documentService) withMerchantRetry(
	ctx context.Context,
	uploaded bool,
	mutate func(repository.TxRepositories) (*entity.Document, *entity.Merchant, error),
) (*usecase.DocumentChangeOutput, []transitionStep, error) {
	for attempt := 1; ; attempt++ {
		var (
			output *usecase.DocumentChangeOutput
			steps  []transitionStep
		)

		err := srv.txManager.Execute(ctx, func(repos repository.TxRepositories) error {
			document, merchant, err := mutate(repos)
			if err != nil {
				return err
			}

			documents, err := repos.Documents().ListByMerchantID(ctx, merchant.ID)
			if err != nil {
				return err
			}
			steps, err = applyAggregate(merchant, documents, uploaded)
			if err != nil {
				return err
			}
			if err := repos.Merchants().UpdateIfVersion(ctx, merchant); err != nil {
				return err
			}

			output = &usecase.DocumentChangeOutput{
				Document:           document,
				DocumentStatus:     merchant.DocumentStatus,
				VerificationStatus: merchant.VerificationStatus,
			}

			return nil
		})
		if err == nil {
			return output, steps, nil
		}

		if errors.Is(err, repository.ErrVersionConflict) && attempt < srv.maxAttempts {
			srv.log(ctx).Debug("Merchant changed during document update, retrying", slog.Int("attempt", attempt))

			continue
		}

		return nil, nil, translateDocumentError(err)
	}
}

// applyAggregate recomputes the document status and walks the verification status toward
// the target it implies, one legal step at a time.
func applyAggregate(merchant *entity.Merchant, documents []*entity.Document, uploaded bool) ([]transitionStep, error) {
	statuses := make([]entity.DocumentReviewStatus, 0, len(documents))
	for _, document := range documents {
		statuses = append(statuses, document.Status)
	}
	aggregate := verification.Aggregate(statuses)
	previous := merchant.DocumentStatus
	merchant.DocumentStatus = aggregate
	if !verification.Reopens(previous, aggregate, uploaded) {
		return nil, nil
	}

	target, ok := verification.TargetFor(merchant.VerificationStatus, aggregate)
	if !ok {
		return nil, nil
	}

	path, err := verification.Path(merchant.VerificationStatus, target)
	if err != nil {
		return nil, err
	}

	steps := make([]transitionStep, 0, len(path))
	for _, next := range path {
		if _, err := verification.Transition(merchant.VerificationStatus, next); err != nil {
			return nil, err
		}
		steps = append(steps, transitionStep{from: merchant.VerificationStatus, to: next})
		merchant.VerificationStatus = next
	}

	return steps, nil
}

func (srv *documentService) recordSteps(steps []transitionStep) {
	for _, step := range steps {
		srv.metrics.VerificationChanged(step.from.String(), step.to.String())
	}
}

func translateDocumentError(err error) error {
	var appErr domainerrors.AppError
	switch {
	case errors.Is(err, repository.ErrMerchantNotFound):
		return domainerrors.ErrMerchantNotFound
	case errors.Is(err, repository.ErrDocumentNotFound):
		return domainerrors.ErrDocumentNotFound
	case errors.Is(err, repository.ErrVersionConflict):
		return domainerrors.ErrVersionConflict
	case errors.As(err, &appErr):
		return err
	default:
		return errors.Wrap(domainerrors.ErrTransactionFailed, err.Error())
	}
}
