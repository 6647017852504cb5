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
	"onboarding/internal/errors"
	"onboarding/internal/usecase"
	"onboarding/internal/validator"

	"go.uber.org/fx"
)

const defaultMerchantWriteAttempts = 3

// setupService implements the SetupUsecase interface.
type setupService struct {
	txManager   repository.TransactionManager
	tokenRepo   repository.SetupTokenRepository
	issuer      service.CredentialIssuer
	validator   *validator.Validator
	metrics     service.MetricsRecorder
	maxAttempts int
	now         func() time.Time
	logger      *slog.Logger
}

// SetupServiceParams holds dependencies for SetupService, injected by Fx.
type SetupServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	TokenRepo repository.SetupTokenRepository
	Issuer    service.CredentialIssuer
	Validator *validator.Validator
	Metrics   service.MetricsRecorder
	Config    *config.Config
	Logger    *slog.Logger
}

// NewSetupService is the constructor for setupService.
func NewSetupService(params SetupServiceParams) usecase.SetupUsecase {
	maxAttempts := defaultMerchantWriteAttempts
	if params.Config != nil && params.Config.Documents != nil && params.Config.Documents.MaxAttempts > 0 {
		maxAttempts = params.Config.Documents.MaxAttempts
	}

	return &setupService{
		txManager:   params.TxManager,
		tokenRepo:   params.TokenRepo,
		issuer:      params.Issuer,
		validator:   params.Validator,
		metrics:     params.Metrics,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      params.Logger,
	}
}

func (srv *setupService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// ValidateToken checks the token is known, unexpired and unconsumed, in that order,
// and returns the redacted merchant view.
func (srv *setupService) ValidateToken(ctx context.Context, rawToken string) (*entity.SetupInfo, error) {
	token, err := srv.checkToken(ctx, srv.tokenRepo, rawToken)
	if err != nil {
		return nil, err
	}

	var info *entity.SetupInfo
	err = srv.txManager.Execute(ctx, func(repos repository.TxRepositories) error {
		merchant, err := repos.Merchants().FindByID(ctx, token.MerchantID)
		if err != nil {
			return err
		}
		info = merchant.SetupInfo()

		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrMerchantNotFound) {
			return nil, domainerrors.ErrTokenNotFound
		}

		return nil, errors.Wrap(err, "failed to load merchant for setup token")
	}

	return info, nil
}

// CompleteSetup redeems the token and stores the new password. The token is consumed with a
// conditional update inside the same transaction as the merchant write, so of two racing
// calls exactly one commits.
func (srv *setupService) CompleteSetup(ctx context.Context, input *usecase.CompleteSetupInput) (*usecase.CompleteSetupOutput, error) {
	if input == nil {
		input = &usecase.CompleteSetupInput{}
	}

	token, err := srv.checkToken(ctx, srv.tokenRepo, input.Token)
	if err != nil {
		return nil, err
	}
	if err := srv.issuer.ValidatePasswordStrength(input.NewPassword); err != nil {
		return nil, err
	}
	details := normalizeSetupDetails(input)
	if err := srv.validator.Validate(details); err != nil {
		return nil, err
	}

	passwordHash, err := srv.issuer.Hash(input.NewPassword)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
	}

	completedAt := srv.now()
	err = srv.txManager.Execute(ctx, func(repos repository.TxRepositories) error {
		tokenRepo := repos.SetupTokens()

		consumed, err := tokenRepo.Consume(ctx, token.TokenHash, completedAt)
		if err != nil {
			return err
		}
		if !consumed {
			// Lost the race or crossed the expiry; re-read to report which.
			_, err := srv.checkToken(ctx, tokenRepo, input.Token)
			if err == nil {
				err = srv.reject(domainerrors.ErrTokenAlreadyConsumed)
			}

			return err
		}

		return srv.applySetup(ctx, repos.Merchants(), token, details, passwordHash)
	})
	if err != nil {
		var appErr domainerrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}

		return nil, errors.Wrap(domainerrors.ErrTransactionFailed, err.Error())
	}

	srv.metrics.SetupCompleted()
	srv.log(ctx).Info("Merchant setup completed", slog.String("merchantID", token.MerchantID.String()))

	return &usecase.CompleteSetupOutput{
		MerchantID:     token.MerchantID,
		SetupCompleted: true,
		CompletedAt:    completedAt,
	}, nil
}

// applySetup writes the password and details under the merchant's version guard.
// A conflict with a concurrent document or bulk change re-reads and retries.
func (srv *setupService) applySetup(
	ctx context.Context,
	merchantRepo repository.MerchantRepository,
	token *entity.SetupToken,
	details *usecase.CompleteSetupInput,
	passwordHash string,
) error {
	for attempt := 1; ; attempt++ {
		merchant, err := merchantRepo.FindByID(ctx, token.MerchantID)
		if err != nil {
			if errors.Is(err, repository.ErrMerchantNotFound) {
				return domainerrors.ErrTokenNotFound
			}

			return err
		}

		merchant.PasswordHash = passwordHash
		merchant.SetupCompleted = true
		if details.Description != nil {
			merchant.Description = *details.Description
		}
		if details.Website != nil {
			merchant.Website = *details.Website
		}
		if len(details.BusinessHours) > 0 {
			merchant.BusinessHours = details.BusinessHours
		}

		err = merchantRepo.UpdateIfVersion(ctx, merchant)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt >= srv.maxAttempts {
			if errors.Is(err, repository.ErrVersionConflict) {
				return domainerrors.ErrVersionConflict
			}

			return err
		}
	}
}

// checkToken resolves a raw token and applies the not-found, expired, consumed checks.
func (srv *setupService) checkToken(ctx context.Context, repo repository.SetupTokenRepository, rawToken string) (*entity.SetupToken, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, srv.reject(domainerrors.ErrTokenNotFound)
	}

	token, err := repo.FindByHash(ctx, srv.issuer.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrSetupTokenNotFound) {
			return nil, srv.reject(domainerrors.ErrTokenNotFound)
		}

		return nil, errors.Wrap(err, "failed to find setup token")
	}

	if token.IsExpired(srv.now()) {
		return nil, srv.reject(domainerrors.ErrTokenExpired)
	}
	if token.IsConsumed() {
		return nil, srv.reject(domainerrors.ErrTokenAlreadyConsumed)
	}

	return token, nil
}

func (srv *setupService) reject(kind *domainerrors.BaseError) error {
	srv.metrics.SetupTokenRejected(kind.ErrorCode())

	return kind
}

func normalizeSetupDetails(input *usecase.CompleteSetupInput) *usecase.CompleteSetupInput {
	out := *input
	if out.Description != nil {
		d := strings.TrimSpace(*out.Description)
		out.Description = &d
	}
	if out.Website != nil {
		w := strings.TrimSpace(*out.Website)
		out.Website = &w
	}

	return &out
}
