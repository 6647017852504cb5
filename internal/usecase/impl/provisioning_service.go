// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"net/url"
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

	"github.com/google/uuid"
	"go.uber.org/fx"
)

const defaultSetupTokenTTL = 72 * time.Hour

// provisioningService implements the ProvisioningUsecase interface.
type provisioningService struct {
	txManager     repository.TransactionManager
	merchantRepo  repository.MerchantRepository
	issuer        service.CredentialIssuer
	qrcode        service.QRCodeService
	dispatcher    usecase.WelcomeDispatcher
	validator     *validator.Validator
	metrics       service.MetricsRecorder
	tokenTTL      time.Duration
	setupBaseURL  string
	defaultStatus entity.VerificationStatus
	now           func() time.Time
	logger        *slog.Logger
}

// ProvisioningServiceParams holds dependencies for ProvisioningService, injected by Fx.
type ProvisioningServiceParams struct {
	fx.In

	TxManager    repository.TransactionManager
	MerchantRepo repository.MerchantRepository
	Issuer       service.CredentialIssuer
	QRCode       service.QRCodeService
	Dispatcher   usecase.WelcomeDispatcher
	Validator    *validator.Validator
	Metrics      service.MetricsRecorder
	Config       *config.Config
	Logger       *slog.Logger
}

// NewProvisioningService is the constructor for provisioningService.
func NewProvisioningService(params ProvisioningServiceParams) usecase.ProvisioningUsecase {
	srv := &provisioningService{
		txManager:     params.TxManager,
		merchantRepo:  params.MerchantRepo,
		issuer:        params.Issuer,
		qrcode:        params.QRCode,
		dispatcher:    params.Dispatcher,
		validator:     params.Validator,
		metrics:       params.Metrics,
		tokenTTL:      defaultSetupTokenTTL,
		defaultStatus: entity.VerificationPending,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        params.Logger,
	}

	if cfg := params.Config; cfg != nil && cfg.Onboarding != nil {
		if cfg.Onboarding.TokenTTL > 0 {
			srv.tokenTTL = cfg.Onboarding.TokenTTL
		}
		srv.setupBaseURL = cfg.Onboarding.SetupBaseURL
		if status := entity.VerificationStatus(cfg.Onboarding.DefaultVerificationStatus); status.IsValid() {
			srv.defaultStatus = status
		}
	}

	return srv
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *provisioningService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// CreateMerchantAccount validates the input, creates the merchant and its setup token in
// one transaction, then dispatches the welcome event in the background.
func (srv *provisioningService) CreateMerchantAccount(ctx context.Context, input *usecase.CreateMerchantInput) (*usecase.CreateMerchantOutput, error) {
	normalized := normalizeCreateInput(input)
	if err := srv.validator.Validate(normalized); err != nil {
		srv.metrics.ProvisioningFailed(domainerrors.ErrValidationFailed.ErrorCode())

		return nil, err
	}

	exists, err := srv.merchantRepo.ExistsByEmail(ctx, normalized.Email)
	if err != nil {
		return nil, srv.fail(ctx, domainerrors.ErrProvisioningFailed, errors.Wrap(err, "failed to check email uniqueness"))
	}
	if exists {
		return nil, srv.fail(ctx, domainerrors.ErrDuplicateEmail, nil)
	}

	// Credentials are generated and hashed before the transaction so bcrypt never holds a connection.
	tempPassword, err := srv.issuer.GenerateTemporaryPassword()
	if err != nil {
		return nil, srv.fail(ctx, domainerrors.ErrCredentialGenerationFailed, err)
	}
	passwordHash, err := srv.issuer.Hash(tempPassword)
	if err != nil {
		return nil, srv.fail(ctx, domainerrors.ErrPasswordHashFailed, err)
	}
	rawToken, tokenHash, err := srv.issuer.GenerateSetupToken()
	if err != nil {
		return nil, srv.fail(ctx, domainerrors.ErrCredentialGenerationFailed, err)
	}

	now := srv.now()
	merchant := srv.buildMerchant(normalized, passwordHash, now)
	token := &entity.SetupToken{
		TokenHash:  tokenHash,
		MerchantID: merchant.ID,
		IssuedAt:   now,
		ExpiresAt:  now.Add(srv.tokenTTL),
	}

	err = srv.txManager.Execute(ctx, func(repos repository.TxRepositories) error {
		if err := repos.Merchants().Create(ctx, merchant); err != nil {
			return err
		}

		return repos.SetupTokens().Create(ctx, token)
	})
	if err != nil {
		if errors.Is(err, repository.ErrMerchantEmailExists) {
			return nil, srv.fail(ctx, domainerrors.ErrDuplicateEmail, nil)
		}

		return nil, srv.fail(ctx, domainerrors.ErrProvisioningFailed, err)
	}

	srv.metrics.MerchantProvisioned()
	srv.log(ctx).Info("Merchant provisioned",
		slog.String("merchantID", merchant.ID.String()),
		slog.String("verificationStatus", merchant.VerificationStatus.String()),
	)

	setupLink := srv.buildSetupLink(rawToken)
	srv.dispatcher.Dispatch(ctx, srv.buildWelcomeEvent(ctx, merchant, setupLink, token.ExpiresAt))

	return &usecase.CreateMerchantOutput{
		Merchant:          merchant.Summary(),
		TemporaryPassword: tempPassword,
		SetupLink:         setupLink,
		SetupExpiresAt:    token.ExpiresAt,
	}, nil
}

// GetMerchant returns the merchant summary without credential material.
func (srv *provisioningService) GetMerchant(ctx context.Context, merchantID uuid.UUID) (*entity.MerchantSummary, error) {
	merchant, err := srv.merchantRepo.FindByID(ctx, merchantID)
	if err != nil {
		if errors.Is(err, repository.ErrMerchantNotFound) {
			return nil, domainerrors.ErrMerchantNotFound
		}

		return nil, errors.Wrap(err, "failed to find merchant")
	}

	return merchant.Summary(), nil
}

func (srv *provisioningService) fail(ctx context.Context, kind *domainerrors.BaseError, cause error) error {
	srv.metrics.ProvisioningFailed(kind.ErrorCode())
	if cause == nil {
		return kind
	}

	srv.log(ctx).Error("Merchant provisioning failed",
		slog.String("code", kind.ErrorCode()),
		slog.Any("error", cause),
	)

	return errors.Wrap(kind, cause.Error())
}

func (srv *provisioningService) buildMerchant(input *usecase.CreateMerchantInput, passwordHash string, now time.Time) *entity.Merchant {
	status := input.VerificationStatus
	if status == "" {
		status = srv.defaultStatus
	}
	hours := input.BusinessHours
	if len(hours) == 0 {
		hours = entity.DefaultBusinessHours()
	}

	return &entity.Merchant{
		ID:                 uuid.New(),
		Email:              input.Email,
		BusinessName:       input.BusinessName,
		Phone:              input.Phone,
		BusinessType:       input.BusinessType,
		Address:            input.Address,
		Description:        input.Description,
		Website:            input.Website,
		BusinessHours:      hours,
		VerificationStatus: status,
		DocumentStatus:     entity.DocumentStatusNone,
		PasswordHash:       passwordHash,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (srv *provisioningService) buildSetupLink(rawToken string) string {
	if srv.setupBaseURL == "" {
		return rawToken
	}

	sep := "?"
	if strings.Contains(srv.setupBaseURL, "?") {
		sep = "&"
	}

	return srv.setupBaseURL + sep + url.Values{"token": {rawToken}}.Encode()
}

func (srv *provisioningService) buildWelcomeEvent(ctx context.Context, merchant *entity.Merchant, setupLink string, expiresAt time.Time) *service.WelcomeEvent {
	event := &service.WelcomeEvent{
		RequestID:    deliverycontext.GetRequestIDFromContext(ctx),
		EventID:      uuid.New().String(),
		MerchantID:   merchant.ID.String(),
		Email:        merchant.Email,
		BusinessName: merchant.BusinessName,
		SetupLink:    setupLink,
		ExpiresAt:    expiresAt,
	}

	// The QR code is a convenience; the link alone is enough to finish setup.
	qr, err := srv.qrcode.SetupLinkPNG(setupLink)
	if err != nil {
		srv.log(ctx).Warn("Failed to render setup QR code", slog.Any("error", err))

		return event
	}
	event.SetupQRCode = qr

	return event
}

// normalizeCreateInput trims every text field and lower-cases the email.
func normalizeCreateInput(input *usecase.CreateMerchantInput) *usecase.CreateMerchantInput {
	if input == nil {
		return &usecase.CreateMerchantInput{}
	}

	out := *input
	out.BusinessName = strings.TrimSpace(out.BusinessName)
	out.Email = strings.ToLower(strings.TrimSpace(out.Email))
	out.Phone = strings.TrimSpace(out.Phone)
	out.BusinessType = entity.BusinessType(strings.TrimSpace(string(out.BusinessType)))
	out.Address = strings.TrimSpace(out.Address)
	out.Description = strings.TrimSpace(out.Description)
	out.Website = strings.TrimSpace(out.Website)
	out.VerificationStatus = entity.VerificationStatus(strings.TrimSpace(string(out.VerificationStatus)))

	return &out
}
