package impl

import (
	"context"
	"log/slog"
	"strings"

	deliverycontext "onboarding/internal/delivery/context"
	domainerrors "onboarding/internal/domain/errors"
	"onboarding/internal/domain/service"
	"onboarding/internal/errors"
	"onboarding/internal/usecase"
)

// welcomeMailService turns welcome events into emails on the worker side.
type welcomeMailService struct {
	mailer service.Mailer
	logger *slog.Logger
}

// NewWelcomeMailService is the constructor for welcomeMailService.
func NewWelcomeMailService(mailer service.Mailer, logger *slog.Logger) usecase.WelcomeMailUsecase {
	return &welcomeMailService{mailer: mailer, logger: logger}
}

// DeliverWelcome sends the welcome email. A malformed event is a validation error and is not
// worth retrying; any mailer failure is returned as-is for the transport to retry.
func (srv *welcomeMailService) DeliverWelcome(ctx context.Context, event *service.WelcomeEvent) error {
	if event == nil {
		return domainerrors.NewValidationError("event", "required")
	}

	var fields []domainerrors.FieldError
	if strings.TrimSpace(event.Email) == "" {
		fields = append(fields, domainerrors.FieldError{Field: "email", Rule: "required"})
	}
	if strings.TrimSpace(event.SetupLink) == "" {
		fields = append(fields, domainerrors.FieldError{Field: "setup_link", Rule: "required"})
	}
	if len(fields) > 0 {
		return &domainerrors.ValidationError{Fields: fields}
	}

	if err := srv.mailer.SendWelcome(ctx, event); err != nil {
		return errors.Wrap(err, "failed to send welcome email")
	}

	deliverycontext.GetLoggerOrDefault(ctx, srv.logger).Info("Welcome email sent",
		slog.String("eventID", event.EventID),
		slog.String("merchantID", event.MerchantID),
	)

	return nil
}
