package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"onboarding/config"
	deliverycontext "onboarding/internal/delivery/context"
	"onboarding/internal/domain/constants"
	domainerrors "onboarding/internal/domain/errors"
	"onboarding/internal/domain/service"
	"onboarding/internal/infra/pubsub"
	"onboarding/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"google.golang.org/api/idtoken"
)

// PubSubMessage represents the structure of a Pub/Sub push message
type PubSubMessage struct {
	Message struct {
		Data        string            `json:"data"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// retryableError marks a failure the transport should redeliver
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.err)
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func newRetryableError(err error) error {
	return &retryableError{err: err}
}

func isRetryableError(err error) bool {
	var re *retryableError

	return errors.As(err, &re)
}

var errMalformedEvent = errors.New("malformed welcome event")

// Outcomes recorded per handled welcome event.
const (
	outcomeSent      = "sent"
	outcomeDropped   = "dropped"
	outcomeMalformed = "malformed"
	outcomeRetry     = "retry"
)

// tokenValidator checks a Google-signed push token against an audience.
type tokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// WelcomeHandler turns welcome events into emails, from either HTTP push or a queue.
type WelcomeHandler struct {
	verifyPushAuth bool
	audience       string
	validate       tokenValidator
	logger         *slog.Logger
	mailUC         usecase.WelcomeMailUsecase
	metrics        service.MetricsRecorder
}

// WelcomeHandlerParams holds dependencies for the WelcomeHandler
type WelcomeHandlerParams struct {
	fx.In

	Config  *config.Config
	Logger  *slog.Logger
	MailUC  usecase.WelcomeMailUsecase
	Metrics service.MetricsRecorder `optional:"true"`
}

// NewWelcomeHandler creates a new welcome event handler
func NewWelcomeHandler(params WelcomeHandlerParams) *WelcomeHandler {
	// Push tokens are only minted by Google outside of local development
	pubsubCfg := params.Config.PubSub
	verifyPushAuth := pubsubCfg != nil &&
		pubsubCfg.Provider == constants.PubSubProviderGoogle &&
		params.Config.Env.Env != constants.EnvDevelop

	audience := ""
	if pubsubCfg != nil {
		audience = pubsubCfg.PushAudience
	}

	return &WelcomeHandler{
		verifyPushAuth: verifyPushAuth,
		audience:       audience,
		validate:       idtoken.Validate,
		logger:         params.Logger,
		mailUC:         params.MailUC,
		metrics:        params.Metrics,
	}
}

func (h *WelcomeHandler) record(outcome string) {
	if h.metrics != nil {
		h.metrics.WelcomeMailHandled(outcome)
	}
}

// HandlePush handles incoming Pub/Sub push messages.
// 400 rejects a malformed message, 503 asks Pub/Sub to retry, permanent failures are acked with 200.
func (h *WelcomeHandler) HandlePush(c echo.Context) error {
	ctx := c.Request().Context()

	if h.verifyPushAuth {
		if err := h.verifyPubSubToken(c.Request()); err != nil {
			h.logger.Warn("[Worker] Invalid Pub/Sub token", slog.Any("error", err))

			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var pushMsg PubSubMessage
	if err := c.Bind(&pushMsg); err != nil {
		h.logger.Error("[Worker] Failed to parse push message", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	data, err := base64.StdEncoding.DecodeString(pushMsg.Message.Data)
	if err != nil {
		h.logger.Error("[Worker] Failed to decode message data", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	err = h.process(ctx, pushMsg.Message.Attributes, data)
	switch {
	case err == nil:
		return c.NoContent(http.StatusOK)
	case isRetryableError(err):
		return c.NoContent(http.StatusServiceUnavailable)
	case errors.Is(err, errMalformedEvent):
		return c.NoContent(http.StatusBadRequest)
	default:
		return c.NoContent(http.StatusOK)
	}
}

// HandleMessage handles a queue delivery. It returns false only when the message should be requeued.
func (h *WelcomeHandler) HandleMessage(ctx context.Context, msg *pubsub.Message) bool {
	err := h.process(ctx, msg.Headers, msg.Body)

	return err == nil || !isRetryableError(err)
}

// process decodes a welcome event and delivers it. Errors other than retryableError are permanent.
func (h *WelcomeHandler) process(ctx context.Context, attributes map[string]string, data []byte) error {
	var event service.WelcomeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		h.logger.Error("[Worker] Failed to parse welcome event", slog.Any("error", err))
		h.record(outcomeMalformed)

		return errors.Wrap(errMalformedEvent, err.Error())
	}

	requestID := h.extractRequestID(ctx, attributes, &event)
	ctx, reqLogger := deliverycontext.WithRequestScope(ctx, h.logger, requestID)

	reqLogger.Info("[Worker] Processing welcome event",
		slog.String("event_id", event.EventID),
		slog.String("merchant_id", event.MerchantID),
	)

	if err := h.mailUC.DeliverWelcome(ctx, &event); err != nil {
		if errors.Is(err, domainerrors.ErrValidationFailed) {
			reqLogger.Warn("[Worker] Dropping invalid welcome event",
				slog.String("event_id", event.EventID),
				slog.Any("error", err),
			)
			h.record(outcomeDropped)

			return err
		}

		reqLogger.Error("[Worker] Failed to deliver welcome email",
			slog.String("event_id", event.EventID),
			slog.Any("error", err),
		)

		h.record(outcomeRetry)

		return newRetryableError(err)
	}

	h.record(outcomeSent)

	return nil
}

// extractRequestID prefers message attributes, then the event, then the context, then a new UUID.
func (h *WelcomeHandler) extractRequestID(ctx context.Context, attributes map[string]string, event *service.WelcomeEvent) string {
	if requestID := deliverycontext.NormalizeRequestID(attributes["request_id"]); requestID != "" {
		return requestID
	}

	if requestID := deliverycontext.NormalizeRequestID(event.RequestID); requestID != "" {
		return requestID
	}

	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		return requestID
	}

	return uuid.New().String()
}

// verifyPubSubToken verifies the JWT token from Google Pub/Sub push requests
// Reference: https://cloud.google.com/pubsub/docs/push#authenticating_standard_push_requests
func (h *WelcomeHandler) verifyPubSubToken(req *http.Request) error {
	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return errors.New("missing authorization header")
	}

	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return errors.New("invalid authorization header format")
	}

	audience := h.audience
	if audience == "" {
		scheme := "https"
		if req.TLS == nil {
			scheme = "http"
		}
		audience = fmt.Sprintf("%s://%s%s", scheme, req.Host, req.URL.Path)
	}

	payload, err := h.validate(req.Context(), token, audience)
	if err != nil {
		return errors.Wrap(err, "failed to validate token")
	}

	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return errors.Errorf("invalid issuer: %s", payload.Issuer)
	}

	if emailVerified, ok := payload.Claims["email_verified"].(bool); ok && !emailVerified {
		return errors.New("email not verified")
	}

	return nil
}
