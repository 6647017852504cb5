package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"onboarding/config"
	deliverycontext "onboarding/internal/delivery/context"
	"onboarding/internal/domain/constants"
	domainerrors "onboarding/internal/domain/errors"
	"onboarding/internal/domain/service"
	"onboarding/internal/infra/metrics"
	"onboarding/internal/infra/pubsub"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

type mockMailUsecase struct {
	mock.Mock
}

func (m *mockMailUsecase) DeliverWelcome(ctx context.Context, event *service.WelcomeEvent) error {
	return m.Called(ctx, event).Error(0)
}

func newTestHandler(mailUC *mockMailUsecase) *WelcomeHandler {
	return NewWelcomeHandler(WelcomeHandlerParams{
		Config: &config.Config{},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		MailUC: mailUC,
	})
}

func pushBody(t *testing.T, event service.WelcomeEvent, attributes map[string]string) string {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)

	var msg PubSubMessage
	msg.Message.Data = base64.StdEncoding.EncodeToString(data)
	msg.Message.Attributes = attributes
	msg.Message.MessageID = event.EventID
	body, err := json.Marshal(msg)
	require.NoError(t, err)

	return string(body)
}

func doPush(h *WelcomeHandler, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/push", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer push-token")
	rec := httptest.NewRecorder()
	_ = h.HandlePush(e.NewContext(req, rec))

	return rec
}

func welcomeEvent() service.WelcomeEvent {
	return service.WelcomeEvent{
		EventID:    "evt-1",
		MerchantID: "m-1",
		Email:      "owner@shop.tw",
		SetupLink:  "https://merchant.example/setup?token=abc",
	}
}

func TestHandlePush_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		body       func(t *testing.T) string
		mailErr    error
		expectCall bool
		wantStatus int
	}{
		{
			name:       "delivered",
			body:       func(t *testing.T) string { return pushBody(t, welcomeEvent(), nil) },
			expectCall: true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "mailer failure is retried",
			body:       func(t *testing.T) string { return pushBody(t, welcomeEvent(), nil) },
			mailErr:    errors.New("smtp down"),
			expectCall: true,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "invalid event is acked and dropped",
			body:       func(t *testing.T) string { return pushBody(t, welcomeEvent(), nil) },
			mailErr:    domainerrors.NewValidationError("email", "required"),
			expectCall: true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "malformed envelope",
			body:       func(*testing.T) string { return "{" },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "data is not base64",
			body:       func(*testing.T) string { return `{"message":{"data":"%%%"}}` },
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "data is not an event",
			body: func(*testing.T) string {
				return `{"message":{"data":"` + base64.StdEncoding.EncodeToString([]byte("nope")) + `"}}`
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailUC := &mockMailUsecase{}
			if tt.expectCall {
				mailUC.On("DeliverWelcome", mock.Anything, mock.Anything).Return(tt.mailErr).Once()
			}

			rec := doPush(newTestHandler(mailUC), tt.body(t))

			assert.Equal(t, tt.wantStatus, rec.Code)
			mailUC.AssertExpectations(t)
		})
	}
}

func TestHandlePush_RequestIDFromAttributes(t *testing.T) {
	mailUC := &mockMailUsecase{}
	mailUC.On("DeliverWelcome", mock.MatchedBy(func(ctx context.Context) bool {
		return deliverycontext.GetRequestIDFromContext(ctx) == "req-attr"
	}), mock.Anything).Return(nil).Once()

	event := welcomeEvent()
	event.RequestID = "req-event"
	rec := doPush(newTestHandler(mailUC), pushBody(t, event, map[string]string{"request_id": "req-attr"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	mailUC.AssertExpectations(t)
}

func TestHandlePush_VerifiesGoogleToken(t *testing.T) {
	tests := []struct {
		name       string
		payload    *idtoken.Payload
		err        error
		wantStatus int
	}{
		{name: "valid", payload: &idtoken.Payload{Issuer: "https://accounts.google.com"}, wantStatus: http.StatusOK},
		{name: "wrong issuer", payload: &idtoken.Payload{Issuer: "evil.example"}, wantStatus: http.StatusUnauthorized},
		{name: "invalid signature", err: errors.New("bad signature"), wantStatus: http.StatusUnauthorized},
		{
			name:       "unverified email",
			payload:    &idtoken.Payload{Issuer: "accounts.google.com", Claims: map[string]any{"email_verified": false}},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailUC := &mockMailUsecase{}
			mailUC.On("DeliverWelcome", mock.Anything, mock.Anything).Return(nil).Maybe()

			h := newTestHandler(mailUC)
			h.verifyPushAuth = true
			h.audience = "https://worker.example/push"
			var gotAudience, gotToken string
			h.validate = func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
				gotToken, gotAudience = token, audience

				return tt.payload, tt.err
			}

			rec := doPush(h, pushBody(t, welcomeEvent(), nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "push-token", gotToken)
			assert.Equal(t, "https://worker.example/push", gotAudience)
		})
	}
}

func TestNewWelcomeHandler_VerificationOnlyForGoogleOutsideDevelop(t *testing.T) {
	cfg := &config.Config{PubSub: &config.PubSubConfig{Provider: constants.PubSubProviderGoogle, PushAudience: "aud"}}
	cfg.Env.Env = "production"
	h := NewWelcomeHandler(WelcomeHandlerParams{Config: cfg, Logger: slog.Default(), MailUC: &mockMailUsecase{}})
	assert.True(t, h.verifyPushAuth)
	assert.Equal(t, "aud", h.audience)

	cfg.Env.Env = constants.EnvDevelop
	h = NewWelcomeHandler(WelcomeHandlerParams{Config: cfg, Logger: slog.Default(), MailUC: &mockMailUsecase{}})
	assert.False(t, h.verifyPushAuth)
}

func TestHandleMessage_AckDecision(t *testing.T) {
	data, err := json.Marshal(welcomeEvent())
	require.NoError(t, err)

	tests := []struct {
		name    string
		body    []byte
		mailErr error
		call    bool
		wantAck bool
		outcome string
	}{
		{name: "delivered", body: data, call: true, wantAck: true, outcome: "sent"},
		{name: "retryable", body: data, mailErr: errors.New("smtp down"), call: true, wantAck: false, outcome: "retry"},
		{name: "invalid event", body: data, mailErr: domainerrors.NewValidationError("email", "required"), call: true, wantAck: true, outcome: "dropped"},
		{name: "garbage", body: []byte("nope"), wantAck: true, outcome: "malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailUC := &mockMailUsecase{}
			if tt.call {
				mailUC.On("DeliverWelcome", mock.Anything, mock.Anything).Return(tt.mailErr).Once()
			}
			m := metrics.New()
			h := NewWelcomeHandler(WelcomeHandlerParams{
				Config:  &config.Config{},
				Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
				MailUC:  mailUC,
				Metrics: m,
			})

			ack := h.HandleMessage(context.Background(), &pubsub.Message{Body: tt.body})

			assert.Equal(t, tt.wantAck, ack)
			assert.Equal(t, 1.0, welcomeMailCount(t, m, tt.outcome))
			mailUC.AssertExpectations(t)
		})
	}
}

func welcomeMailCount(t *testing.T, m *metrics.Metrics, outcome string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "onboarding_welcome_mail_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			if metric.GetLabel()[0].GetValue() == outcome {
				return metric.GetCounter().GetValue()
			}
		}
	}

	return 0
}
