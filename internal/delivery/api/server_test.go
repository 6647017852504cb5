package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"onboarding/config"
	"onboarding/internal/delivery/api/router"
	"onboarding/internal/delivery/api/router/handler"
	"onboarding/internal/delivery/middleware"
	"onboarding/internal/domain/entity"
	"onboarding/internal/domain/service"
	"onboarding/internal/infra/auth"
	"onboarding/internal/infra/metrics"
	"onboarding/internal/infra/persistence/postgres"
	"onboarding/internal/infra/persistence/sqlitetest"
	"onboarding/internal/infra/qrcode"
	"onboarding/internal/usecase/impl"
	"onboarding/internal/validator"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"golang.org/x/crypto/bcrypt"
)

type apiFixture struct {
	echo   *echo.Echo
	tokens service.TokenService
}

type noopPublisher struct{}

func (noopPublisher) PublishWelcomeEvent(context.Context, *service.WelcomeEvent) error { return nil }

func (noopPublisher) Close() error { return nil }

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	cfg := &config.Config{SecretKey: config.SecretKeyConfig{Access: "test-secret"}}
	cfg.ApplyDefaults()
	cfg.Onboarding.SetupBaseURL = "https://merchant.example.com/setup"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := sqlitetest.Open(t)
	txManager := postgres.NewTransactionManager(db)
	merchantRepo := postgres.NewMerchantRepository(db)
	tokenRepo := postgres.NewSetupTokenRepository(db)
	docRepo := postgres.NewDocumentRepository(db)
	issuer := auth.NewBcryptIssuerWithCost(bcrypt.MinCost)
	v := validator.New()
	m := metrics.New()

	tokens, err := auth.NewJWTService(cfg)
	require.NoError(t, err)

	lc := fxtest.NewLifecycle(t)
	dispatcher := impl.NewWelcomeDispatcher(impl.WelcomeDispatcherParams{
		Lifecycle: lc, Publisher: noopPublisher{}, Metrics: m, Config: cfg, Logger: logger,
	})

	provisioning := impl.NewProvisioningService(impl.ProvisioningServiceParams{
		TxManager: txManager, MerchantRepo: merchantRepo, Issuer: issuer, QRCode: qrcode.NewQRCodeService(cfg),
		Dispatcher: dispatcher, Validator: v, Metrics: m, Config: cfg, Logger: logger,
	})
	setup := impl.NewSetupService(impl.SetupServiceParams{
		TxManager: txManager, TokenRepo: tokenRepo, Issuer: issuer, Validator: v, Metrics: m, Config: cfg, Logger: logger,
	})
	documents := impl.NewDocumentService(impl.DocumentServiceParams{
		TxManager: txManager, DocRepo: docRepo, Validator: v, Metrics: m, Config: cfg, Logger: logger,
	})
	bulk := impl.NewBulkActionService(impl.BulkActionServiceParams{
		MerchantRepo: merchantRepo, Metrics: m, Config: cfg, Logger: logger,
	})

	e := newEcho(cfg, logger, v, router.RouterParams{
		MerchantHandler: handler.NewMerchantHandler(handler.MerchantHandlerParams{ProvisioningUC: provisioning, Logger: logger}),
		SetupHandler:    handler.NewSetupHandler(setup),
		DocumentHandler: handler.NewDocumentHandler(documents),
		BulkHandler:     handler.NewBulkHandler(bulk),
		AuthMiddleware:  middleware.NewAuthMiddleware(tokens),
		Metrics:         m,
	})

	lc.RequireStart()
	t.Cleanup(lc.RequireStop)

	return &apiFixture{echo: e, tokens: tokens}
}

func (f *apiFixture) bearer(t *testing.T, subject string, roles ...entity.Role) string {
	t.Helper()

	token, err := f.tokens.GenerateAccessToken(subject, entity.Roles(roles).ToStrings())
	require.NoError(t, err)

	return "Bearer " + token
}

func (f *apiFixture) do(t *testing.T, method, target, authorization string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && rec.Header().Get(echo.HeaderContentType) != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}

	return rec.Code, decoded
}

func dataOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()

	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", body)

	return data
}

func errorCodeOf(body map[string]any) string {
	errInfo, _ := body["error"].(map[string]any)
	code, _ := errInfo["code"].(string)

	return code
}

func TestAPI_OnboardingFlow(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.bearer(t, "admin-1", entity.RoleAdmin)

	status, body := f.do(t, http.MethodPost, "/api/v1/admin/merchants", admin, map[string]any{
		"businessName": "Lin's Noodles",
		"email":        "owner@lin.tw",
		"phone":        "+886-2-2345-6789",
		"businessType": "food_beverage",
		"address":      "No. 10, Yongkang St, Taipei",
	})
	require.Equal(t, http.StatusCreated, status, body)
	created := dataOf(t, body)
	merchant := created["merchant"].(map[string]any)
	merchantID := merchant["id"].(string)
	assert.NotEmpty(t, created["temporaryPassword"])
	assert.NotContains(t, merchant, "passwordHash")

	link, err := url.Parse(created["setupLink"].(string))
	require.NoError(t, err)
	rawToken := link.Query().Get("token")

	status, body = f.do(t, http.MethodGet, "/api/v1/setup?token="+url.QueryEscape(rawToken), "", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, dataOf(t, body)["valid"])

	status, body = f.do(t, http.MethodPost, "/api/v1/setup", "", map[string]any{
		"token":       rawToken,
		"newPassword": "N00dles!Taipei",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, dataOf(t, body)["setupCompleted"])

	status, body = f.do(t, http.MethodPost, "/api/v1/setup", "", map[string]any{
		"token":       rawToken,
		"newPassword": "N00dles!Taipei",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "TOKEN_ALREADY_CONSUMED", errorCodeOf(body))

	owner := f.bearer(t, merchantID, entity.RoleMerchant)
	status, body = f.do(t, http.MethodPost, "/api/v1/merchant/documents", owner, map[string]any{
		"documentType": "business_license",
		"fileUrl":      "https://files.example.com/license.pdf",
	})
	require.Equal(t, http.StatusCreated, status, body)
	submitted := dataOf(t, body)
	documentID := submitted["document"].(map[string]any)["id"].(string)
	assert.Equal(t, "pending_review", submitted["documentStatus"])

	status, body = f.do(t, http.MethodPut, "/api/v1/admin/documents/"+documentID+"/review", admin, map[string]any{
		"status": "complete",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "verified", dataOf(t, body)["verificationStatus"])

	status, body = f.do(t, http.MethodPost, "/api/v1/admin/merchants/bulk-actions", admin, map[string]any{
		"merchantIds": []string{merchantID},
		"action":      "verify",
	})
	require.Equal(t, http.StatusOK, status, body)
	result := dataOf(t, body)
	assert.EqualValues(t, 0, result["modifiedCount"])
	outcome := result["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "skipped-already-in-state", outcome["outcome"])
}

func TestAPI_ValidationErrorsListFields(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.bearer(t, "admin-1", entity.RoleAdmin)

	status, body := f.do(t, http.MethodPost, "/api/v1/admin/merchants", admin, map[string]any{
		"email": "nope",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCodeOf(body))

	details, ok := body["error"].(map[string]any)["details"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, details)
}

func TestAPI_AuthorizationAndErrors(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/v1/admin/merchants/00000000-0000-0000-0000-000000000000", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCodeOf(body))

	merchantToken := f.bearer(t, "00000000-0000-0000-0000-000000000001", entity.RoleMerchant)
	status, body = f.do(t, http.MethodPost, "/api/v1/admin/merchants/bulk-actions", merchantToken, map[string]any{
		"merchantIds": []string{}, "action": "verify",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCodeOf(body))
	assert.Nil(t, body["error"].(map[string]any)["details"])

	admin := f.bearer(t, "admin-1", entity.RoleAdmin)
	status, body = f.do(t, http.MethodGet, "/api/v1/admin/merchants/00000000-0000-0000-0000-000000000000", admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "MERCHANT_NOT_FOUND", errorCodeOf(body))

	status, body = f.do(t, http.MethodPost, "/api/v1/admin/merchants/bulk-actions", admin, map[string]any{
		"merchantIds": []string{"not-a-uuid"}, "action": "verify",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCodeOf(body))

	status, body = f.do(t, http.MethodPost, "/api/v1/admin/merchants/bulk-actions", admin, map[string]any{
		"merchantIds": []string{"00000000-0000-0000-0000-000000000000"}, "action": "suspend",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_BULK_ACTION", errorCodeOf(body))

	status, body = f.do(t, http.MethodGet, "/api/v1/setup?token=unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "TOKEN_NOT_FOUND", errorCodeOf(body))
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t)

	status, _ := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "onboarding_merchants_provisioned_total")
}

func TestAPI_SetupResponsesSuppressReferrer(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/setup?token=unknown", nil)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)

	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), `route="/api/v1/setup"`)
}
