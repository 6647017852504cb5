package impl

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"onboarding/config"
	"onboarding/internal/domain/entity"
	"onboarding/internal/domain/repository"
	"onboarding/internal/domain/service"
	"onboarding/internal/infra/auth"
	"onboarding/internal/infra/metrics"
	"onboarding/internal/infra/persistence/postgres"
	"onboarding/internal/infra/persistence/sqlitetest"
	"onboarding/internal/validator"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig() *config.Config {
	cfg := &config.Config{
		Onboarding: &config.OnboardingConfig{
			TokenTTL:                  72 * time.Hour,
			SetupBaseURL:              "https://merchant.example.com/setup",
			DefaultVerificationStatus: "pending",
		},
		Notification: &config.NotificationConfig{
			MaxRetries:      2,
			InitialBackoff:  time.Millisecond,
			MaxBackoff:      5 * time.Millisecond,
			DispatchTimeout: time.Second,
		},
		Bulk:      &config.BulkConfig{MaxMerchants: 50, Concurrency: 4, MaxAttempts: 3},
		Documents: &config.DocumentsConfig{MaxAttempts: 3},
	}

	return cfg
}

// testEnv wires the use cases against an in-memory database with real repositories.
type testEnv struct {
	db           *gorm.DB
	txManager    repository.TransactionManager
	merchantRepo repository.MerchantRepository
	tokenRepo    repository.SetupTokenRepository
	docRepo      repository.DocumentRepository
	issuer       service.CredentialIssuer
	validator    *validator.Validator
	metrics      *metrics.Metrics
	dispatcher   *recordingDispatcher
	config       *config.Config
	logger       *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := sqlitetest.Open(t)

	return &testEnv{
		db:           db,
		txManager:    postgres.NewTransactionManager(db),
		merchantRepo: postgres.NewMerchantRepository(db),
		tokenRepo:    postgres.NewSetupTokenRepository(db),
		docRepo:      postgres.NewDocumentRepository(db),
		issuer:       auth.NewBcryptIssuerWithCost(bcrypt.MinCost),
		validator:    validator.New(),
		metrics:      metrics.New(),
		dispatcher:   &recordingDispatcher{},
		config:       newTestConfig(),
		logger:       newDiscardLogger(),
	}
}

// seedMerchant stores a merchant directly in the given verification status.
func (env *testEnv) seedMerchant(t *testing.T, status entity.VerificationStatus) *entity.Merchant {
	t.Helper()

	now := time.Now().UTC()
	id := uuid.New()
	merchant := &entity.Merchant{
		ID:                 id,
		Email:              id.String() + "@shop.tw",
		BusinessName:       "Shop " + id.String()[:8],
		Phone:              "+886-2-1234-5678",
		BusinessType:       entity.BusinessTypeRetail,
		Address:            "No. 1, Section 1, Taipei",
		BusinessHours:      entity.DefaultBusinessHours(),
		VerificationStatus: status,
		DocumentStatus:     entity.DocumentStatusNone,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, env.merchantRepo.Create(context.Background(), merchant))

	return merchant
}

func (env *testEnv) reload(t *testing.T, id uuid.UUID) *entity.Merchant {
	t.Helper()

	merchant, err := env.merchantRepo.FindByID(context.Background(), id)
	require.NoError(t, err)

	return merchant
}

// recordingDispatcher captures welcome events instead of publishing them.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []*service.WelcomeEvent
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event *service.WelcomeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *recordingDispatcher) Drain(context.Context) error { return nil }

func (d *recordingDispatcher) Events() []*service.WelcomeEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]*service.WelcomeEvent(nil), d.events...)
}

// mockPublisher is a testify mock for service.EventPublisher.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishWelcomeEvent(ctx context.Context, event *service.WelcomeEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockPublisher) Close() error {
	return m.Called().Error(0)
}

// mockMailer is a testify mock for service.Mailer.
type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendWelcome(ctx context.Context, event *service.WelcomeEvent) error {
	return m.Called(ctx, event).Error(0)
}

var errQRCodeUnavailable = errors.New("qr encoder unavailable")

// failingQRCode always fails to render.
type failingQRCode struct{}

func (failingQRCode) SetupLinkPNG(string) (string, error) {
	return "", errQRCodeUnavailable
}

// fixedTokenIssuer issues the same setup token every time.
type fixedTokenIssuer struct {
	service.CredentialIssuer
	raw string
}

func (i fixedTokenIssuer) GenerateSetupToken() (string, string, error) {
	return i.raw, i.HashToken(i.raw), nil
}
