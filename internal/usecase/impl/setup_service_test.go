package impl

import (
	"context"
	"sync"
	"testing"
	"time"

	"onboarding/internal/domain/entity"
	domainerrors "onboarding/internal/domain/errors"
	"onboarding/internal/usecase"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const strongPassword = "N00dles!Taipei"

func newTestSetupService(env *testEnv) *setupService {
	return NewSetupService(SetupServiceParams{
		TxManager: env.txManager,
		TokenRepo: env.tokenRepo,
		Issuer:    env.issuer,
		Validator: env.validator,
		Metrics:   env.metrics,
		Config:    env.config,
		Logger:    env.logger,
	}).(*setupService)
}

// issueToken stores a fresh token for the merchant and returns the raw value.
func (env *testEnv) issueToken(t *testing.T, merchant *entity.Merchant, issuedAt time.Time, ttl time.Duration) string {
	t.Helper()

	raw, hash, err := env.issuer.GenerateSetupToken()
	require.NoError(t, err)
	require.NoError(t, env.tokenRepo.Create(context.Background(), &entity.SetupToken{
		TokenHash:  hash,
		MerchantID: merchant.ID,
		IssuedAt:   issuedAt,
		ExpiresAt:  issuedAt.Add(ttl),
	}))

	return raw
}

func TestSetupService_ValidateToken(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestSetupService(env)
	merchant := env.seedMerchant(t, entity.VerificationPending)
	raw := env.issueToken(t, merchant, time.Now().UTC(), time.Hour)

	info, err := srv.ValidateToken(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, merchant.BusinessName, info.BusinessName)
	assert.Equal(t, merchant.Email, info.Email)
}

func TestSetupService_ValidateToken_Failures(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestSetupService(env)
	merchant := env.seedMerchant(t, entity.VerificationPending)

	expired := env.issueToken(t, merchant, time.Now().UTC().Add(-2*time.Hour), time.Hour)
	consumed := env.issueToken(t, merchant, time.Now().UTC(), time.Hour)
	_, err := env.tokenRepo.Consume(context.Background(), env.issuer.HashToken(consumed), time.Now().UTC())
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: domainerrors.ErrTokenNotFound},
		{name: "unknown", token: "never-issued", want: domainerrors.ErrTokenNotFound},
		{name: "expired", token: expired, want: domainerrors.ErrTokenExpired},
		{name: "consumed", token: consumed, want: domainerrors.ErrTokenAlreadyConsumed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.ValidateToken(context.Background(), tt.token)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestSetupService_CompleteSetup_Success(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestSetupService(env)
	merchant := env.seedMerchant(t, entity.VerificationPending)
	raw := env.issueToken(t, merchant, time.Now().UTC(), time.Hour)

	description := "  Hand-pulled noodles since 1982 "
	out, err := srv.CompleteSetup(context.Background(), &usecase.CompleteSetupInput{
		Token:       raw,
		NewPassword: strongPassword,
		Description: &description,
		BusinessHours: entity.BusinessHours{
			entity.Monday: {OpenTime: "11:00", CloseTime: "21:00"},
		},
	})
	require.NoError(t, err)
	assert.True(t, out.SetupCompleted)
	assert.Equal(t, merchant.ID, out.MerchantID)

	stored := env.reload(t, merchant.ID)
	assert.True(t, stored.SetupCompleted)
	assert.True(t, env.issuer.Check(strongPassword, stored.PasswordHash))
	assert.Equal(t, "Hand-pulled noodles since 1982", stored.Description)
	assert.Equal(t, "11:00", stored.BusinessHours[entity.Monday].OpenTime)
	assert.EqualValues(t, 2, stored.Version)

	_, err = srv.CompleteSetup(context.Background(), &usecase.CompleteSetupInput{Token: raw, NewPassword: strongPassword})
	assert.True(t, errors.Is(err, domainerrors.ErrTokenAlreadyConsumed))
}

func TestSetupService_CompleteSetup_WeakPasswordKeepsToken(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestSetupService(env)
	merchant := env.seedMerchant(t, entity.VerificationPending)
	raw := env.issueToken(t, merchant, time.Now().UTC(), time.Hour)

	_, err := srv.CompleteSetup(context.Background(), &usecase.CompleteSetupInput{Token: raw, NewPassword: "weak"})
	assert.True(t, errors.Is(err, domainerrors.ErrPasswordPolicyViolation))

	_, err = srv.ValidateToken(context.Background(), raw)
	assert.NoError(t, err)
}

func TestSetupService_CompleteSetup_InvalidDetailsKeepToken(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestSetupService(env)
	merchant := env.seedMerchant(t, entity.VerificationPending)
	raw := env.issueToken(t, merchant, time.Now().UTC(), time.Hour)

	_, err := srv.CompleteSetup(context.Background(), &usecase.CompleteSetupInput{
		Token:       raw,
		NewPassword: strongPassword,
		BusinessHours: entity.BusinessHours{
			"funday": {OpenTime: "09:00", CloseTime: "17:00"},
		},
	})
	assert.True(t, errors.Is(err, domainerrors.ErrValidationFailed))
	assert.False(t, env.reload(t, merchant.ID).SetupCompleted)
}

func TestSetupService_CompleteSetup_Expired(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestSetupService(env)
	merchant := env.seedMerchant(t, entity.VerificationPending)
	raw := env.issueToken(t, merchant, time.Now().UTC().Add(-73*time.Hour), 72*time.Hour)

	_, err := srv.CompleteSetup(context.Background(), &usecase.CompleteSetupInput{Token: raw, NewPassword: strongPassword})
	assert.True(t, errors.Is(err, domainerrors.ErrTokenExpired))
	assert.False(t, env.reload(t, merchant.ID).SetupCompleted)
}

func TestSetupService_CompleteSetup_ConcurrentRedemptionHasOneWinner(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestSetupService(env)
	merchant := env.seedMerchant(t, entity.VerificationPending)
	raw := env.issueToken(t, merchant, time.Now().UTC(), time.Hour)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = srv.CompleteSetup(context.Background(), &usecase.CompleteSetupInput{
				Token:       raw,
				NewPassword: strongPassword,
			})
		}()
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++

			continue
		}
		assert.True(t, errors.Is(err, domainerrors.ErrTokenAlreadyConsumed), "got %v", err)
	}
	assert.Equal(t, 1, winners)
	assert.EqualValues(t, 2, env.reload(t, merchant.ID).Version)
}
