package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"onboarding/internal/domain/entity"
	"onboarding/internal/domain/repository"
	"onboarding/internal/infra/persistence/sqlitetest"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedToken(t *testing.T, db *gorm.DB, hash string, issuedAt time.Time, ttl time.Duration) *entity.Merchant {
	t.Helper()

	ctx := context.Background()
	merchant := newTestMerchant(hash + "@shop.tw")
	require.NoError(t, NewMerchantRepository(db).Create(ctx, merchant))
	require.NoError(t, NewSetupTokenRepository(db).Create(ctx, &entity.SetupToken{
		TokenHash:  hash,
		MerchantID: merchant.ID,
		IssuedAt:   issuedAt,
		ExpiresAt:  issuedAt.Add(ttl),
	}))

	return merchant
}

func TestSetupTokenRepository_FindByHash(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewSetupTokenRepository(db)
	now := time.Now().UTC()

	merchant := seedToken(t, db, "abc", now, 72*time.Hour)

	token, err := repo.FindByHash(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, merchant.ID, token.MerchantID)
	assert.False(t, token.IsConsumed())

	_, err = repo.FindByHash(context.Background(), "missing")
	assert.True(t, errors.Is(err, repository.ErrSetupTokenNotFound))

	tokens, err := repo.FindUnconsumedByMerchantID(context.Background(), merchant.ID)
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}

func TestSetupTokenRepository_ConsumeOnce(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewSetupTokenRepository(db)
	now := time.Now().UTC()
	seedToken(t, db, "once", now, time.Hour)

	ok, err := repo.Consume(context.Background(), "once", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Consume(context.Background(), "once", now)
	require.NoError(t, err)
	assert.False(t, ok)

	token, err := repo.FindByHash(context.Background(), "once")
	require.NoError(t, err)
	assert.True(t, token.IsConsumed())
}

func TestSetupTokenRepository_ConsumeExpired(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewSetupTokenRepository(db)
	issued := time.Now().UTC().Add(-2 * time.Hour)
	seedToken(t, db, "late", issued, time.Hour)

	ok, err := repo.Consume(context.Background(), "late", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetupTokenRepository_ConcurrentConsumeHasOneWinner(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewSetupTokenRepository(db)
	now := time.Now().UTC()
	seedToken(t, db, "race", now, time.Hour)

	const callers = 16
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Consume(context.Background(), "race", now)
			assert.NoError(t, err)
			if ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestSetupTokenRepository_DeleteStale(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewSetupTokenRepository(db)
	now := time.Now().UTC()

	seedToken(t, db, "expired", now.Add(-10*24*time.Hour), time.Hour)
	seedToken(t, db, "fresh", now, 72*time.Hour)

	deleted, err := repo.DeleteStale(context.Background(), now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.FindByHash(context.Background(), "expired")
	assert.True(t, errors.Is(err, repository.ErrSetupTokenNotFound))
	_, err = repo.FindByHash(context.Background(), "fresh")
	assert.NoError(t, err)
}
