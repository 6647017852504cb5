package postgres

import (
	"context"
	"time"

	"onboarding/internal/domain/entity"
	domainerrors "onboarding/internal/domain/errors"
	"onboarding/internal/domain/repository"
	"onboarding/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// setupTokenRepository implements the domain.SetupTokenRepository interface.
type setupTokenRepository struct {
	db *gorm.DB
}

// NewSetupTokenRepository is the constructor for setupTokenRepository.
func NewSetupTokenRepository(db *gorm.DB) repository.SetupTokenRepository {
	return &setupTokenRepository{db: db}
}

// Create persists a new setup token.
func (repo *setupTokenRepository) Create(ctx context.Context, token *entity.SetupToken) error {
	tokenM := fromSetupTokenDomain(token)

	if err := repo.db.WithContext(ctx).Omit(clause.Associations).Create(tokenM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return domainerrors.ErrProvisioningFailed.WrapMessage("setup token collision")
		}
		if isForeignKeyConstraintViolation(err) {
			return domainerrors.ErrProvisioningFailed.WrapMessage("invalid merchant reference")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create setup token")
	}

	return nil
}

// FindByHash retrieves a token by the hash of its raw value.
func (repo *setupTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*entity.SetupToken, error) {
	var tokenM model.SetupTokenModel
	if err := repo.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&tokenM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithStack(repository.ErrSetupTokenNotFound)
		}

		return nil, errors.WithStack(err)
	}

	return toSetupTokenDomain(&tokenM), nil
}

// FindUnconsumedByMerchantID lists tokens of a merchant that have not been redeemed.
func (repo *setupTokenRepository) FindUnconsumedByMerchantID(ctx context.Context, merchantID uuid.UUID) ([]*entity.SetupToken, error) {
	var tokenModels []*model.SetupTokenModel
	if err := repo.db.WithContext(ctx).
		Where("merchant_id = ? AND consumed_at IS NULL", merchantID).
		Order("issued_at DESC").
		Find(&tokenModels).Error; err != nil {
		return nil, errors.WithStack(err)
	}

	tokens := make([]*entity.SetupToken, 0, len(tokenModels))
	for _, tokenM := range tokenModels {
		tokens = append(tokens, toSetupTokenDomain(tokenM))
	}

	return tokens, nil
}

// Consume is a compare-and-swap on consumed_at: only one caller can move it off NULL.
func (repo *setupTokenRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	result := repo.db.WithContext(ctx).
		Model(&model.SetupTokenModel{}).
		Where("token_hash = ? AND consumed_at IS NULL AND expires_at > ?", tokenHash, now).
		Update("consumed_at", now)
	if result.Error != nil {
		return false, domainerrors.NewDatabaseExecuteError(result.Error, "failed to consume setup token")
	}

	return result.RowsAffected == 1, nil
}

// DeleteStale removes tokens consumed or expired before cutoff.
func (repo *setupTokenRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("consumed_at < ? OR expires_at < ?", cutoff, cutoff).
		Delete(&model.SetupTokenModel{})
	if result.Error != nil {
		return 0, errors.WithStack(result.Error)
	}

	return result.RowsAffected, nil
}

// --- Mapper Functions ---

// toSetupTokenDomain converts a GORM SetupTokenModel to a domain SetupToken entity.
func toSetupTokenDomain(data *model.SetupTokenModel) *entity.SetupToken {
	if data == nil {
		return nil
	}

	return &entity.SetupToken{
		TokenHash:  data.TokenHash,
		MerchantID: data.MerchantID,
		IssuedAt:   data.IssuedAt,
		ExpiresAt:  data.ExpiresAt,
		ConsumedAt: data.ConsumedAt,
	}
}

// fromSetupTokenDomain converts a domain SetupToken entity to a GORM SetupTokenModel.
func fromSetupTokenDomain(data *entity.SetupToken) *model.SetupTokenModel {
	if data == nil {
		return nil
	}

	return &model.SetupTokenModel{
		TokenHash:  data.TokenHash,
		MerchantID: data.MerchantID,
		IssuedAt:   data.IssuedAt,
		ExpiresAt:  data.ExpiresAt,
		ConsumedAt: data.ConsumedAt,
	}
}
