// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
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
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// merchantRepository implements the domain.MerchantRepository interface.
type merchantRepository struct {
	db *gorm.DB
}

// NewMerchantRepository is the constructor for merchantRepository.
func NewMerchantRepository(db *gorm.DB) repository.MerchantRepository {
	return &merchantRepository{db: db}
}

// Create inserts a new merchant.
func (repo *merchantRepository) Create(ctx context.Context, merchant *entity.Merchant) error {
	merchantM := fromMerchantDomain(merchant)

	if err := repo.db.WithContext(ctx).Omit(clause.Associations).Create(merchantM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return errors.WithStack(repository.ErrMerchantEmailExists)
		}
		if isNotNullConstraintViolation(err) || isCheckConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("missing required merchant information")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create merchant")
	}

	merchant.CreatedAt = merchantM.CreatedAt
	merchant.UpdatedAt = merchantM.UpdatedAt

	return nil
}

// FindByID retrieves a merchant by its ID.
func (repo *merchantRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Merchant, error) {
	var merchantM model.MerchantModel
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&merchantM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithStack(repository.ErrMerchantNotFound)
		}

		return nil, errors.WithStack(err)
	}

	return toMerchantDomain(&merchantM), nil
}

// ExistsByEmail reports whether the normalized email is already taken.
func (repo *merchantRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := repo.db.WithContext(ctx).
		Model(&model.MerchantModel{}).
		Where("email = ?", email).
		Count(&count).Error; err != nil {
		return false, errors.WithStack(err)
	}

	return count > 0, nil
}

// UpdateIfVersion writes the mutable merchant columns guarded by the version counter.
func (repo *merchantRepository) UpdateIfVersion(ctx context.Context, merchant *entity.Merchant) error {
	now := time.Now().UTC()
	nextVersion := merchant.Version + 1

	result := repo.db.WithContext(ctx).
		Model(&model.MerchantModel{}).
		Where("id = ? AND version = ?", merchant.ID, merchant.Version).
		Updates(map[string]any{
			"description":         merchant.Description,
			"website":             merchant.Website,
			"business_hours":      datatypes.NewJSONType(fromBusinessHours(merchant.BusinessHours)),
			"verification_status": merchant.VerificationStatus.String(),
			"document_status":     merchant.DocumentStatus.String(),
			"setup_completed":     merchant.SetupCompleted,
			"password_hash":       merchant.PasswordHash,
			"version":             nextVersion,
			"updated_at":          now,
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update merchant")
	}

	// Zero rows means another writer bumped the version first.
	if result.RowsAffected == 0 {
		return errors.WithStack(repository.ErrVersionConflict)
	}

	merchant.Version = nextVersion
	merchant.UpdatedAt = now

	return nil
}

// --- Mapper Functions ---

// toMerchantDomain converts a GORM MerchantModel to a domain Merchant entity.
func toMerchantDomain(data *model.MerchantModel) *entity.Merchant {
	if data == nil {
		return nil
	}

	return &entity.Merchant{
		ID:                 data.ID,
		Email:              data.Email,
		BusinessName:       data.BusinessName,
		Phone:              data.Phone,
		BusinessType:       entity.BusinessType(data.BusinessType),
		Address:            data.Address,
		Description:        data.Description,
		Website:            data.Website,
		BusinessHours:      toBusinessHours(data.BusinessHours.Data()),
		VerificationStatus: entity.VerificationStatus(data.VerificationStatus),
		DocumentStatus:     entity.DocumentStatus(data.DocumentStatus),
		SetupCompleted:     data.SetupCompleted,
		PasswordHash:       data.PasswordHash,
		Version:            data.Version,
		CreatedAt:          data.CreatedAt,
		UpdatedAt:          data.UpdatedAt,
	}
}

// fromMerchantDomain converts a domain Merchant entity to a GORM MerchantModel.
func fromMerchantDomain(data *entity.Merchant) *model.MerchantModel {
	if data == nil {
		return nil
	}

	return &model.MerchantModel{
		ID:                 data.ID,
		Email:              data.Email,
		BusinessName:       data.BusinessName,
		Phone:              data.Phone,
		BusinessType:       string(data.BusinessType),
		Address:            data.Address,
		Description:        data.Description,
		Website:            data.Website,
		BusinessHours:      datatypes.NewJSONType(fromBusinessHours(data.BusinessHours)),
		VerificationStatus: data.VerificationStatus.String(),
		DocumentStatus:     data.DocumentStatus.String(),
		SetupCompleted:     data.SetupCompleted,
		PasswordHash:       data.PasswordHash,
		Version:            data.Version,
		CreatedAt:          data.CreatedAt,
		UpdatedAt:          data.UpdatedAt,
	}
}

func toBusinessHours(data map[string]model.DayHoursColumn) entity.BusinessHours {
	hours := make(entity.BusinessHours, len(data))
	for day, h := range data {
		hours[day] = entity.DayHours{OpenTime: h.OpenTime, CloseTime: h.CloseTime, Closed: h.Closed}
	}

	return hours
}

func fromBusinessHours(hours entity.BusinessHours) map[string]model.DayHoursColumn {
	data := make(map[string]model.DayHoursColumn, len(hours))
	for day, h := range hours {
		data[day] = model.DayHoursColumn{OpenTime: h.OpenTime, CloseTime: h.CloseTime, Closed: h.Closed}
	}

	return data
}
