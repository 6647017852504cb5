package postgres

import (
	"context"

	"onboarding/internal/domain/entity"
	domainerrors "onboarding/internal/domain/errors"
	"onboarding/internal/domain/repository"
	"onboarding/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// documentRepository implements the domain.DocumentRepository interface.
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository is the constructor for documentRepository.
func NewDocumentRepository(db *gorm.DB) repository.DocumentRepository {
	return &documentRepository{db: db}
}

// Create persists a new document.
func (repo *documentRepository) Create(ctx context.Context, document *entity.Document) error {
	documentM := fromDocumentDomain(document)

	if err := repo.db.WithContext(ctx).Omit(clause.Associations).Create(documentM).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return errors.WithStack(repository.ErrMerchantNotFound)
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create document")
	}

	return nil
}

// FindByID retrieves a document by its ID.
func (repo *documentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	var documentM model.DocumentModel
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&documentM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithStack(repository.ErrDocumentNotFound)
		}

		return nil, errors.WithStack(err)
	}

	return toDocumentDomain(&documentM), nil
}

// ListByMerchantID lists every document of a merchant ordered by upload time.
func (repo *documentRepository) ListByMerchantID(ctx context.Context, merchantID uuid.UUID) ([]*entity.Document, error) {
	var documentModels []*model.DocumentModel
	if err := repo.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("uploaded_at ASC").
		Find(&documentModels).Error; err != nil {
		return nil, errors.WithStack(err)
	}

	documents := make([]*entity.Document, 0, len(documentModels))
	for _, documentM := range documentModels {
		documents = append(documents, toDocumentDomain(documentM))
	}

	return documents, nil
}

// UpdateReview persists the status and reviewer fields of a document.
func (repo *documentRepository) UpdateReview(ctx context.Context, document *entity.Document) error {
	result := repo.db.WithContext(ctx).
		Model(&model.DocumentModel{}).
		Where("id = ?", document.ID).
		Updates(map[string]any{
			"status":      string(document.Status),
			"reviewed_by": document.ReviewedBy,
			"reviewed_at": document.ReviewedAt,
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update document review")
	}
	if result.RowsAffected == 0 {
		return errors.WithStack(repository.ErrDocumentNotFound)
	}

	return nil
}

// --- Mapper Functions ---

// toDocumentDomain converts a GORM DocumentModel to a domain Document entity.
func toDocumentDomain(data *model.DocumentModel) *entity.Document {
	if data == nil {
		return nil
	}

	return &entity.Document{
		ID:           data.ID,
		MerchantID:   data.MerchantID,
		DocumentType: data.DocumentType,
		FileURL:      data.FileURL,
		Status:       entity.DocumentReviewStatus(data.Status),
		UploadedAt:   data.UploadedAt,
		ReviewedBy:   data.ReviewedBy,
		ReviewedAt:   data.ReviewedAt,
	}
}

// fromDocumentDomain converts a domain Document entity to a GORM DocumentModel.
func fromDocumentDomain(data *entity.Document) *model.DocumentModel {
	if data == nil {
		return nil
	}

	return &model.DocumentModel{
		ID:           data.ID,
		MerchantID:   data.MerchantID,
		DocumentType: data.DocumentType,
		FileURL:      data.FileURL,
		Status:       string(data.Status),
		UploadedAt:   data.UploadedAt,
		ReviewedBy:   data.ReviewedBy,
		ReviewedAt:   data.ReviewedAt,
	}
}
