package postgres

import (
	"context"

	"onboarding/internal/domain/repository"
	"onboarding/internal/errors"

	"gorm.io/gorm"
)

type gormTransactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(db *gorm.DB) repository.TransactionManager {
	return &gormTransactionManager{db: db}
}

// Execute delegates to gorm's Transaction, which also rolls back and re-panics when fn panics.
func (tm *gormTransactionManager) Execute(ctx context.Context, fn func(repos repository.TxRepositories) error) error {
	var fnErr error
	err := tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(txRepositories{tx: tx})

		return fnErr
	})

	switch {
	case err == nil:
		return nil
	case fnErr != nil:
		// Domain errors from fn pass through unwrapped for errors.Is at the edge.
		return fnErr
	default:
		return errors.Wrap(err, "transaction")
	}
}

type txRepositories struct {
	tx *gorm.DB
}

func (r txRepositories) Merchants() repository.MerchantRepository {
	return NewMerchantRepository(r.tx)
}

func (r txRepositories) SetupTokens() repository.SetupTokenRepository {
	return NewSetupTokenRepository(r.tx)
}

func (r txRepositories) Documents() repository.DocumentRepository {
	return NewDocumentRepository(r.tx)
}
