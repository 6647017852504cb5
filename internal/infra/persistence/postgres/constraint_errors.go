package postgres

import (
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// SQLSTATE codes surfaced in driver messages when gorm does not translate the error.
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateNotNullViolation    = "23502"
	sqlStateCheckViolation      = "23514"
)

func isUniqueConstraintViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	return errorMentions(err, sqlStateUniqueViolation, "duplicate key", "unique constraint failed")
}

func isForeignKeyConstraintViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}

	return errorMentions(err, sqlStateForeignKeyViolation, "foreign key constraint")
}

func isNotNullConstraintViolation(err error) bool {
	return errorMentions(err, sqlStateNotNullViolation, "null value", "not null constraint")
}

func isCheckConstraintViolation(err error) bool {
	if errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}

	return errorMentions(err, sqlStateCheckViolation, "check constraint")
}

func errorMentions(err error, needles ...string) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, needle := range needles {
		if strings.Contains(msg, needle) {
			return true
		}
	}

	return false
}
