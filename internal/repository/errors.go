package repository

import (
	"errors"
	"strings"

	"github.com/intellego/platform/internal/apperror"
	"gorm.io/gorm"
)

var (
	ErrUniqueViolation = errors.New("unique constraint violation")
	ErrStaleVersion    = errors.New("row version changed")
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// translate maps driver errors onto repository and app sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.ErrNotFound
	case isUniqueViolation(err):
		return ErrUniqueViolation
	default:
		return err
	}
}
