package repositories

import (
	"errors"

	"bes-loan/internal/core/domain"

	"gorm.io/gorm"
)

// translate maps gorm errors onto the domain taxonomy
func translate(err error, notFound *domain.Error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.NewStorageFailure(op, err)
}
