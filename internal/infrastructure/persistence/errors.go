package persistence

import (
	"errors"
	"fmt"

	"github.com/reseller/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// translate maps GORM errors onto domain errors; what names the lookup
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", shared.ErrNotFound, what)
	}
	return fmt.Errorf("%s: %w", what, err)
}
