package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/emrgen/qda/internal/coding"
)

// translate maps gorm errors onto the coding error kinds so callers can tell
// a missing row from a rejected write.
func translate(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	what := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", coding.ErrNotFound, what)
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %s: %v", coding.ErrConstraintViolation, what, err)
	}

	return fmt.Errorf("%s: %w", what, err)
}

func affected(res *gorm.DB, format string, args ...any) error {
	if res.Error != nil {
		return translate(res.Error, format, args...)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", coding.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return nil
}
