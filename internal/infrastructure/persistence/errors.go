package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fieldops/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// translateWriteError maps unique violations to shared.ErrAlreadyExists.
// Dialects that do not translate errors are matched on their message.
func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", shared.ErrAlreadyExists, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
