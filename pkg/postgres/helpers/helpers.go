package helpers

import (
	"fmt"

	"gorm.io/gorm"
)

// WrapTxAndCommit runs fn inside a transaction. When tx is non-nil fn joins that
// transaction and the caller stays responsible for committing it; otherwise a new
// transaction is opened, committed when fn succeeds and rolled back when it fails.
func WrapTxAndCommit[T any](fn func(*gorm.DB) (T, error), db *gorm.DB, tx *gorm.DB) (T, error) {
	exists := tx != nil

	if !exists {
		tx = db.Begin()
		if tx.Error != nil {
			var zero T
			return zero, fmt.Errorf("failed to begin transaction: %w", tx.Error)
		}
	}

	res, err := fn(tx)

	if exists {
		return res, err
	}
	if err != nil {
		tx.Rollback()
		return res, err
	}
	if cErr := tx.Commit().Error; cErr != nil {
		var zero T
		return zero, fmt.Errorf("failed to commit transaction: %w", cErr)
	}
	return res, nil
}
