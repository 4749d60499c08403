package models

import (
	"context"

	"bitbucket.org/mmdatafocus/arledger_backend/utils"
	"gorm.io/gorm"
)

// updateWithVersion applies fields to the row identified by id, but only
// when the stored version matches the supplied one. The compare and the
// increment happen in one statement, so two stale writers can never both
// succeed. Zero rows affected means either the row is gone or someone
// committed in between; a re-read tells the caller which.
func updateWithVersion[T any](ctx context.Context, tx *gorm.DB, id int, version int, fields map[string]interface{}) error {
	var model T

	fields["version"] = gorm.Expr("version + 1")
	result := tx.WithContext(ctx).Model(&model).
		Where("id = ? AND version = ?", id, version).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var current struct {
		Version int
	}
	err := tx.WithContext(ctx).Model(&model).
		Where("id = ?", id).Select("version").First(&current).Error
	if err == gorm.ErrRecordNotFound {
		return newNotFoundError(utils.GetTypeName[T](), id)
	}
	if err != nil {
		return err
	}
	return &VersionConflictError{
		Resource: utils.GetTypeName[T](),
		Current:  current.Version,
		Supplied: version,
	}
}
