package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/arledger_backend/config"
)

/* DB fetching */

// fetch model from db by primary key only
// (may return RecordNotFound)
func FetchSingleModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch model from db
// (branchId is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, branchId int, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("branch_id = ?", branchId)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch all models from db
// (branchId is used in query's WHERE)
func FetchAllModels[T any](ctx context.Context, branchId int, associations ...string) ([]*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("branch_id = ?", branchId)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return results, nil
}

// fetch all models matching an extra condition besides the branch scope
func FetchModelsWhere[T any](ctx context.Context, branchId int, condition string, values ...interface{}) ([]*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("branch_id = ?", branchId).Where(condition, values...)
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
