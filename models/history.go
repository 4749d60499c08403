package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/arledger_backend/config"
	"bitbucket.org/mmdatafocus/arledger_backend/utils"
	"gorm.io/gorm"
)

type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	BranchId      int       `gorm:"index;not null" json:"branch_id"`
	ActionType    string    `gorm:"size:10;not null" json:"action_type"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"type:text" json:"description"`
	ReferenceId   int       `gorm:"index" json:"reference_id"`
	ReferenceType string    `gorm:"size:255" json:"reference_type"`
	UserId        int       `gorm:"index" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// createHistory writes one audit row inside the caller's transaction.
// Identity arrives from the gateway headers; a write is never rejected
// for a missing identity.
func createHistory(tx *gorm.DB, ctx context.Context, branchId int, actionType string, referenceId int, referenceType string, before interface{}, after interface{}, description string) error {

	b, _ := json.Marshal(before)
	a, _ := json.Marshal(after)

	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, ok := utils.GetUserNameFromContext(ctx)
	if !ok || userName == "" {
		userName = "system"
	}

	history := History{
		BranchId:      branchId,
		ActionType:    actionType,
		Before:        string(b),
		After:         string(a),
		Description:   description,
		ReferenceId:   referenceId,
		ReferenceType: referenceType,
		UserId:        userId,
		UserName:      userName,
	}

	return tx.WithContext(ctx).Create(&history).Error
}

func saveHistoryCreate[T any](tx *gorm.DB, ctx context.Context, branchId int, id int, obj interface{}, description string) error {
	return createHistory(tx, ctx, branchId, "CREATE", id, utils.GetTypeName[T](), nil, obj, description)
}

func saveHistoryUpdate[T any](tx *gorm.DB, ctx context.Context, branchId int, id int, before interface{}, after interface{}, description string) error {
	return createHistory(tx, ctx, branchId, "UPDATE", id, utils.GetTypeName[T](), before, after, description)
}

func saveHistoryDelete[T any](tx *gorm.DB, ctx context.Context, branchId int, id int, obj interface{}, description string) error {
	return createHistory(tx, ctx, branchId, "DELETE", id, utils.GetTypeName[T](), obj, nil, description)
}

type HistoryFilter struct {
	ReferenceId   *int
	ReferenceType *string
	UserId        *int
}

func GetHistories(ctx context.Context, branchId int, filter HistoryFilter) ([]*History, error) {

	db := config.GetDB()
	var results []*History

	dbCtx := db.WithContext(ctx).Where("branch_id = ?", branchId)
	if filter.ReferenceId != nil && *filter.ReferenceId > 0 {
		dbCtx = dbCtx.Where("reference_id = ?", *filter.ReferenceId)
	}
	if filter.ReferenceType != nil && len(*filter.ReferenceType) > 0 {
		dbCtx = dbCtx.Where("reference_type = ?", *filter.ReferenceType)
	}
	if filter.UserId != nil && *filter.UserId > 0 {
		dbCtx = dbCtx.Where("user_id = ?", *filter.UserId)
	}
	err := dbCtx.Order("created_at DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
