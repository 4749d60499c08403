package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/arledger_backend/config"
	"bitbucket.org/mmdatafocus/arledger_backend/utils"
)

type Branch struct {
	ID         int        `gorm:"primary_key" json:"id"`
	AliasId    string     `gorm:"uniqueIndex;size:10;not null" json:"alias_id"`
	Name       string     `gorm:"index;size:100;not null" json:"name" binding:"required"`
	BranchType BranchType `gorm:"size:20;not null" json:"branch_type" binding:"required"`
	ParentId   *int       `gorm:"index" json:"parent_id"`
	Address    string     `gorm:"type:text" json:"address"`
	Contact    string     `gorm:"size:100" json:"contact"`
	IsActive   *bool      `gorm:"not null;default:true" json:"is_active"`
	Version    int        `gorm:"not null;default:1" json:"version"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBranch struct {
	Name       string     `json:"name" binding:"required"`
	BranchType BranchType `json:"branch_type" binding:"required"`
	ParentId   *int       `json:"parent_id"`
	Address    string     `json:"address"`
	Contact    string     `json:"contact"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewBranch) validate(ctx context.Context, id int) error {
	if !input.BranchType.IsValid() {
		return newValidationError("branch_type", "invalid branch type")
	}
	db := config.GetDB()
	var count int64
	dbCtx := db.WithContext(ctx).Model(&Branch{}).Where("name = ?", input.Name)
	if id > 0 {
		dbCtx = dbCtx.Where("NOT id = ?", id)
	}
	if err := dbCtx.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return newValidationError("name", "duplicate branch name")
	}
	if input.ParentId != nil {
		if *input.ParentId == id {
			return newValidationError("parent_id", "branch cannot be its own parent")
		}
		if err := db.WithContext(ctx).Model(&Branch{}).Where("id = ?", *input.ParentId).Count(&count).Error; err != nil {
			return err
		}
		if count <= 0 {
			return newNotFoundError("Branch", *input.ParentId)
		}
	}
	return nil
}

func CreateBranch(ctx context.Context, input *NewBranch) (*Branch, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	branch := Branch{
		AliasId:    newAliasId(),
		Name:       input.Name,
		BranchType: input.BranchType,
		ParentId:   input.ParentId,
		Address:    input.Address,
		Contact:    input.Contact,
		IsActive:   utils.NewTrue(),
		Version:    1,
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&branch).Error
	if err != nil {
		return nil, err
	}

	return &branch, nil
}

func UpdateBranch(ctx context.Context, id int, version int, input *NewBranch) (*Branch, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	err := updateWithVersion[Branch](ctx, db, id, version, map[string]interface{}{
		"name":        input.Name,
		"branch_type": input.BranchType,
		"parent_id":   input.ParentId,
		"address":     input.Address,
		"contact":     input.Contact,
	})
	if err != nil {
		return nil, err
	}

	return GetBranch(ctx, id)
}

func DeleteBranch(ctx context.Context, id int) (*Branch, error) {

	result, err := GetBranch(ctx, id)
	if err != nil {
		return nil, err
	}

	// check if the branch is used
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&Customer{}).
		Where("branch_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, newValidationError("id", "branch has customers")
	}
	if err := db.WithContext(ctx).Model(&CreditInvoice{}).
		Where("branch_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, newValidationError("id", "branch has invoices")
	}

	// db action
	err = db.WithContext(ctx).Delete(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func GetBranch(ctx context.Context, id int) (*Branch, error) {
	result, err := utils.FetchSingleModel[Branch](ctx, id)
	if err != nil {
		return nil, newNotFoundError("Branch", id)
	}
	return result, nil
}

func GetBranches(ctx context.Context, name *string) ([]*Branch, error) {

	db := config.GetDB()
	var results []*Branch

	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	// db query
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveBranch(ctx context.Context, id int, version int, isActive bool) (*Branch, error) {

	if _, err := GetBranch(ctx, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	err := updateWithVersion[Branch](ctx, db, id, version, map[string]interface{}{
		"is_active": isActive,
	})
	if err != nil {
		return nil, err
	}

	return GetBranch(ctx, id)
}
