package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/arledger_backend/config"
	"bitbucket.org/mmdatafocus/arledger_backend/utils"
)

type MasterClaim struct {
	ID        int                 `gorm:"primary_key" json:"id"`
	AliasId   string              `gorm:"uniqueIndex;size:10;not null" json:"alias_id"`
	BranchId  int                 `gorm:"index;not null" json:"branch_id"`
	ClaimName string              `gorm:"size:100;not null" json:"claim_name" binding:"required"`
	Category  MasterClaimCategory `gorm:"size:10;not null" json:"category" binding:"required"`
	IsActive  *bool               `gorm:"not null;default:true" json:"is_active"`
	Version   int                 `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMasterClaim struct {
	BranchId  int                 `json:"branch_id" binding:"required"`
	ClaimName string              `json:"claim_name" binding:"required"`
	Category  MasterClaimCategory `json:"category" binding:"required"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewMasterClaim) validate(ctx context.Context, id int) error {
	if err := utils.ValidateResourceId[Branch](ctx, 0, input.BranchId); err != nil {
		return newNotFoundError("Branch", input.BranchId)
	}
	if id > 0 {
		if err := utils.ValidateResourceId[MasterClaim](ctx, input.BranchId, id); err != nil {
			return newNotFoundError("MasterClaim", id)
		}
	}
	if !input.Category.IsValid() {
		return newValidationError("category", "invalid claim category")
	}
	if err := utils.ValidateUnique[MasterClaim](ctx, input.BranchId, "claim_name", input.ClaimName, id); err != nil {
		return newValidationError("claim_name", "duplicate claim name")
	}
	return nil
}

func CreateMasterClaim(ctx context.Context, input *NewMasterClaim) (*MasterClaim, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	masterClaim := MasterClaim{
		AliasId:   newAliasId(),
		BranchId:  input.BranchId,
		ClaimName: input.ClaimName,
		Category:  input.Category,
		IsActive:  utils.NewTrue(),
		Version:   1,
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&masterClaim).Error
	if err != nil {
		return nil, err
	}

	// clear cache
	if err := utils.RemoveRedisList[MasterClaim](input.BranchId); err != nil {
		return nil, err
	}

	return &masterClaim, nil
}

func UpdateMasterClaim(ctx context.Context, id int, version int, input *NewMasterClaim) (*MasterClaim, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	err := updateWithVersion[MasterClaim](ctx, db, id, version, map[string]interface{}{
		"claim_name": input.ClaimName,
		"category":   input.Category,
	})
	if err != nil {
		return nil, err
	}

	// clear cache
	if err := utils.RemoveRedisItem[MasterClaim](id); err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[MasterClaim](input.BranchId); err != nil {
		return nil, err
	}

	return utils.FetchModel[MasterClaim](ctx, input.BranchId, id)
}

func GetMasterClaim(ctx context.Context, branchId int, id int) (*MasterClaim, error) {

	// check redis
	cached, err := utils.RetrieveRedis[MasterClaim](id)
	if err != nil {
		return nil, err
	}
	if cached != nil && cached.BranchId == branchId {
		return cached, nil
	}

	result, err := utils.FetchModel[MasterClaim](ctx, branchId, id)
	if err != nil {
		return nil, newNotFoundError("MasterClaim", id)
	}

	// store in redis
	if err := utils.StoreRedis[MasterClaim](result, id); err != nil {
		return nil, err
	}

	return result, nil
}

func GetMasterClaims(ctx context.Context, branchId int, activeOnly bool) ([]*MasterClaim, error) {

	if !activeOnly {
		cached, err := utils.RetrieveRedisList[MasterClaim](branchId)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return cached, nil
		}
	}

	db := config.GetDB()
	var results []*MasterClaim
	dbCtx := db.WithContext(ctx).Where("branch_id = ?", branchId)
	if activeOnly {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	err := dbCtx.Order("claim_name").Find(&results).Error
	if err != nil {
		return nil, err
	}

	if !activeOnly {
		if err := utils.StoreRedisList[MasterClaim](results, branchId); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func ToggleActiveMasterClaim(ctx context.Context, branchId int, id int, version int, isActive bool) (*MasterClaim, error) {

	if _, err := GetMasterClaim(ctx, branchId, id); err != nil {
		return nil, err
	}

	if !isActive {
		count, err := utils.ResourceCountWhere[Claim](ctx, branchId, "master_claim_id = ?", id)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, newValidationError("id", "master claim has claims")
		}
	}

	db := config.GetDB()
	err := updateWithVersion[MasterClaim](ctx, db, id, version, map[string]interface{}{
		"is_active": isActive,
	})
	if err != nil {
		return nil, err
	}

	// clear cache
	if err := utils.RemoveRedisItem[MasterClaim](id); err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[MasterClaim](branchId); err != nil {
		return nil, err
	}

	return utils.FetchModel[MasterClaim](ctx, branchId, id)
}
