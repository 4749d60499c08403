package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/arledger_backend/config"
	"bitbucket.org/mmdatafocus/arledger_backend/utils"
)

type Customer struct {
	ID        int       `gorm:"primary_key" json:"id"`
	AliasId   string    `gorm:"uniqueIndex;size:10;not null" json:"alias_id"`
	BranchId  int       `gorm:"index;not null" json:"branch_id"`
	Name      string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	IsParent  *bool     `gorm:"not null;default:false" json:"is_parent"`
	ParentId  *int      `gorm:"index" json:"parent_id"`
	GraceDays int       `gorm:"not null;default:0" json:"grace_days"`
	Address   string    `gorm:"type:text" json:"address"`
	Phone     string    `gorm:"size:20" json:"phone"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	Version   int       `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	BranchId  int    `json:"branch_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
	IsParent  *bool  `json:"is_parent"`
	ParentId  *int   `json:"parent_id"`
	GraceDays int    `json:"grace_days"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewCustomer) validate(ctx context.Context, id int) error {
	if err := utils.ValidateResourceId[Branch](ctx, 0, input.BranchId); err != nil {
		return newNotFoundError("Branch", input.BranchId)
	}
	if id > 0 {
		if err := utils.ValidateResourceId[Customer](ctx, input.BranchId, id); err != nil {
			return newNotFoundError("Customer", id)
		}
	}
	// name, unique within branch
	if err := utils.ValidateUnique[Customer](ctx, input.BranchId, "name", input.Name, id); err != nil {
		return newValidationError("name", "duplicate customer name")
	}
	if input.GraceDays < 0 {
		return newValidationError("grace_days", "grace days cannot be negative")
	}
	// phone
	if len(strings.TrimSpace(input.Phone)) > 0 {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return newValidationError("phone", "invalid phone number")
		}
	}
	if input.ParentId != nil {
		if *input.ParentId == id {
			return newValidationError("parent_id", "customer cannot be its own parent")
		}
		parent, err := utils.FetchModel[Customer](ctx, input.BranchId, *input.ParentId)
		if err != nil {
			return newNotFoundError("Customer", *input.ParentId)
		}
		if !utils.DereferencePtr(parent.IsParent) {
			return newValidationError("parent_id", "parent must be a parent customer")
		}
	}
	return nil
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	customer := Customer{
		AliasId:   newAliasId(),
		BranchId:  input.BranchId,
		Name:      input.Name,
		IsParent:  input.IsParent,
		ParentId:  input.ParentId,
		GraceDays: input.GraceDays,
		Address:   input.Address,
		Phone:     input.Phone,
		IsActive:  utils.NewTrue(),
		Version:   1,
	}
	if customer.IsParent == nil {
		customer.IsParent = utils.NewFalse()
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&customer).Error
	if err != nil {
		return nil, err
	}

	return &customer, nil
}

func UpdateCustomer(ctx context.Context, id int, version int, input *NewCustomer) (*Customer, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	// a customer with children cannot lose its parent flag
	if input.IsParent == nil || !*input.IsParent {
		count, err := utils.ResourceCountWhere[Customer](ctx, input.BranchId, "parent_id = ?", id)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, newValidationError("is_parent", "customer has child customers")
		}
	}

	db := config.GetDB()
	err := updateWithVersion[Customer](ctx, db, id, version, map[string]interface{}{
		"name":       input.Name,
		"is_parent":  input.IsParent,
		"parent_id":  input.ParentId,
		"grace_days": input.GraceDays,
		"address":    input.Address,
		"phone":      input.Phone,
	})
	if err != nil {
		return nil, err
	}

	return utils.FetchModel[Customer](ctx, input.BranchId, id)
}

func GetCustomer(ctx context.Context, branchId int, id int) (*Customer, error) {
	result, err := utils.FetchModel[Customer](ctx, branchId, id)
	if err != nil {
		return nil, newNotFoundError("Customer", id)
	}
	return result, nil
}

type CustomerFilter struct {
	Name        *string
	ParentsOnly bool
	ParentId    *int
	ActiveOnly  bool
}

func GetCustomers(ctx context.Context, branchId int, filter CustomerFilter) ([]*Customer, error) {

	db := config.GetDB()
	var results []*Customer

	dbCtx := db.WithContext(ctx).Where("branch_id = ?", branchId)
	if filter.Name != nil && len(*filter.Name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*filter.Name+"%")
	}
	if filter.ParentsOnly {
		dbCtx = dbCtx.Where("is_parent = ?", true)
	}
	if filter.ParentId != nil {
		dbCtx = dbCtx.Where("parent_id = ?", *filter.ParentId)
	}
	if filter.ActiveOnly {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveCustomer(ctx context.Context, branchId int, id int, version int, isActive bool) (*Customer, error) {

	if _, err := GetCustomer(ctx, branchId, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	if !isActive {
		// a customer with ledger activity stays on the books
		var count int64
		if err := db.WithContext(ctx).Model(&CreditInvoice{}).
			Where("customer_id = ?", id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, newValidationError("id", "customer has invoices")
		}
		if err := db.WithContext(ctx).Model(&Payment{}).
			Where("customer_id = ?", id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, newValidationError("id", "customer has payments")
		}
	}

	err := updateWithVersion[Customer](ctx, db, id, version, map[string]interface{}{
		"is_active": isActive,
	})
	if err != nil {
		return nil, err
	}

	return utils.FetchModel[Customer](ctx, branchId, id)
}
