package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/arledger_backend/config"
	"bitbucket.org/mmdatafocus/arledger_backend/utils"
)

type PaymentInstrument struct {
	ID               int       `gorm:"primary_key" json:"id"`
	BranchId         int       `gorm:"index;not null" json:"branch_id"`
	SerialNo         int       `gorm:"not null" json:"serial_no"`
	InstrumentTypeId int       `gorm:"index;not null" json:"instrument_type_id" binding:"required"`
	InstrumentName   string    `gorm:"size:100;not null" json:"instrument_name" binding:"required"`
	IsActive         *bool     `gorm:"not null;default:true" json:"is_active"`
	Version          int       `gorm:"not null;default:1" json:"version"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPaymentInstrument struct {
	BranchId         int    `json:"branch_id" binding:"required"`
	SerialNo         int    `json:"serial_no"`
	InstrumentTypeId int    `json:"instrument_type_id" binding:"required"`
	InstrumentName   string `json:"instrument_name" binding:"required"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewPaymentInstrument) validate(ctx context.Context, id int) error {
	if err := utils.ValidateResourceId[Branch](ctx, 0, input.BranchId); err != nil {
		return newNotFoundError("Branch", input.BranchId)
	}
	if id > 0 {
		if err := utils.ValidateResourceId[PaymentInstrument](ctx, input.BranchId, id); err != nil {
			return newNotFoundError("PaymentInstrument", id)
		}
	}
	if err := utils.ValidateResourceId[PaymentInstrumentType](ctx, input.BranchId, input.InstrumentTypeId); err != nil {
		return newNotFoundError("PaymentInstrumentType", input.InstrumentTypeId)
	}
	if err := utils.ValidateUnique[PaymentInstrument](ctx, input.BranchId, "instrument_name", input.InstrumentName, id); err != nil {
		return newValidationError("instrument_name", "duplicate instrument name")
	}
	return nil
}

func CreatePaymentInstrument(ctx context.Context, input *NewPaymentInstrument) (*PaymentInstrument, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	instrument := PaymentInstrument{
		BranchId:         input.BranchId,
		SerialNo:         input.SerialNo,
		InstrumentTypeId: input.InstrumentTypeId,
		InstrumentName:   input.InstrumentName,
		IsActive:         utils.NewTrue(),
		Version:          1,
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&instrument).Error
	if err != nil {
		return nil, err
	}

	// clear cache
	if err := clearInstrumentCatalog(input.BranchId); err != nil {
		return nil, err
	}

	return &instrument, nil
}

func UpdatePaymentInstrument(ctx context.Context, id int, version int, input *NewPaymentInstrument) (*PaymentInstrument, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	err := updateWithVersion[PaymentInstrument](ctx, db, id, version, map[string]interface{}{
		"serial_no":          input.SerialNo,
		"instrument_type_id": input.InstrumentTypeId,
		"instrument_name":    input.InstrumentName,
	})
	if err != nil {
		return nil, err
	}

	// clear cache
	if err := clearInstrumentCatalog(input.BranchId); err != nil {
		return nil, err
	}

	return utils.FetchModel[PaymentInstrument](ctx, input.BranchId, id)
}

func GetPaymentInstrument(ctx context.Context, branchId int, id int) (*PaymentInstrument, error) {
	result, err := utils.FetchModel[PaymentInstrument](ctx, branchId, id)
	if err != nil {
		return nil, newNotFoundError("PaymentInstrument", id)
	}
	return result, nil
}

func GetPaymentInstruments(ctx context.Context, branchId int, activeOnly bool) ([]*PaymentInstrument, error) {

	db := config.GetDB()
	var results []*PaymentInstrument
	dbCtx := db.WithContext(ctx).Where("branch_id = ?", branchId)
	if activeOnly {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	err := dbCtx.Order("serial_no, instrument_name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActivePaymentInstrument(ctx context.Context, branchId int, id int, version int, isActive bool) (*PaymentInstrument, error) {

	if _, err := GetPaymentInstrument(ctx, branchId, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	err := updateWithVersion[PaymentInstrument](ctx, db, id, version, map[string]interface{}{
		"is_active": isActive,
	})
	if err != nil {
		return nil, err
	}

	// clear cache
	if err := clearInstrumentCatalog(branchId); err != nil {
		return nil, err
	}

	return utils.FetchModel[PaymentInstrument](ctx, branchId, id)
}
