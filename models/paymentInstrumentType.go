package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/arledger_backend/config"
	"bitbucket.org/mmdatafocus/arledger_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentInstrumentType struct {
	ID               int            `gorm:"primary_key" json:"id"`
	BranchId         int            `gorm:"index;not null" json:"branch_id"`
	SerialNo         int            `gorm:"not null" json:"serial_no"`
	TypeName         string         `gorm:"size:100;not null" json:"type_name" binding:"required"`
	Kind             InstrumentKind `gorm:"size:20;not null" json:"kind" binding:"required"`
	IsCashEquivalent *bool          `gorm:"not null;default:false" json:"is_cash_equivalent"`
	AutoNumber       *bool          `gorm:"not null;default:false" json:"auto_number"`
	Prefix           string         `gorm:"size:10" json:"prefix"`
	LastNumber       int            `gorm:"not null;default:0" json:"last_number"`
	Version          int            `gorm:"not null;default:1" json:"version"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPaymentInstrumentType struct {
	BranchId         int            `json:"branch_id" binding:"required"`
	SerialNo         int            `json:"serial_no"`
	TypeName         string         `json:"type_name" binding:"required"`
	Kind             InstrumentKind `json:"kind" binding:"required"`
	IsCashEquivalent *bool          `json:"is_cash_equivalent"`
	AutoNumber       *bool          `json:"auto_number"`
	Prefix           string         `json:"prefix"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewPaymentInstrumentType) validate(ctx context.Context, id int) error {
	if err := utils.ValidateResourceId[Branch](ctx, 0, input.BranchId); err != nil {
		return newNotFoundError("Branch", input.BranchId)
	}
	if id > 0 {
		if err := utils.ValidateResourceId[PaymentInstrumentType](ctx, input.BranchId, id); err != nil {
			return newNotFoundError("PaymentInstrumentType", id)
		}
	}
	if !input.Kind.IsValid() {
		return newValidationError("kind", "invalid instrument kind")
	}
	if err := utils.ValidateUnique[PaymentInstrumentType](ctx, input.BranchId, "type_name", input.TypeName, id); err != nil {
		return newValidationError("type_name", "duplicate type name")
	}
	if utils.DereferencePtr(input.AutoNumber) && input.Prefix == "" {
		return newValidationError("prefix", "prefix is required for auto numbering")
	}
	return nil
}

func CreatePaymentInstrumentType(ctx context.Context, input *NewPaymentInstrumentType) (*PaymentInstrumentType, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	instrumentType := PaymentInstrumentType{
		BranchId:         input.BranchId,
		SerialNo:         input.SerialNo,
		TypeName:         input.TypeName,
		Kind:             input.Kind,
		IsCashEquivalent: input.IsCashEquivalent,
		AutoNumber:       input.AutoNumber,
		Prefix:           input.Prefix,
		LastNumber:       0,
		Version:          1,
	}
	if instrumentType.IsCashEquivalent == nil {
		instrumentType.IsCashEquivalent = utils.NewFalse()
	}
	if instrumentType.AutoNumber == nil {
		instrumentType.AutoNumber = utils.NewFalse()
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&instrumentType).Error
	if err != nil {
		return nil, err
	}

	// clear cache
	if err := clearInstrumentCatalog(input.BranchId); err != nil {
		return nil, err
	}

	return &instrumentType, nil
}

func UpdatePaymentInstrumentType(ctx context.Context, id int, version int, input *NewPaymentInstrumentType) (*PaymentInstrumentType, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	// LastNumber is intentionally absent: only nextIdNumber moves it
	db := config.GetDB()
	err := updateWithVersion[PaymentInstrumentType](ctx, db, id, version, map[string]interface{}{
		"serial_no":          input.SerialNo,
		"type_name":          input.TypeName,
		"kind":               input.Kind,
		"is_cash_equivalent": input.IsCashEquivalent,
		"auto_number":        input.AutoNumber,
		"prefix":             input.Prefix,
	})
	if err != nil {
		return nil, err
	}

	// clear cache
	if err := clearInstrumentCatalog(input.BranchId); err != nil {
		return nil, err
	}

	return utils.FetchModel[PaymentInstrumentType](ctx, input.BranchId, id)
}

func GetPaymentInstrumentType(ctx context.Context, branchId int, id int) (*PaymentInstrumentType, error) {
	result, err := utils.FetchModel[PaymentInstrumentType](ctx, branchId, id)
	if err != nil {
		return nil, newNotFoundError("PaymentInstrumentType", id)
	}
	return result, nil
}

func GetPaymentInstrumentTypes(ctx context.Context, branchId int) ([]*PaymentInstrumentType, error) {

	db := config.GetDB()
	var results []*PaymentInstrumentType
	err := db.WithContext(ctx).Where("branch_id = ?", branchId).
		Order("serial_no, type_name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// formatIdNumber renders one issued number: prefix plus the counter,
// zero padded to four digits (wider counters print unpadded).
func formatIdNumber(prefix string, number int) string {
	return fmt.Sprintf("%s%04d", prefix, number)
}

// nextIdNumber issues the next id number for an auto-numbering
// instrument type. The row is locked FOR UPDATE inside the caller's
// transaction, so concurrent payments serialize here and numbers come
// out gapless per type until a caller rolls back. Issued numbers are
// never reused even then, since the counter only moves forward.
func nextIdNumber(tx *gorm.DB, ctx context.Context, instrumentTypeId int) (string, error) {

	var instrumentType PaymentInstrumentType
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&instrumentType, instrumentTypeId).Error
	if err != nil {
		return "", newNotFoundError("PaymentInstrumentType", instrumentTypeId)
	}
	if !utils.DereferencePtr(instrumentType.AutoNumber) {
		return "", newValidationError("instrument_type_id", "instrument type does not auto number")
	}

	instrumentType.LastNumber++
	if err := tx.WithContext(ctx).Model(&instrumentType).
		UpdateColumn("last_number", instrumentType.LastNumber).Error; err != nil {
		return "", err
	}

	return formatIdNumber(instrumentType.Prefix, instrumentType.LastNumber), nil
}
