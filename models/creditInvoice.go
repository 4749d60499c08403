package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/arledger_backend/config"
	"bitbucket.org/mmdatafocus/arledger_backend/utils"
	"github.com/shopspring/decimal"
)

type CreditInvoice struct {
	ID               int             `gorm:"primary_key" json:"id"`
	AliasId          string          `gorm:"uniqueIndex;size:10;not null" json:"alias_id"`
	BranchId         int             `gorm:"index;not null" json:"branch_id"`
	Grn              string          `gorm:"index;size:50;not null" json:"grn" binding:"required"`
	CustomerId       int             `gorm:"index;not null" json:"customer_id" binding:"required"`
	TransactionDate  time.Time       `gorm:"index;not null" json:"transaction_date" binding:"required"`
	SalesAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"sales_amount"`
	SalesReturn      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"sales_return"`
	PaymentGraceDays int             `gorm:"not null;default:0" json:"payment_grace_days"`
	PaymentId        *int            `gorm:"index" json:"payment_id"`
	Status           *bool           `gorm:"not null;default:false" json:"status"`
	Version          int             `gorm:"not null;default:1" json:"version"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// NetSales is the invoice amount net of returns, before settlement.
func (inv *CreditInvoice) NetSales() decimal.Decimal {
	return inv.SalesAmount.Sub(inv.SalesReturn)
}

// MaturityDate is when the invoice falls due. Grace days are frozen at
// creation, so later customer edits never move existing maturities.
func (inv *CreditInvoice) MaturityDate() time.Time {
	return maturityDate(inv.TransactionDate, inv.PaymentGraceDays)
}

type NewCreditInvoice struct {
	BranchId        int             `json:"branch_id" binding:"required"`
	Grn             string          `json:"grn" binding:"required"`
	CustomerId      int             `json:"customer_id" binding:"required"`
	TransactionDate time.Time       `json:"transaction_date" binding:"required"`
	SalesAmount     decimal.Decimal `json:"sales_amount" binding:"required"`
	SalesReturn     decimal.Decimal `json:"sales_return"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewCreditInvoice) validate(ctx context.Context, id int) error {
	if err := utils.ValidateResourceId[Branch](ctx, 0, input.BranchId); err != nil {
		return newNotFoundError("Branch", input.BranchId)
	}
	if id > 0 {
		if err := utils.ValidateResourceId[CreditInvoice](ctx, input.BranchId, id); err != nil {
			return newNotFoundError("CreditInvoice", id)
		}
	}
	if err := utils.ValidateResourceId[Customer](ctx, input.BranchId, input.CustomerId); err != nil {
		return newNotFoundError("Customer", input.CustomerId)
	}
	// grn, unique within branch
	if err := utils.ValidateUnique[CreditInvoice](ctx, input.BranchId, "grn", input.Grn, id); err != nil {
		return newValidationError("grn", "duplicate invoice number")
	}
	if input.SalesAmount.IsNegative() {
		return newValidationError("sales_amount", "sales amount cannot be negative")
	}
	if input.SalesReturn.IsNegative() {
		return newValidationError("sales_return", "sales return cannot be negative")
	}
	if input.SalesReturn.GreaterThan(input.SalesAmount) {
		return newValidationError("sales_return", "sales return exceeds sales amount")
	}
	return nil
}

func CreateCreditInvoice(ctx context.Context, input *NewCreditInvoice) (*CreditInvoice, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	customer, err := utils.FetchModel[Customer](ctx, input.BranchId, input.CustomerId)
	if err != nil {
		return nil, newNotFoundError("Customer", input.CustomerId)
	}

	invoice := CreditInvoice{
		AliasId:         newAliasId(),
		BranchId:        input.BranchId,
		Grn:             input.Grn,
		CustomerId:      input.CustomerId,
		TransactionDate: input.TransactionDate,
		SalesAmount:     input.SalesAmount,
		SalesReturn:     input.SalesReturn,
		// frozen copy; customer edits must not reprice existing invoices
		PaymentGraceDays: customer.GraceDays,
		Status:           utils.NewFalse(),
		Version:          1,
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Create(&invoice).Error
	if err != nil {
		return nil, err
	}

	return &invoice, nil
}

func UpdateCreditInvoice(ctx context.Context, id int, version int, input *NewCreditInvoice) (*CreditInvoice, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	existing, err := utils.FetchModel[CreditInvoice](ctx, input.BranchId, id)
	if err != nil {
		return nil, newNotFoundError("CreditInvoice", id)
	}
	if existing.PaymentId != nil {
		return nil, newValidationError("id", "settled invoice cannot be edited")
	}
	if existing.CustomerId != input.CustomerId {
		return nil, newValidationError("customer_id", "invoice customer cannot be changed")
	}

	// PaymentGraceDays is intentionally absent: it stays as copied at create
	db := config.GetDB()
	err = updateWithVersion[CreditInvoice](ctx, db, id, version, map[string]interface{}{
		"grn":              input.Grn,
		"transaction_date": input.TransactionDate,
		"sales_amount":     input.SalesAmount,
		"sales_return":     input.SalesReturn,
	})
	if err != nil {
		return nil, err
	}

	return utils.FetchModel[CreditInvoice](ctx, input.BranchId, id)
}

func DeleteCreditInvoice(ctx context.Context, branchId int, id int) (*CreditInvoice, error) {

	result, err := utils.FetchModel[CreditInvoice](ctx, branchId, id)
	if err != nil {
		return nil, newNotFoundError("CreditInvoice", id)
	}
	if result.PaymentId != nil {
		return nil, newValidationError("id", "settled invoice cannot be deleted")
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Delete(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func GetCreditInvoice(ctx context.Context, branchId int, id int) (*CreditInvoice, error) {
	result, err := utils.FetchModel[CreditInvoice](ctx, branchId, id)
	if err != nil {
		return nil, newNotFoundError("CreditInvoice", id)
	}
	return result, nil
}

type CreditInvoiceFilter struct {
	CustomerId *int
	Settled    *bool
	FromDate   *time.Time
	ToDate     *time.Time
}

// CreditInvoiceView decorates the row with the net due still payable.
type CreditInvoiceView struct {
	CreditInvoice
	NetDue decimal.Decimal `json:"net_due"`
}

func GetCreditInvoices(ctx context.Context, branchId int, filter CreditInvoiceFilter) ([]*CreditInvoiceView, error) {

	db := config.GetDB()
	var invoices []*CreditInvoice

	dbCtx := db.WithContext(ctx).Where("branch_id = ?", branchId)
	if filter.CustomerId != nil {
		dbCtx = dbCtx.Where("customer_id = ?", *filter.CustomerId)
	}
	if filter.Settled != nil {
		if *filter.Settled {
			dbCtx = dbCtx.Where("payment_id IS NOT NULL")
		} else {
			dbCtx = dbCtx.Where("payment_id IS NULL")
		}
	}
	if filter.FromDate != nil {
		dbCtx = dbCtx.Where("transaction_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		dbCtx = dbCtx.Where("transaction_date <= ?", *filter.ToDate)
	}
	err := dbCtx.Order("transaction_date, id").Find(&invoices).Error
	if err != nil {
		return nil, err
	}

	results := make([]*CreditInvoiceView, 0, len(invoices))
	for _, invoice := range invoices {
		results = append(results, &CreditInvoiceView{
			CreditInvoice: *invoice,
			NetDue:        invoice.NetSales(),
		})
	}
	return results, nil
}
