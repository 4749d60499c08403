package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/arledger_backend/config"
	"bitbucket.org/mmdatafocus/arledger_backend/utils"
	"github.com/shopspring/decimal"
)

// Claim rows are born by the allocation engine whenever a payment
// detail uses a claim instrument; they are never created directly.
type Claim struct {
	ID              int              `gorm:"primary_key" json:"id"`
	AliasId         string           `gorm:"uniqueIndex;size:10;not null" json:"alias_id"`
	BranchId        int              `gorm:"index;not null" json:"branch_id"`
	PaymentDetailId int              `gorm:"index;not null" json:"payment_detail_id"`
	MasterClaimId   int              `gorm:"index;not null" json:"master_claim_id"`
	SubmittedDate   *time.Time       `json:"submitted_date"`
	RefundAmount    *decimal.Decimal `gorm:"type:decimal(18,4)" json:"refund_amount"`
	RefundDate      *time.Time       `json:"refund_date"`
	Remarks         string           `gorm:"type:text" json:"remarks"`
	Version         int              `gorm:"not null;default:1" json:"version"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// Status derives the refund lifecycle stage from the stored fields and
// the originating detail amount.
func (c *Claim) Status(detailAmount decimal.Decimal) ClaimStatus {
	if c.RefundAmount == nil {
		return ClaimStatusOpen
	}
	if c.RefundAmount.Cmp(detailAmount) == 0 {
		return ClaimStatusFullyRefunded
	}
	return ClaimStatusPartiallyRefunded
}

type UpdateClaimInput struct {
	SubmittedDate *time.Time       `json:"submitted_date"`
	RefundAmount  *decimal.Decimal `json:"refund_amount"`
	RefundDate    *time.Time       `json:"refund_date"`
	Remarks       string           `json:"remarks"`
}

// validateClaimRefund checks the refund transition rules against the
// detail amount. Every violation is its own error; nothing is clamped.
func validateClaimRefund(input *UpdateClaimInput, detailAmount decimal.Decimal) error {
	if (input.RefundAmount == nil) != (input.RefundDate == nil) {
		return newValidationError("refund_amount", "refund amount and refund date must be set together")
	}
	if input.RefundAmount == nil {
		return nil
	}
	if input.SubmittedDate == nil {
		return newValidationError("submitted_date", "claim must be submitted before refund")
	}
	if input.RefundDate.Before(*input.SubmittedDate) {
		return newValidationError("refund_date", "refund date cannot precede submitted date")
	}
	if !input.RefundAmount.IsPositive() {
		return newValidationError("refund_amount", "refund amount must be positive")
	}
	if input.RefundAmount.GreaterThan(detailAmount) {
		return newValidationError("refund_amount", "refund amount exceeds claim detail amount")
	}
	return nil
}

func UpdateClaim(ctx context.Context, branchId int, id int, version int, input *UpdateClaimInput) (*Claim, error) {

	claim, err := utils.FetchModel[Claim](ctx, branchId, id)
	if err != nil {
		return nil, newNotFoundError("Claim", id)
	}
	detail, err := utils.FetchModel[PaymentDetail](ctx, branchId, claim.PaymentDetailId)
	if err != nil {
		return nil, newNotFoundError("PaymentDetail", claim.PaymentDetailId)
	}

	if err := validateClaimRefund(input, detail.Amount); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()

	err = updateWithVersion[Claim](ctx, tx, id, version, map[string]interface{}{
		"submitted_date": input.SubmittedDate,
		"refund_amount":  input.RefundAmount,
		"refund_date":    input.RefundDate,
		"remarks":        input.Remarks,
	})
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := saveHistoryUpdate[Claim](tx, ctx, branchId, id, claim, input, "Claim refund recorded"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return utils.FetchModel[Claim](ctx, branchId, id)
}

func GetClaim(ctx context.Context, branchId int, id int) (*Claim, error) {
	result, err := utils.FetchModel[Claim](ctx, branchId, id)
	if err != nil {
		return nil, newNotFoundError("Claim", id)
	}
	return result, nil
}

// ClaimView decorates a claim with its detail amount and derived status.
type ClaimView struct {
	Claim
	DetailAmount decimal.Decimal `json:"detail_amount"`
	ClaimStatus  ClaimStatus     `json:"claim_status"`
}

type ClaimFilter struct {
	MasterClaimId *int
	Status        *ClaimStatus
}

func GetClaims(ctx context.Context, branchId int, filter ClaimFilter) ([]*ClaimView, error) {

	db := config.GetDB()
	var claims []*Claim
	dbCtx := db.WithContext(ctx).Where("branch_id = ?", branchId)
	if filter.MasterClaimId != nil {
		dbCtx = dbCtx.Where("master_claim_id = ?", *filter.MasterClaimId)
	}
	err := dbCtx.Order("id").Find(&claims).Error
	if err != nil {
		return nil, err
	}

	detailIds := make([]int, 0, len(claims))
	for _, claim := range claims {
		detailIds = append(detailIds, claim.PaymentDetailId)
	}
	amounts := make(map[int]decimal.Decimal, len(detailIds))
	if len(detailIds) > 0 {
		details, err := utils.FetchModelsWhere[PaymentDetail](ctx, branchId, "id IN ?", detailIds)
		if err != nil {
			return nil, err
		}
		for _, detail := range details {
			amounts[detail.ID] = detail.Amount
		}
	}

	results := make([]*ClaimView, 0, len(claims))
	for _, claim := range claims {
		view := &ClaimView{
			Claim:        *claim,
			DetailAmount: amounts[claim.PaymentDetailId],
		}
		view.ClaimStatus = claim.Status(view.DetailAmount)
		if filter.Status != nil && view.ClaimStatus != *filter.Status {
			continue
		}
		results = append(results, view)
	}
	return results, nil
}
