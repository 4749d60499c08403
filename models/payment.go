package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/arledger_backend/config"
	"bitbucket.org/mmdatafocus/arledger_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

type Payment struct {
	ID                   int             `gorm:"primary_key" json:"id"`
	AliasId              string          `gorm:"uniqueIndex;size:10;not null" json:"alias_id"`
	BranchId             int             `gorm:"index;not null" json:"branch_id"`
	CustomerId           int             `gorm:"index;not null" json:"customer_id"`
	ReceivedDate         time.Time       `gorm:"index;not null" json:"received_date"`
	TotalAmount          decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_amount"`
	CashEquivalentAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"cash_equivalent_amount"`
	ClaimAmount          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"claim_amount"`
	ShortageAmount       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"shortage_amount"`
	Version              int             `gorm:"not null;default:1" json:"version"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Details              []PaymentDetail `gorm:"foreignKey:PaymentId" json:"details"`
}

type PaymentDetail struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	BranchId            int             `gorm:"uniqueIndex:branch_id_number;not null" json:"branch_id"`
	PaymentId           int             `gorm:"index;not null" json:"payment_id"`
	PaymentInstrumentId int             `gorm:"index;not null" json:"payment_instrument_id"`
	IdNumber            string          `gorm:"uniqueIndex:branch_id_number;size:50;not null" json:"id_number"`
	Detail              string          `gorm:"type:text" json:"detail"`
	Amount              decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	MasterClaimId       *int            `gorm:"index" json:"master_claim_id"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPayment struct {
	BranchId       int                `json:"branch_id" binding:"required"`
	CustomerId     int                `json:"customer_id" binding:"required"`
	ReceivedDate   time.Time          `json:"received_date" binding:"required"`
	TotalAmount    *decimal.Decimal   `json:"total_amount"`
	ShortageAmount decimal.Decimal    `json:"shortage_amount"`
	Details        []NewPaymentDetail `json:"details" binding:"required,dive"`
	InvoiceIds     []int              `json:"invoice_ids"`
}

type NewPaymentDetail struct {
	// zero for new rows; an existing detail id when updating in place
	ID                  int             `json:"id"`
	PaymentInstrumentId int             `json:"payment_instrument_id" binding:"required"`
	IdNumber            string          `json:"id_number"`
	Detail              string          `json:"detail"`
	Amount              decimal.Decimal `json:"amount" binding:"required"`
	MasterClaimId       *int            `json:"master_claim_id"`
}

// validateDetailSum enforces the sum invariant when the caller supplies
// an aggregate total.
func validateDetailSum(total *decimal.Decimal, details []NewPaymentDetail) error {
	if total == nil {
		return nil
	}
	amounts := make([]decimal.Decimal, 0, len(details))
	for _, detail := range details {
		amounts = append(amounts, detail.Amount)
	}
	if total.Cmp(sumDecimals(amounts)) != 0 {
		return newValidationError("total_amount", "total amount does not match sum of detail amounts")
	}
	return nil
}

// paymentAggregates are the stored derived amounts on the header.
type paymentAggregates struct {
	Total          decimal.Decimal
	CashEquivalent decimal.Decimal
	Claim          decimal.Decimal
}

func computePaymentAggregates(details []NewPaymentDetail, catalog map[int]instrumentCatalogEntry) paymentAggregates {
	agg := paymentAggregates{
		Total:          decimal.Zero,
		CashEquivalent: decimal.Zero,
		Claim:          decimal.Zero,
	}
	for _, detail := range details {
		agg.Total = agg.Total.Add(detail.Amount)
		entry := catalog[detail.PaymentInstrumentId]
		if entry.IsCashEquivalent {
			agg.CashEquivalent = agg.CashEquivalent.Add(detail.Amount)
		}
		if entry.Kind == InstrumentKindClaim {
			agg.Claim = agg.Claim.Add(detail.Amount)
		}
	}
	return agg
}

// validate input for both create & update. (id = 0 for create)
func (input *NewPayment) validate(ctx context.Context, catalog map[int]instrumentCatalogEntry, id int) error {

	customer, err := utils.FetchModel[Customer](ctx, input.BranchId, input.CustomerId)
	if err != nil {
		return newNotFoundError("Customer", input.CustomerId)
	}
	if !utils.DereferencePtr(customer.IsParent) {
		return newValidationError("customer_id", "only parent customers allowed")
	}

	if len(input.Details) == 0 {
		return newValidationError("details", "at least one payment detail is required")
	}
	if input.ShortageAmount.IsNegative() {
		return newValidationError("shortage_amount", "shortage amount cannot be negative")
	}

	seenIdNumbers := make(map[string]bool)
	masterClaimIds := make([]int, 0, len(input.Details))
	for _, detail := range input.Details {
		entry, ok := catalog[detail.PaymentInstrumentId]
		if !ok {
			return newNotFoundError("PaymentInstrument", detail.PaymentInstrumentId)
		}
		if !entry.IsActive {
			return newValidationError("payment_instrument_id", "instrument is inactive")
		}
		if !detail.Amount.IsPositive() {
			return newValidationError("amount", "detail amount must be positive")
		}
		if entry.Kind == InstrumentKindClaim {
			if detail.MasterClaimId == nil {
				return newValidationError("master_claim_id", "master claim is required for claim instruments")
			}
			masterClaimIds = append(masterClaimIds, *detail.MasterClaimId)
		}
		if entry.AutoNumber {
			continue
		}
		// manual numbering
		if detail.IdNumber == "" {
			return newValidationError("id_number", "id number is required for this instrument")
		}
		if seenIdNumbers[detail.IdNumber] {
			return &DuplicateIdNumberError{BranchId: input.BranchId, IdNumber: detail.IdNumber}
		}
		seenIdNumbers[detail.IdNumber] = true
		count, err := utils.ResourceCountWhere[PaymentDetail](ctx, input.BranchId, "id_number = ? AND NOT id = ?", detail.IdNumber, detail.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return &DuplicateIdNumberError{BranchId: input.BranchId, IdNumber: detail.IdNumber}
		}
	}

	if err := utils.MassValidateResourceIds(ctx, []utils.ValidationRule[int]{
		{
			Model:   MasterClaim{},
			Ids:     masterClaimIds,
			Message: "master claim not found or inactive",
			Filter:  utils.Filter{Cond: "branch_id = ? AND is_active = ?", Values: []interface{}{input.BranchId, true}},
		},
	}); err != nil {
		return newValidationError("master_claim_id", err.Error())
	}
	// invoice ids must all resolve in-branch; settlement checks come later
	if len(input.InvoiceIds) > 0 {
		if err := utils.ValidateResourcesId[CreditInvoice](ctx, input.BranchId, input.InvoiceIds); err != nil {
			return newNotFoundError("CreditInvoice", input.InvoiceIds)
		}
	}
	return nil
}

// createPaymentDetail writes one detail row and, for claim instruments,
// the companion claim. Auto-numbered instruments take their id number
// under the row lock held by nextIdNumber.
func createPaymentDetail(tx *gorm.DB, ctx context.Context, payment *Payment, input *NewPaymentDetail, entry instrumentCatalogEntry) error {

	idNumber := input.IdNumber
	if entry.AutoNumber {
		var err error
		idNumber, err = nextIdNumber(tx, ctx, entry.InstrumentTypeId)
		if err != nil {
			return err
		}
	}

	detail := PaymentDetail{
		BranchId:            payment.BranchId,
		PaymentId:           payment.ID,
		PaymentInstrumentId: input.PaymentInstrumentId,
		IdNumber:            idNumber,
		Detail:              input.Detail,
		Amount:              input.Amount,
		MasterClaimId:       input.MasterClaimId,
	}
	if err := tx.WithContext(ctx).Create(&detail).Error; err != nil {
		// the unique index can still fire when two writers race past the
		// pre-check with the same manual number
		if isDuplicateKeyErr(err) {
			return &DuplicateIdNumberError{BranchId: payment.BranchId, IdNumber: idNumber}
		}
		return err
	}

	if entry.Kind == InstrumentKindClaim {
		claim := Claim{
			AliasId:         newAliasId(),
			BranchId:        payment.BranchId,
			PaymentDetailId: detail.ID,
			MasterClaimId:   *input.MasterClaimId,
			Version:         1,
		}
		if err := tx.WithContext(ctx).Create(&claim).Error; err != nil {
			return err
		}
	}
	return nil
}

// linkInvoice marks one invoice settled by the payment. The id must
// resolve within the payment's branch, and an invoice settled by some
// other payment cannot be stolen.
func linkInvoice(tx *gorm.DB, ctx context.Context, branchId int, paymentId int, invoiceId int) error {
	var invoice CreditInvoice
	err := tx.WithContext(ctx).Where("branch_id = ?", branchId).First(&invoice, invoiceId).Error
	if err != nil {
		return newNotFoundError("CreditInvoice", invoiceId)
	}
	if invoice.PaymentId != nil && *invoice.PaymentId != paymentId {
		return newValidationError("invoice_ids", "invoice is already settled by another payment")
	}
	return tx.WithContext(ctx).Model(&invoice).Updates(map[string]interface{}{
		"payment_id": paymentId,
		"status":     true,
		"version":    gorm.Expr("version + 1"),
	}).Error
}

func unlinkInvoices(tx *gorm.DB, ctx context.Context, paymentId int, invoiceIds []int) error {
	if len(invoiceIds) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Model(&CreditInvoice{}).
		Where("payment_id = ? AND id IN ?", paymentId, invoiceIds).
		Updates(map[string]interface{}{
			"payment_id": nil,
			"status":     false,
			"version":    gorm.Expr("version + 1"),
		}).Error
}

func CreatePayment(ctx context.Context, input *NewPayment) (*Payment, error) {

	release, err := utils.BranchLock(ctx, input.BranchId, "PaymentWrite", "Payment", "CreatePayment")
	if err != nil {
		return nil, err
	}
	defer release()

	catalog, err := getInstrumentCatalog(ctx, input.BranchId)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, catalog, 0); err != nil {
		return nil, err
	}
	if err := validateDetailSum(input.TotalAmount, input.Details); err != nil {
		return nil, err
	}

	agg := computePaymentAggregates(input.Details, catalog)
	payment := Payment{
		AliasId:              newAliasId(),
		BranchId:             input.BranchId,
		CustomerId:           input.CustomerId,
		ReceivedDate:         input.ReceivedDate,
		TotalAmount:          agg.Total,
		CashEquivalentAmount: agg.CashEquivalent,
		ClaimAmount:          agg.Claim,
		ShortageAmount:       input.ShortageAmount,
		Version:              1,
	}

	db := config.GetDB()
	tx := db.Begin()

	if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	for i := range input.Details {
		entry := catalog[input.Details[i].PaymentInstrumentId]
		if err := createPaymentDetail(tx, ctx, &payment, &input.Details[i], entry); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	// invoices link last, so a half-written payment is never visible as settled
	for _, invoiceId := range utils.UniqueSlice(input.InvoiceIds) {
		if err := linkInvoice(tx, ctx, input.BranchId, payment.ID, invoiceId); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	description := fmt.Sprintf("Payment of %v received", agg.Total)
	if err := saveHistoryCreate[Payment](tx, ctx, payment.BranchId, payment.ID, &payment, description); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return GetPayment(ctx, input.BranchId, payment.ID)
}

func UpdatePayment(ctx context.Context, id int, version int, input *NewPayment) (*Payment, error) {

	release, err := utils.BranchLock(ctx, input.BranchId, "PaymentWrite", "Payment", "UpdatePayment")
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := utils.FetchModel[Payment](ctx, input.BranchId, id, "Details")
	if err != nil {
		return nil, newNotFoundError("Payment", id)
	}

	catalog, err := getInstrumentCatalog(ctx, input.BranchId)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, catalog, id); err != nil {
		return nil, err
	}
	if err := validateDetailSum(input.TotalAmount, input.Details); err != nil {
		return nil, err
	}

	existingDetails := make(map[int]*PaymentDetail, len(existing.Details))
	for i := range existing.Details {
		existingDetails[existing.Details[i].ID] = &existing.Details[i]
	}
	keptClaimAmounts := make(map[int]decimal.Decimal)
	for _, detail := range input.Details {
		if detail.ID == 0 {
			continue
		}
		kept, ok := existingDetails[detail.ID]
		if !ok {
			return nil, newNotFoundError("PaymentDetail", detail.ID)
		}
		if kept.PaymentInstrumentId != detail.PaymentInstrumentId {
			return nil, newValidationError("payment_instrument_id", "detail instrument cannot be changed")
		}
		if catalog[detail.PaymentInstrumentId].AutoNumber && detail.IdNumber != kept.IdNumber {
			return nil, newValidationError("id_number", "auto-assigned id number cannot be changed")
		}
		if catalog[detail.PaymentInstrumentId].Kind == InstrumentKindClaim {
			keptClaimAmounts[detail.ID] = detail.Amount
		}
	}
	// a recorded refund pins its detail amount from below
	if len(keptClaimAmounts) > 0 {
		detailIds := make([]int, 0, len(keptClaimAmounts))
		for detailId := range keptClaimAmounts {
			detailIds = append(detailIds, detailId)
		}
		companions, err := utils.FetchModelsWhere[Claim](ctx, input.BranchId, "payment_detail_id IN ?", detailIds)
		if err != nil {
			return nil, err
		}
		for _, companion := range companions {
			if companion.RefundAmount != nil && companion.RefundAmount.GreaterThan(keptClaimAmounts[companion.PaymentDetailId]) {
				return nil, newValidationError("amount", "detail amount cannot drop below the recorded refund")
			}
		}
	}

	agg := computePaymentAggregates(input.Details, catalog)

	db := config.GetDB()
	tx := db.Begin()

	// stale writers must abort before any detail or invoice is touched
	err = updateWithVersion[Payment](ctx, tx, id, version, map[string]interface{}{
		"customer_id":            input.CustomerId,
		"received_date":          input.ReceivedDate,
		"total_amount":           agg.Total,
		"cash_equivalent_amount": agg.CashEquivalent,
		"claim_amount":           agg.Claim,
		"shortage_amount":        input.ShortageAmount,
	})
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// reconcile details by id
	keptIds := make(map[int]bool)
	for i := range input.Details {
		detail := &input.Details[i]
		entry := catalog[detail.PaymentInstrumentId]
		if detail.ID == 0 {
			if err := createPaymentDetail(tx, ctx, existing, detail, entry); err != nil {
				tx.Rollback()
				return nil, err
			}
			continue
		}
		keptIds[detail.ID] = true
		fields := map[string]interface{}{
			"detail":          detail.Detail,
			"amount":          detail.Amount,
			"master_claim_id": detail.MasterClaimId,
		}
		if !entry.AutoNumber {
			fields["id_number"] = detail.IdNumber
		}
		if err := tx.WithContext(ctx).Model(&PaymentDetail{}).
			Where("id = ? AND payment_id = ?", detail.ID, id).
			Updates(fields).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if entry.Kind == InstrumentKindClaim {
			if err := tx.WithContext(ctx).Model(&Claim{}).
				Where("payment_detail_id = ?", detail.ID).
				UpdateColumn("master_claim_id", detail.MasterClaimId).Error; err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}
	// details absent from the submission go away, along with orphan claims
	for detailId := range existingDetails {
		if keptIds[detailId] {
			continue
		}
		if err := tx.WithContext(ctx).Where("payment_detail_id = ?", detailId).
			Delete(&Claim{}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.WithContext(ctx).Delete(&PaymentDetail{}, detailId).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	// invoice linkage by set difference, never blind replace
	var previousInvoiceIds []int
	if err := tx.WithContext(ctx).Model(&CreditInvoice{}).
		Where("payment_id = ?", id).Pluck("id", &previousInvoiceIds).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	nextInvoiceIds := utils.UniqueSlice(input.InvoiceIds)
	removed := utils.DiffSlice(previousInvoiceIds, nextInvoiceIds)
	added := utils.DiffSlice(nextInvoiceIds, previousInvoiceIds)

	if err := unlinkInvoices(tx, ctx, id, removed); err != nil {
		tx.Rollback()
		return nil, err
	}
	for _, invoiceId := range added {
		if err := linkInvoice(tx, ctx, input.BranchId, id, invoiceId); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := saveHistoryUpdate[Payment](tx, ctx, input.BranchId, id, existing, input, "Payment updated"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return GetPayment(ctx, input.BranchId, id)
}

func DeletePayment(ctx context.Context, branchId int, id int) (*Payment, error) {

	result, err := utils.FetchModel[Payment](ctx, branchId, id, "Details")
	if err != nil {
		return nil, newNotFoundError("Payment", id)
	}

	db := config.GetDB()
	tx := db.Begin()

	if err := tx.WithContext(ctx).Model(&CreditInvoice{}).
		Where("payment_id = ?", id).
		Updates(map[string]interface{}{
			"payment_id": nil,
			"status":     false,
			"version":    gorm.Expr("version + 1"),
		}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	detailIds := make([]int, 0, len(result.Details))
	for _, detail := range result.Details {
		detailIds = append(detailIds, detail.ID)
	}
	if len(detailIds) > 0 {
		if err := tx.WithContext(ctx).Where("payment_detail_id IN ?", detailIds).
			Delete(&Claim{}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.WithContext(ctx).Where("payment_id = ?", id).
			Delete(&PaymentDetail{}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.WithContext(ctx).Delete(&Payment{}, id).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := saveHistoryDelete[Payment](tx, ctx, branchId, id, result, "Payment deleted"); err != nil {
		tx.Rollback()
		return nil, err
	}

	return result, tx.Commit().Error
}

func GetPayment(ctx context.Context, branchId int, id int) (*Payment, error) {
	result, err := utils.FetchModel[Payment](ctx, branchId, id, "Details")
	if err != nil {
		return nil, newNotFoundError("Payment", id)
	}
	return result, nil
}

type PaymentFilter struct {
	CustomerId *int
	FromDate   *time.Time
	ToDate     *time.Time
	MinAmount  *decimal.Decimal
}

func GetPayments(ctx context.Context, branchId int, filter PaymentFilter) ([]*Payment, error) {

	db := config.GetDB()
	var results []*Payment
	dbCtx := db.WithContext(ctx).Where("branch_id = ?", branchId).Preload("Details")
	if filter.CustomerId != nil {
		dbCtx = dbCtx.Where("customer_id = ?", *filter.CustomerId)
	}
	if filter.FromDate != nil {
		dbCtx = dbCtx.Where("received_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		dbCtx = dbCtx.Where("received_date <= ?", *filter.ToDate)
	}
	if filter.MinAmount != nil {
		dbCtx = dbCtx.Where("total_amount >= ?", *filter.MinAmount)
	}
	err := dbCtx.Order("received_date, id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// UnallocatedPayments lists payments no invoice references yet.
func UnallocatedPayments(ctx context.Context, branchId int) ([]*Payment, error) {

	db := config.GetDB()
	var results []*Payment
	err := db.WithContext(ctx).Preload("Details").
		Where("branch_id = ?", branchId).
		Where("id NOT IN (?)", db.Model(&CreditInvoice{}).
			Select("payment_id").Where("payment_id IS NOT NULL")).
		Order("received_date, id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
