package reports

import (
	"context"
	"sort"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/arledger_backend/config"
	"bitbucket.org/mmdatafocus/arledger_backend/models"
	"bitbucket.org/mmdatafocus/arledger_backend/utils"
	"github.com/shopspring/decimal"
)

type ParentDueSort string

const (
	ParentDueSortDue  ParentDueSort = "due"
	ParentDueSortName ParentDueSort = "name"
)

type ParentDueRow struct {
	ParentId      int             `json:"parent_id"`
	ParentAliasId string          `json:"parent_alias_id"`
	ParentName    string          `json:"parent_name"`
	NetSales      decimal.Decimal `json:"net_sales"`
	Cash          decimal.Decimal `json:"cash"`
	Claim         decimal.Decimal `json:"claim"`
	Due           decimal.Decimal `json:"due"`
}

// customerDue holds one customer's own aggregates before rollup.
type customerDue struct {
	CustomerId int
	ParentId   *int
	IsParent   bool
	NetSales   decimal.Decimal
	Cash       decimal.Decimal
	Claim      decimal.Decimal
}

type parentRef struct {
	AliasId string
	Name    string
}

// rollupParentDue buckets per-customer aggregates into parent rows.
// Children contribute their net sales (and any receipts recorded
// against them); parents contribute only their own receipts, since
// payments are taken against the parent while invoices sit on the
// children. Parentless leaves drop out entirely.
func rollupParentDue(parents map[int]parentRef, customers []customerDue) []*ParentDueRow {
	buckets := make(map[int]*ParentDueRow)
	bucket := func(parentId int) *ParentDueRow {
		row, ok := buckets[parentId]
		if !ok {
			ref := parents[parentId]
			row = &ParentDueRow{
				ParentId:      parentId,
				ParentAliasId: ref.AliasId,
				ParentName:    ref.Name,
				NetSales:      decimal.Zero,
				Cash:          decimal.Zero,
				Claim:         decimal.Zero,
				Due:           decimal.Zero,
			}
			buckets[parentId] = row
		}
		return row
	}

	for _, customer := range customers {
		if customer.IsParent {
			if _, ok := parents[customer.CustomerId]; !ok {
				continue
			}
			row := bucket(customer.CustomerId)
			row.Cash = row.Cash.Add(customer.Cash)
			row.Claim = row.Claim.Add(customer.Claim)
			continue
		}
		if customer.ParentId == nil {
			continue
		}
		if _, ok := parents[*customer.ParentId]; !ok {
			continue
		}
		row := bucket(*customer.ParentId)
		row.NetSales = row.NetSales.Add(customer.NetSales)
		row.Cash = row.Cash.Add(customer.Cash)
		row.Claim = row.Claim.Add(customer.Claim)
	}

	rows := make([]*ParentDueRow, 0, len(buckets))
	for _, row := range buckets {
		row.Due = row.NetSales.Sub(row.Cash).Sub(row.Claim)
		rows = append(rows, row)
	}
	return rows
}

func sortParentDueRows(rows []*ParentDueRow, sortBy ParentDueSort) {
	switch sortBy {
	case ParentDueSortName:
		sort.SliceStable(rows, func(i, j int) bool {
			return strings.ToLower(rows[i].ParentName) < strings.ToLower(rows[j].ParentName)
		})
	default:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Due.GreaterThan(rows[j].Due)
		})
	}
}

type customerAmountRow struct {
	CustomerId int
	Total      decimal.Decimal
}

// GetParentOrgDueReport aggregates due per parent organization for a
// branch as of the cutoff date.
func GetParentOrgDueReport(ctx context.Context, branchId int, cutoff time.Time, sortBy ParentDueSort) ([]*ParentDueRow, error) {
	db := config.GetDB()

	customers, err := utils.FetchAllModels[models.Customer](ctx, branchId)
	if err != nil {
		return nil, err
	}

	var salesRows []customerAmountRow
	err = db.WithContext(ctx).Table("credit_invoices").
		Select("customer_id, COALESCE(SUM(sales_amount - sales_return), 0) AS total").
		Where("branch_id = ? AND transaction_date <= ?", branchId, cutoff).
		Group("customer_id").
		Scan(&salesRows).Error
	if err != nil {
		return nil, err
	}

	detailTotals := func(claimKind bool) ([]customerAmountRow, error) {
		kindCond := "pit.kind <> ?"
		if claimKind {
			kindCond = "pit.kind = ?"
		}
		var rows []customerAmountRow
		err := db.WithContext(ctx).Table("payment_details pd").
			Select("p.customer_id, COALESCE(SUM(pd.amount), 0) AS total").
			Joins("JOIN payments p ON p.id = pd.payment_id").
			Joins("JOIN payment_instruments pi ON pi.id = pd.payment_instrument_id").
			Joins("JOIN payment_instrument_types pit ON pit.id = pi.instrument_type_id").
			Where("p.branch_id = ? AND p.received_date <= ?", branchId, cutoff).
			Where(kindCond, models.InstrumentKindClaim).
			Group("p.customer_id").
			Scan(&rows).Error
		return rows, err
	}

	cashRows, err := detailTotals(false)
	if err != nil {
		return nil, err
	}
	claimRows, err := detailTotals(true)
	if err != nil {
		return nil, err
	}

	toMap := func(rows []customerAmountRow) map[int]decimal.Decimal {
		m := make(map[int]decimal.Decimal, len(rows))
		for _, row := range rows {
			m[row.CustomerId] = row.Total
		}
		return m
	}
	sales := toMap(salesRows)
	cash := toMap(cashRows)
	claims := toMap(claimRows)

	parents := make(map[int]parentRef)
	dues := make([]customerDue, 0, len(customers))
	zero := decimal.Zero
	for _, customer := range customers {
		if utils.DereferencePtr(customer.IsParent) {
			parents[customer.ID] = parentRef{AliasId: customer.AliasId, Name: customer.Name}
		}
		netSales, ok := sales[customer.ID]
		if !ok {
			netSales = zero
		}
		cashAmount, ok := cash[customer.ID]
		if !ok {
			cashAmount = zero
		}
		claimAmount, ok := claims[customer.ID]
		if !ok {
			claimAmount = zero
		}
		dues = append(dues, customerDue{
			CustomerId: customer.ID,
			ParentId:   customer.ParentId,
			IsParent:   utils.DereferencePtr(customer.IsParent),
			NetSales:   netSales,
			Cash:       cashAmount,
			Claim:      claimAmount,
		})
	}

	rows := rollupParentDue(parents, dues)
	sortParentDueRows(rows, sortBy)
	return rows, nil
}
