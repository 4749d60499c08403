package reports

import (
	"context"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/arledger_backend/config"
	"github.com/shopspring/decimal"
)

// TransactionType fixes the print order of same-day statement rows:
// opening first, then sales, then instrument receipts, then claims.
type TransactionType int

const (
	TransactionTypeOpening    TransactionType = 0
	TransactionTypeSales      TransactionType = 1
	TransactionTypeInstrument TransactionType = 2
	TransactionTypeClaim      TransactionType = 3
)

// StatementEntry is one transaction feeding the statement, before the
// running balance is applied. Exactly one of NetSales/Received is
// non-zero depending on the type.
type StatementEntry struct {
	Date        time.Time       `json:"date"`
	TypeId      TransactionType `json:"type_id"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
	NetSales    decimal.Decimal `json:"net_sales"`
	Received    decimal.Decimal `json:"received"`
}

type StatementRow struct {
	StatementEntry
	Balance decimal.Decimal `json:"balance"`
}

type CustomerStatement struct {
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Rows           []StatementRow  `json:"rows"`
}

// buildStatement merges the entries, orders them by (date, type id) and
// walks the running balance: b_i = b_{i-1} + netSales_i - received_i.
// The sort is stable so equal keys keep their stream order. Closing
// balance always equals opening + sum(netSales) - sum(received) exactly,
// whatever the tie ordering.
func buildStatement(openingBalance decimal.Decimal, entries []StatementEntry) *CustomerStatement {

	sorted := make([]StatementEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].TypeId < sorted[j].TypeId
	})

	statement := &CustomerStatement{
		OpeningBalance: openingBalance,
		ClosingBalance: openingBalance,
		Rows:           make([]StatementRow, 0, len(sorted)),
	}
	balance := openingBalance
	for _, entry := range sorted {
		balance = balance.Add(entry.NetSales).Sub(entry.Received)
		statement.Rows = append(statement.Rows, StatementRow{
			StatementEntry: entry,
			Balance:        balance,
		})
	}
	statement.ClosingBalance = balance
	return statement
}

// invoice maturity in SQL terms; grace days live on the invoice row
const maturityExpr = "DATE_ADD(transaction_date, INTERVAL payment_grace_days DAY)"

type decimalScan struct {
	Total decimal.Decimal
}

// openingBalance as of fromDate: matured net sales minus everything
// received before the window.
func openingBalance(ctx context.Context, branchId int, customerId int, fromDate time.Time) (decimal.Decimal, error) {
	db := config.GetDB()

	var sales decimalScan
	err := db.WithContext(ctx).Table("credit_invoices").
		Select("COALESCE(SUM(sales_amount - sales_return), 0) AS total").
		Where("branch_id = ? AND customer_id = ?", branchId, customerId).
		Where(maturityExpr+" < ?", fromDate).
		Scan(&sales).Error
	if err != nil {
		return decimal.Zero, err
	}

	var received decimalScan
	err = db.WithContext(ctx).Table("payment_details pd").
		Select("COALESCE(SUM(pd.amount), 0) AS total").
		Joins("JOIN payments p ON p.id = pd.payment_id").
		Where("p.branch_id = ? AND p.customer_id = ?", branchId, customerId).
		Where("p.received_date < ?", fromDate).
		Scan(&received).Error
	if err != nil {
		return decimal.Zero, err
	}

	return sales.Total.Sub(received.Total), nil
}

type invoiceStatementRow struct {
	Grn             string
	TransactionDate time.Time
	Maturity        time.Time
	NetSales        decimal.Decimal
}

type detailStatementRow struct {
	ReceivedDate   time.Time
	IdNumber       string
	InstrumentName string
	Kind           string
	Amount         decimal.Decimal
}

// GetCustomerStatement produces the ordered transaction statement with
// a running balance for one customer over [fromDate, toDate]. Sales
// enter the window by MATURITY date, receipts and claims by received
// date.
func GetCustomerStatement(ctx context.Context, branchId int, customerId int, fromDate time.Time, toDate time.Time) (*CustomerStatement, error) {
	db := config.GetDB()

	opening, err := openingBalance(ctx, branchId, customerId, fromDate)
	if err != nil {
		return nil, err
	}

	var invoices []invoiceStatementRow
	err = db.WithContext(ctx).Table("credit_invoices").
		Select("grn, transaction_date, "+maturityExpr+" AS maturity, sales_amount - sales_return AS net_sales").
		Where("branch_id = ? AND customer_id = ?", branchId, customerId).
		Where(maturityExpr+" BETWEEN ? AND ?", fromDate, toDate).
		Scan(&invoices).Error
	if err != nil {
		return nil, err
	}

	var details []detailStatementRow
	err = db.WithContext(ctx).Table("payment_details pd").
		Select("p.received_date, pd.id_number, pi.instrument_name, pit.kind, pd.amount").
		Joins("JOIN payments p ON p.id = pd.payment_id").
		Joins("JOIN payment_instruments pi ON pi.id = pd.payment_instrument_id").
		Joins("JOIN payment_instrument_types pit ON pit.id = pi.instrument_type_id").
		Where("p.branch_id = ? AND p.customer_id = ?", branchId, customerId).
		Where("p.received_date BETWEEN ? AND ?", fromDate, toDate).
		Scan(&details).Error
	if err != nil {
		return nil, err
	}

	entries := make([]StatementEntry, 0, len(invoices)+len(details))
	for _, invoice := range invoices {
		entries = append(entries, StatementEntry{
			Date:        invoice.Maturity,
			TypeId:      TransactionTypeSales,
			Description: "Sales",
			Reference:   invoice.Grn,
			NetSales:    invoice.NetSales,
		})
	}
	for _, detail := range details {
		typeId := TransactionTypeInstrument
		if detail.Kind == "Claim" {
			typeId = TransactionTypeClaim
		}
		entries = append(entries, StatementEntry{
			Date:        detail.ReceivedDate,
			TypeId:      typeId,
			Description: detail.InstrumentName,
			Reference:   detail.IdNumber,
			Received:    detail.Amount,
		})
	}

	return buildStatement(opening, entries), nil
}
