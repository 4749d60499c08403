package reports

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/arledger_backend/config"
	"github.com/shopspring/decimal"
)

// InvoicePaymentLine is one settling instrument line under an invoice.
type InvoicePaymentLine struct {
	ReceivedDate   time.Time       `json:"received_date"`
	IdNumber       string          `json:"id_number"`
	InstrumentName string          `json:"instrument_name"`
	Amount         decimal.Decimal `json:"amount"`
}

type InvoicePaymentRow struct {
	InvoiceId       int                  `json:"invoice_id"`
	Grn             string               `json:"grn"`
	CustomerName    string               `json:"customer_name"`
	TransactionDate time.Time            `json:"transaction_date"`
	SalesAmount     decimal.Decimal      `json:"sales_amount"`
	SalesReturn     decimal.Decimal      `json:"sales_return"`
	NetSales        decimal.Decimal      `json:"net_sales"`
	Settled         bool                 `json:"settled"`
	PaymentId       *int                 `json:"payment_id"`
	Lines           []InvoicePaymentLine `json:"lines"`
}

type invoiceReportScan struct {
	InvoiceId       int
	Grn             string
	CustomerName    string
	TransactionDate time.Time
	SalesAmount     decimal.Decimal
	SalesReturn     decimal.Decimal
	PaymentId       *int
}

type detailReportScan struct {
	PaymentId      int
	ReceivedDate   time.Time
	IdNumber       string
	InstrumentName string
	Amount         decimal.Decimal
}

// GetInvoicePaymentReport lists invoices in the window with the
// instrument lines of whichever payment settled them.
func GetInvoicePaymentReport(ctx context.Context, branchId int, fromDate time.Time, toDate time.Time) ([]*InvoicePaymentRow, error) {
	db := config.GetDB()

	var invoices []invoiceReportScan
	err := db.WithContext(ctx).Table("credit_invoices ci").
		Select("ci.id AS invoice_id, ci.grn, c.name AS customer_name, ci.transaction_date, ci.sales_amount, ci.sales_return, ci.payment_id").
		Joins("JOIN customers c ON c.id = ci.customer_id").
		Where("ci.branch_id = ?", branchId).
		Where("ci.transaction_date BETWEEN ? AND ?", fromDate, toDate).
		Order("ci.transaction_date, ci.id").
		Scan(&invoices).Error
	if err != nil {
		return nil, err
	}

	paymentIds := make([]int, 0, len(invoices))
	for _, invoice := range invoices {
		if invoice.PaymentId != nil {
			paymentIds = append(paymentIds, *invoice.PaymentId)
		}
	}

	lines := make(map[int][]InvoicePaymentLine)
	if len(paymentIds) > 0 {
		var details []detailReportScan
		err = db.WithContext(ctx).Table("payment_details pd").
			Select("pd.payment_id, p.received_date, pd.id_number, pi.instrument_name, pd.amount").
			Joins("JOIN payments p ON p.id = pd.payment_id").
			Joins("JOIN payment_instruments pi ON pi.id = pd.payment_instrument_id").
			Where("pd.payment_id IN ?", paymentIds).
			Order("pd.payment_id, pd.id").
			Scan(&details).Error
		if err != nil {
			return nil, err
		}
		for _, detail := range details {
			lines[detail.PaymentId] = append(lines[detail.PaymentId], InvoicePaymentLine{
				ReceivedDate:   detail.ReceivedDate,
				IdNumber:       detail.IdNumber,
				InstrumentName: detail.InstrumentName,
				Amount:         detail.Amount,
			})
		}
	}

	rows := make([]*InvoicePaymentRow, 0, len(invoices))
	for _, invoice := range invoices {
		row := &InvoicePaymentRow{
			InvoiceId:       invoice.InvoiceId,
			Grn:             invoice.Grn,
			CustomerName:    invoice.CustomerName,
			TransactionDate: invoice.TransactionDate,
			SalesAmount:     invoice.SalesAmount,
			SalesReturn:     invoice.SalesReturn,
			NetSales:        invoice.SalesAmount.Sub(invoice.SalesReturn),
			Settled:         invoice.PaymentId != nil,
			PaymentId:       invoice.PaymentId,
		}
		if invoice.PaymentId != nil {
			row.Lines = lines[*invoice.PaymentId]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
