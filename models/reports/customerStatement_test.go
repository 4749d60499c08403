package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func amt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildStatementEmpty(t *testing.T) {
	statement := buildStatement(amt("1200"), nil)
	if !statement.OpeningBalance.Equal(amt("1200")) {
		t.Errorf("opening: got %s, want 1200", statement.OpeningBalance)
	}
	if !statement.ClosingBalance.Equal(amt("1200")) {
		t.Errorf("closing: got %s, want 1200", statement.ClosingBalance)
	}
	if len(statement.Rows) != 0 {
		t.Errorf("rows: got %d, want 0", len(statement.Rows))
	}
}

func TestBuildStatementRunningBalance(t *testing.T) {
	entries := []StatementEntry{
		{Date: day(2025, 2, 10), TypeId: TransactionTypeInstrument, Reference: "CH0006", Received: amt("300")},
		{Date: day(2025, 2, 1), TypeId: TransactionTypeSales, Reference: "GRN-1", NetSales: amt("500")},
		{Date: day(2025, 2, 15), TypeId: TransactionTypeClaim, Reference: "CL0001", Received: amt("50")},
	}

	statement := buildStatement(amt("100"), entries)

	if len(statement.Rows) != 3 {
		t.Fatalf("rows: got %d, want 3", len(statement.Rows))
	}

	// rows come out in date order regardless of input order
	wantRefs := []string{"GRN-1", "CH0006", "CL0001"}
	wantBalances := []string{"600", "300", "250"}
	for i, row := range statement.Rows {
		if row.Reference != wantRefs[i] {
			t.Errorf("row %d: reference %q, want %q", i, row.Reference, wantRefs[i])
		}
		if !row.Balance.Equal(amt(wantBalances[i])) {
			t.Errorf("row %d: balance %s, want %s", i, row.Balance, wantBalances[i])
		}
	}
	if !statement.ClosingBalance.Equal(amt("250")) {
		t.Errorf("closing: got %s, want 250", statement.ClosingBalance)
	}
}

// Same-day entries print sales first, then instrument receipts, then
// claims, and the closing balance is the same whatever the tie order.
func TestBuildStatementSameDayOrdering(t *testing.T) {
	sameDay := day(2025, 3, 5)
	entries := []StatementEntry{
		{Date: sameDay, TypeId: TransactionTypeClaim, Reference: "CL0009", Received: amt("20")},
		{Date: sameDay, TypeId: TransactionTypeInstrument, Reference: "CH0010", Received: amt("80")},
		{Date: sameDay, TypeId: TransactionTypeSales, Reference: "GRN-9", NetSales: amt("100")},
	}

	statement := buildStatement(decimal.Zero, entries)

	wantRefs := []string{"GRN-9", "CH0010", "CL0009"}
	for i, row := range statement.Rows {
		if row.Reference != wantRefs[i] {
			t.Errorf("row %d: reference %q, want %q", i, row.Reference, wantRefs[i])
		}
	}
	if !statement.ClosingBalance.IsZero() {
		t.Errorf("closing: got %s, want 0", statement.ClosingBalance)
	}
}

// Closing balance always equals opening + sum(netSales) - sum(received).
func TestBuildStatementClosingIdentity(t *testing.T) {
	entries := []StatementEntry{
		{Date: day(2025, 1, 31), TypeId: TransactionTypeSales, NetSales: amt("750.25")},
		{Date: day(2025, 2, 3), TypeId: TransactionTypeInstrument, Received: amt("200")},
		{Date: day(2025, 2, 3), TypeId: TransactionTypeClaim, Received: amt("50.25")},
		{Date: day(2025, 2, 20), TypeId: TransactionTypeSales, NetSales: amt("124.75")},
	}
	opening := amt("-40")

	statement := buildStatement(opening, entries)

	want := opening
	for _, e := range entries {
		want = want.Add(e.NetSales).Sub(e.Received)
	}
	if !statement.ClosingBalance.Equal(want) {
		t.Errorf("closing: got %s, want %s", statement.ClosingBalance, want)
	}
	last := statement.Rows[len(statement.Rows)-1]
	if !last.Balance.Equal(statement.ClosingBalance) {
		t.Errorf("last row balance %s != closing %s", last.Balance, statement.ClosingBalance)
	}
}

// Sales enter the statement window by maturity date: an invoice dated
// 2025-01-01 with 30 grace days matures 2025-01-31 and belongs to a
// window starting that day, not to one ending 2025-01-30.
func TestBuildStatementMaturityPlacement(t *testing.T) {
	maturity := day(2025, 1, 31)
	entry := StatementEntry{Date: maturity, TypeId: TransactionTypeSales, NetSales: amt("900")}

	inWindow := func(from, to time.Time) bool {
		return !entry.Date.Before(from) && !entry.Date.After(to)
	}

	if !inWindow(day(2025, 1, 31), day(2025, 2, 28)) {
		t.Error("maturity 2025-01-31 should fall inside [2025-01-31, 2025-02-28]")
	}
	if inWindow(day(2025, 1, 1), day(2025, 1, 30)) {
		t.Error("maturity 2025-01-31 should fall outside [2025-01-01, 2025-01-30]")
	}

	statement := buildStatement(decimal.Zero, []StatementEntry{entry})
	if !statement.ClosingBalance.Equal(amt("900")) {
		t.Errorf("closing: got %s, want 900", statement.ClosingBalance)
	}
}
