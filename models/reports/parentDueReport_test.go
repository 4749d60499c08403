package reports

import (
	"testing"
)

func intPtr(v int) *int { return &v }

func TestRollupParentDue(t *testing.T) {
	parents := map[int]parentRef{
		1: {AliasId: "aaaa111111", Name: "Golden Land"},
		2: {AliasId: "bbbb222222", Name: "Ayeyar Trading"},
	}
	customers := []customerDue{
		// parent rows carry the receipts taken against them
		{CustomerId: 1, IsParent: true, Cash: amt("600"), Claim: amt("100")},
		{CustomerId: 2, IsParent: true},
		// children carry the sales
		{CustomerId: 10, ParentId: intPtr(1), NetSales: amt("1000")},
		{CustomerId: 11, ParentId: intPtr(1), NetSales: amt("250")},
		{CustomerId: 20, ParentId: intPtr(2), NetSales: amt("400"), Cash: amt("50")},
		// parentless leaf drops out
		{CustomerId: 30, NetSales: amt("9999")},
	}

	rows := rollupParentDue(parents, customers)
	if len(rows) != 2 {
		t.Fatalf("rows: got %d, want 2", len(rows))
	}

	byId := make(map[int]*ParentDueRow)
	for _, row := range rows {
		byId[row.ParentId] = row
	}

	golden := byId[1]
	if golden == nil {
		t.Fatal("missing row for parent 1")
	}
	if !golden.NetSales.Equal(amt("1250")) {
		t.Errorf("parent 1 net sales: got %s, want 1250", golden.NetSales)
	}
	if !golden.Cash.Equal(amt("600")) {
		t.Errorf("parent 1 cash: got %s, want 600", golden.Cash)
	}
	if !golden.Claim.Equal(amt("100")) {
		t.Errorf("parent 1 claim: got %s, want 100", golden.Claim)
	}
	if !golden.Due.Equal(amt("550")) {
		t.Errorf("parent 1 due: got %s, want 550", golden.Due)
	}

	ayeyar := byId[2]
	if ayeyar == nil {
		t.Fatal("missing row for parent 2")
	}
	if !ayeyar.Due.Equal(amt("350")) {
		t.Errorf("parent 2 due: got %s, want 350", ayeyar.Due)
	}
	if ayeyar.ParentName != "Ayeyar Trading" {
		t.Errorf("parent 2 name: got %q", ayeyar.ParentName)
	}
}

func TestRollupParentDueEmpty(t *testing.T) {
	rows := rollupParentDue(map[int]parentRef{}, nil)
	if len(rows) != 0 {
		t.Fatalf("got %d rows, want 0", len(rows))
	}
}

func TestSortParentDueRows(t *testing.T) {
	rows := []*ParentDueRow{
		{ParentId: 1, ParentName: "zaw & sons", Due: amt("100")},
		{ParentId: 2, ParentName: "Aung Trading", Due: amt("300")},
		{ParentId: 3, ParentName: "myint Brothers", Due: amt("200")},
	}

	sortParentDueRows(rows, ParentDueSortDue)
	if rows[0].ParentId != 2 || rows[1].ParentId != 3 || rows[2].ParentId != 1 {
		t.Errorf("due sort: got order %d,%d,%d", rows[0].ParentId, rows[1].ParentId, rows[2].ParentId)
	}

	// name sort is case insensitive
	sortParentDueRows(rows, ParentDueSortName)
	if rows[0].ParentId != 2 || rows[1].ParentId != 3 || rows[2].ParentId != 1 {
		t.Errorf("name sort: got order %d,%d,%d", rows[0].ParentId, rows[1].ParentId, rows[2].ParentId)
	}

	// unknown sort key falls back to due descending
	sortParentDueRows(rows, ParentDueSort("bogus"))
	if !rows[0].Due.Equal(amt("300")) {
		t.Errorf("fallback sort: first due %s, want 300", rows[0].Due)
	}
}

func TestSortParentDueRowsStableOnTies(t *testing.T) {
	rows := []*ParentDueRow{
		{ParentId: 1, ParentName: "First", Due: amt("100")},
		{ParentId: 2, ParentName: "Second", Due: amt("100")},
	}
	sortParentDueRows(rows, ParentDueSortDue)
	if rows[0].ParentId != 1 || rows[1].ParentId != 2 {
		t.Errorf("equal dues reordered: got %d,%d", rows[0].ParentId, rows[1].ParentId)
	}
}
