package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewAliasId(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newAliasId()
		if len(id) != 10 {
			t.Fatalf("alias id %q has length %d, want 10", id, len(id))
		}
		for _, r := range id {
			if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
				t.Fatalf("alias id %q contains non-hex rune %q", id, r)
			}
		}
		if seen[id] {
			t.Fatalf("alias id %q repeated within 100 draws", id)
		}
		seen[id] = true
	}
}

func TestMaturityDate(t *testing.T) {
	txn := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	got := maturityDate(txn, 30)
	want := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("30 grace days: got %s, want %s", got.Format("2006-01-02"), want.Format("2006-01-02"))
	}

	// zero grace days means due on the transaction date itself
	if got := maturityDate(txn, 0); !got.Equal(txn) {
		t.Errorf("0 grace days: got %s, want %s", got.Format("2006-01-02"), txn.Format("2006-01-02"))
	}

	// month-end rollover
	got = maturityDate(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), 45)
	want = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("45 grace days: got %s, want %s", got.Format("2006-01-02"), want.Format("2006-01-02"))
	}
}

func TestSumDecimals(t *testing.T) {
	if got := sumDecimals(nil); !got.IsZero() {
		t.Errorf("nil slice: got %s, want 0", got)
	}
	values := []decimal.Decimal{amt("10.5"), amt("0.25"), amt("-3")}
	if got := sumDecimals(values); !got.Equal(amt("7.75")) {
		t.Errorf("got %s, want 7.75", got)
	}
}
