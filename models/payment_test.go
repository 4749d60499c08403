package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func amt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestValidateDetailSum(t *testing.T) {
	details := []NewPaymentDetail{
		{PaymentInstrumentId: 1, Amount: amt("100.50")},
		{PaymentInstrumentId: 2, Amount: amt("49.50")},
	}

	// no declared total means nothing to check
	if err := validateDetailSum(nil, details); err != nil {
		t.Fatalf("nil total: unexpected error %v", err)
	}

	matching := amt("150.00")
	if err := validateDetailSum(&matching, details); err != nil {
		t.Fatalf("matching total: unexpected error %v", err)
	}

	// scale must not matter, only value
	scaled := amt("150.0000")
	if err := validateDetailSum(&scaled, details); err != nil {
		t.Fatalf("scaled total: unexpected error %v", err)
	}

	mismatched := amt("150.01")
	err := validateDetailSum(&mismatched, details)
	if err == nil {
		t.Fatal("mismatched total: expected error")
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("mismatched total: expected validation error, got %v", err)
	}
}

func TestComputePaymentAggregates(t *testing.T) {
	catalog := map[int]instrumentCatalogEntry{
		1: {InstrumentId: 1, Kind: InstrumentKindCash, IsCashEquivalent: true},
		2: {InstrumentId: 2, Kind: InstrumentKindCheque, IsCashEquivalent: true},
		3: {InstrumentId: 3, Kind: InstrumentKindClaim, IsCashEquivalent: false},
		4: {InstrumentId: 4, Kind: InstrumentKindOther, IsCashEquivalent: false},
	}
	details := []NewPaymentDetail{
		{PaymentInstrumentId: 1, Amount: amt("1000")},
		{PaymentInstrumentId: 2, Amount: amt("250.25")},
		{PaymentInstrumentId: 3, Amount: amt("99.75")},
		{PaymentInstrumentId: 4, Amount: amt("50")},
	}

	agg := computePaymentAggregates(details, catalog)

	if !agg.Total.Equal(amt("1400")) {
		t.Errorf("total: got %s, want 1400", agg.Total)
	}
	if !agg.CashEquivalent.Equal(amt("1250.25")) {
		t.Errorf("cash equivalent: got %s, want 1250.25", agg.CashEquivalent)
	}
	if !agg.Claim.Equal(amt("99.75")) {
		t.Errorf("claim: got %s, want 99.75", agg.Claim)
	}
}

func TestComputePaymentAggregatesEmpty(t *testing.T) {
	agg := computePaymentAggregates(nil, nil)
	if !agg.Total.IsZero() || !agg.CashEquivalent.IsZero() || !agg.Claim.IsZero() {
		t.Fatalf("empty details: expected all zeros, got %+v", agg)
	}
}
