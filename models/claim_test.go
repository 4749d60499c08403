package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func decPtr(s string) *decimal.Decimal {
	d := amt(s)
	return &d
}

func TestValidateClaimRefund(t *testing.T) {
	detailAmount := amt("500")

	tests := []struct {
		name    string
		input   UpdateClaimInput
		wantErr bool
	}{
		{
			name:  "no refund fields is fine",
			input: UpdateClaimInput{SubmittedDate: datePtr(2025, 3, 1)},
		},
		{
			name: "full refund",
			input: UpdateClaimInput{
				SubmittedDate: datePtr(2025, 3, 1),
				RefundAmount:  decPtr("500"),
				RefundDate:    datePtr(2025, 3, 10),
			},
		},
		{
			name: "partial refund",
			input: UpdateClaimInput{
				SubmittedDate: datePtr(2025, 3, 1),
				RefundAmount:  decPtr("200"),
				RefundDate:    datePtr(2025, 3, 1),
			},
		},
		{
			name: "refund amount without date",
			input: UpdateClaimInput{
				SubmittedDate: datePtr(2025, 3, 1),
				RefundAmount:  decPtr("200"),
			},
			wantErr: true,
		},
		{
			name: "refund date without amount",
			input: UpdateClaimInput{
				SubmittedDate: datePtr(2025, 3, 1),
				RefundDate:    datePtr(2025, 3, 10),
			},
			wantErr: true,
		},
		{
			name: "refund without submission",
			input: UpdateClaimInput{
				RefundAmount: decPtr("200"),
				RefundDate:   datePtr(2025, 3, 10),
			},
			wantErr: true,
		},
		{
			name: "refund date before submitted date",
			input: UpdateClaimInput{
				SubmittedDate: datePtr(2025, 3, 10),
				RefundAmount:  decPtr("200"),
				RefundDate:    datePtr(2025, 3, 1),
			},
			wantErr: true,
		},
		{
			name: "zero refund amount",
			input: UpdateClaimInput{
				SubmittedDate: datePtr(2025, 3, 1),
				RefundAmount:  decPtr("0"),
				RefundDate:    datePtr(2025, 3, 10),
			},
			wantErr: true,
		},
		{
			name: "negative refund amount",
			input: UpdateClaimInput{
				SubmittedDate: datePtr(2025, 3, 1),
				RefundAmount:  decPtr("-50"),
				RefundDate:    datePtr(2025, 3, 10),
			},
			wantErr: true,
		},
		{
			name: "refund exceeds detail amount",
			input: UpdateClaimInput{
				SubmittedDate: datePtr(2025, 3, 1),
				RefundAmount:  decPtr("500.01"),
				RefundDate:    datePtr(2025, 3, 10),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateClaimRefund(&tt.input, detailAmount)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestClaimStatus(t *testing.T) {
	detailAmount := amt("500")

	open := Claim{}
	if got := open.Status(detailAmount); got != ClaimStatusOpen {
		t.Errorf("no refund: got %s, want %s", got, ClaimStatusOpen)
	}

	partial := Claim{RefundAmount: decPtr("499.9999")}
	if got := partial.Status(detailAmount); got != ClaimStatusPartiallyRefunded {
		t.Errorf("partial refund: got %s, want %s", got, ClaimStatusPartiallyRefunded)
	}

	// equality is by value, not scale
	full := Claim{RefundAmount: decPtr("500.0000")}
	if got := full.Status(detailAmount); got != ClaimStatusFullyRefunded {
		t.Errorf("full refund: got %s, want %s", got, ClaimStatusFullyRefunded)
	}
}
