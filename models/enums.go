package models

type BranchType string

const (
	BranchTypeHeadOffice BranchType = "HeadOffice"
	BranchTypeBranch     BranchType = "Branch"
)

func (t BranchType) IsValid() bool {
	switch t {
	case BranchTypeHeadOffice, BranchTypeBranch:
		return true
	}
	return false
}

// InstrumentKind classifies instrument types symbolically so settlement
// math never depends on serial numbers.
type InstrumentKind string

const (
	InstrumentKindCash   InstrumentKind = "Cash"
	InstrumentKindCheque InstrumentKind = "Cheque"
	InstrumentKindBank   InstrumentKind = "Bank"
	InstrumentKindClaim  InstrumentKind = "Claim"
	InstrumentKindOther  InstrumentKind = "Other"
)

func (k InstrumentKind) IsValid() bool {
	switch k {
	case InstrumentKindCash, InstrumentKindCheque, InstrumentKindBank, InstrumentKindClaim, InstrumentKindOther:
		return true
	}
	return false
}

type MasterClaimCategory string

const (
	MasterClaimCategorySalesReturn MasterClaimCategory = "SRTN"
	MasterClaimCategoryOther       MasterClaimCategory = "OTH"
)

func (c MasterClaimCategory) IsValid() bool {
	switch c {
	case MasterClaimCategorySalesReturn, MasterClaimCategoryOther:
		return true
	}
	return false
}

type ClaimStatus string

const (
	ClaimStatusOpen              ClaimStatus = "Open"
	ClaimStatusPartiallyRefunded ClaimStatus = "PartiallyRefunded"
	ClaimStatusFullyRefunded     ClaimStatus = "FullyRefunded"
)
