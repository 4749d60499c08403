package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorWrappers(t *testing.T) {
	validation := newValidationError("name", "name is required")
	if !errors.Is(validation, ErrValidation) {
		t.Error("validation error does not unwrap to ErrValidation")
	}
	var ve *ValidationError
	if !errors.As(validation, &ve) || ve.Field != "name" {
		t.Errorf("errors.As(ValidationError) failed: %v", validation)
	}

	notFound := newNotFoundError("Customer", 42)
	if !errors.Is(notFound, ErrNotFound) {
		t.Error("not found error does not unwrap to ErrNotFound")
	}
	var nfe *NotFoundError
	if !errors.As(notFound, &nfe) || nfe.Resource != "Customer" || nfe.Key != "42" {
		t.Errorf("errors.As(NotFoundError) failed: %v", notFound)
	}

	conflict := &VersionConflictError{Resource: "Payment", Current: 4, Supplied: 3}
	if !errors.Is(conflict, ErrVersionConflict) {
		t.Error("version conflict does not unwrap to ErrVersionConflict")
	}

	duplicate := &DuplicateIdNumberError{BranchId: 1, IdNumber: "CH0006"}
	if !errors.Is(duplicate, ErrDuplicateIdNumber) {
		t.Error("duplicate id number does not unwrap to ErrDuplicateIdNumber")
	}

	// wrapping through fmt keeps the chain intact
	wrapped := fmt.Errorf("create payment: %w", conflict)
	if !errors.Is(wrapped, ErrVersionConflict) {
		t.Error("fmt-wrapped conflict lost ErrVersionConflict")
	}
	var vce *VersionConflictError
	if !errors.As(wrapped, &vce) || vce.Current != 4 || vce.Supplied != 3 {
		t.Errorf("errors.As(VersionConflictError) failed: %v", wrapped)
	}

	// the sentinel families stay disjoint
	if errors.Is(validation, ErrNotFound) || errors.Is(notFound, ErrValidation) {
		t.Error("error families are not disjoint")
	}
}
