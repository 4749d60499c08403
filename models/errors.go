package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks across packages. The concrete
// wrapper types below carry the details and unwrap to these.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("record not found")
	ErrVersionConflict   = errors.New("version conflict")
	ErrDuplicateIdNumber = errors.New("duplicate id number")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func newValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func newNotFoundError(resource string, key interface{}) error {
	return &NotFoundError{Resource: resource, Key: fmt.Sprint(key)}
}

// VersionConflictError reports a stale optimistic-concurrency token.
// Current is the version stored in the database at conflict time.
type VersionConflictError struct {
	Resource string
	Current  int
	Supplied int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s version conflict: supplied %d, current %d", e.Resource, e.Supplied, e.Current)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

type DuplicateIdNumberError struct {
	BranchId int
	IdNumber string
}

func (e *DuplicateIdNumberError) Error() string {
	return fmt.Sprintf("id number %q already exists in branch %d", e.IdNumber, e.BranchId)
}

func (e *DuplicateIdNumberError) Unwrap() error { return ErrDuplicateIdNumber }
