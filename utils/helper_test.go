package utils

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	want := []int{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if UniqueSlice[int](nil) != nil {
		t.Error("nil input should stay nil")
	}
}

func TestDiffSlice(t *testing.T) {
	got := DiffSlice([]int{1, 2, 3, 4}, []int{2, 4, 5})
	want := []int{1, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	// invoice diffing relies on both directions being independent
	if res := DiffSlice([]int{2, 4, 5}, []int{1, 2, 3, 4}); len(res) != 1 || res[0] != 5 {
		t.Fatalf("reverse diff: got %v, want [5]", res)
	}
	if res := DiffSlice([]int{1, 2}, []int{1, 2}); res != nil {
		t.Fatalf("identical slices: got %v, want nil", res)
	}
}

func TestDereferencePtr(t *testing.T) {
	v := 7
	if got := DereferencePtr(&v); got != 7 {
		t.Errorf("got %d, want 7", got)
	}
	if got := DereferencePtr[int](nil); got != 0 {
		t.Errorf("nil without default: got %d, want 0", got)
	}
	if got := DereferencePtr(nil, 42); got != 42 {
		t.Errorf("nil with default: got %d, want 42", got)
	}
}

func TestNilIfEmpty(t *testing.T) {
	if NilIfEmpty("") != nil {
		t.Error("empty string should map to nil")
	}
	if got := NilIfEmpty("x"); got == nil || *got != "x" {
		t.Errorf("got %v, want pointer to \"x\"", got)
	}
	if NilIfEmpty(0) != nil {
		t.Error("zero int should map to nil")
	}
}

func TestLowercaseFirst(t *testing.T) {
	tests := []struct{ in, want string }{
		{"ToggleActive", "toggleActive"},
		{"already", "already"},
		{"", ""},
		{"A", "a"},
	}
	for _, tt := range tests {
		if got := LowercaseFirst(tt.in); got != tt.want {
			t.Errorf("LowercaseFirst(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProcessValidationErrors(t *testing.T) {
	type newEntry struct {
		Name   string `validate:"required"`
		Amount int    `validate:"min=1"`
	}
	err := validator.New().Struct(newEntry{})
	got := ProcessValidationErrors(err)
	if got["name"] != "required" {
		t.Errorf("name: got %q, want \"required\"", got["name"])
	}
	if got["amount"] != "min" {
		t.Errorf("amount: got %q, want \"min\"", got["amount"])
	}

	// malformed bodies hand a json error to the binder, not a
	// validator.ValidationErrors; the map must still come back
	var dest newEntry
	jsonErr := json.Unmarshal([]byte("{"), &dest)
	got = ProcessValidationErrors(jsonErr)
	if len(got) != 1 || got["body"] == "" {
		t.Errorf("syntax error: got %v, want single body entry", got)
	}

	got = ProcessValidationErrors(errors.New("unexpected EOF"))
	if got["body"] != "unexpected EOF" {
		t.Errorf("plain error: got %v, want body entry", got)
	}
}

func TestParseDecimal(t *testing.T) {
	d, err := ParseDecimal(" 12.3400 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "12.34" {
		t.Errorf("got %s, want 12.34", d)
	}
	if _, err := ParseDecimal(""); err == nil {
		t.Error("expected error for empty string")
	}
	if _, err := ParseDecimal("abc"); err == nil {
		t.Error("expected error for non-numeric string")
	}
}
