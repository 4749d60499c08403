package models

import "testing"

func TestFormatIdNumber(t *testing.T) {
	tests := []struct {
		prefix string
		number int
		want   string
	}{
		{"CH", 1, "CH0001"},
		{"CH", 6, "CH0006"},
		{"CH", 42, "CH0042"},
		{"CH", 9999, "CH9999"},
		// counters wider than the pad print unpadded
		{"CH", 10000, "CH10000"},
		{"BK", 7, "BK0007"},
		{"", 3, "0003"},
	}
	for _, tt := range tests {
		if got := formatIdNumber(tt.prefix, tt.number); got != tt.want {
			t.Errorf("formatIdNumber(%q, %d) = %q, want %q", tt.prefix, tt.number, got, tt.want)
		}
	}
}
