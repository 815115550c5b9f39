package utils

import (
	"strings"
	"testing"
)

func TestJSONToString_Compact(t *testing.T) {
	got := JSONToString(map[string]int{"a": 1})
	if got != `{"a":1}` {
		t.Errorf("expected compact JSON, got %q", got)
	}
}

func TestJSONToString_Indented(t *testing.T) {
	got := JSONToString(map[string]int{"a": 1}, true)
	if !strings.Contains(got, "\n") {
		t.Errorf("expected indented output, got %q", got)
	}
}

func TestJSONToString_MarshalError(t *testing.T) {
	got := JSONToString(make(chan int))
	if !strings.Contains(got, "error") {
		t.Errorf("expected error placeholder, got %q", got)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string untouched", "hello", 10, "hello"},
		{"exact length untouched", "hello", 5, "hello"},
		{"long string truncated", "hello world", 5, "hello... (truncated, total: 11 chars)"},
		{"empty string", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestTruncateString_ZeroMaxUsesDefault(t *testing.T) {
	long := strings.Repeat("x", DefaultMaxStringLength+100)
	got := TruncateString(long, 0)
	if !strings.Contains(got, "truncated") {
		t.Error("expected truncation with default limit")
	}
	if len(got) >= len(long) {
		t.Error("expected output shorter than input")
	}
}
