package utils

import (
	"encoding/json"
	"testing"
)

// TestRepairJSON_TruncatedArray verifies that a truncated JSON array is
// closed and becomes parseable again.
func TestRepairJSON_TruncatedArray(t *testing.T) {
	damaged := []byte(`[{"user": "hi", "assistant": "hello"}, {"user": "bye"`)

	repaired, err := RepairJSON(damaged)
	if err != nil {
		t.Fatalf("expected repair to succeed, got %v", err)
	}

	var records []map[string]any
	if err := json.Unmarshal(repaired, &records); err != nil {
		t.Fatalf("repaired JSON still unparsable: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records after repair, got %d", len(records))
	}
}

// TestRepairJSON_SingleQuotes verifies common quoting damage is normalised.
func TestRepairJSON_SingleQuotes(t *testing.T) {
	repaired, err := RepairJSON([]byte(`{'user': 'hi'}`))
	if err != nil {
		t.Fatalf("expected repair to succeed, got %v", err)
	}

	var record map[string]string
	if err := json.Unmarshal(repaired, &record); err != nil {
		t.Fatalf("repaired JSON still unparsable: %v", err)
	}
	if record["user"] != "hi" {
		t.Errorf("expected user=hi, got %q", record["user"])
	}
}
