package utils

import (
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// RepairJSON attempts to fix a malformed JSON document (truncated arrays,
// trailing commas, unquoted keys, single quotes) and returns the repaired
// bytes. It is used as an opt-in recovery step when loading a damaged
// conversation history file before falling back to discarding it.
func RepairJSON(data []byte) ([]byte, error) {
	repaired, err := jsonrepair.JSONRepair(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to repair JSON: %w", err)
	}
	return []byte(repaired), nil
}
