package anthropic

import (
	"encoding/json"
	"fmt"
)

/*
	ANTHROPIC SSE STREAMING - WIRE TYPES

	Anthropic streaming uses SSE with "event:" lines to identify event types,
	followed by "data:" lines containing JSON payloads. The SSE scanner only
	processes "data:" lines, so the "type" field inside the JSON payload
	discriminates events.

	Event lifecycle:
	  message_start → content_block_start → content_block_delta(s) →
	  content_block_stop → message_delta → message_stop
*/

// anthropicStreamEvent is the top-level envelope for all Anthropic SSE
// events. The Type field discriminates which optional fields are populated.
type anthropicStreamEvent struct {
	Type    string             `json:"type"`
	Message *anthropicResponse `json:"message,omitempty"` // For "message_start"
	Index   int                `json:"index,omitempty"`   // For content_block_start/delta/stop
	Delta   *streamDelta       `json:"delta,omitempty"`   // For "content_block_delta" and "message_delta"
	Usage   *anthropicUsage    `json:"usage,omitempty"`   // For "message_delta"
	Error   *anthropicAPIError `json:"error,omitempty"`   // For "error" events
}

// streamDelta carries incremental content within a content_block_delta or
// message_delta event. Text is populated for "text_delta"; StopReason and
// StopSequence arrive on the message_delta event with no delta type.
type streamDelta struct {
	Type         string `json:"type,omitempty"` // "text_delta"
	Text         string `json:"text,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
	StopSequence string `json:"stop_sequence,omitempty"`
}

// unmarshalStreamEvent parses a JSON payload string into an
// anthropicStreamEvent. Returns an error if the JSON is invalid or the type
// field is missing.
func unmarshalStreamEvent(payload string) (*anthropicStreamEvent, error) {
	var event anthropicStreamEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, err
	}
	if event.Type == "" {
		return nil, fmt.Errorf("missing type field in stream event")
	}
	return &event, nil
}
