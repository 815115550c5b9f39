package history

import (
	"fmt"
	"time"

	"github.com/nickmccarty/aiassist/providers/ai"
)

// timestampLayout is the format used to stamp new exchanges.
const timestampLayout = time.RFC3339Nano

// timestampParseLayouts are accepted when reading timestamps back. Files
// written by other tooling may carry zone-less ISO stamps; the 9-digit
// fractional layouts also match stamps without a fraction.
var timestampParseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// Exchange is a single user/assistant turn in the conversation history.
// The JSON field names are the on-disk contract of the conversation file and
// of JSON exports; loading a file written by Save reproduces the same
// sequence.
type Exchange struct {
	Timestamp    string         `json:"timestamp"`
	User         string         `json:"user"`
	Assistant    string         `json:"assistant"`
	TokensUsed   int            `json:"tokens_used"`
	ModelUsed    string         `json:"model_used"`
	ResponseTime float64        `json:"response_time"` // seconds
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Time parses the exchange timestamp. Exchanges loaded from hand-edited or
// foreign files may carry stamps this cannot parse; callers are expected to
// skip those.
func (e Exchange) Time() (time.Time, error) {
	for _, layout := range timestampParseLayouts {
		if t, err := time.Parse(layout, e.Timestamp); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", e.Timestamp)
}

// Messages renders the exchange as an ordered pair of chat messages, the
// form provider requests consume.
func (e Exchange) Messages() []ai.Message {
	return []ai.Message{
		{Role: ai.RoleUser, Content: e.User},
		{Role: ai.RoleAssistant, Content: e.Assistant},
	}
}

// ContextEntry is the metadata-free projection of an Exchange returned by
// RecentContext.
type ContextEntry struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
	Timestamp string `json:"timestamp"`
}

// ExchangeOption sets an optional field on an exchange being added.
type ExchangeOption func(*Exchange)

// WithTokens records the number of tokens the exchange consumed.
func WithTokens(tokens int) ExchangeOption {
	return func(e *Exchange) { e.TokensUsed = tokens }
}

// WithModel records the model that produced the assistant response.
func WithModel(model string) ExchangeOption {
	return func(e *Exchange) { e.ModelUsed = model }
}

// WithResponseTime records how long the response took. Stored as seconds in
// the file format.
func WithResponseTime(d time.Duration) ExchangeOption {
	return func(e *Exchange) { e.ResponseTime = d.Seconds() }
}

// WithMetadata attaches free-form debugging context to the exchange.
func WithMetadata(metadata map[string]any) ExchangeOption {
	return func(e *Exchange) { e.Metadata = metadata }
}
