package history

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"os"
	"strconv"
	"strings"
	"time"
)

// Format identifies an export output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatTXT  Format = "txt"
	FormatHTML Format = "html"
)

// ParseFormat resolves a user-supplied format name, case-insensitively.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatTXT:
		return FormatTXT, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

var (
	// ErrNothingToExport is returned when the (filtered) exchange set is
	// empty; no file is written in that case.
	ErrNothingToExport = errors.New("no exchanges to export")

	// ErrUnsupportedFormat is returned for a format the store does not
	// know. Unlike an empty export this is a programmer error.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// exportQuery holds the resolved export parameters.
type exportQuery struct {
	start time.Time
	end   time.Time
}

// ExportOption narrows an export.
type ExportOption func(*exportQuery)

// WithDateRange restricts the export to exchanges within the inclusive
// [start, end] range. A zero time leaves that side unbounded.
func WithDateRange(start, end time.Time) ExportOption {
	return func(q *exportQuery) {
		q.start = start
		q.end = end
	}
}

// Export serializes the (optionally date-filtered) log to path in the given
// format. Returns [ErrNothingToExport] without writing when the filtered set
// is empty, and [ErrUnsupportedFormat] for an unknown format.
func (s *Store) Export(path string, format Format, opts ...ExportOption) error {
	var q exportQuery
	for _, opt := range opts {
		opt(&q)
	}

	s.mu.RLock()
	var exchanges []Exchange
	if q.start.IsZero() && q.end.IsZero() {
		exchanges = make([]Exchange, len(s.exchanges))
		copy(exchanges, s.exchanges)
	} else {
		exchanges = s.filterByDateLocked(q.start, q.end)
	}
	s.mu.RUnlock()

	if len(exchanges) == 0 {
		return ErrNothingToExport
	}

	var data []byte
	var err error
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(exchanges, "", "  ")
	case FormatCSV:
		data, err = renderCSV(exchanges)
	case FormatTXT:
		data, err = renderText(exchanges), nil
	case FormatHTML:
		data, err = renderHTML(exchanges)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return fmt.Errorf("failed to render %s export: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	s.logger.Info("conversation history exported", "path", path, "format", string(format), "exchanges", len(exchanges))
	return nil
}

// renderCSV writes one header row plus one row per exchange.
func renderCSV(exchanges []Exchange) ([]byte, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write([]string{"Timestamp", "User", "Assistant", "Tokens Used", "Model", "Response Time"}); err != nil {
		return nil, err
	}
	for _, e := range exchanges {
		record := []string{
			e.Timestamp,
			e.User,
			e.Assistant,
			strconv.Itoa(e.TokensUsed),
			e.ModelUsed,
			strconv.FormatFloat(e.ResponseTime, 'f', 2, 64),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

// renderText produces a human-readable transcript with a header banner and
// per-exchange separators.
func renderText(exchanges []Exchange) []byte {
	var sb strings.Builder
	sb.WriteString("AI Assistant Conversation History\n")
	sb.WriteString(strings.Repeat("=", 50) + "\n")
	sb.WriteString(fmt.Sprintf("Exported: %s\n", time.Now().Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Total exchanges: %d\n\n", len(exchanges)))

	for i, e := range exchanges {
		sb.WriteString(fmt.Sprintf("Exchange %d (%s)\n", i+1, e.Timestamp))
		sb.WriteString(strings.Repeat("-", 50) + "\n")
		sb.WriteString("User: " + e.User + "\n\n")
		sb.WriteString("Assistant: " + e.Assistant + "\n")
		if e.ModelUsed != "" || e.TokensUsed > 0 {
			sb.WriteString(fmt.Sprintf("\n(model: %s, tokens: %d, response time: %.2fs)\n",
				e.ModelUsed, e.TokensUsed, e.ResponseTime))
		}
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

// htmlExportTemplate renders each exchange as a styled block in a
// self-contained document. html/template escapes message content, so
// exchanges containing markup cannot break the page.
var htmlExportTemplate = template.Must(template.New("export").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>AI Assistant Conversation History</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; max-width: 800px; margin: 2rem auto; padding: 0 1rem; color: #1a1a2e; }
h1 { border-bottom: 2px solid #16213e; padding-bottom: .5rem; }
.meta { color: #666; font-size: .9rem; margin-bottom: 2rem; }
.exchange { border: 1px solid #ddd; border-radius: 8px; margin-bottom: 1.5rem; overflow: hidden; }
.exchange .timestamp { background: #16213e; color: #fff; padding: .4rem .8rem; font-size: .8rem; }
.exchange .user { background: #eef2ff; padding: .8rem; white-space: pre-wrap; }
.exchange .assistant { padding: .8rem; white-space: pre-wrap; }
.exchange .details { color: #888; font-size: .8rem; padding: .4rem .8rem; border-top: 1px solid #eee; }
.label { font-weight: 600; display: block; margin-bottom: .3rem; }
</style>
</head>
<body>
<h1>AI Assistant Conversation History</h1>
<p class="meta">Exported {{.Exported}} &middot; {{len .Exchanges}} exchanges</p>
{{range .Exchanges}}<div class="exchange">
<div class="timestamp">{{.Timestamp}}</div>
<div class="user"><span class="label">User</span>{{.User}}</div>
<div class="assistant"><span class="label">Assistant</span>{{.Assistant}}</div>
{{if .ModelUsed}}<div class="details">model: {{.ModelUsed}} &middot; tokens: {{.TokensUsed}} &middot; {{printf "%.2f" .ResponseTime}}s</div>{{end}}
</div>
{{end}}</body>
</html>
`))

func renderHTML(exchanges []Exchange) ([]byte, error) {
	var sb strings.Builder
	err := htmlExportTemplate.Execute(&sb, struct {
		Exported  string
		Exchanges []Exchange
	}{
		Exported:  time.Now().Format(time.RFC3339),
		Exchanges: exchanges,
	})
	if err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}
