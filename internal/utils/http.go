package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// HeaderOption is a single HTTP header to apply to an outbound request.
// Custom headers are applied after the defaults, so a HeaderOption can
// override Content-Type or Authorization when a provider needs to (for
// example Anthropic's x-api-key scheme instead of Bearer tokens).
type HeaderOption struct {
	Key   string
	Value string
}

// HTTPStatusError reports a non-2xx response from a provider API. It carries
// the status code and the raw response body so callers can classify the
// failure (rate limit, auth, quota) from the provider's error payload.
type HTTPStatusError struct {
	StatusCode int
	Body       []byte
}

// Error implements the error interface with a bounded body preview.
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("non-2xx status %d: %s", e.StatusCode, TruncateString(string(e.Body), DefaultMaxStringLength))
}

// CloseWithLog closes c and logs a warning on failure. It is meant for defer
// sites where a close error must not override the function's primary error.
func CloseWithLog(c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err.Error())
	}
}

// DoPostSync performs a synchronous HTTP POST request with a JSON body and
// parses the JSON response into OutputStruct.
//
// Error handling strategy:
//   - Context errors (timeout, cancellation) are propagated immediately
//   - Transport failures return the wrapped error with a nil response
//   - Non-2xx statuses return an [*HTTPStatusError] carrying the raw body
//   - JSON parsing errors include a response preview for debugging
//
// The response body is always closed before returning; close errors are
// logged without overriding the primary error.
func DoPostSync[OutputStruct any](ctx context.Context, client *http.Client, url string, apiKey string, body any, headers ...HeaderOption) (*http.Response, *OutputStruct, error) {
	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("error marshaling body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}

	res, err := httpClient.Do(req)
	if err != nil {
		return res, nil, fmt.Errorf("error sending request: %w", err)
	}
	defer CloseWithLog(res.Body)

	respBody, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBodySize))
	if err != nil {
		return res, nil, fmt.Errorf("error reading response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res, nil, &HTTPStatusError{StatusCode: res.StatusCode, Body: respBody}
	}

	var resStruct OutputStruct
	if err = json.Unmarshal(respBody, &resStruct); err != nil {
		return res, nil, fmt.Errorf("error unmarshaling response body (status %d): %w\nResponse preview: %s", res.StatusCode, err, TruncateString(string(respBody), DefaultMaxStringLength))
	}

	return res, &resStruct, nil
}
