package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/nickmccarty/aiassist/internal/utils"
)

const (
	// fetchTimeout bounds the whole page fetch.
	fetchTimeout = 30 * time.Second
	// fetchMaxBodySize caps the response body (10MB).
	fetchMaxBodySize = 10 * 1024 * 1024
	// fetchMaxRedirects caps redirect chains.
	fetchMaxRedirects = 10
	// fetchUserAgent identifies us to the remote server.
	fetchUserAgent = "aiassist-fetch/1.0"

	// fetchPromptBudget caps how much page text is handed to the model.
	fetchPromptBudget = 8000
)

// fetchClient is shared across fetches; its transport timeouts prevent a
// stalled server from hanging the interactive loop.
var fetchClient = &http.Client{
	Timeout: fetchTimeout,
	Transport: &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	},
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if len(via) >= fetchMaxRedirects {
			return fmt.Errorf("too many redirects (>%d)", fetchMaxRedirects)
		}
		return nil
	},
}

// fetchMarkdown retrieves the page at rawURL and returns its content as
// Markdown plus the final URL after redirects. Partial URLs get an https://
// prefix.
func fetchMarkdown(ctx context.Context, rawURL string) (markdown, finalURL string, err error) {
	url := strings.TrimSpace(rawURL)
	if url == "" {
		return "", "", fmt.Errorf("URL cannot be empty")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := fetchClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer utils.CloseWithLog(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("unexpected status code: %d %s", resp.StatusCode, resp.Status)
	}

	htmlBytes, err := io.ReadAll(io.LimitReader(resp.Body, fetchMaxBodySize))
	if err != nil {
		return "", "", fmt.Errorf("failed to read response body: %w", err)
	}
	if len(htmlBytes) == fetchMaxBodySize {
		return "", "", fmt.Errorf("response body exceeds maximum size of %d bytes", fetchMaxBodySize)
	}

	markdown, err = htmltomarkdown.ConvertString(string(htmlBytes))
	if err != nil {
		return "", "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}

	return markdown, resp.Request.URL.String(), nil
}

// fetchPrompt bounds the page content and frames it for summarization.
func fetchPrompt(url, markdown string) string {
	return fmt.Sprintf("Summarize the following web page (%s):\n\n%s",
		url, utils.TruncateString(markdown, fetchPromptBudget))
}
