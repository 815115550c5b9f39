package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nickmccarty/aiassist/core/history"
	"github.com/nickmccarty/aiassist/internal/utils"
)

// secondsToDuration converts the outcome's float seconds back into a
// duration for the store.
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

const helpText = `Available commands:
  /help                       show this help
  /stats                      client and store statistics
  /history [n]                show the last n exchanges (default 5)
  /search <query>             search the conversation history
  /export <json|csv|txt|html> [path]  export the history
  /clear                      back up and clear the history
  /optimize                   trim old exchanges from storage
  /health                     check the AI service connection
  /fetch <url>                fetch a web page and summarize it
  /reset-stats                reset the usage statistics
  /quit                       exit (aliases: /exit, /q)`

// dispatch routes a "/"-prefixed line. Returns true when the session should
// end.
func (a *Assistant) dispatch(ctx context.Context, line string) bool {
	command, args, _ := strings.Cut(line, " ")
	args = strings.TrimSpace(args)

	switch strings.ToLower(command) {
	case "/quit", "/exit", "/q":
		return true
	case "/help":
		a.println(helpText)
	case "/stats":
		a.showStats()
	case "/history":
		a.showHistory(args)
	case "/search":
		a.search(args)
	case "/export":
		a.export(args)
	case "/clear":
		a.clear()
	case "/optimize":
		a.optimize()
	case "/health":
		a.health(ctx)
	case "/fetch":
		a.fetch(ctx, args)
	case "/reset-stats":
		a.client.ResetStatistics()
		a.println(infoStyle.Render("Usage statistics reset."))
	default:
		a.println(errorStyle.Render(fmt.Sprintf("Unknown command %q. Type /help for the command list.", command)))
	}
	return false
}

func (a *Assistant) showStats() {
	clientStats := a.client.Statistics()
	storeStats := a.store.Statistics()

	a.println(headlineStyle.Render("Request statistics"))
	a.printf("  requests: %d total, %d ok, %d failed (%.1f%% success)\n",
		clientStats.TotalRequests, clientStats.SuccessfulRequests,
		clientStats.FailedRequests, clientStats.SuccessRatePercent)
	a.printf("  tokens: %d, estimated cost: $%.4f\n",
		clientStats.TotalTokensUsed, clientStats.EstimatedCostUSD)
	a.printf("  avg response time: %.2fs, cache hits: %d\n",
		clientStats.AverageResponseTime, clientStats.CacheHits)
	a.printf("  providers: %s (active: %s)\n",
		strings.Join(clientStats.Providers, ", "), clientStats.ActiveProvider)

	a.println(headlineStyle.Render("Conversation statistics"))
	a.printf("  exchanges: %d, tokens: %d, models used: %d\n",
		storeStats.TotalExchanges, storeStats.TotalTokens, storeStats.UniqueModels)
	if storeStats.TotalExchanges > 0 {
		a.printf("  oldest: %s\n  newest: %s\n", storeStats.OldestTimestamp, storeStats.NewestTimestamp)
	}
}

func (a *Assistant) showHistory(args string) {
	n := 5
	if args != "" {
		parsed, err := strconv.Atoi(args)
		if err != nil || parsed <= 0 {
			a.println(errorStyle.Render("Usage: /history [positive number]"))
			return
		}
		n = parsed
	}

	exchanges := a.store.RecentExchanges(n)
	if len(exchanges) == 0 {
		a.println(infoStyle.Render("No conversation history yet."))
		return
	}
	for _, e := range exchanges {
		a.printf("%s\n", infoStyle.Render(e.Timestamp))
		a.printf("  You: %s\n", utils.TruncateString(e.User, 200))
		a.printf("  AI:  %s\n", utils.TruncateString(e.Assistant, 200))
	}
}

func (a *Assistant) search(query string) {
	if query == "" {
		a.println(errorStyle.Render("Usage: /search <query>"))
		return
	}

	matches := a.store.Search(query, history.WithLimit(10))
	if len(matches) == 0 {
		a.println(infoStyle.Render("No matches."))
		return
	}
	a.printf("%d match(es):\n", len(matches))
	for _, e := range matches {
		a.printf("%s\n  You: %s\n  AI:  %s\n",
			infoStyle.Render(e.Timestamp),
			utils.TruncateString(e.User, 200),
			utils.TruncateString(e.Assistant, 200))
	}
}

func (a *Assistant) export(args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		a.println(errorStyle.Render("Usage: /export <json|csv|txt|html> [path]"))
		return
	}

	format, err := history.ParseFormat(fields[0])
	if err != nil {
		a.println(errorStyle.Render(err.Error()))
		return
	}

	path := ""
	if len(fields) > 1 {
		path = fields[1]
	} else {
		name := fmt.Sprintf("conversation_export_%s.%s", time.Now().Format("20060102_150405"), format)
		path = filepath.Join(a.appCfg.DataDirectory, name)
	}

	switch err := a.store.Export(path, format); {
	case errors.Is(err, history.ErrNothingToExport):
		a.println(infoStyle.Render("Nothing to export."))
	case err != nil:
		a.println(errorStyle.Render("Export failed: " + err.Error()))
	default:
		a.println(infoStyle.Render("Exported to " + path))
	}
}

func (a *Assistant) clear() {
	if err := a.store.Clear(true); err != nil {
		a.println(errorStyle.Render("Failed to clear history: " + err.Error()))
		return
	}
	a.println(infoStyle.Render("Conversation history cleared (backup created)."))
}

func (a *Assistant) optimize() {
	removed := a.store.Optimize(0)
	if removed == 0 {
		a.println(infoStyle.Render("Storage already within limits."))
		return
	}
	a.println(infoStyle.Render(fmt.Sprintf("Removed %d old exchange(s).", removed)))
}

func (a *Assistant) health(ctx context.Context) {
	a.println(infoStyle.Render("Checking AI service..."))
	if a.client.HealthCheck(ctx) {
		a.println(infoStyle.Render("AI service is reachable."))
	} else {
		a.println(errorStyle.Render("AI service is not responding."))
	}
}

func (a *Assistant) fetch(ctx context.Context, url string) {
	if url == "" {
		a.println(errorStyle.Render("Usage: /fetch <url>"))
		return
	}

	a.println(infoStyle.Render("Fetching " + url + "..."))
	markdown, finalURL, err := fetchMarkdown(ctx, url)
	if err != nil {
		a.println(errorStyle.Render("Fetch failed: " + err.Error()))
		return
	}

	outcome := a.client.Generate(ctx, fetchPrompt(finalURL, markdown), nil, "")
	if !outcome.Success {
		a.println(errorStyle.Render("Sorry, I encountered an error: " + outcome.ErrorMessage))
		return
	}

	a.println(answerStyle.Render("AI: " + outcome.Content))
	a.recordExchange("Summarize "+finalURL, outcome)
}
