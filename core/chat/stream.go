package chat

import (
	"context"

	"github.com/nickmccarty/aiassist/internal/utils"
	"github.com/nickmccarty/aiassist/providers/ai"
)

// Stream runs a generation with incremental delivery. When the active
// provider supports streaming, deltas are passed through as they arrive;
// otherwise the call degrades to a single-event stream wrapping Generate.
//
// Streaming bypasses the retry loop: a half-delivered stream cannot be
// transparently replayed. Pre-stream failures arrive as a single error
// event. Usage statistics are recorded once the stream terminates; a stream
// abandoned mid-iteration records nothing.
func (c *Client) Stream(ctx context.Context, userMessage string, history []ai.Message, systemPromptOverride string) *ai.ChatStream {
	provider := c.activeProvider()
	streamer, ok := provider.(ai.StreamProvider)
	if !ok {
		outcome := c.Generate(ctx, userMessage, history, systemPromptOverride)
		if !outcome.Success {
			return errorStream(outcome)
		}
		return ai.NewSingleEventStream(&ai.ChatResponse{
			Content:      outcome.Content,
			Model:        outcome.ModelUsed,
			Usage:        &ai.Usage{TotalTokens: outcome.TokensUsed},
			FinishReason: "stop",
		})
	}

	systemPrompt := c.systemPrompt
	if systemPromptOverride != "" {
		systemPrompt = systemPromptOverride
	}
	request := ai.ChatRequest{
		Model:        c.model,
		Messages:     c.buildMessages(history, userMessage),
		SystemPrompt: systemPrompt,
		MaxTokens:    c.maxTokens,
		Temperature:  c.temperature,
	}

	timer := utils.NewTimer()

	c.mu.Lock()
	c.stats.totalRequests++
	c.mu.Unlock()

	stream, err := streamer.Stream(ctx, request)
	if err != nil {
		kind := ai.KindOf(err)
		c.logger.Warn("stream request failed", "provider", provider.Name(), "kind", string(kind), "error", err)
		outcome := c.recordFailure(provider, kind, kind.UserMessage(), 1, "", timer)
		return errorStream(outcome)
	}

	wrapped := func(yield func(ai.StreamEvent, error) bool) {
		var usage *ai.Usage
		for event, iterErr := range stream.Iter() {
			if iterErr != nil {
				kind := ai.KindOf(iterErr)
				c.logger.Warn("stream terminated with error", "provider", provider.Name(), "kind", string(kind), "error", iterErr)
				c.recordFailure(provider, kind, kind.UserMessage(), 1, "", timer)
				yield(event, iterErr)
				return
			}
			if event.Type == ai.StreamEventUsage && event.Usage != nil {
				usage = event.Usage
			}
			if !yield(event, nil) {
				return
			}
		}
		c.recordStreamSuccess(provider, usage, timer)
	}
	return ai.NewChatStream(wrapped)
}

// recordStreamSuccess folds a completed stream into the usage counters.
func (c *Client) recordStreamSuccess(provider ai.Provider, usage *ai.Usage, timer *utils.Timer) {
	elapsed := timer.ElapsedSeconds()
	tokens := 0
	if usage != nil {
		tokens = usage.TotalTokens
	}

	c.mu.Lock()
	c.stats.successfulRequests++
	c.stats.totalTokensUsed += tokens
	c.stats.totalResponseTime += elapsed
	c.mu.Unlock()

	c.logger.Info("stream completed",
		"provider", provider.Name(), "tokens", tokens, "response_time_seconds", elapsed)
}

// errorStream renders a failure outcome as a single-error stream so stream
// consumers get uniform delivery.
func errorStream(outcome Outcome) *ai.ChatStream {
	err := ai.NewProviderError(outcome.ErrorKind, outcome.ErrorMessage)
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		yield(ai.StreamEvent{Type: ai.StreamEventError, Error: outcome.ErrorMessage}, err)
	})
}
