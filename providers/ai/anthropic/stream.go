package anthropic

import (
	"context"
	"fmt"
	"io"

	"github.com/nickmccarty/aiassist/internal/utils"
	"github.com/nickmccarty/aiassist/providers/ai"
)

// Stream implements ai.StreamProvider for the Messages API. It sends a
// streaming request (stream=true) and returns an ai.ChatStream that yields
// incremental deltas as SSE events arrive.
//
// Pre-stream errors (missing API key, non-2xx HTTP response, network
// failure) are returned immediately as a classified error. Mid-stream errors
// (an Anthropic "error" event, SSE parse failure) are yielded through the
// iterator.
func (p *AnthropicProvider) Stream(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	if p.apiKey == "" {
		return nil, ai.NewProviderError(ai.KindAuthentication, "API key is not set")
	}

	anthropicReq := requestToAnthropic(request)
	anthropicReq.Stream = true

	// Body is left open for SSE reading. Empty apiKey so DoPostStream does
	// not inject a Bearer token; x-api-key is set inside buildHeaders.
	httpResponse, err := utils.DoPostStream(ctx, p.client, p.baseURL+messagesEndpoint, "", anthropicReq, p.buildHeaders()...)
	if err != nil {
		return nil, p.classifyError(err)
	}

	sseScanner := utils.NewSSEScanner(httpResponse.Body)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		// Ensure the response body is closed when the iterator is done
		defer utils.CloseWithLog(httpResponse.Body)

		// Token counts are spread across events: message_start carries input
		// tokens, message_delta the output tokens. They are accumulated and
		// emitted as one usage event.
		inputTokens := 0
		outputTokens := 0

		// Captured from message_delta, emitted on message_stop.
		finishReason := ""

		for {
			if ctx.Err() != nil {
				yield(ai.StreamEvent{}, ctx.Err())
				return
			}

			payload, sseErr := sseScanner.Next()
			if sseErr == io.EOF {
				return
			}
			if sseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("SSE read error: %w", sseErr))
				return
			}

			event, parseErr := unmarshalStreamEvent(payload)
			if parseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("failed to parse stream event: %w", parseErr))
				return
			}

			switch event.Type {

			case "message_start":
				if event.Message != nil {
					inputTokens = event.Message.Usage.InputTokens
				}

			case "content_block_delta":
				if event.Delta != nil && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
					if !yield(ai.StreamEvent{
						Type:    ai.StreamEventContent,
						Content: event.Delta.Text,
					}, nil) {
						return
					}
				}

			case "message_delta":
				// Carries the final output token count and stop reason. Emit
				// the consolidated usage event here so callers always receive
				// usage before the done event.
				if event.Usage != nil {
					outputTokens = event.Usage.OutputTokens
				}
				if event.Delta != nil && event.Delta.StopReason != "" {
					finishReason = event.Delta.StopReason
				}

				if !yield(ai.StreamEvent{
					Type: ai.StreamEventUsage,
					Usage: &ai.Usage{
						PromptTokens:     inputTokens,
						CompletionTokens: outputTokens,
						TotalTokens:      inputTokens + outputTokens,
					},
				}, nil) {
					return
				}

			case "message_stop":
				yield(ai.StreamEvent{
					Type:         ai.StreamEventDone,
					FinishReason: mapStopReason(finishReason),
				}, nil)
				return

			case "error":
				errMessage := "unknown stream error"
				errKind := ai.KindUnknown
				if event.Error != nil {
					errMessage = event.Error.Message
					errKind = kindFromStreamError(event.Error.Type)
				}
				yield(ai.StreamEvent{}, ai.NewProviderError(errKind, errMessage))
				return

			case "content_block_start", "content_block_stop", "ping":
				// Structural and keep-alive events; nothing to yield.

			default:
				// Unknown event types are skipped for forward-compatibility.
			}
		}
	}

	return ai.NewChatStream(iteratorFunc), nil
}
