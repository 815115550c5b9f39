package ai

import "testing"

func TestChatResponse_TotalTokens(t *testing.T) {
	var nilResponse *ChatResponse
	if got := nilResponse.TotalTokens(); got != 0 {
		t.Errorf("nil response should report 0 tokens, got %d", got)
	}

	noUsage := &ChatResponse{Content: "hi"}
	if got := noUsage.TotalTokens(); got != 0 {
		t.Errorf("response without usage should report 0 tokens, got %d", got)
	}

	withUsage := &ChatResponse{Usage: &Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}
	if got := withUsage.TotalTokens(); got != 15 {
		t.Errorf("expected 15 tokens, got %d", got)
	}
}
