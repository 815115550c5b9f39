package cost

import (
	"strings"

	"github.com/nickmccarty/aiassist/providers/ai"
)

// Model name constants for supported models.
// Use these constants instead of raw strings for type safety and autocompletion.
const (
	// OpenAI models
	ModelGPT5      = "gpt-5"
	ModelGPT5Mini  = "gpt-5-mini"
	ModelGPT5Nano  = "gpt-5-nano"
	ModelGPT41     = "gpt-4.1"
	ModelGPT41Mini = "gpt-4.1-mini"
	ModelGPT41Nano = "gpt-4.1-nano"
	ModelGPT4o     = "gpt-4o"
	ModelGPT4oMini = "gpt-4o-mini"
	ModelGPT35     = "gpt-3.5-turbo"

	// Anthropic models
	ModelClaudeOpus4    = "claude-opus-4"
	ModelClaudeSonnet4  = "claude-sonnet-4"
	ModelClaude35Haiku  = "claude-3-5-haiku"
	ModelClaude3Haiku   = "claude-3-haiku"
	ModelClaude37Sonnet = "claude-3-7-sonnet"
)

// ModelPricing contains pricing information for all supported models.
// Prices are in USD per million tokens, standard (non-batch) tier.
var ModelPricing = map[string]ModelCost{
	// OpenAI
	ModelGPT5:      {InputCostPerMillion: 1.25, OutputCostPerMillion: 10.00},
	ModelGPT5Mini:  {InputCostPerMillion: 0.25, OutputCostPerMillion: 2.00},
	ModelGPT5Nano:  {InputCostPerMillion: 0.05, OutputCostPerMillion: 0.40},
	ModelGPT41:     {InputCostPerMillion: 2.00, OutputCostPerMillion: 8.00},
	ModelGPT41Mini: {InputCostPerMillion: 0.40, OutputCostPerMillion: 1.60},
	ModelGPT41Nano: {InputCostPerMillion: 0.10, OutputCostPerMillion: 0.40},
	ModelGPT4o:     {InputCostPerMillion: 2.50, OutputCostPerMillion: 10.00},
	ModelGPT4oMini: {InputCostPerMillion: 0.15, OutputCostPerMillion: 0.60},
	ModelGPT35:     {InputCostPerMillion: 0.50, OutputCostPerMillion: 1.50},

	// Anthropic
	ModelClaudeOpus4:    {InputCostPerMillion: 15.00, OutputCostPerMillion: 75.00},
	ModelClaudeSonnet4:  {InputCostPerMillion: 3.00, OutputCostPerMillion: 15.00},
	ModelClaude37Sonnet: {InputCostPerMillion: 3.00, OutputCostPerMillion: 15.00},
	ModelClaude35Haiku:  {InputCostPerMillion: 0.80, OutputCostPerMillion: 4.00},
	ModelClaude3Haiku:   {InputCostPerMillion: 0.25, OutputCostPerMillion: 1.25},
}

// GetModelCost returns the cost configuration for a given model name.
// It handles dated and versioned variants (e.g. "gpt-4o-2024-08-06" matches
// "gpt-4o", "claude-sonnet-4-20250514" matches "claude-sonnet-4") by longest
// prefix match. Returns a zero-value ModelCost if the model is not known, so
// unknown models contribute nothing to cost estimates rather than a wrong
// number.
func GetModelCost(model string) ModelCost {
	// Direct lookup first
	if mc, ok := ModelPricing[model]; ok {
		return mc
	}

	// Longest prefix match for dated/versioned variants. gpt-4o must not
	// shadow gpt-4o-mini, hence longest wins.
	bestLen := 0
	var best ModelCost
	for name, mc := range ModelPricing {
		if strings.HasPrefix(model, name) && len(name) > bestLen {
			bestLen = len(name)
			best = mc
		}
	}
	return best
}

// CalculateCost calculates the total cost in USD for a given model and usage.
func CalculateCost(model string, usage *ai.Usage) float64 {
	if usage == nil {
		return 0
	}

	mc := GetModelCost(model)
	return mc.CalculateTotalCost(usage.PromptTokens, usage.CompletionTokens)
}

// CalculateCostBreakdown returns a detailed breakdown of costs for a given
// model and usage.
func CalculateCostBreakdown(model string, usage *ai.Usage) CostBreakdown {
	if usage == nil {
		return CostBreakdown{Model: model}
	}

	mc := GetModelCost(model)
	inputCost := mc.CalculateInputCost(usage.PromptTokens)
	outputCost := mc.CalculateOutputCost(usage.CompletionTokens)

	return CostBreakdown{
		Model:        model,
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		InputCost:    inputCost,
		OutputCost:   outputCost,
		TotalCost:    inputCost + outputCost,
	}
}
