// Package cost provides per-token pricing for the supported models and
// helpers to estimate the monetary cost of AI requests.
//
// The main types are [ModelCost] for per-million-token pricing and
// [CostBreakdown] for a per-request cost split. [GetModelCost] resolves
// dated model variants by prefix so callers can pass whatever model
// identifier the provider echoed back.
package cost
