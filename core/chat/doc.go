// Package chat implements the AI request client: it turns a user message
// plus optional conversation context into a model response, with bounded
// retries, capped exponential backoff, and categorized failure reporting.
//
// The central type is [Client]. Its Generate method never returns an error
// or panics; every call produces an [Outcome] value discriminated by its
// Success field, so callers branch on data instead of catching failures.
// Transient failures (rate limits, service errors) are retried with
// exponential backoff up to the configured limit; request errors
// (authentication, quota, malformed input) surface immediately.
//
// A client can hold several providers in fallback order. When more than one
// is configured, a non-retryable provider failure switches to the next
// backend round-robin instead of giving up, with all attempts counted
// against the one shared retry budget.
//
// The client also accumulates process-lifetime usage statistics (request
// counts, tokens, response time, estimated cost) and can consult an optional
// response cache before touching the network.
package chat
