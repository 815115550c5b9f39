// Package app wires the configuration, conversation store, response cache,
// and request client into the interactive assistant loop.
//
// [Assistant] owns the session: it reads user input line by line, treats
// "/"-prefixed lines as commands (history, search, export, statistics,
// health, web fetch), and runs everything else as a chat turn. Each turn
// pulls the recent context from the store, generates a response through the
// client, and appends the successful result back to the store. Failure
// outcomes are shown as short categorized messages and never stored.
package app
