// Package history implements the conversation store: an append-only,
// auto-saved log of user/assistant exchanges backed by a single JSON file.
//
// The central type is [Store]. It keeps the full sequence of [Exchange]
// values in memory, mirrors them to disk with atomic writes when auto-save
// is enabled, and recovers from a corrupted backing file by moving it aside
// to a timestamped backup and starting fresh. On top of the log it provides
// context slicing for provider requests ([Store.ProviderContext]), substring
// search, date filtering, export to JSON/CSV/TXT/HTML, and storage
// compaction ([Store.Optimize]).
//
// A store assumes it is the only owner of its backing file for the life of
// the process; there is no cross-process locking. Concurrent access from
// multiple goroutines within the process is safe.
package history
