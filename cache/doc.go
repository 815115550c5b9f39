// Package cache provides an optional on-disk response cache for generation
// results, backed by a single-file bbolt database.
//
// [ResponseCache] implements the chat client's cache contract: lookups are
// keyed by the client's request digest, entries expire after a configurable
// TTL, and every operation is best-effort. A missing, locked, or corrupt
// cache file degrades to cache-off behavior with a logged warning; it never
// fails a generation or blocks startup.
package cache
