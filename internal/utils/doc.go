// Package utils provides shared low-level helpers used throughout the
// aiassist internals. It covers HTTP request helpers for both synchronous
// and streaming (SSE) communication with AI provider APIs, JSON repair for
// damaged history files, generic pointer and string utilities, and a simple
// elapsed-time timer.
//
// Key entry points: [DoPostSync] for synchronous JSON round-trips,
// [DoPostStream] together with [SSEScanner] for Server-Sent Events
// streaming, [RepairJSON] for best-effort recovery of malformed JSON
// documents, [Ptr] for converting values to pointers, and [Timer] for
// measuring latency.
package utils
