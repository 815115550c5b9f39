package history

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nickmccarty/aiassist/internal/utils"
	"github.com/nickmccarty/aiassist/providers/ai"
)

// defaultMaxContext bounds RecentContext/ProviderContext when no explicit
// limit is configured or passed.
const defaultMaxContext = 20

// optimizeThresholdFactor: Optimize only trims once the store has grown past
// this many context windows.
const optimizeThresholdFactor = 10

// backupTimestampLayout produces the YYYYMMDD_HHMMSS portion of backup file
// names.
const backupTimestampLayout = "20060102_150405"

// Store is a concurrency-safe conversation log mirrored to a JSON file.
// Create one with [New]; the zero value is not usable.
type Store struct {
	mu        sync.RWMutex
	exchanges []Exchange

	path               string
	autoSave           bool
	maxContext         int
	backupOnCorruption bool
	repairCorrupt      bool
	logger             *slog.Logger
	now                func() time.Time
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithAutoSave controls whether every mutation is synchronously persisted to
// the backing file. Enabled by default.
func WithAutoSave(enabled bool) Option {
	return func(s *Store) { s.autoSave = enabled }
}

// WithMaxContext sets the default number of trailing exchanges returned by
// the context accessors when the caller passes no explicit limit.
func WithMaxContext(max int) Option {
	return func(s *Store) {
		if max >= 0 {
			s.maxContext = max
		}
	}
}

// WithBackupOnCorruption controls whether an unreadable backing file is
// copied aside to a timestamped backup before being discarded. Enabled by
// default.
func WithBackupOnCorruption(enabled bool) Option {
	return func(s *Store) { s.backupOnCorruption = enabled }
}

// WithRepair enables an opt-in JSON repair pass on a backing file that fails
// strict parsing (truncated array, trailing comma). When repair succeeds the
// file is loaded normally and no backup is made; when it fails, corruption
// recovery proceeds as usual. Disabled by default.
func WithRepair(enabled bool) Option {
	return func(s *Store) { s.repairCorrupt = enabled }
}

// WithLogger sets the logger for save failures and skipped records. Defaults
// to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Store backed by the JSON file at path and loads any existing
// history from it. A missing file yields an empty store; an unreadable or
// malformed file is backed up (when enabled) and discarded, never an error.
// New fails only when the directory containing path cannot be created.
func New(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:               path,
		autoSave:           true,
		maxContext:         defaultMaxContext,
		backupOnCorruption: true,
		logger:             slog.Default(),
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %q: %w", dir, err)
		}
	}

	s.load()
	return s, nil
}

// load reads the backing file into memory. Every failure mode degrades to an
// empty sequence; corruption is logged and, when enabled, preserved in a
// backup file so nothing is silently destroyed.
func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		s.logger.Error("failed to read conversation file", "path", s.path, "error", err)
		s.quarantine("corrupted_read_error")
		return
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		if s.repairCorrupt {
			if repaired, repairErr := utils.RepairJSON(data); repairErr == nil {
				if loaded, ok := s.decode(repaired); ok {
					s.logger.Warn("conversation file repaired on load",
						"path", s.path, "exchanges", len(loaded), "parse_error", err)
					s.exchanges = loaded
					return
				}
			}
		}
		s.logger.Error("conversation file is not valid JSON", "path", s.path, "error", err)
		s.quarantine("corrupted_invalid_json")
		return
	}

	if _, ok := raw.([]any); !ok {
		s.logger.Error("conversation file does not contain a list", "path", s.path)
		s.quarantine("invalid_format")
		return
	}

	loaded, ok := s.decode(data)
	if !ok {
		s.quarantine("corrupted_invalid_json")
		return
	}
	s.exchanges = loaded
	s.logger.Info("conversation history loaded", "path", s.path, "exchanges", len(loaded))
}

// decode unmarshals a JSON array of exchange records, default-filling a
// missing timestamp with the current time.
func (s *Store) decode(data []byte) ([]Exchange, bool) {
	var loaded []Exchange
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.Error("conversation records have unexpected shape", "path", s.path, "error", err)
		return nil, false
	}
	stamp := s.now().Format(timestampLayout)
	for i := range loaded {
		if strings.TrimSpace(loaded[i].Timestamp) == "" {
			loaded[i].Timestamp = stamp
		}
	}
	return loaded, true
}

// quarantine moves the unreadable backing file out of the way so the store
// can start fresh. The original content survives in the backup when backups
// are enabled; otherwise it is removed.
func (s *Store) quarantine(reason string) {
	s.exchanges = nil
	if s.backupOnCorruption {
		backupPath, err := s.snapshot(reason)
		if err != nil {
			s.logger.Error("failed to back up corrupt conversation file", "path", s.path, "error", err)
			return
		}
		s.logger.Warn("corrupt conversation file backed up", "path", s.path, "backup", backupPath, "reason", reason)
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.logger.Error("failed to remove corrupt conversation file", "path", s.path, "error", err)
	}
}

// snapshot copies the current backing file to a sibling
// <stem>.<reason>_<YYYYMMDD_HHMMSS>.backup file and returns its path.
func (s *Store) snapshot(reason string) (string, error) {
	stem := strings.TrimSuffix(s.path, filepath.Ext(s.path))
	backupPath := fmt.Sprintf("%s.%s_%s.backup", stem, reason, s.now().Format(backupTimestampLayout))

	src, err := os.Open(s.path)
	if err != nil {
		return "", fmt.Errorf("failed to open conversation file for backup: %w", err)
	}
	defer utils.CloseWithLog(src)

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		utils.CloseWithLog(dst)
		return "", fmt.Errorf("failed to copy conversation file to backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize backup file: %w", err)
	}
	return backupPath, nil
}

// persistLocked writes the full sequence to the backing file atomically:
// marshal to a sibling temp file, then rename over the target so a reader
// never observes a half-written file. Must be called with the write lock
// held. Failures leave the in-memory state untouched.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.exchanges, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp conversation file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		if removeErr := os.Remove(tmpPath); removeErr != nil {
			s.logger.Warn("failed to remove temp conversation file", "path", tmpPath, "error", removeErr)
		}
		return fmt.Errorf("failed to replace conversation file: %w", err)
	}
	return nil
}

// saveLocked persists when auto-save is on, logging failures instead of
// returning them. Disk writes are best-effort; the in-memory sequence is the
// source of truth.
func (s *Store) saveLocked() {
	if !s.autoSave {
		return
	}
	if err := s.persistLocked(); err != nil {
		s.logger.Error("failed to save conversation history", "path", s.path, "error", err)
	}
}

// AddExchange appends one user/assistant turn to the log and, when auto-save
// is enabled, persists the full sequence. Exchanges where either text trims
// to empty are silently dropped; there is nothing useful to store or replay.
func (s *Store) AddExchange(user, assistant string, opts ...ExchangeOption) {
	user = strings.TrimSpace(user)
	assistant = strings.TrimSpace(assistant)
	if user == "" || assistant == "" {
		return
	}

	exchange := Exchange{
		Timestamp: s.now().Format(timestampLayout),
		User:      user,
		Assistant: assistant,
	}
	for _, opt := range opts {
		opt(&exchange)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = append(s.exchanges, exchange)
	s.saveLocked()
}

// resolveMax turns a caller-supplied limit into an effective one: a positive
// value wins, zero falls back to the configured default, and a negative
// value (or a zero default) disables context entirely.
func (s *Store) resolveMax(max int) int {
	if max > 0 {
		return max
	}
	if max == 0 {
		return s.maxContext
	}
	return 0
}

// lastLocked returns the trailing n exchanges. Must be called with at least
// the read lock held; the returned slice is a copy.
func (s *Store) lastLocked(n int) []Exchange {
	if n <= 0 || len(s.exchanges) == 0 {
		return nil
	}
	if n > len(s.exchanges) {
		n = len(s.exchanges)
	}
	out := make([]Exchange, n)
	copy(out, s.exchanges[len(s.exchanges)-n:])
	return out
}

// RecentContext returns the last max exchanges as metadata-free entries.
// Pass 0 for the configured default; a negative max yields an empty slice.
func (s *Store) RecentContext(max int) []ContextEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recent := s.lastLocked(s.resolveMax(max))
	entries := make([]ContextEntry, 0, len(recent))
	for _, e := range recent {
		entries = append(entries, ContextEntry{User: e.User, Assistant: e.Assistant, Timestamp: e.Timestamp})
	}
	return entries
}

// RecentExchanges returns the last max exchanges with all fields, the
// metadata-bearing counterpart of [Store.RecentContext].
func (s *Store) RecentExchanges(max int) []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastLocked(s.resolveMax(max))
}

// ProviderContext returns the last max exchanges flattened into alternating
// user/assistant chat messages, ready to prepend to a provider request.
func (s *Store) ProviderContext(max int) []ai.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recent := s.lastLocked(s.resolveMax(max))
	messages := make([]ai.Message, 0, len(recent)*2)
	for _, e := range recent {
		messages = append(messages, e.Messages()...)
	}
	return messages
}

// searchQuery holds the resolved search parameters.
type searchQuery struct {
	caseSensitive   bool
	searchUser      bool
	searchAssistant bool
	limit           int
}

// SearchOption narrows or tunes a search.
type SearchOption func(*searchQuery)

// CaseSensitive makes the substring match case-sensitive.
func CaseSensitive() SearchOption {
	return func(q *searchQuery) { q.caseSensitive = true }
}

// UserOnly restricts matching to the user side of each exchange.
func UserOnly() SearchOption {
	return func(q *searchQuery) { q.searchAssistant = false }
}

// AssistantOnly restricts matching to the assistant side of each exchange.
func AssistantOnly() SearchOption {
	return func(q *searchQuery) { q.searchUser = false }
}

// WithLimit stops the search after n matches. Zero or negative means
// unlimited.
func WithLimit(n int) SearchOption {
	return func(q *searchQuery) { q.limit = n }
}

// Search returns the exchanges whose selected fields contain query as a
// substring, in original insertion order (no ranking). An empty query
// matches nothing.
func (s *Store) Search(query string, opts ...SearchOption) []Exchange {
	q := searchQuery{searchUser: true, searchAssistant: true}
	for _, opt := range opts {
		opt(&q)
	}

	if query == "" {
		return nil
	}
	needle := query
	if !q.caseSensitive {
		needle = strings.ToLower(needle)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []Exchange
	for _, e := range s.exchanges {
		user, assistant := e.User, e.Assistant
		if !q.caseSensitive {
			user = strings.ToLower(user)
			assistant = strings.ToLower(assistant)
		}
		if (q.searchUser && strings.Contains(user, needle)) ||
			(q.searchAssistant && strings.Contains(assistant, needle)) {
			matches = append(matches, e)
			if q.limit > 0 && len(matches) >= q.limit {
				break
			}
		}
	}
	return matches
}

// FilterByDate returns the exchanges whose timestamp falls within the
// inclusive [start, end] range. A zero time leaves that side unbounded.
// Exchanges with unparsable timestamps are skipped and logged, never fatal.
func (s *Store) FilterByDate(start, end time.Time) []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterByDateLocked(start, end)
}

func (s *Store) filterByDateLocked(start, end time.Time) []Exchange {
	var filtered []Exchange
	for _, e := range s.exchanges {
		t, err := e.Time()
		if err != nil {
			s.logger.Warn("skipping exchange with unparsable timestamp", "timestamp", e.Timestamp)
			continue
		}
		if !start.IsZero() && t.Before(start) {
			continue
		}
		if !end.IsZero() && t.After(end) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

// Clear empties the conversation log. With createBackup the current backing
// file is snapshotted first; a failed backup aborts the clear and is
// returned to the caller (the one store error that propagates, since losing
// an explicitly requested backup would be silent data loss).
func (s *Store) Clear(createBackup bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if createBackup {
		if _, err := os.Stat(s.path); err == nil {
			backupPath, err := s.snapshot("manual_clear")
			if err != nil {
				return err
			}
			s.logger.Info("conversation history backed up before clear", "backup", backupPath)
		}
	}

	s.exchanges = nil
	s.saveLocked()
	s.logger.Info("conversation history cleared")
	return nil
}

// Optimize trims the log to its most recent max exchanges once it has grown
// past the optimization threshold (ten context windows when max is zero or
// negative). The pre-trim state is snapshotted to a backup. Returns the
// number of exchanges removed, 0 when no trim was needed.
func (s *Store) Optimize(max int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if max <= 0 {
		max = s.maxContext * optimizeThresholdFactor
	}
	if max <= 0 || len(s.exchanges) <= max {
		return 0
	}

	if backupPath, err := s.snapshot("before_optimization"); err != nil {
		s.logger.Warn("failed to back up conversation history before optimization", "error", err)
	} else {
		s.logger.Info("conversation history backed up before optimization", "backup", backupPath)
	}

	removed := len(s.exchanges) - max
	kept := make([]Exchange, max)
	copy(kept, s.exchanges[removed:])
	s.exchanges = kept
	s.saveLocked()

	s.logger.Info("conversation history optimized", "removed", removed, "kept", max)
	return removed
}

// Statistics summarizes the full in-memory log.
type Statistics struct {
	TotalExchanges      int     `json:"total_exchanges"`
	TotalTokens         int     `json:"total_tokens"`
	TotalUserChars      int     `json:"total_user_chars"`
	TotalAssistantChars int     `json:"total_assistant_chars"`
	AverageTokens       float64 `json:"average_tokens"`
	UniqueModels        int     `json:"unique_models"`
	OldestTimestamp     string  `json:"oldest_timestamp,omitempty"`
	NewestTimestamp     string  `json:"newest_timestamp,omitempty"`
}

// Statistics returns aggregate counts over the whole log. An empty store
// yields the zero value, never an error.
func (s *Store) Statistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Statistics{TotalExchanges: len(s.exchanges)}
	if len(s.exchanges) == 0 {
		return stats
	}

	models := make(map[string]struct{})
	for _, e := range s.exchanges {
		stats.TotalTokens += e.TokensUsed
		stats.TotalUserChars += len(e.User)
		stats.TotalAssistantChars += len(e.Assistant)
		if e.ModelUsed != "" {
			models[e.ModelUsed] = struct{}{}
		}
	}
	stats.AverageTokens = float64(stats.TotalTokens) / float64(len(s.exchanges))
	stats.UniqueModels = len(models)
	stats.OldestTimestamp = s.exchanges[0].Timestamp
	stats.NewestTimestamp = s.exchanges[len(s.exchanges)-1].Timestamp
	return stats
}

// Len returns the number of stored exchanges.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.exchanges)
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}
