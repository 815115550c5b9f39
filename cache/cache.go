package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/nickmccarty/aiassist/core/chat"
)

// defaultTTL is how long a cached response stays valid when no TTL is
// configured.
const defaultTTL = 24 * time.Hour

// responsesBucket is the single bucket holding all cached entries.
var responsesBucket = []byte("responses")

// openTimeout bounds how long Open waits on the bbolt file lock, so a
// second process holding the cache degrades to cache-off instead of
// hanging startup.
const openTimeout = time.Second

// entry is the stored form of a cached response.
type entry struct {
	Content    string    `json:"content"`
	TokensUsed int       `json:"tokens_used"`
	ModelUsed  string    `json:"model_used"`
	CreatedAt  time.Time `json:"created_at"`
}

// ResponseCache is a TTL-bounded response cache over a bbolt file. Create
// one with [Open]; it satisfies the chat client's cache contract. Safe for
// concurrent use.
type ResponseCache struct {
	db     *bolt.DB
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

var _ chat.Cache = (*ResponseCache)(nil)

// Option configures a ResponseCache.
type Option func(*ResponseCache)

// WithTTL sets the entry lifetime. Non-positive values keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(c *ResponseCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger sets the logger for degraded-operation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ResponseCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Open creates or opens the cache database at path. The parent directory is
// created as needed. Errors here mean the cache is unusable (locked by
// another process, unwritable directory); callers are expected to log and
// run without a cache rather than fail.
func Open(path string, opts ...Option) (*ResponseCache, error) {
	c := &ResponseCache{
		ttl:    defaultTTL,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory %q: %w", dir, err)
		}
	}

	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database %q: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(responsesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize cache bucket: %w", err)
	}

	c.db = db
	return c, nil
}

// Get returns the cached response for key, or a miss when the key is absent
// or the entry has expired. Expired entries are lazily deleted. Read errors
// are logged and degrade to a miss.
func (c *ResponseCache) Get(key string) (*chat.CachedResponse, bool) {
	var stored entry
	found := false

	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(responsesBucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("failed to decode cache entry: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		c.logger.Warn("cache read failed", "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	if c.now().Sub(stored.CreatedAt) > c.ttl {
		c.delete(key)
		return nil, false
	}

	return &chat.CachedResponse{
		Content:    stored.Content,
		TokensUsed: stored.TokensUsed,
		ModelUsed:  stored.ModelUsed,
	}, true
}

// Put stores a response under key. Best-effort: failures are logged and the
// generation result is unaffected.
func (c *ResponseCache) Put(key string, response chat.CachedResponse) {
	data, err := json.Marshal(entry{
		Content:    response.Content,
		TokensUsed: response.TokensUsed,
		ModelUsed:  response.ModelUsed,
		CreatedAt:  c.now(),
	})
	if err != nil {
		c.logger.Warn("failed to encode cache entry", "error", err)
		return
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(responsesBucket).Put([]byte(key), data)
	})
	if err != nil {
		c.logger.Warn("cache write failed", "error", err)
	}
}

// delete removes an expired entry; failures only mean the entry expires
// again on the next read.
func (c *ResponseCache) delete(key string) {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(responsesBucket).Delete([]byte(key))
	})
	if err != nil {
		c.logger.Warn("failed to delete expired cache entry", "error", err)
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *ResponseCache) Len() int {
	count := 0
	err := c.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(responsesBucket).Stats().KeyN
		return nil
	})
	if err != nil {
		c.logger.Warn("cache stats read failed", "error", err)
	}
	return count
}

// Close releases the database file. The cache must not be used afterwards.
func (c *ResponseCache) Close() error {
	return c.db.Close()
}
