package chat

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/nickmccarty/aiassist/providers/ai"
)

// CachedResponse is the stored projection of a successful generation,
// sufficient to replay the outcome without a provider call.
type CachedResponse struct {
	Content    string `json:"content"`
	TokensUsed int    `json:"tokens_used"`
	ModelUsed  string `json:"model_used"`
}

// Cache is the optional response cache consulted by Generate before the
// attempt loop. Implementations own expiry; a stale entry simply misses.
// Both methods must be safe for concurrent use and best-effort: a cache
// failure must degrade to a miss, never an error.
type Cache interface {
	Get(key string) (*CachedResponse, bool)
	Put(key string, response CachedResponse)
}

// CacheKey digests the full request identity (model, system prompt, ordered
// role:content pairs) into a stable hex key. Two requests share a key iff
// the provider would see the same input.
func CacheKey(model, systemPrompt string, messages []ai.Message) string {
	h := sha256.New()
	io.WriteString(h, model)
	h.Write([]byte{0})
	io.WriteString(h, systemPrompt)
	for _, m := range messages {
		h.Write([]byte{0})
		io.WriteString(h, string(m.Role))
		io.WriteString(h, ":")
		io.WriteString(h, m.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}
