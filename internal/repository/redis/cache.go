package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Rrens/chatpdf/internal/llm"
	"github.com/Rrens/chatpdf/internal/security"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	embedCachePrefix = "embed:"
	sharedScope      = "shared"
	defaultCacheTTL  = 24 * time.Hour
)

// EmbeddingCache is an llm.Embedder that remembers vectors in Redis, keyed by
// scope, embedding model and text digest. Redis failures fall through to the
// wrapped embedder.
type EmbeddingCache struct {
	client *Client
	next   llm.Embedder
	scope  string
	ttl    time.Duration
}

// NewEmbeddingCache wraps next with a Redis cache. scope is usually the
// credential fingerprint so vectors bought with one key are not served to
// another.
func NewEmbeddingCache(client *Client, next llm.Embedder, scope string, ttl time.Duration) *EmbeddingCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if scope == "" {
		scope = sharedScope
	}
	return &EmbeddingCache{client: client, next: next, scope: scope, ttl: ttl}
}

func (c *EmbeddingCache) EmbeddingModel() string {
	return c.next.EmbeddingModel()
}

func (c *EmbeddingCache) key(text string) string {
	return fmt.Sprintf("%s%s:%s:%s", embedCachePrefix, c.scope, c.next.EmbeddingModel(), security.Digest(text))
}

// Embed serves cached vectors and embeds only the misses
func (c *EmbeddingCache) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	vectors := make([][]float32, len(texts))
	vals, err := c.client.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		log.Warn().Err(err).Msg("embedding cache read failed")
		vals = nil
	}

	var missIdx []int
	var missTexts []string
	for i := range texts {
		if i < len(vals) {
			if s, ok := vals[i].(string); ok {
				var vec []float32
				if err := json.Unmarshal([]byte(s), &vec); err == nil && len(vec) > 0 {
					vectors[i] = vec
					continue
				}
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}

	log.Debug().
		Int("hits", len(texts)-len(missIdx)).
		Int("misses", len(missIdx)).
		Msg("embedding cache lookup")

	if len(missTexts) == 0 {
		return vectors, nil
	}

	fresh, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missTexts))
	}

	pipe := c.client.rdb.Pipeline()
	for j, i := range missIdx {
		vectors[i] = fresh[j]
		data, err := json.Marshal(fresh[j])
		if err != nil {
			continue
		}
		pipe.Set(ctx, keys[i], data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		log.Warn().Err(err).Msg("embedding cache write failed")
	}

	return vectors, nil
}

// flush removes the cached embeddings of this cache's scope
func (c *EmbeddingCache) flush(ctx context.Context) (int64, error) {
	pattern := embedCachePrefix + c.scope + ":*"
	var cursor uint64
	var deleted int64

	for {
		keys, nextCursor, err := c.client.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			count, err := c.client.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("failed to delete keys: %w", err)
			}
			deleted += count
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}
