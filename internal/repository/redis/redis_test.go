package redis

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Rrens/chatpdf/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a running Redis, e.g. CHATPDF_TEST_REDIS_HOST=localhost
func testClient(t *testing.T) *Client {
	t.Helper()
	host := os.Getenv("CHATPDF_TEST_REDIS_HOST")
	if host == "" {
		t.Skip("Requires redis connection - run as integration test")
	}

	client, err := NewClient(context.Background(), config.RedisConfig{Host: host, Port: 6379, DB: 15})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

type countingEmbedder struct {
	mu    sync.Mutex
	model string
	seen  []string
}

func (e *countingEmbedder) EmbeddingModel() string { return e.model }

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		e.seen = append(e.seen, t)
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func TestEmbeddingCache_ServesHits(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	inner := &countingEmbedder{model: "test-" + strings.ReplaceAll(t.Name(), "/", "-")}
	cache := NewEmbeddingCache(client, inner, "fp-one", time.Minute)
	t.Cleanup(func() { cache.flush(ctx) })

	first, err := cache.Embed(ctx, []string{"alpha", "be"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{5, 1}, {2, 1}}, first)

	second, err := cache.Embed(ctx, []string{"be", "gamma", "alpha"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 1}, {5, 1}, {5, 1}}, second)

	assert.Equal(t, []string{"alpha", "be", "gamma"}, inner.seen)

	other := NewEmbeddingCache(client, inner, "fp-two", time.Minute)
	t.Cleanup(func() { other.flush(ctx) })
	_, err = other.Embed(ctx, []string{"alpha"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "be", "gamma", "alpha"}, inner.seen, "another credential misses")
}

func TestEmbeddingCache_KeyIsScoped(t *testing.T) {
	inner := &countingEmbedder{model: "embed-small"}

	a := NewEmbeddingCache(nil, inner, "fp-one", 0)
	b := NewEmbeddingCache(nil, inner, "fp-two", 0)
	shared := NewEmbeddingCache(nil, inner, "", 0)

	assert.True(t, strings.HasPrefix(a.key("hello"), "embed:fp-one:embed-small:"))
	assert.NotEqual(t, a.key("hello"), b.key("hello"))
	assert.Equal(t, a.key("hello"), a.key("hello"))
	assert.True(t, strings.HasPrefix(shared.key("hello"), "embed:shared:embed-small:"))
	assert.Equal(t, defaultCacheTTL, a.ttl)
}

func TestQuestionLimiter_Allow(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	limiter := NewQuestionLimiter(client, 2, 1)
	key := "test-" + time.Now().Format(time.RFC3339Nano)
	t.Cleanup(func() { limiter.reset(ctx, key) })

	for i := 0; i < 3; i++ {
		ok, _, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, "question %d should fit", i+1)
	}

	ok, reset, err := limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, reset.After(time.Now()))
}
