package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:questions:"

// QuestionLimiter caps questions per credential in fixed one-minute windows
type QuestionLimiter struct {
	client             *Client
	questionsPerMinute int
	burst              int
}

// NewQuestionLimiter creates a new rate limiter
func NewQuestionLimiter(client *Client, questionsPerMinute, burst int) *QuestionLimiter {
	return &QuestionLimiter{
		client:             client,
		questionsPerMinute: questionsPerMinute,
		burst:              burst,
	}
}

// Allow counts one question against key and reports whether it fits the
// current window, plus when the window resets.
func (r *QuestionLimiter) Allow(ctx context.Context, key string) (bool, time.Time, error) {
	fullKey := rateLimitPrefix + key
	windowEnd := time.Now().Truncate(time.Minute).Add(time.Minute)

	pipe := r.client.rdb.Pipeline()
	incrCmd := pipe.Incr(ctx, fullKey)
	// Set expiry if key is new
	pipe.ExpireNX(ctx, fullKey, time.Minute)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return false, time.Time{}, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	limit := int64(r.questionsPerMinute + r.burst)
	return incrCmd.Val() <= limit, windowEnd, nil
}

// reset clears the counter for key
func (r *QuestionLimiter) reset(ctx context.Context, key string) error {
	return r.client.rdb.Del(ctx, rateLimitPrefix+key).Err()
}
