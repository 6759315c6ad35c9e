package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// popTimeout bounds each BLPop call so the consumer loop can still observe
// shutdown signals between polls (§4.6: "blocking pop with a 5s timeout").
const popTimeout = 5 * time.Second

// RedisQueue implements Queue with a single Redis list, matching the
// BLPOP/RPUSH shape the rest of the pack's streaming services use for
// their work queues.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue wraps an already-configured *redis.Client. key names the
// Redis list backing the queue (e.g. "reelvault:jobs").
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Push(ctx context.Context, jobID string) error {
	return q.client.RPush(ctx, q.key, jobID).Err()
}

func (q *RedisQueue) Pop(ctx context.Context) (string, bool, error) {
	result, err := q.client.BLPop(ctx, popTimeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// BLPOP returns [key, value]; result[0] is always q.key here.
	if len(result) != 2 {
		return "", false, nil
	}
	return result[1], true, nil
}
