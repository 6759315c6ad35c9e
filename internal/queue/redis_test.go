package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// TestRedisQueuePushPop requires a reachable Redis instance (set
// REDIS_TEST_ADDR, e.g. "localhost:6379") and is skipped otherwise — this
// exercises real BLPOP/RPUSH semantics rather than mocking them away.
func TestRedisQueuePushPop(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set; skipping live Redis integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis at %s not reachable: %v", addr, err)
	}

	key := "reelvault:test:jobs"
	defer client.Del(ctx, key)

	q := NewRedisQueue(client, key)
	if err := q.Push(ctx, "job-123"); err != nil {
		t.Fatalf("Push: %v", err)
	}

	id, ok, err := q.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if !ok || id != "job-123" {
		t.Fatalf("Pop = (%q, %v), want (job-123, true)", id, ok)
	}
}

func TestRedisQueuePopEmptyTimesOutWithoutError(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set; skipping live Redis integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()

	q := &RedisQueue{client: client, key: "reelvault:test:empty-queue"}
	_, ok, err := q.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop on empty queue returned error: %v", err)
	}
	if ok {
		t.Fatalf("Pop on empty queue should report ok=false")
	}
}
