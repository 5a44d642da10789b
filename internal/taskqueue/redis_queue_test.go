package taskqueue

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisQueue(t *testing.T) *RedisQueue {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := NewRedisQueue(client, "keycase:test:")
	q.pollTimeout = 10 * time.Millisecond
	return q
}

func TestRedisQueue(t *testing.T) {
	testQueueContract(t, func(t *testing.T) Queue {
		return newTestRedisQueue(t)
	})
}

func TestRedisQueue_DefaultPrefix(t *testing.T) {
	q := NewRedisQueue(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "")
	if q.key != "keycase:tasks" {
		t.Fatalf("unexpected key: %s", q.key)
	}
}
