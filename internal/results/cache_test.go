package results_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrWong99/podium/internal/results"
)

// testRedis returns a client for the Redis server named by
// PODIUM_TEST_REDIS_ADDR, or skips the test when it is not set.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("PODIUM_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PODIUM_TEST_REDIS_ADDR not set, skipping Redis integration tests")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// unreachableRedis returns a client whose every command fails quickly.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestCache_Key(t *testing.T) {
	t.Parallel()

	c := results.NewCache(&results.MemStore{}, unreachableRedis(t))
	if got := c.Key("abc"); got != "podium:recording:abc" {
		t.Errorf("Key = %q", got)
	}
	c = results.NewCache(&results.MemStore{}, unreachableRedis(t), results.WithKeyPrefix("x:"))
	if got := c.Key("abc"); got != "x:abc" {
		t.Errorf("Key with prefix = %q", got)
	}
}

func TestCache_FallsBackWhenRedisIsDown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backing := &results.MemStore{}
	c := results.NewCache(backing, unreachableRedis(t))

	rec := sampleRecording("talk")
	if err := c.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := backing.Get(ctx, rec.ID); err != nil {
		t.Fatalf("backing store missing recording: %v", err)
	}

	got, err := c.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("Get id = %q, want %q", got.ID, rec.ID)
	}

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, results.ErrNotFound) {
		t.Errorf("Get(missing) err = %v, want ErrNotFound", err)
	}
	if err := c.Ping(ctx); err == nil {
		t.Error("Ping succeeded against an unreachable server")
	}
}

func TestCache_ReadThrough(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()

	prefix := "podium-test:" + time.Now().Format("150405.000000") + ":"
	backing := &results.MemStore{}
	c := results.NewCache(backing, rdb, results.WithKeyPrefix(prefix), results.WithTTL(time.Minute))

	// Saved only in the backing store: the first Get populates Redis.
	rec := sampleRecording("talk")
	if err := backing.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Cleanup(func() { rdb.Del(context.Background(), c.Key(rec.ID)) })

	if _, err := c.Get(ctx, rec.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}
	ttl, err := rdb.TTL(ctx, c.Key(rec.ID)).Result()
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want (0, 1m]", ttl)
	}

	// Served from Redis even though the backing store no longer knows it.
	got, err := results.NewCache(&results.MemStore{}, rdb, results.WithKeyPrefix(prefix)).Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("cached Get: %v", err)
	}
	if got.Summary.AverageWPM != 72 || len(got.Parts) != 1 {
		t.Errorf("cached recording = %+v", got)
	}
}
