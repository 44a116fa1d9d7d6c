package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*redisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisWithClient(rdb, "t"), mr
}

func TestRedis_GetSetTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)

	if _, err := c.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := c.SetEx(ctx, "k", "v", 30*time.Second); err != nil {
		t.Fatalf("setex: %v", err)
	}
	if !mr.Exists("t:k") {
		t.Fatal("expected prefixed key in redis")
	}
	ttl, err := c.TTL(ctx, "k")
	if err != nil || ttl != 30*time.Second {
		t.Fatalf("ttl=%v err=%v", ttl, err)
	}

	mr.FastForward(31 * time.Second)
	if _, err := c.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("expected expiry, got %v", err)
	}
	if _, err := c.TTL(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("expected ttl not found, got %v", err)
	}
}

func TestRedis_IncrExpireDel(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t)

	n, err := c.Incr(ctx, "ctr")
	if err != nil || n != 1 {
		t.Fatalf("incr: %d %v", n, err)
	}
	if ttl, _ := c.TTL(ctx, "ctr"); ttl != NoExpiry {
		t.Fatalf("expected NoExpiry, got %v", ttl)
	}
	ok, err := c.Expire(ctx, "ctr", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expire: %v %v", ok, err)
	}
	del, err := c.Del(ctx, "ctr", "nope")
	if err != nil || del != 1 {
		t.Fatalf("del: %d %v", del, err)
	}
}

func TestRedis_SortedSet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t)

	if err := c.ZAdd(ctx, "z", Z{Score: 10, Member: "x"}, Z{Score: 20, Member: "y"}); err != nil {
		t.Fatalf("zadd: %v", err)
	}
	zs, err := c.ZRangeWithScores(ctx, "z", 0, -1)
	if err != nil || len(zs) != 2 || zs[1].Member != "y" || zs[1].Score != 20 {
		t.Fatalf("zrange: %v %v", zs, err)
	}
	n, err := c.ZRemRangeByScore(ctx, "z", "-inf", "15")
	if err != nil || n != 1 {
		t.Fatalf("zrem: %d %v", n, err)
	}
	card, _ := c.ZCard(ctx, "z")
	if card != 1 {
		t.Fatalf("zcard: %d", card)
	}
}
