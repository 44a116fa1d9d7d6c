package cache

import (
	"context"
	"time"

	"github.com/dropDatabas3/credengine/internal/metrics"
)

// instrumented mide la latencia de cada comando contra el store.
type instrumented struct {
	Client
}

// Instrument envuelve c para observar metrics.StoreLatency por operación.
func Instrument(c Client) Client {
	if _, ok := c.(*instrumented); ok {
		return c
	}
	return &instrumented{Client: c}
}

func observe(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(op).Observe(float64(time.Since(start).Microseconds()) / 1000)
}

func (i *instrumented) Get(ctx context.Context, key string) (string, error) {
	defer observe("get", time.Now())
	return i.Client.Get(ctx, key)
}

func (i *instrumented) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	defer observe("set", time.Now())
	return i.Client.Set(ctx, key, value, ttl)
}

func (i *instrumented) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	defer observe("setex", time.Now())
	return i.Client.SetEx(ctx, key, value, ttl)
}

func (i *instrumented) Del(ctx context.Context, keys ...string) (int64, error) {
	defer observe("del", time.Now())
	return i.Client.Del(ctx, keys...)
}

func (i *instrumented) Incr(ctx context.Context, key string) (int64, error) {
	defer observe("incr", time.Now())
	return i.Client.Incr(ctx, key)
}

func (i *instrumented) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	defer observe("expire", time.Now())
	return i.Client.Expire(ctx, key, ttl)
}

func (i *instrumented) TTL(ctx context.Context, key string) (time.Duration, error) {
	defer observe("ttl", time.Now())
	return i.Client.TTL(ctx, key)
}

func (i *instrumented) ZAdd(ctx context.Context, key string, members ...Z) error {
	defer observe("zadd", time.Now())
	return i.Client.ZAdd(ctx, key, members...)
}

func (i *instrumented) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	defer observe("zrange", time.Now())
	return i.Client.ZRange(ctx, key, start, stop)
}

func (i *instrumented) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Z, error) {
	defer observe("zrange", time.Now())
	return i.Client.ZRangeWithScores(ctx, key, start, stop)
}

func (i *instrumented) ZRemRangeByScore(ctx context.Context, key, min, max string) (int64, error) {
	defer observe("zremrangebyscore", time.Now())
	return i.Client.ZRemRangeByScore(ctx, key, min, max)
}

func (i *instrumented) ZCard(ctx context.Context, key string) (int64, error) {
	defer observe("zcard", time.Now())
	return i.Client.ZCard(ctx, key)
}
