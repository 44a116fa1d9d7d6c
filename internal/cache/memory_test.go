package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestMemory() (*memoryClient, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	return NewMemoryWithClock("t", clk.Now), clk
}

func TestMemory_SetExExpires(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestMemory()

	if err := c.SetEx(ctx, "k", "v", 10*time.Second); err != nil {
		t.Fatalf("setex: %v", err)
	}
	if v, err := c.Get(ctx, "k"); err != nil || v != "v" {
		t.Fatalf("get: v=%q err=%v", v, err)
	}
	ttl, err := c.TTL(ctx, "k")
	if err != nil || ttl != 10*time.Second {
		t.Fatalf("ttl: %v err=%v", ttl, err)
	}

	clk.Advance(10 * time.Second)
	if _, err := c.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("expected not found after ttl, got %v", err)
	}
	if _, err := c.TTL(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("expected ttl not found, got %v", err)
	}
}

func TestMemory_SetExRejectsZeroTTL(t *testing.T) {
	c, _ := newTestMemory()
	if err := c.SetEx(context.Background(), "k", "v", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestMemory_IncrAndExpire(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestMemory()

	for want := int64(1); want <= 3; want++ {
		n, err := c.Incr(ctx, "ctr")
		if err != nil || n != want {
			t.Fatalf("incr: n=%d want=%d err=%v", n, want, err)
		}
	}
	if ttl, _ := c.TTL(ctx, "ctr"); ttl != NoExpiry {
		t.Fatalf("incr must not set a ttl, got %v", ttl)
	}
	ok, err := c.Expire(ctx, "ctr", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expire: ok=%v err=%v", ok, err)
	}
	clk.Advance(time.Minute)
	n, _ := c.Incr(ctx, "ctr")
	if n != 1 {
		t.Fatalf("counter should restart after expiry, got %d", n)
	}

	if ok, _ := c.Expire(ctx, "missing", time.Minute); ok {
		t.Fatal("expire on missing key must return false")
	}

	_ = c.Set(ctx, "s", "abc", 0)
	if _, err := c.Incr(ctx, "s"); err != ErrNotInt {
		t.Fatalf("expected ErrNotInt, got %v", err)
	}
}

func TestMemory_DelCountsExisting(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemory()
	_ = c.Set(ctx, "a", "1", 0)
	_ = c.Set(ctx, "b", "1", 0)

	n, err := c.Del(ctx, "a", "b", "c")
	if err != nil || n != 2 {
		t.Fatalf("del: n=%d err=%v", n, err)
	}
	n, _ = c.Del(ctx, "a")
	if n != 0 {
		t.Fatalf("second del must report 0, got %d", n)
	}
}

func TestMemory_SortedSet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemory()

	err := c.ZAdd(ctx, "z",
		Z{Score: 3, Member: "c"},
		Z{Score: 1, Member: "a"},
		Z{Score: 2, Member: "b"},
	)
	if err != nil {
		t.Fatalf("zadd: %v", err)
	}
	got, _ := c.ZRange(ctx, "z", 0, -1)
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("zrange order: %v", got)
	}
	last, _ := c.ZRangeWithScores(ctx, "z", -1, -1)
	if len(last) != 1 || last[0].Member != "c" || last[0].Score != 3 {
		t.Fatalf("zrange -1: %v", last)
	}

	n, err := c.ZRemRangeByScore(ctx, "z", "-inf", "(2")
	if err != nil || n != 1 {
		t.Fatalf("zremrangebyscore exclusive: n=%d err=%v", n, err)
	}
	card, _ := c.ZCard(ctx, "z")
	if card != 2 {
		t.Fatalf("zcard: %d", card)
	}

	n, _ = c.ZRemRangeByScore(ctx, "z", "-inf", "+inf")
	if n != 2 {
		t.Fatalf("remove all: %d", n)
	}
	// los sorted sets vacíos desaparecen
	if _, err := c.TTL(ctx, "z"); !IsNotFound(err) {
		t.Fatalf("empty zset should be gone, got %v", err)
	}

	_ = c.Set(ctx, "str", "x", 0)
	if err := c.ZAdd(ctx, "str", Z{Score: 1, Member: "m"}); err != ErrWrongType {
		t.Fatalf("expected ErrWrongType, got %v", err)
	}
}

func TestMemory_PrefixIsolation(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Now()}
	a := NewMemoryWithClock("a", clk.Now)
	_ = a.Set(ctx, "k", "v", 0)

	st, _ := a.Stats(ctx)
	if st.Keys != 1 || st.Driver != "memory" {
		t.Fatalf("stats: %+v", st)
	}
	if _, ok := a.data["a:k"]; !ok {
		t.Fatalf("expected prefixed key, have %v", a.data)
	}
}

func TestKey(t *testing.T) {
	if got := Key("rl", "login", "user", "u1"); got != "rl:login:user:u1" {
		t.Fatalf("Key: %q", got)
	}
}

func TestInstrumentDelegates(t *testing.T) {
	ctx := context.Background()
	inner, _ := newTestMemory()
	c := Instrument(inner)
	if Instrument(c) != c {
		t.Fatal("double instrument must be a no-op")
	}
	if err := c.SetEx(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("setex: %v", err)
	}
	if v, err := inner.Get(ctx, "k"); err != nil || v != "v" {
		t.Fatalf("write must reach the inner client: %q %v", v, err)
	}
	if n, _ := c.Incr(ctx, "n"); n != 1 {
		t.Fatalf("incr: %d", n)
	}
}
