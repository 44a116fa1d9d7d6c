package revocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/credengine/internal/cache"
	"github.com/dropDatabas3/credengine/internal/domain/errs"
	"github.com/dropDatabas3/credengine/internal/jwt"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func TestRevokeThenIsRevoked(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	store := cache.NewMemoryWithClock("", clk.Now)
	r := New(Deps{Store: store, MaxTTL: time.Hour, Now: clk.Now})

	if err := r.Revoke(ctx, "j1", 10*time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, err := r.IsRevoked(ctx, "j1")
	if err != nil || !ok {
		t.Fatalf("expected revoked, ok=%v err=%v", ok, err)
	}
	ttl, _ := store.TTL(ctx, "revoked:j1")
	if ttl <= 0 || ttl > 10*time.Minute {
		t.Fatalf("ttl must be within remaining lifetime, got %v", ttl)
	}

	clk.t = clk.t.Add(10 * time.Minute)
	ok, _ = r.IsRevoked(ctx, "j1")
	if ok {
		t.Fatal("entry must disappear once the credential would have expired")
	}
}

func TestRevokeExpiredIsNoop(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory("")
	r := New(Deps{Store: store})

	if err := r.Revoke(ctx, "j1", 0); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, _ := r.IsRevoked(ctx, "j1"); ok {
		t.Fatal("expired credential must not be written")
	}
}

func TestRevokeClampsToMax(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	store := cache.NewMemoryWithClock("", clk.Now)
	r := New(Deps{Store: store, MaxTTL: time.Minute, Now: clk.Now})

	_ = r.Revoke(ctx, "j1", time.Hour)
	if ttl, _ := store.TTL(ctx, "revoked:j1"); ttl != time.Minute {
		t.Fatalf("expected clamp to 1m, got %v", ttl)
	}
}

func TestRevokeClaimsUsesExp(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	store := cache.NewMemoryWithClock("", clk.Now)
	r := New(Deps{Store: store, Now: clk.Now})

	c := jwt.Claims{JTI: "j2", ExpiresAt: clk.t.Add(5 * time.Minute)}
	if err := r.RevokeClaims(ctx, c); err != nil {
		t.Fatalf("revoke claims: %v", err)
	}
	if ttl, _ := store.TTL(ctx, "revoked:j2"); ttl != 5*time.Minute {
		t.Fatalf("ttl: %v", ttl)
	}
}

// brokenStore simula un store caído.
type brokenStore struct{ cache.Client }

func (brokenStore) Get(context.Context, string) (string, error) {
	return "", errors.New("dial tcp: connection refused")
}
func (brokenStore) SetEx(context.Context, string, string, time.Duration) error {
	return errors.New("dial tcp: connection refused")
}

func TestFailsClosed(t *testing.T) {
	r := New(Deps{Store: brokenStore{}})
	ok, err := r.IsRevoked(context.Background(), "j1")
	if ok || !errs.Is(err, errs.StoreUnavailable) {
		t.Fatalf("expected STORE_UNAVAILABLE, ok=%v err=%v", ok, err)
	}
	if err := r.Revoke(context.Background(), "j1", time.Minute); !errs.Is(err, errs.StoreUnavailable) {
		t.Fatalf("expected STORE_UNAVAILABLE on revoke, got %v", err)
	}
}
