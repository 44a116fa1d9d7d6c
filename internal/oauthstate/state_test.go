package oauthstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/credengine/internal/cache"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestManager(strict bool) (Manager, cache.Client, *clock) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	store := cache.NewMemoryWithClock("", clk.Now)
	return New(Deps{Store: store, TTL: 10 * time.Minute, StrictIP: strict, Now: clk.Now}), store, clk
}

func TestConsumeExactlyOnce(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(true)
	fp := Fingerprint{IP: "1.2.3.4", UserAgent: "ua"}

	state, err := m.Issue(ctx, fp, "corr-1", "https://app/after")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	tk, err := m.Consume(ctx, state, fp)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if tk.Correlator != "corr-1" || tk.ReturnTo != "https://app/after" || tk.UserAgent != "ua" {
		t.Fatalf("ticket: %+v", tk)
	}
	if _, err := m.Consume(ctx, state, fp); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("second consume: expected INVALID_OR_EXPIRED_STATE, got %v", err)
	}
}

func TestConsumeMissingAndUnknown(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(true)

	if _, err := m.Consume(ctx, "", Fingerprint{}); !errors.Is(err, ErrMissingState) {
		t.Fatalf("expected MISSING_STATE, got %v", err)
	}
	if _, err := m.Consume(ctx, "never-issued", Fingerprint{}); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("expected INVALID_OR_EXPIRED_STATE, got %v", err)
	}
	if st, _ := store.Stats(ctx); st.Keys != 0 {
		t.Fatalf("unknown state must not write, keys=%d", st.Keys)
	}
}

func TestStrictIP(t *testing.T) {
	ctx := context.Background()
	strict, _, _ := newTestManager(true)
	state, _ := strict.Issue(ctx, Fingerprint{IP: "1.1.1.1"}, "", "")
	if _, err := strict.Consume(ctx, state, Fingerprint{IP: "2.2.2.2"}); !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("expected FINGERPRINT_MISMATCH, got %v", err)
	}
	// aun rechazado, el ticket quedó consumido
	if _, err := strict.Consume(ctx, state, Fingerprint{IP: "1.1.1.1"}); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("ticket must be gone after a mismatch, got %v", err)
	}

	lax, _, _ := newTestManager(false)
	state, _ = lax.Issue(ctx, Fingerprint{IP: "1.1.1.1"}, "", "")
	if _, err := lax.Consume(ctx, state, Fingerprint{IP: "2.2.2.2"}); err != nil {
		t.Fatalf("lax mode must accept: %v", err)
	}
}

func TestStateExpires(t *testing.T) {
	ctx := context.Background()
	m, _, clk := newTestManager(false)
	state, _ := m.Issue(ctx, Fingerprint{}, "", "")
	clk.t = clk.t.Add(10 * time.Minute)
	if _, err := m.Consume(ctx, state, Fingerprint{}); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("expected expiry, got %v", err)
	}
}
