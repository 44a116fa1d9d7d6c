package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/credengine/internal/cache"
	"github.com/dropDatabas3/credengine/internal/domain/errs"
	"github.com/dropDatabas3/credengine/internal/jwt"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestManager(t *testing.T) (Manager, cache.Client, *clock) {
	t.Helper()
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	ks, err := jwt.NewDevEd25519("k1")
	if err != nil {
		t.Fatal(err)
	}
	codec, err := jwt.NewCodec(jwt.Config{
		Issuer:     "test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Keys:       []*jwt.KeySet{ks},
		Now:        clk.Now,
	})
	if err != nil {
		t.Fatal(err)
	}
	store := cache.NewMemoryWithClock("", clk.Now)
	return New(Deps{Store: store, Codec: codec}), store, clk
}

func TestRotateSingleValidity(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	first, err := m.IssuePair(ctx, Identity{ID: "u1", Role: "user"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := m.Rotate(ctx, first.Refresh)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if second.Access == first.Access || second.Refresh == first.Refresh {
		t.Fatal("rotation must return brand-new credentials")
	}
	if second.AccessClaims.Role != "user" {
		t.Fatalf("role must survive rotation, got %q", second.AccessClaims.Role)
	}

	// el refresh anterior sigue bien firmado pero quedó superado
	if _, err := m.Rotate(ctx, first.Refresh); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected MISMATCH, got %v", err)
	}
	if _, err := m.Rotate(ctx, second.Refresh); err != nil {
		t.Fatalf("latest refresh must rotate: %v", err)
	}
}

func TestIssueOverwritesPrior(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	a, _ := m.IssuePair(ctx, Identity{ID: "u1"})
	b, _ := m.IssuePair(ctx, Identity{ID: "u1"})

	if _, err := m.Rotate(ctx, a.Refresh); errs.KindOf(err) != errs.Mismatch {
		t.Fatalf("expected MISMATCH for overwritten refresh, got %v", err)
	}
	if _, err := m.Rotate(ctx, b.Refresh); err != nil {
		t.Fatalf("rotate latest: %v", err)
	}
}

func TestRotateRejectsAccessAndGarbage(t *testing.T) {
	ctx := context.Background()
	m, _, clk := newTestManager(t)
	p, _ := m.IssuePair(ctx, Identity{ID: "u1"})

	if _, err := m.Rotate(ctx, p.Access); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("access credential must not rotate: %v", err)
	}
	if _, err := m.Rotate(ctx, "garbage"); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("garbage: %v", err)
	}

	clk.t = clk.t.Add(8 * 24 * time.Hour)
	if _, err := m.Rotate(ctx, p.Refresh); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("expired refresh: %v", err)
	}
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	p, _ := m.IssuePair(ctx, Identity{ID: "u1"})

	if err := m.Invalidate(ctx, "u1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := m.Rotate(ctx, p.Refresh); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestOutstandingAccess(t *testing.T) {
	ctx := context.Background()
	m, _, clk := newTestManager(t)

	a, _ := m.IssuePair(ctx, Identity{ID: "u1"})
	clk.t = clk.t.Add(10 * time.Minute)
	b, _ := m.IssuePair(ctx, Identity{ID: "u1"})

	got, err := m.OutstandingAccess(ctx, "u1")
	if err != nil || len(got) != 2 {
		t.Fatalf("outstanding: %v %v", got, err)
	}

	// el primero expira a los 15 minutos
	clk.t = clk.t.Add(6 * time.Minute)
	got, _ = m.OutstandingAccess(ctx, "u1")
	if len(got) != 1 || got[0].JTI != b.AccessClaims.JTI {
		t.Fatalf("expected only %s, got %v (first was %s)", b.AccessClaims.JTI, got, a.AccessClaims.JTI)
	}
}

// gatedStore retiene los Get del record hasta que todas las rotaciones lo
// hayan leído.
type gatedStore struct {
	cache.Client
	key string
	wg  sync.WaitGroup
}

func (g *gatedStore) Get(ctx context.Context, key string) (string, error) {
	v, err := g.Client.Get(ctx, key)
	if key == g.key {
		g.wg.Done()
		g.wg.Wait()
	}
	return v, err
}

func TestConcurrentRotateSingleWinner(t *testing.T) {
	ctx := context.Background()
	ks, err := jwt.NewDevEd25519("k1")
	if err != nil {
		t.Fatal(err)
	}
	codec, err := jwt.NewCodec(jwt.Config{Issuer: "test", AccessTTL: time.Minute, RefreshTTL: time.Hour, Keys: []*jwt.KeySet{ks}})
	if err != nil {
		t.Fatal(err)
	}
	const callers = 2
	gs := &gatedStore{Client: cache.NewMemory(""), key: recordKey("u1")}
	m := New(Deps{Store: gs, Codec: codec})

	first, err := m.IssuePair(ctx, Identity{ID: "u1", Role: "user"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	gs.wg.Add(callers)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Rotate(ctx, first.Refresh)
			switch {
			case err == nil:
				ok.Add(1)
			case !errors.Is(err, ErrMismatch):
				t.Errorf("loser: expected MISMATCH, got %v", err)
			}
		}()
	}
	wg.Wait()
	if n := ok.Load(); n != 1 {
		t.Fatalf("successful rotations of one refresh credential: %d", n)
	}
}
