package jwt

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/credengine/internal/domain/errs"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestCodec(t *testing.T) (*Codec, *clock) {
	t.Helper()
	ks, err := NewDevEd25519("test-kid")
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	c, err := NewCodec(Config{
		Issuer:     "credengine-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Keys:       []*KeySet{ks},
		Now:        clk.Now,
	})
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	return c, clk
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	c, clk := newTestCodec(t)

	signed, issued, err := c.Issue(Claims{Subject: "u1", Role: "admin"}, KindAccess)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.JTI == "" {
		t.Fatal("jti must be set")
	}
	if got := issued.ExpiresAt.Sub(issued.IssuedAt); got != 15*time.Minute {
		t.Fatalf("access lifetime: %v", got)
	}
	if issued.Remaining(clk.Now()) != 15*time.Minute {
		t.Fatalf("remaining: %v", issued.Remaining(clk.Now()))
	}

	got, err := c.VerifyKind(signed, KindAccess)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.Subject != "u1" || got.Role != "admin" || got.JTI != issued.JTI || got.Kind != KindAccess {
		t.Fatalf("claims mismatch: %+v", got)
	}
}

func TestIssueFreshJTI(t *testing.T) {
	c, _ := newTestCodec(t)
	_, a, _ := c.Issue(Claims{Subject: "u1"}, KindRefresh)
	_, b, _ := c.Issue(Claims{Subject: "u1"}, KindRefresh)
	if a.JTI == b.JTI {
		t.Fatal("two credentials share a jti")
	}
}

func TestVerifyExpired(t *testing.T) {
	c, clk := newTestCodec(t)
	signed, _, _ := c.Issue(Claims{Subject: "u1"}, KindAccess)

	clk.t = clk.t.Add(16 * time.Minute)
	_, err := c.Verify(signed)
	if errs.KindOf(err) != errs.Expired || errs.CodeOf(err) != "EXPIRED" {
		t.Fatalf("expected EXPIRED, got %v", err)
	}
}

func TestVerifyMalformedAndBadSignature(t *testing.T) {
	c, _ := newTestCodec(t)

	if _, err := c.Verify("not-a-jwt"); errs.CodeOf(err) != "MALFORMED" {
		t.Fatalf("expected MALFORMED, got %v", err)
	}
	if _, err := c.Verify(""); errs.CodeOf(err) != "MALFORMED" {
		t.Fatalf("expected MALFORMED for empty, got %v", err)
	}

	signed, _, _ := c.Issue(Claims{Subject: "u1"}, KindAccess)
	parts := strings.Split(signed, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)
	if _, err := c.Verify(tampered); errs.CodeOf(err) != "BAD_SIGNATURE" {
		t.Fatalf("expected BAD_SIGNATURE, got %v", err)
	}

	// firmado por otra clave (kid desconocido)
	other, _ := newTestCodec(t)
	foreign, _, _ := other.Issue(Claims{Subject: "u1"}, KindAccess)
	if _, err := c.Verify(foreign); errs.CodeOf(err) != "BAD_SIGNATURE" {
		t.Fatalf("expected BAD_SIGNATURE for foreign key, got %v", err)
	}
}

func TestVerifyKindMismatch(t *testing.T) {
	c, _ := newTestCodec(t)
	refresh, _, _ := c.Issue(Claims{Subject: "u1"}, KindRefresh)
	if _, err := c.VerifyKind(refresh, KindAccess); errs.CodeOf(err) != "WRONG_KIND" {
		t.Fatalf("expected WRONG_KIND, got %v", err)
	}
}

func TestRetiringKeyStillVerifies(t *testing.T) {
	oldKey, _ := NewDevEd25519("old")
	newKey, _ := NewDevEd25519("new")
	clk := &clock{t: time.Unix(1_700_000_000, 0)}

	oldCodec, _ := NewCodec(Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, Keys: []*KeySet{oldKey}, Now: clk.Now})
	signed, _, _ := oldCodec.Issue(Claims{Subject: "u1"}, KindAccess)

	rotated, _ := NewCodec(Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, Keys: []*KeySet{newKey, oldKey}, Now: clk.Now})
	if _, err := rotated.Verify(signed); err != nil {
		t.Fatalf("retiring key must verify: %v", err)
	}

	var doc struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
		} `json:"keys"`
	}
	if err := json.Unmarshal(rotated.JWKSJSON(), &doc); err != nil {
		t.Fatalf("jwks: %v", err)
	}
	if len(doc.Keys) != 2 || doc.Keys[0].Kid != "new" || doc.Keys[0].Kty != "OKP" {
		t.Fatalf("jwks content: %+v", doc)
	}
}

func TestKeySetFromSeedIsDeterministic(t *testing.T) {
	seed, err := NewSeed()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	a, err := KeySetFromSeed(seed, "")
	if err != nil {
		t.Fatalf("from seed: %v", err)
	}
	b, _ := KeySetFromSeed(seed, "")
	if a.KID != b.KID || !a.Pub.Equal(b.Pub) {
		t.Fatal("same seed must yield same key and kid")
	}
	if _, err := KeySetFromSeed("c2hvcnQ=", ""); err == nil {
		t.Fatal("short seed must fail")
	}
}
