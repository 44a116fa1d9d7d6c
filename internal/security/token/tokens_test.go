package tokens

import (
	"strings"
	"testing"
)

func TestGenerateOpaqueToken_LengthAndUniqueness(t *testing.T) {
	a, err := GenerateOpaqueToken(32)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, _ := GenerateOpaqueToken(32)
	if a == b {
		t.Fatal("two tokens must differ")
	}
	// 32 bytes -> 43 chars base64url sin padding
	if len(a) != 43 || strings.ContainsAny(a, "+/=") {
		t.Fatalf("unexpected encoding: %q", a)
	}
}

func TestGenerateOpaqueToken_RejectsLowEntropy(t *testing.T) {
	if _, err := GenerateOpaqueToken(8); err == nil {
		t.Fatal("expected error below 16 bytes")
	}
}

func TestGeneratePrefixedToken(t *testing.T) {
	tok, err := GeneratePrefixedToken("vst", 16)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(tok, "vst_") {
		t.Fatalf("missing prefix: %q", tok)
	}
}

func TestConstantTimeEqual(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"123456", "123456", true},
		{"123456", "123457", false},
		{"123456", "12345", false},
		{"12345", "123456", false},
		{"", "", true},
		{"", "0", false},
		// prefijo igual + padding con ceros no debe dar match
		{"12", "12\x00", false},
	}
	for _, c := range cases {
		if got := ConstantTimeEqual(c.a, c.b); got != c.want {
			t.Fatalf("ConstantTimeEqual(%q,%q)=%v want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestSHA256Base64URL_Stable(t *testing.T) {
	if SHA256Base64URL("x") != SHA256Base64URL("x") {
		t.Fatal("hash must be deterministic")
	}
	if SHA256Base64URL("x") == SHA256Base64URL("y") {
		t.Fatal("different inputs must hash differently")
	}
}
