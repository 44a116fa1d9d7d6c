package logger

import "testing"

func TestEmailFieldIsMasked(t *testing.T) {
	f := Email("Ana@Example.com")
	if f.Key != "email" || f.String != "a…@e….com" {
		t.Fatalf("email field: %+v", f)
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("abc"); got != "***" {
		t.Fatalf("short: %q", got)
	}
	if got := Redact("abcdefghij"); got != "abcdef***" {
		t.Fatalf("long: %q", got)
	}
	if f := Secret("state", "abcdefghij"); f.String != "abcdef***" {
		t.Fatalf("secret: %+v", f)
	}
}
