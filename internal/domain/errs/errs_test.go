package errs

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

var errSample = New(Mismatch, "SAMPLE", "sample")

func TestIsMatchesCopies(t *testing.T) {
	cp := errSample.WithCause(errors.New("boom")).WithRemaining(2)
	if !errors.Is(cp, errSample) {
		t.Fatal("copy must match its sentinel")
	}
	wrapped := fmt.Errorf("ctx: %w", cp)
	if KindOf(wrapped) != Mismatch || CodeOf(wrapped) != "SAMPLE" {
		t.Fatalf("kind/code through wrap: %s/%s", KindOf(wrapped), CodeOf(wrapped))
	}
	if e, ok := As(wrapped); !ok || e.Remaining != 2 {
		t.Fatalf("As: %+v", e)
	}
	if errSample.Remaining != -1 {
		t.Fatal("sentinel must not be mutated")
	}
}

func TestStoreAndUnknown(t *testing.T) {
	err := Store("op", errors.New("dial"))
	if !Is(err, StoreUnavailable) {
		t.Fatalf("store: %v", err)
	}
	if KindOf(errors.New("x")) != Internal || CodeOf(errors.New("x")) != "" {
		t.Fatal("plain errors are internal")
	}
	if Is(nil, Internal) {
		t.Fatal("nil is no kind")
	}
	if ErrRateLimited.WithRetryAfter(time.Second).RetryAfter != time.Second {
		t.Fatal("retry after")
	}
}
