package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register must be tolerated: %v", err)
	}
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(RateFailOpen.WithLabelValues("test"))
	RateFailOpen.WithLabelValues("test").Inc()
	if got := testutil.ToFloat64(RateFailOpen.WithLabelValues("test")); got != before+1 {
		t.Fatalf("fail-open counter: %v", got)
	}
}
