package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegister_Idempotent(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second Register() error: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	// Vectors without observed label values are not gathered.
	if len(families) == 0 {
		t.Fatal("expected gathered metric families")
	}
}

func TestCounters(t *testing.T) {
	t.Parallel()

	before := testutil.ToFloat64(Events.WithLabelValues("add"))
	Events.WithLabelValues("add").Add(2)
	if got := testutil.ToFloat64(Events.WithLabelValues("add")) - before; got != 2 {
		t.Errorf("events delta = %v, want 2", got)
	}
}
