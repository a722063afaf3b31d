package cookiesession

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := NewMemoryStore()
	mgr := newTestManager(t, Config{Registerer: reg, Store: store})
	ctx := context.Background()

	mgr.Parse(ctx, "")
	mgr.Parse(ctx, "session=garbage")

	v, err := mgr.SetField(ctx, "", "k", String("v"))
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	header := cookieHeader(t, v)
	s := mgr.Parse(ctx, header)
	if _, err := mgr.Destroy(ctx, s); err != nil {
		t.Fatalf("failed to destroy: %v", err)
	}
	mgr.Parse(ctx, header)

	checks := []struct {
		outcome string
		want    float64
	}{
		{outcomeMissing, 2}, // Parse("") above and inside SetField
		{outcomeMalformed, 1},
		{outcomeOK, 1},
		{outcomeRevoked, 1},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(mgr.metrics.parsed.WithLabelValues(c.outcome)); got != c.want {
			t.Errorf("parse_total{outcome=%q} = %v, want %v", c.outcome, got, c.want)
		}
	}
	if got := testutil.ToFloat64(mgr.metrics.committed); got != 1 {
		t.Errorf("commit_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(mgr.metrics.destroyed); got != 1 {
		t.Errorf("destroy_total = %v, want 1", got)
	}

	if n, err := testutil.GatherAndCount(reg, "cookiesession_cookie_bytes"); err != nil || n != 1 {
		t.Errorf("cookie_bytes series = %d, %v", n, err)
	}

	// A second manager on the same registry is a configuration error.
	if _, err := NewManager(Config{Registerer: reg, Secrets: [][]byte{testSecret}}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}
