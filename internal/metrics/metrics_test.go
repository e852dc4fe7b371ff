package metrics_test

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hamed0406/dynaprobe/internal/domain"
	"github.com/hamed0406/dynaprobe/internal/metrics"
)

func TestObserve_CountsBySourceAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, nil)

	m.Observe(metrics.SourceLoop, domain.ProbeResult{Success: true, RoundTripMS: 12})
	m.Observe(metrics.SourceLoop, domain.ProbeResult{ErrorKind: domain.ErrorTimeout, RoundTripMS: 5000})
	m.Observe(metrics.SourceOnDemand, domain.ProbeResult{ErrorKind: domain.ErrorOther, RoundTripMS: 3})

	if v := testutil.ToFloat64(m.ProbesTotal.WithLabelValues("loop", "SUCCESS")); v != 1 {
		t.Errorf("expected loop/SUCCESS=1, got %f", v)
	}
	if v := testutil.ToFloat64(m.ProbesTotal.WithLabelValues("loop", "TIMEOUT")); v != 1 {
		t.Errorf("expected loop/TIMEOUT=1, got %f", v)
	}
	if v := testutil.ToFloat64(m.ProbesTotal.WithLabelValues("on_demand", "FAILED")); v != 1 {
		t.Errorf("expected on_demand/FAILED=1, got %f", v)
	}
	if n := testutil.CollectAndCount(m.RoundTripMS); n != 2 {
		t.Errorf("expected 2 histogram series, got %d", n)
	}
}

func TestObserve_LastSuccessOnlyFromLoop(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry(), nil)
	ts := time.Unix(1_700_000_000, 0)

	m.Observe(metrics.SourceOnDemand, domain.ProbeResult{Success: true, CheckedAt: ts})
	if v := testutil.ToFloat64(m.LastSuccessTimestamp); v != 0 {
		t.Errorf("on-demand success must not move the gauge, got %f", v)
	}

	m.Observe(metrics.SourceLoop, domain.ProbeResult{Success: true, CheckedAt: ts})
	if v := testutil.ToFloat64(m.LastSuccessTimestamp); v != 1_700_000_000 {
		t.Errorf("expected gauge=1700000000, got %f", v)
	}
}

func TestHealthyGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	healthy := false
	metrics.New(reg, func() bool { return healthy })

	expected := `
# HELP dynaprobe_healthy 1 when a loop probe succeeded within the health window, else 0.
# TYPE dynaprobe_healthy gauge
dynaprobe_healthy 0
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "dynaprobe_healthy"); err != nil {
		t.Fatalf("unhealthy: %v", err)
	}

	healthy = true
	expected = strings.Replace(expected, "dynaprobe_healthy 0", "dynaprobe_healthy 1", 1)
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "dynaprobe_healthy"); err != nil {
		t.Fatalf("healthy: %v", err)
	}
}
