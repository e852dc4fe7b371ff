package stats

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hamed0406/dynaprobe/internal/domain"
)

func ok() domain.ProbeResult { return domain.ProbeResult{Success: true, ErrorKind: domain.ErrorNone} }

func fail(msg string) domain.ProbeResult {
	return domain.ProbeResult{ErrorKind: domain.ErrorOther, ErrorMessage: msg}
}

func TestAggregator_StartsEmpty(t *testing.T) {
	s := New().Snapshot()
	if s.TotalTests != 0 || s.SuccessCount != 0 || s.FailureCount != 0 {
		t.Fatalf("want zero counts, got %+v", s)
	}
	if s.LastSuccess != nil || s.LastError != nil {
		t.Fatalf("want no last success/error, got %+v", s)
	}
	if s.Healthy(time.Now()) {
		t.Fatalf("startup state must be unhealthy")
	}
}

func TestAggregator_CountsAddUp(t *testing.T) {
	a := New()
	seq := []domain.ProbeResult{ok(), fail("a"), ok(), ok(), fail("b"), ok(), ok(), fail("c"), ok(), ok()}
	for i, r := range seq {
		a.Record(r)
		s := a.Snapshot()
		if s.TotalTests != uint64(i+1) || s.SuccessCount+s.FailureCount != s.TotalTests {
			t.Fatalf("after %d records: %+v", i+1, s)
		}
	}
	s := a.Snapshot()
	if s.SuccessCount != 7 || s.FailureCount != 3 {
		t.Fatalf("want 7/3, got %d/%d", s.SuccessCount, s.FailureCount)
	}
	if s.SuccessRatePercent() != "70.0%" {
		t.Fatalf("want 70.0%%, got %s", s.SuccessRatePercent())
	}
}

func TestAggregator_LastErrorLifecycle(t *testing.T) {
	a := New()

	a.Record(fail("Access denied"))
	if s := a.Snapshot(); s.LastError == nil || *s.LastError != "Access denied" {
		t.Fatalf("want last error set, got %+v", s.LastError)
	}

	a.Record(fail("Connect timeout on endpoint"))
	if s := a.Snapshot(); *s.LastError != "Connect timeout on endpoint" {
		t.Fatalf("want last error overwritten, got %q", *s.LastError)
	}

	a.Record(ok())
	if s := a.Snapshot(); s.LastError != nil {
		t.Fatalf("want last error cleared on success, got %q", *s.LastError)
	}
}

func TestAggregator_LastSuccessOnlyFromSuccesses(t *testing.T) {
	t0 := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	now := t0
	a := New(WithClock(func() time.Time { return now }))

	a.Record(fail("x"))
	if a.Snapshot().LastSuccess != nil {
		t.Fatalf("failure must not set last success")
	}

	a.Record(ok())
	if ls := a.Snapshot().LastSuccess; ls == nil || !ls.Equal(t0) {
		t.Fatalf("want last success %v, got %v", t0, ls)
	}

	now = t0.Add(10 * time.Second)
	a.Record(fail("y"))
	if ls := a.Snapshot().LastSuccess; !ls.Equal(t0) {
		t.Fatalf("failure moved last success to %v", ls)
	}

	// clock stepped back: keep the later timestamp
	now = t0.Add(-time.Minute)
	a.Record(ok())
	if ls := a.Snapshot().LastSuccess; !ls.Equal(t0) {
		t.Fatalf("last success went backwards to %v", ls)
	}
}

func TestAggregator_SnapshotIsACopy(t *testing.T) {
	a := New()
	a.Record(fail("first"))
	s := a.Snapshot()
	*s.LastError = "mutated"
	if got := *a.Snapshot().LastError; got != "first" {
		t.Fatalf("snapshot aliased internal state: %q", got)
	}
}

func TestAggregator_ConcurrentReadersNeverSeeTornState(t *testing.T) {
	a := New()
	const n = 2000

	var done atomic.Bool
	var wg sync.WaitGroup
	errs := make(chan string, 8)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var prev uint64
			for !done.Load() {
				s := a.Snapshot()
				if s.SuccessCount+s.FailureCount != s.TotalTests {
					errs <- "torn snapshot"
					return
				}
				if s.TotalTests < prev {
					errs <- "total went backwards"
					return
				}
				prev = s.TotalTests
			}
		}()
	}

	for i := 0; i < n; i++ {
		if i%3 == 0 {
			a.Record(fail("f"))
		} else {
			a.Record(ok())
		}
	}
	done.Store(true)
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Fatal(e)
	}
	if s := a.Snapshot(); s.TotalTests != n {
		t.Fatalf("want %d, got %d", n, s.TotalTests)
	}
}
