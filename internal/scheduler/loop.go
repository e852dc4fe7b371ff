package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/dynaprobe/internal/domain"
	"github.com/hamed0406/dynaprobe/internal/metrics"
)

// Prober performs one timed attempt against the store.
type Prober interface {
	Attempt(ctx context.Context, limit int) domain.ProbeResult
}

// Recorder is the aggregate the loop writes to.
type Recorder interface {
	Record(r domain.ProbeResult)
	Snapshot() domain.Snapshot
}

// Observer receives every result in addition to the Recorder.
type Observer interface {
	Observe(source string, r domain.ProbeResult)
}

const defaultSummaryEvery = 10

// Loop probes the store forever: one attempt, then a fixed sleep. The sleep
// does not subtract the probe's own duration.
type Loop struct {
	Logger       *zap.Logger
	Prober       Prober
	Stats        Recorder
	Metrics      Observer
	Interval     time.Duration
	Limit        int
	SummaryEvery uint64
}

func NewLoop(
	logger *zap.Logger,
	prober Prober,
	stats Recorder,
	obs Observer,
	interval time.Duration,
	limit int,
) *Loop {
	if interval < 0 {
		interval = 0
	}
	if limit < 1 {
		limit = 1
	}
	return &Loop{
		Logger:       logger,
		Prober:       prober,
		Stats:        stats,
		Metrics:      obs,
		Interval:     interval,
		Limit:        limit,
		SummaryEvery: defaultSummaryEvery,
	}
}

// Run blocks until ctx is cancelled. Cancellation is only noticed between
// iterations; an attempt in flight is bounded by the client's own timeouts.
func (l *Loop) Run(ctx context.Context) {
	l.Logger.Info("probe_loop_started",
		zap.Duration("interval", l.Interval),
		zap.Int("limit", l.Limit),
	)

	for n := uint64(1); ; n++ {
		l.runOnce(ctx, n)

		select {
		case <-ctx.Done():
			l.Logger.Info("probe_loop_stopped", zap.Uint64("iterations", n))
			return
		case <-time.After(l.Interval):
		}
	}
}

// runOnce performs iteration n (1-indexed).
func (l *Loop) runOnce(ctx context.Context, n uint64) {
	res := l.Prober.Attempt(context.WithoutCancel(ctx), l.Limit)

	l.Stats.Record(res)
	if l.Metrics != nil {
		l.Metrics.Observe(metrics.SourceLoop, res)
	}
	l.logResult(n, res)

	if l.SummaryEvery > 0 && n%l.SummaryEvery == 0 {
		s := l.Stats.Snapshot()
		l.Logger.Info("probe_summary",
			zap.String("outcome", "SUMMARY"),
			zap.Uint64("total", s.TotalTests),
			zap.Uint64("success", s.SuccessCount),
			zap.Uint64("failed", s.FailureCount),
			zap.String("success_rate", s.SuccessRatePercent()),
		)
	}
}

func (l *Loop) logResult(n uint64, res domain.ProbeResult) {
	fields := []zap.Field{
		zap.String("outcome", res.Outcome()),
		zap.Uint64("iteration", n),
		zap.Float64("round_trip_ms", res.RoundTripMS),
		zap.Int("limit", res.Limit),
	}

	if res.Success {
		fields = append(fields,
			zap.Int("items_returned", derefInt(res.ItemsReturned)),
			zap.Int("items_scanned", derefInt(res.ItemsScanned)),
		)
		l.Logger.Info("probe", fields...)
		return
	}

	fields = append(fields,
		zap.String("error_kind", string(res.ErrorKind)),
		zap.String("error_type", res.ErrorType),
		zap.String("error_message", res.ErrorMessage),
	)
	l.Logger.Error("probe", fields...)
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
