package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/dynaprobe/internal/domain"
	"github.com/hamed0406/dynaprobe/internal/notify"
)

type AlerterConfig struct {
	Target          string
	AlertOnRecovery bool
	Cooldown        time.Duration
	PollInterval    time.Duration
}

// Snapshotter is the read side of the aggregate statistics.
type Snapshotter interface {
	Snapshot() domain.Snapshot
}

// Alerter watches the health derived from the aggregate statistics and
// notifies on healthy/unhealthy transitions.
type Alerter struct {
	logger   *zap.Logger
	stats    Snapshotter
	notifier notify.Notifier
	cfg      AlerterConfig
	now      func() time.Time

	known       bool
	lastHealthy bool
	lastSentAt  time.Time
}

func NewAlerter(
	logger *zap.Logger,
	stats Snapshotter,
	notifier notify.Notifier,
	cfg AlerterConfig,
) *Alerter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	return &Alerter{
		logger:   logger,
		stats:    stats,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (a *Alerter) Run(ctx context.Context) error {
	t := time.NewTicker(a.cfg.PollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if err := a.scanOnce(ctx); err != nil {
				a.logger.Warn("alert_send_error", zap.Error(err))
			}
		}
	}
}

func (a *Alerter) scanOnce(ctx context.Context) error {
	s := a.stats.Snapshot()
	if s.TotalTests == 0 {
		// nothing probed yet; startup is not an outage
		return nil
	}

	now := a.now()
	healthy := s.Healthy(now)
	first := !a.known
	changed := first || a.lastHealthy != healthy
	a.known = true
	a.lastHealthy = healthy
	if !changed {
		return nil
	}

	// Cooldown only applies to DOWN alerts.
	cooled := a.lastSentAt.IsZero() || now.Sub(a.lastSentAt) >= a.cfg.Cooldown
	downAlert := !healthy && cooled
	recoveryAlert := healthy && !first && a.cfg.AlertOnRecovery
	if !downAlert && !recoveryAlert {
		return nil
	}

	title := "🔴 DynamoDB probe UNHEALTHY"
	if healthy {
		title = "🟢 DynamoDB probe RECOVERED"
	}

	lastSuccess := "never"
	if s.LastSuccess != nil {
		lastSuccess = s.LastSuccess.Format(time.RFC3339)
	}
	lastErr := "none"
	if s.LastError != nil {
		lastErr = *s.LastError
	}
	text := fmt.Sprintf(
		"Target: %s\nLast success: %s\nLast error: %s\nTests: %d (failed %d, success rate %s)",
		a.cfg.Target, lastSuccess, lastErr, s.TotalTests, s.FailureCount, s.SuccessRatePercent(),
	)

	if err := a.notifier.Send(ctx, title, text); err != nil {
		return fmt.Errorf("send health alert: %w", err)
	}
	a.lastSentAt = now
	a.logger.Info("alert_sent", zap.Bool("healthy", healthy), zap.String("target", a.cfg.Target))
	return nil
}
