package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/dynaprobe/internal/config"
	"github.com/hamed0406/dynaprobe/internal/httpapi"
	"github.com/hamed0406/dynaprobe/internal/logging"
	"github.com/hamed0406/dynaprobe/internal/metrics"
	"github.com/hamed0406/dynaprobe/internal/notify"
	"github.com/hamed0406/dynaprobe/internal/probe"
	"github.com/hamed0406/dynaprobe/internal/scheduler"
	"github.com/hamed0406/dynaprobe/internal/stats"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := run(ctx, cfg, logger)
	if err := multierr.Append(runErr, syncLogger(logger)); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	awsCfg, err := probe.LoadAWSConfig(ctx, probe.AWSOptions{
		Region:         cfg.Region,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
	})
	if err != nil {
		return err
	}
	reader, err := probe.NewReader(cfg.Mode, probe.NewDynamoDBClient(awsCfg, cfg.Endpoint), cfg.TableName)
	if err != nil {
		return err
	}
	prober := probe.NewProber(reader)
	limit := probe.LimitFor(cfg.Mode)

	agg := stats.New()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, func() bool { return agg.Snapshot().Healthy(time.Now()) })

	logStartup(logger, cfg, limit)

	loop := scheduler.NewLoop(logger, prober, agg, m, cfg.Interval, limit)

	api := httpapi.NewServer(logger, agg, prober, m, httpapi.Info{
		Mode:           cfg.Mode,
		Target:         cfg.Target(),
		TableName:      tableName(cfg),
		Region:         cfg.Region,
		ConnectTimeout: cfg.ConnectTimeout.Seconds(),
		ReadTimeout:    cfg.ReadTimeout.Seconds(),
		Interval:       int(cfg.Interval / time.Second),
		Limit:          limit,
	})
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.Router(httpapi.RouterOptions{
			AdminKeys:  cfg.AdminAPIKeys,
			TestRPM:    cfg.TestRPM,
			TestBurst:  cfg.TestBurst,
			TrustProxy: cfg.TrustProxy,
			Gatherer:   reg,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		loop.Run(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if slack := notify.NewSlack(cfg.SlackWebhook); slack != nil {
		alerter := scheduler.NewAlerter(logger, agg, notify.Multi{slack}, scheduler.AlerterConfig{
			Target:          cfg.Target(),
			AlertOnRecovery: cfg.AlertOnRecovery,
			Cooldown:        cfg.AlertCooldown,
			PollInterval:    cfg.AlertPoll,
		})
		g.Go(func() error {
			if err := alerter.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		logger.Info("alerts_disabled", zap.String("reason", "SLACK_WEBHOOK_URL not set"))
	}

	err = g.Wait()
	logger.Info("shutdown_complete", zap.Error(err))
	return err
}

func logStartup(logger *zap.Logger, cfg config.Config, limit int) {
	logger.Info("dynaprobe_starting",
		zap.String("mode", cfg.Mode),
		zap.String("target", cfg.Target()),
		zap.String("region", cfg.Region),
		zap.String("endpoint", cfg.Endpoint),
		zap.Duration("connection_timeout", cfg.ConnectTimeout),
		zap.Duration("read_timeout", cfg.ReadTimeout),
		zap.Duration("test_interval", cfg.Interval),
		zap.Int("limit", limit),
		zap.Int("admin_keys", len(cfg.AdminAPIKeys)),
	)
	// Worst case a hanging endpoint holds one attempt for both timeouts.
	logger.Info("expected_timeout",
		zap.Duration("max_attempt", cfg.ConnectTimeout+cfg.ReadTimeout),
	)
}

func tableName(cfg config.Config) string {
	if cfg.Mode == config.ModeListTables {
		return ""
	}
	return cfg.TableName
}

// syncLogger flushes the logger. Sync on a terminal stdout returns EINVAL
// or ENOTTY, which is not worth reporting.
func syncLogger(l *zap.Logger) error {
	err := l.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}
