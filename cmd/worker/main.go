package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeworker/internal/config"
	"github.com/hamed0406/uptimeworker/internal/httpapi"
	"github.com/hamed0406/uptimeworker/internal/logging"
	"github.com/hamed0406/uptimeworker/internal/metrics"
	"github.com/hamed0406/uptimeworker/internal/notify"
	"github.com/hamed0406/uptimeworker/internal/probe"
	"github.com/hamed0406/uptimeworker/internal/repo"
	"github.com/hamed0406/uptimeworker/internal/repo/file"
	"github.com/hamed0406/uptimeworker/internal/repo/memory"
	"github.com/hamed0406/uptimeworker/internal/repo/postgres"
	"github.com/hamed0406/uptimeworker/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.NewLogger(logging.Options{
		Dir:     cfg.LogDir,
		Level:   cfg.LogLevel,
		Console: cfg.LogConsole,
		Env:     cfg.Env,
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker_failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) (err error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	checks, closeChecks, err := openCheckStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeChecks()

	logs, err := file.NewLogSink(cfg.LogsDir)
	if err != nil {
		return fmt.Errorf("log sink: %w", err)
	}

	notifier, closeNotifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeNotifier()) }()

	prober := probe.NewHTTPProber(cfg.MaxTimeout, m)
	evaluator := scheduler.NewEvaluator(logger, checks, logs, notifier, m)
	checkLoop := scheduler.NewCheckLoop(logger, checks, prober, evaluator, m, cfg.CheckInterval, cfg.MaxConcurrentChecks)
	rotator := scheduler.NewRotator(logger, logs, m, cfg.RotationInterval)

	logger.Info("worker_started",
		zap.String("store", cfg.Store),
		zap.Duration("check_interval", cfg.CheckInterval),
		zap.Duration("rotation_interval", cfg.RotationInterval),
		zap.Strings("channels", cfg.Channels()),
	)

	// The loops stop on shutdown and also when the status API exits early.
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		checkLoop.Run(loopCtx)
	}()
	go func() {
		defer wg.Done()
		rotator.Run(loopCtx)
	}()

	var apiErr error
	if cfg.APIAddr != "" {
		api := httpapi.NewServer(logger, checks, reg)
		if err := api.ListenAndServe(loopCtx, cfg.APIAddr); err != nil {
			logger.Error("api_failed", zap.String("addr", cfg.APIAddr), zap.Error(err))
			apiErr = fmt.Errorf("status api: %w", err)
		}
	} else {
		<-loopCtx.Done()
	}
	cancel()

	// In-flight probes finish or time out before the loops return.
	wg.Wait()
	logger.Info("worker_stopped")
	return apiErr
}

func openCheckStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repo.CheckStore, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.NewCheckStore(), func() {}, nil
	case config.StorePostgres:
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		return pg, pg.Close, nil
	default:
		fs, err := file.NewCheckStore(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("file store: %w", err)
		}
		return fs, func() {}, nil
	}
}

// buildNotifier fans out to every configured channel, or logs alerts when
// none is configured.
func buildNotifier(cfg *config.Config, logger *zap.Logger) (notify.Notifier, func() error, error) {
	var (
		channels notify.Multi
		closers  []func() error
	)
	if cfg.Twilio.Enabled() {
		channels = append(channels, notify.NewTwilio(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromPhone, cfg.Twilio.BaseURL))
	}
	if s := notify.NewSlack(cfg.SlackWebhook); s != nil {
		channels = append(channels, s)
	}
	if cfg.Kafka.Enabled() {
		p, err := notify.NewSyncProducer(cfg.Kafka.Brokers, "uptimeworker")
		if err != nil {
			return nil, nil, fmt.Errorf("kafka producer: %w", err)
		}
		k := notify.NewKafka(p, cfg.Kafka.Topic, logger)
		channels = append(channels, k)
		closers = append(closers, k.Close)
	}

	closeAll := func() error {
		var err error
		for _, c := range closers {
			err = multierr.Append(err, c())
		}
		return err
	}
	if len(channels) == 0 {
		return notify.Log{Logger: logger}, closeAll, nil
	}
	return channels, closeAll, nil
}
