package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/playhub/libs/db"
	"github.com/md-rashed-zaman/playhub/libs/kafkax"
	otelx "github.com/md-rashed-zaman/playhub/libs/otel"
	"github.com/md-rashed-zaman/playhub/libs/outbox"
	"github.com/md-rashed-zaman/playhub/libs/runtime"
	"github.com/md-rashed-zaman/playhub/services/relay-service/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "relay-service config:", err)
		os.Exit(2)
	}
	logger := runtime.NewLogger(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := runtime.SignalContext()
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("relay-service stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	otelShutdown, err := otelx.Setup(ctx, cfg.ServiceName, cfg.Otel)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var checks []runtime.ReadyCheck

	var pool *db.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.Open(ctx, db.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return fmt.Errorf("db connection: %w", err)
		}
		defer pool.Close()
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	}

	store, storeChecks, closeStore, err := openStore(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	checks = append(checks, storeChecks...)

	lock, lockChecks, closeLock, err := openLock(ctx, cfg, pool)
	if err != nil {
		return err
	}
	defer closeLock()
	checks = append(checks, lockChecks...)

	brokers := cfg.Brokers()
	if cfg.VerifyPartitions {
		if err := kafkax.VerifyPartitions(ctx, brokers, cfg.Streams.Partitions()); err != nil {
			return fmt.Errorf("kafka partition check: %w", err)
		}
	}
	producer, err := kafkax.NewTxProducer(kafkax.ProducerConfig{
		Brokers:         brokers,
		TransactionalID: cfg.TransactionalID,
		DeliveryTimeout: cfg.SendTimeout,
	})
	if err != nil {
		return err
	}
	defer producer.Close()
	checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})

	relay, err := outbox.NewRelay(store,
		outbox.NewPublisher(producer, outbox.PublisherConfig{
			SendTimeout:   cfg.SendTimeout,
			CommitTimeout: cfg.CommitTimeout,
		}),
		lock, logger,
		outbox.RelayConfig{PageSize: cfg.PageSize, MeterProvider: otel.GetMeterProvider()},
	)
	if err != nil {
		return err
	}
	scheduler := outbox.NewScheduler(relay, logger, outbox.SchedulerConfig{
		Interval:      cfg.Interval,
		ShutdownGrace: cfg.ShutdownGrace,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(runtime.NewProbeMux(checks...), "relay-probes"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scheduler.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("probe server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("probe server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
