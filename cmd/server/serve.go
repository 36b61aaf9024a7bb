package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"zkworkspace/internal/audit/relay"
	"zkworkspace/internal/platform/config"
	"zkworkspace/internal/platform/httpserver"
	"zkworkspace/internal/platform/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when Kafka is configured, the audit relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := buildApp(ctx, cfg, log, reg)
	if err != nil {
		log.Error("failed to initialize", "error", err)
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("failed to release resources", "error", err)
		}
	}()

	var auditRelay *relay.Relay
	if len(cfg.Kafka.Brokers) > 0 {
		client, err := relay.NewKafkaClient(cfg.Kafka.Brokers, "zkworkspace")
		if err != nil {
			return err
		}
		defer client.Close()
		if err := relay.EnsureTopic(ctx, client, cfg.Kafka.AuditTopic, cfg.Kafka.TopicPartitions, cfg.Kafka.TopicReplication); err != nil {
			log.Warn("could not ensure audit topic", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
		auditRelay = relay.New(a.outbox, client, cfg.Kafka.AuditTopic,
			relay.WithInterval(cfg.Kafka.OutboxPollInterval),
			relay.WithBatchSize(cfg.Kafka.OutboxBatchSize),
			relay.WithLogger(log),
			relay.WithMetrics(a.metrics),
		)
	} else {
		log.Info("KAFKA_BROKERS not set, audit relay disabled")
	}

	srv := httpserver.New(cfg.Addr, a.router)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting zkworkspace", "addr", cfg.Addr, "memory_backend", cfg.UsesMemory())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if auditRelay != nil {
		g.Go(func() error {
			return auditRelay.Run(gctx)
		})
	}

	return g.Wait()
}
