package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"zkworkspace/internal/audit"
	"zkworkspace/internal/audit/outbox"
	"zkworkspace/internal/audit/relay"
	memberservice "zkworkspace/internal/membership/service"
	memberstore "zkworkspace/internal/membership/store"
	orgservice "zkworkspace/internal/org/service"
	orgstore "zkworkspace/internal/org/store"
	"zkworkspace/internal/platform/config"
	"zkworkspace/internal/platform/metrics"
	"zkworkspace/internal/platform/postgres"
	"zkworkspace/internal/platform/redis"
	"zkworkspace/internal/storage"
	httptransport "zkworkspace/internal/transport/http"
	"zkworkspace/internal/verification/dnscheck"
	verifyservice "zkworkspace/internal/verification/service"
	verifystore "zkworkspace/internal/verification/store"
	"zkworkspace/internal/verification/throttle"
	"zkworkspace/pkg/platform/circuit"
	"zkworkspace/pkg/platform/tx"
)

// stores groups the persistence collaborators of the three services. Both
// backends provide all of them plus the unit-of-work runner.
type stores struct {
	orgs          orgservice.Store
	orgLookup     memberservice.OrgStore
	verifications verifyservice.Store
	members       memberservice.Store
	outbox        interface {
		audit.Appender
		relay.Outbox
	}
	runner tx.Runner
}

// app holds everything the serve command runs and later releases.
type app struct {
	router  http.Handler
	outbox  relay.Outbox
	metrics *metrics.Metrics
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func buildApp(ctx context.Context, cfg config.Server, logger *slog.Logger, reg *prometheus.Registry) (*app, error) {
	m := metrics.New(reg)
	a := &app{metrics: m}

	st, err := openStores(ctx, cfg, logger, a)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.outbox = st.outbox

	limiter, err := openThrottle(ctx, cfg, logger, a)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	publisher := audit.NewPublisher(st.outbox, logger)
	checker := dnscheck.NewChecker(
		dnscheck.NewNetResolver(cfg.DNS.Server),
		dnscheck.WithTimeout(cfg.DNS.Timeout),
		dnscheck.WithLogger(logger),
	)

	orgs := orgservice.New(st.orgs, st.verifications, st.runner,
		orgservice.WithLogger(logger),
		orgservice.WithAuditPublisher(publisher),
		orgservice.WithMetrics(m),
	)
	verifier := verifyservice.New(st.verifications, st.orgLookup, checker, st.runner,
		verifyservice.WithLogger(logger),
		verifyservice.WithAuditPublisher(publisher),
		verifyservice.WithMetrics(m),
		verifyservice.WithThrottle(limiter),
	)
	ledger := memberservice.New(st.members, st.orgLookup, st.runner,
		memberservice.WithLogger(logger),
		memberservice.WithAuditPublisher(publisher),
		memberservice.WithMetrics(m),
		memberservice.WithRootValidator(memberservice.AcceptAnyRoot{Logger: logger}),
	)

	handler := httptransport.NewHandler(orgs, verifier, ledger, logger)
	a.router = httptransport.NewRouter(handler, reg, logger)
	return a, nil
}

func openStores(ctx context.Context, cfg config.Server, logger *slog.Logger, a *app) (*stores, error) {
	if cfg.UsesMemory() {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		mem := storage.NewMemory()
		return &stores{
			orgs:          mem.Orgs(),
			orgLookup:     mem.Orgs(),
			verifications: mem.Verifications(),
			members:       mem.Members(),
			outbox:        mem.Outbox(),
			runner:        mem,
		}, nil
	}

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	logger.Info("connected to postgres", "driver", cfg.Database.Driver)

	orgs := orgstore.NewPostgres(db)
	return &stores{
		orgs:          orgs,
		orgLookup:     orgs,
		verifications: verifystore.NewPostgres(db),
		members:       memberstore.NewPostgres(db),
		outbox:        outbox.NewPostgres(db),
		runner: tx.NewSQLRunner(db,
			tx.WithTimeout(cfg.Database.TxTimeout),
			tx.WithStatementTimeout(cfg.Database.StatementTimeout),
		),
	}, nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := postgres.Open(ctx, cfg.URL, postgres.Options{
		Driver:          cfg.Driver,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func openThrottle(ctx context.Context, cfg config.Server, logger *slog.Logger, a *app) (verifyservice.Throttle, error) {
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		return throttle.NewMemory(cfg.Verification.CheckInterval), nil
	}
	a.closers = append(a.closers, client.Close)
	logger.Info("verification checks throttled through redis")
	return throttle.NewFallback(
		throttle.NewRedis(client, cfg.Verification.CheckInterval),
		throttle.NewMemory(cfg.Verification.CheckInterval),
		circuit.New("redis-throttle"),
		logger,
	), nil
}
