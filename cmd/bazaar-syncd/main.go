package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/bazaarhq/bazaar/pkg/billing"
	"github.com/bazaarhq/bazaar/pkg/config"
	"github.com/bazaarhq/bazaar/pkg/notify"
	"github.com/bazaarhq/bazaar/pkg/observability"
	"github.com/bazaarhq/bazaar/pkg/storage"
	"github.com/bazaarhq/bazaar/pkg/storage/postgres"
	"github.com/bazaarhq/bazaar/pkg/sync"
)

var (
	runOnce  = flag.Bool("run-once", false, "Run one sync and exit")
	strategy = flag.String("strategy", "", "Sync strategy for --run-once (full, incremental, active_only, plans_only); overrides BAZAAR_SYNC_STRATEGY")
	dryRun   = flag.Bool("dry-run", false, "Derive discovered plans without persisting them")
	limit    = flag.Int("limit", 0, "Cap the number of candidates per run; overrides BAZAAR_SYNC_LIMIT")
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.SetLevel(logrusLevel(cfg.Observability.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := observability.ShutdownOTel(shutdownCtx, otelProviders, logger); err != nil {
			log.Warnf("OpenTelemetry shutdown: %v", err)
		}
	}()

	pgStore, err := postgres.Connect(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pgStore.Close()

	if err := pgStore.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	store, planCache, err := buildStore(pgStore, cfg.Storage, log)
	if err != nil {
		log.Fatalf("Failed to initialize plan cache: %v", err)
	}
	if planCache != nil {
		defer planCache.Close()
	}

	provider := billing.NewStripeClient(cfg.Billing.StripeAPIKey, cfg.Billing.StripeTimeout)
	if cfg.Billing.StripeBaseURL != "" {
		provider = provider.WithBaseURL(cfg.Billing.StripeBaseURL)
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	engineOpts := []sync.Option{
		sync.WithLogger(logger),
		sync.WithMetrics(metrics),
		sync.WithWorkers(cfg.Sync.Workers),
		sync.WithRecordTimeout(cfg.Sync.RecordTimeout),
	}
	if cfg.Notify.WebhookURL != "" {
		engineOpts = append(engineOpts, sync.WithNotifier(
			notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.WebhookSecret)))
	}
	engine := sync.NewEngine(store, provider, engineOpts...)

	opts := sync.Options{Limit: cfg.Sync.Limit}
	if *limit > 0 {
		opts.Limit = *limit
	}
	if *dryRun {
		autoAdd := false
		opts.AutoAdd = &autoAdd
	}

	if *runOnce {
		runStrategy := cfg.Sync.Strategy
		if *strategy != "" {
			runStrategy = sync.ParseStrategy(*strategy)
		}

		run, err := engine.RunSync(ctx, runStrategy, opts)
		if err != nil {
			log.Fatalf("Sync run failed: %v", err)
		}

		out, _ := json.MarshalIndent(run, "", "  ")
		fmt.Println(string(out))
		return
	}

	runDaemon(ctx, cfg, log, engine, opts, pgStore, planCache, registry)
}

func buildStore(pgStore *postgres.Store, cfg storage.Config, log *logrus.Logger) (storage.SubscriptionStore, *postgres.PlanCache, error) {
	if !cfg.CacheEnabled {
		return pgStore, nil, nil
	}

	planCache, err := postgres.NewPlanCache(pgStore, cfg)
	if err != nil {
		return nil, nil, err
	}
	log.Info("Plan cache enabled")
	return planCache, planCache, nil
}

func runDaemon(ctx context.Context, cfg *config.Config, log *logrus.Logger, engine *sync.Engine,
	opts sync.Options, pgStore *postgres.Store, planCache *postgres.PlanCache,
	registry *prometheus.Registry) {

	c := cron.New()
	_, err := c.AddFunc(cfg.Sync.Schedule, func() {
		run, err := engine.RunSync(context.Background(), cfg.Sync.Strategy, opts)
		if err != nil {
			log.WithError(err).Error("Scheduled sync run failed")
			return
		}
		log.WithFields(logrus.Fields{
			"run_id":           run.ID,
			"processed":        run.Processed,
			"updated":          run.Updated,
			"plans_discovered": run.PlansDiscovered,
			"errors":           len(run.Errors),
		}).Info("Scheduled sync run completed")
	})
	if err != nil {
		log.Fatalf("Failed to schedule sync: %v", err)
	}

	opsServer := buildOpsServer(cfg, pgStore, planCache, registry)
	go func() {
		log.Infof("Operational server listening on %s", opsServer.Addr)
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Operational server failed: %v", err)
		}
	}()

	c.Start()
	log.WithFields(logrus.Fields{
		"schedule": cfg.Sync.Schedule,
		"strategy": string(cfg.Sync.Strategy),
	}).Info("Sync daemon started")

	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	cronCtx := c.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Operational server shutdown: %v", err)
	}

	log.Info("Sync daemon stopped")
}

func buildOpsServer(cfg *config.Config, pgStore *postgres.Store, planCache *postgres.PlanCache,
	registry *prometheus.Registry) *http.Server {

	router := mux.NewRouter()

	checker := observability.NewHealthChecker(pgStore.DB(), redisClient(planCache))
	observability.RegisterHealthRoutes(router, checker)

	if cfg.Observability.MetricsEnabled {
		router.Handle("/metrics", observability.Handler(registry)).Methods(http.MethodGet)
	}

	return &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func redisClient(planCache *postgres.PlanCache) *redis.Client {
	if planCache == nil {
		return nil
	}
	return planCache.Redis()
}

func logrusLevel(level observability.LogLevel) logrus.Level {
	switch level {
	case observability.DebugLevel:
		return logrus.DebugLevel
	case observability.WarnLevel:
		return logrus.WarnLevel
	case observability.ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
