// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"community-notifications/internal/common/auth"
	"community-notifications/internal/common/aws"
	"community-notifications/internal/common/camunda"
	"community-notifications/internal/common/config"
	"community-notifications/internal/common/database"
	"community-notifications/internal/common/logger"
	"community-notifications/internal/common/observability"
	"community-notifications/internal/common/validation"
	"community-notifications/internal/notification"
	"community-notifications/internal/notification/audit"
	"community-notifications/internal/notification/idempotency"
	"community-notifications/internal/notification/pgstore"
	"community-notifications/internal/notification/relay"
	"community-notifications/internal/workers/notification/shared"
	"community-notifications/pkg/registry"

	bn "community-notifications/internal/workers/notification/broadcast-notification"
	dn "community-notifications/internal/workers/notification/delete-notifications"
	ln "community-notifications/internal/workers/notification/list-notifications"
	mr "community-notifications/internal/workers/notification/mark-notification-read"
	sb "community-notifications/internal/workers/notification/search-notification-batches"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notification worker manager",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	if err := run(cfg, zapLog, log); err != nil {
		zapLog.Fatal("worker manager failed", zap.Error(err))
	}
	zapLog.Info("Worker manager stopped gracefully")
}

func run(cfg *config.Config, zapLog *zap.Logger, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("observability disabled", zap.Error(err))
	}
	defer obs.Shutdown(context.Background())

	// --- Zeebe ---
	zeebe, err := camunda.NewClient(ctx, cfg.Camunda, camunda.DefaultRetryConfig)
	if err != nil {
		return err
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected", zap.String("address", cfg.Camunda.BrokerAddress))

	// --- PostgreSQL ---
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()
	if err := pg.Ping(ctx); err != nil {
		return err
	}
	if cfg.Database.Postgres.AutoMigrate {
		if err := pgstore.Migrate(ctx, pg.DB); err != nil {
			return err
		}
		zapLog.Info("PostgreSQL schema migrated")
	}

	deps := notification.Dependencies{
		Store:     pgstore.NewStore(pg.DB),
		Directory: pgstore.NewDirectory(pg.DB),
		Ledger:    pgstore.NewLedger(pg.DB),
	}
	checks := map[string]func(context.Context) error{
		"postgres": pg.Ping,
		"zeebe":    zeebe.HealthCheck,
	}

	// --- Redis batch guard ---
	if cfg.Database.Redis.Enabled {
		rdb := database.NewRedis(cfg.Database.Redis)
		defer rdb.Close()
		if err := rdb.Ping(ctx); err != nil {
			// sends still work unguarded; the unique constraint keeps retries from duplicating
			zapLog.Warn("redis unreachable at startup", zap.Error(err))
		}
		deps.Guard = idempotency.NewRedisGuard(rdb.Client, idempotency.ConfigFrom(cfg.Notifications))
		checks["redis"] = rdb.Ping
	}

	// --- Elasticsearch audit index ---
	var searcher sb.Searcher
	if cfg.Database.Elasticsearch.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		indexer := audit.NewIndexer(es.Client, cfg.Notifications.Audit.Index)
		if err := indexer.EnsureIndex(ctx); err != nil {
			zapLog.Warn("audit index not ready", zap.Error(err))
		}
		deps.Observers = append(deps.Observers, indexer)
		searcher = indexer
		checks["elasticsearch"] = es.Ping
	}

	// --- Relays ---
	if cfg.Integrations.AWS.SES.Enabled || cfg.Integrations.AWS.SNS.Enabled {
		awsCfg, err := aws.LoadConfig(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			return err
		}
		if cfg.Integrations.AWS.SES.Enabled {
			deps.Observers = append(deps.Observers,
				relay.NewEmailRelay(aws.NewSESClient(awsCfg), cfg.Integrations.AWS.SES.FromEmail, log))
		}
		if cfg.Integrations.AWS.SNS.Enabled {
			deps.Observers = append(deps.Observers,
				relay.NewTopicPublisher(aws.NewSNSClient(awsCfg), cfg.Integrations.AWS.SNS.TopicARN))
		}
	}
	if q := cfg.Integrations.AMQP; q.Enabled {
		conn, ch, err := relay.OpenChannel(q.URL, q.Exchange)
		if err != nil {
			return err
		}
		defer conn.Close()
		defer ch.Close()
		deps.Observers = append(deps.Observers, relay.NewQueuePublisher(ch, q.Exchange, q.RoutingKey))
	}

	// --- Caller identity ---
	var authenticator shared.Authenticator
	if kc := cfg.Auth.Keycloak; kc.Enabled {
		authenticator = auth.NewKeycloakClient(kc.URL, kc.Realm, kc.ClientID, kc.ClientSecret)
	}

	// --- Job input schemas ---
	reg, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		return err
	}
	validator, err := validation.NewSchemaValidator(reg)
	if err != nil {
		return err
	}

	service := notification.NewService(deps, notification.ConfigFrom(cfg.Notifications), log)
	workerDeps := shared.Deps{
		Validator:     validator,
		Sessions:      shared.NewSessionResolver(authenticator),
		Observability: obs,
		Logger:        log,
	}

	// --- Workers ---
	handlers := map[string]worker.JobHandler{
		bn.TaskType: bn.NewHandler(bn.LoadConfig(config.GetWorkerConfig(cfg, bn.TaskType)), service, workerDeps).Handle,
		ln.TaskType: ln.NewHandler(ln.LoadConfig(config.GetWorkerConfig(cfg, ln.TaskType)), service, workerDeps).Handle,
		mr.TaskType: mr.NewHandler(mr.LoadConfig(config.GetWorkerConfig(cfg, mr.TaskType)), service, workerDeps).Handle,
		dn.TaskType: dn.NewHandler(dn.LoadConfig(config.GetWorkerConfig(cfg, dn.TaskType)), service, workerDeps).Handle,
		sb.TaskType: sb.NewHandler(sb.LoadConfig(config.GetWorkerConfig(cfg, sb.TaskType)), searcher, workerDeps).Handle,
	}

	var workers []worker.JobWorker
	for taskType, handler := range handlers {
		if _, ok := reg.Find(taskType); !ok {
			return fmt.Errorf("task type %s is not in the activity registry", taskType)
		}
		if jw := camunda.StartWorker(zeebe.Zeebe(), taskType, config.GetWorkerConfig(cfg, taskType), handler, log); jw != nil {
			workers = append(workers, jw)
		}
	}
	zapLog.Info("Workers registered", zap.Int("active", len(workers)), zap.Int("observers", len(deps.Observers)))

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           newRouter(checks),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	for _, jw := range workers {
		jw.Close()
		jw.AwaitClose()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	return nil
}
