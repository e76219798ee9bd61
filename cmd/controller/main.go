// Command controller runs the lambda-microservice controller: the HTTP
// front door for session lifecycle, runtime selection, and function
// execution.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lambda-microservice/controller/internal/config"
	"github.com/lambda-microservice/controller/internal/database"
	"github.com/lambda-microservice/controller/internal/httpapi"
	"github.com/lambda-microservice/controller/pkg/cache"
	"github.com/lambda-microservice/controller/pkg/catalog"
	"github.com/lambda-microservice/controller/pkg/obslog"
	"github.com/lambda-microservice/controller/pkg/orchestrator"
	"github.com/lambda-microservice/controller/pkg/resilience"
	"github.com/lambda-microservice/controller/pkg/runtimeselect"
	"github.com/lambda-microservice/controller/pkg/session"
	"github.com/lambda-microservice/controller/pkg/telemetry"
	"github.com/lambda-microservice/controller/pkg/transport"
	"github.com/lambda-microservice/controller/pkg/wasmrun"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("controller: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	obs, err := obslog.New(ctx, obslogConfig(cfg))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			obs.Logger.Error("tracer shutdown failed", "error", err)
		}
	}()
	logger := obs.Logger

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	logger.InfoContext(ctx, "database migrated")

	redisCache, err := cache.NewRedisCacheFromURL(cfg.RedisURL)
	if err != nil {
		return err
	}

	sessionStore := session.NewSQLStore(db)
	cachedSessions := session.NewCachedStore(sessionStore, redisCache, cfg.CacheTTLSeconds, logger)

	catalogStore := catalog.NewSQLStore(db)

	selector, err := buildSelector(cfg, logger)
	if err != nil {
		return err
	}

	factory := transport.NewProtocolFactory()
	policy := resilience.NewPolicy(cfg.RuntimeMaxRetries)
	compiler := wasmrun.NewCompiler(ctx)
	defer compiler.Close(context.Background())

	sink := telemetry.NewSQLSink(db, logger)

	var openfaas *orchestrator.OpenFaaSClient
	if cfg.OpenFaaSGatewayURL != "" {
		openfaas = orchestrator.NewOpenFaaSClient(cfg.OpenFaaSGatewayURL, time.Duration(cfg.RuntimeTimeoutSeconds)*time.Second)
	}

	orc := orchestrator.New(cfg, cachedSessions, selector, factory, policy, compiler, sink, openfaas, logger, obs.Tracer)

	server := httpapi.New(orc, catalogStore, cfg.SessionExpirySeconds, logger)

	httpServer := &http.Server{
		Addr:              cfg.Host + ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "controller listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return err
	}

	logger.Info("controller stopped")
	return nil
}

func obslogConfig(cfg *config.Config) *obslog.Config {
	c := obslog.DefaultConfig()
	c.ServiceName = "lambda-controller"
	c.JSON = os.Getenv("LOG_FORMAT") != "text"
	c.TracingEnabled = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		c.OTLPEndpoint = endpoint
	}
	return c
}

// buildSelector picks the runtime selection strategy named by
// cfg.SelectionStrategy. Discovery requires the binary to be built with
// -tags discovery; a plain build rejects it at startup rather than at
// first request. A bad regex rule in a config-strategy mappings file is
// logged and skipped rather than aborting startup.
func buildSelector(cfg *config.Config, logger *slog.Logger) (runtimeselect.Selector, error) {
	switch cfg.SelectionStrategy {
	case config.StrategyConfig:
		mappings, err := config.LoadRuntimeMappings(cfg.RuntimeMappingsFile)
		if err != nil {
			return nil, err
		}
		return runtimeselect.NewConfigSelector(mappings, logger), nil
	case config.StrategyDiscovery:
		return runtimeselect.NewDiscoverySelector(cfg.KubernetesNamespace)
	default:
		return runtimeselect.NewPrefixSelector(), nil
	}
}
