package main

import (
	"context"
	"encoding/json"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ahrav/upload-armada/internal/api/debug"
	"github.com/ahrav/upload-armada/internal/api/mux"
	"github.com/ahrav/upload-armada/internal/api/routes"
	appuploads "github.com/ahrav/upload-armada/internal/app/uploads"
	"github.com/ahrav/upload-armada/internal/config"
	"github.com/ahrav/upload-armada/internal/infra/signer"
	uploadsStore "github.com/ahrav/upload-armada/internal/infra/storage/uploads/postgres"
	"github.com/ahrav/upload-armada/pkg/common"
	"github.com/ahrav/upload-armada/pkg/common/logger"
	"github.com/ahrav/upload-armada/pkg/common/otel"
)

var build = "develop"

const serviceType = "upload-api"

func main() {
	// Set the correct number of threads for the service.
	_, _ = maxprocs.Set()

	hostname, err := os.Hostname()
	if err != nil {
		stdlog.Fatalf("failed to get hostname: %v", err)
	}

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}

			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n",
				r.Message, errorAttrsJSON)
		},
	}

	traceIDFn := func(ctx context.Context) string {
		return otel.GetTraceID(ctx)
	}

	svcName := fmt.Sprintf("UPLOAD-API-%s", hostname)
	metadata := map[string]string{
		"service":  svcName,
		"hostname": hostname,
		"app":      serviceType,
	}

	log := logger.NewWithMetadata(os.Stdout, logger.LevelInfo, svcName, traceIDFn, logEvents, metadata)

	ctx := context.Background()

	if err := run(ctx, log, hostname); err != nil {
		log.Error(ctx, "startup", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, hostname string) error {
	// -------------------------------------------------------------------------
	// GOMAXPROCS
	log.Info(ctx, "startup", "GOMAXPROCS", runtime.GOMAXPROCS(0))

	// -------------------------------------------------------------------------
	// Configuration
	cfg, err := config.Load(os.Getenv("UPLOADS_CONFIG_FILE"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// -------------------------------------------------------------------------
	// Database Support
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("parsing db config: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("creating db pool: %w", err)
	}
	defer pool.Close()

	// -------------------------------------------------------------------------
	// Start Tracing Support
	var tracer trace.Tracer = noop.NewTracerProvider().Tracer("")

	if cfg.Telemetry.Enabled {
		log.Info(ctx, "startup", "status", "initializing tracing support")

		traceProvider, teardown, err := otel.InitTelemetry(log, otel.Config{
			ServiceName:      cfg.Telemetry.ServiceName,
			ExporterEndpoint: cfg.Telemetry.Endpoint,
			ExcludedRoutes: map[string]struct{}{
				"/v1/readiness": {},
				"/v1/health":    {},
				"/debug":        {},
			},
			Probability: cfg.Telemetry.SampleRate,
			ResourceAttributes: map[string]string{
				"library.language": "go",
				"host.name":        hostname,
			},
			InsecureExporter: true,
		})
		if err != nil {
			return fmt.Errorf("starting tracing: %w", err)
		}
		defer teardown(ctx)

		tracer = traceProvider.Tracer(cfg.Telemetry.ServiceName)
	}

	// -------------------------------------------------------------------------
	// Start Debug Service
	go func() {
		log.Info(ctx, "startup", "status", "debug router started", "host", cfg.Server.DebugHost)

		if err := http.ListenAndServe(cfg.Server.DebugHost, debug.Mux()); err != nil {
			log.Error(ctx, "shutdown", "status", "debug router closed", "host", cfg.Server.DebugHost, "msg", err)
		}
	}()

	// -------------------------------------------------------------------------
	// Build Application Services
	log.Info(ctx, "startup", "status", "initializing API support")

	jobStore := uploadsStore.NewJobStore(pool, tracer)
	itemStore := uploadsStore.NewItemStore(pool, tracer)

	urlSigner := signer.NewURLSigner(cfg.Signer.StoreURL, []byte(cfg.Signer.Secret), cfg.Signer.Issuer)
	signLimiter := common.NewRateLimiter(cfg.Signer.SignRPS, cfg.Signer.SignBurst)

	aggregator := appuploads.NewJobAggregator(jobStore, log, tracer)

	cfgMux := mux.Config{
		Build:  build,
		Log:    log,
		DB:     pool,
		Tracer: tracer,

		Issuer: appuploads.NewBatchIssuer(jobStore, urlSigner, cfg.Signer.Bucket,
			cfg.Signer.PermissionTTL, signLimiter, log, tracer),
		Lifecycle: appuploads.NewLifecycleService(itemStore, aggregator, log, tracer),
		Query:     appuploads.NewStatusQueryService(jobStore, tracer),
	}

	webAPI := mux.WebAPI(cfgMux,
		routes.Routes(),
		mux.WithCORS(cfg.Server.CORSOrigins),
	)

	// -------------------------------------------------------------------------
	// Start API Service
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	api := http.Server{
		Addr:         cfg.Server.APIHost,
		Handler:      webAPI,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     logger.NewStdLogger(log, logger.LevelError),
	}

	serverErrors := make(chan error, 1)

	go func() {
		log.Info(ctx, "startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// -------------------------------------------------------------------------
	// Shutdown
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info(ctx, "shutdown", "status", "shutdown started", "signal", sig)
		defer log.Info(ctx, "shutdown", "status", "shutdown complete", "signal", sig)

		ctx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}
