// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command backserver runs the skin-lesion triage backend: the upload
// quality gate, the case ledger, and the active-learning control plane
// (label pool, model registry, retraining, promotion).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ChawanakornI/SeniorProjectAl/pkg/logging"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/casestore"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/config"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/eventlog"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/labelpool"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/mlmodel"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/observability"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/promote"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/registry"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/retrain"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/routes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/storage"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/trainconfig"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/users"
)

func main() {
	root := &cobra.Command{
		Use:          "backserver",
		Short:        "Skin-lesion triage backend",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (the default action)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// initTracer sets up the OTLP exporter when OTEL_EXPORTER_OTLP_ENDPOINT
// is configured; without it tracing stays a no-op.
func initTracer(ctx context.Context) (func(context.Context), error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return func(context.Context) {}, nil
	}

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("backserver")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("LOG_LEVEL")),
		LogDir:  os.Getenv("LOG_DIR"),
		Service: "backserver",
	})
	defer logger.Close()

	cleanup, err := initTracer(ctx)
	if err != nil {
		return fmt.Errorf("setting up the OTLP tracer: %w", err)
	}
	defer cleanup(context.Background())

	var cipher *storage.Cipher
	if cfg.EncryptStorage {
		cipher, err = storage.NewCipher(cfg.DataEncryptionKey)
		if err != nil {
			return fmt.Errorf("loading data encryption key: %w", err)
		}
		logger.Info("encrypted storage enabled")
	}

	issuer, err := users.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiration)
	if err != nil {
		return fmt.Errorf("configuring token issuer: %w", err)
	}

	cases := casestore.New(cfg, cipher, logger)
	pool := labelpool.New(cfg.LabelsPoolFile())
	events := eventlog.New(cfg.EventLogFile())
	configs := trainconfig.New(cfg.ActiveConfigFile(), logger)
	if err := configs.Watch(); err != nil {
		logger.Warn("training-config hot reload disabled", slog.Any("error", err))
	}
	defer configs.Close()

	reg := registry.New(registry.Config{
		Path:          cfg.RegistryFile(),
		ProductionDir: cfg.ProductionDir(),
		CandidatesDir: cfg.CandidatesDir(),
		ArchiveDir:    cfg.ArchiveDir(),
	}, logger)

	var (
		backend    mlmodel.TrainerBackend
		classifier mlmodel.Classifier
	)
	if cfg.TrainerCommand != "" {
		local, err := mlmodel.NewLocalBackend(cfg.TrainerCommand, logger)
		if err != nil {
			return fmt.Errorf("configuring trainer backend: %w", err)
		}
		backend = local
		classifier = mlmodel.NewLocalClassifier(local, func() string {
			versionID, err := reg.ActiveInference()
			if err != nil || versionID == "" {
				return reg.ProductionModelPath()
			}
			entry, err := reg.Get(versionID)
			if err != nil {
				return reg.ProductionModelPath()
			}
			return entry.Path
		})
	} else {
		logger.Warn("AL_TRAINER_COMMAND not set; inference and retraining are unavailable")
		backend = mlmodel.Unavailable{}
		classifier = mlmodel.Unavailable{}
	}

	runner := retrain.NewRunner(cfg, pool, cases, reg, events, configs, backend, logger)
	promoter := promote.New(reg, events, logger)
	worker := retrain.NewWorker(runner, promoter)
	metrics := observability.InitMetrics()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("backserver"))

	routes.SetupRoutes(router, &routes.Deps{
		Cfg:        cfg,
		Logger:     logger,
		Metrics:    metrics,
		Users:      users.NewStore(cfg.UsersFile),
		Tokens:     issuer,
		Cases:      cases,
		Pool:       pool,
		Events:     events,
		Configs:    configs,
		Registry:   reg,
		Promoter:   promoter,
		Worker:     worker,
		Classifier: classifier,
		Blur:       mlmodel.NewLaplacianScorer(),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	logger.Info("starting backserver", slog.String("addr", addr))
	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		return router.RunTLS(addr, cfg.TLSCert, cfg.TLSKey)
	}
	return router.Run(addr)
}
