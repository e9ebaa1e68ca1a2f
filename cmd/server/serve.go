package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"narrative-timeline/backend/internal/api"
	"narrative-timeline/backend/internal/auth"
	"narrative-timeline/backend/internal/config"
	"narrative-timeline/backend/internal/logging"
	"narrative-timeline/backend/internal/mcp"
	"narrative-timeline/backend/internal/metrics"
	"narrative-timeline/backend/internal/services"
	"narrative-timeline/backend/internal/telemetry"
	"narrative-timeline/backend/internal/tls"
	"narrative-timeline/backend/internal/worker"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, MCP endpoint and timeline workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"store", cfg.Store.Driver,
		"auth_enabled", cfg.Auth.Enabled,
		"workers", cfg.Worker.Concurrency,
	)

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
		ExportInterval: cfg.Telemetry.ExportInterval,
		ServiceName:    "narrative-timeline",
		ServiceVersion: api.ServiceVersion,
		Environment:    cfg.Environment,
	}, logger)
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating store: %w", err)
	}
	logger.Info("Store ready", "driver", cfg.Store.Driver)

	rec, err := metrics.NewGlobal()
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}

	oracle, err := services.NewGeminiClient(ctx, services.OracleConfig{
		APIKey:     cfg.Oracle.APIKey,
		Project:    cfg.Oracle.Project,
		Location:   cfg.Oracle.Location,
		BaseURL:    cfg.Oracle.BaseURL,
		ProModel:   cfg.Oracle.ProModel,
		FlashModel: cfg.Oracle.FlashModel,
		Timeout:    cfg.Oracle.Timeout,
	}, rec)
	if err != nil {
		return fmt.Errorf("oracle client: %w", err)
	}
	research := services.NewResearcher(oracle, logger, rec)
	orchestrator := services.NewOrchestrator(store, research, logger, rec)

	pool := worker.New(worker.Config{
		Concurrency: cfg.Worker.Concurrency,
		QueueSize:   cfg.Worker.QueueSize,
	}, logger, func(name string, err error) {
		logger.Error("background job failed", "job", name, "error", err)
	})
	pool.Start(ctx)

	timelines := services.NewTimelineService(store, orchestrator, pool, logger, rec)

	authz, err := auth.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("auth initialization failed: %w", err)
	}

	mcpServer := mcp.NewServer(timelines, api.ServiceVersion)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())

	e := api.NewRouter(api.NewServer(timelines, logger), api.RouterOptions{
		CORSOrigins:  cfg.Server.CORSOrigins,
		Auth:         authz,
		OIDCIssuer:   cfg.Auth.Issuer,
		OIDCClientID: cfg.Auth.ClientID,
		MCP:          mcpHandlers,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- listen(server, cfg, logger)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		color.Yellow("\nReceived %s, shutting down...", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
		_ = server.Close()
	}
	if err := pool.Stop(shutdownCtx); err != nil {
		logger.Warn("workers did not drain before the deadline", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown", "error", err)
	}

	if runErr == nil {
		color.Green("Server stopped gracefully")
	}
	return runErr
}

func listen(server *http.Server, cfg *config.Config, logger *logging.Logger) error {
	logger.Info("Server starting", "address", server.Addr, "tls", cfg.TLS.Enable)
	if !cfg.TLS.Enable {
		return server.ListenAndServe()
	}
	if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
		return errors.New("tls enabled but cert_file/key_file not set")
	}
	created, err := tls.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
	if err != nil {
		return fmt.Errorf("self-signed certificate: %w", err)
	}
	if created {
		logger.Warn("generated self-signed certificate", "cert", cfg.TLS.CertFile, "hosts", cfg.TLS.Hostnames)
	}
	return server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
}
