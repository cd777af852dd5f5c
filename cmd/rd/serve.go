package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/records/internal/config"
	"github.com/alfredjeanlab/records/internal/events"
	"github.com/alfredjeanlab/records/internal/model"
	"github.com/alfredjeanlab/records/internal/server"
	"github.com/alfredjeanlab/records/internal/store/postgres"
	recordsync "github.com/alfredjeanlab/records/internal/sync"
)

// healthInterval is how often the gRPC health status is refreshed from the database.
const healthInterval = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the records HTTP and gRPC servers",
	GroupID: "system",
	Args:    cobra.NoArgs,
	// Override PersistentPreRunE so we don't create an HTTP client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		envFiles, _ := cmd.Flags().GetStringSlice("env-file")

		// Load configuration.
		cfg, err := config.Load(envFiles...)
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
		slog.SetDefault(logger)

		// Connect to Postgres and apply migrations.
		db, err := postgres.Open(cfg.DatabaseURL, postgres.Options{
			Driver:          cfg.DBDriver,
			MaxOpenConns:    cfg.PoolSize,
			MaxIdleConns:    cfg.PoolIdle,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		profiles := postgres.New[model.Profile](db)

		// Create event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				profiles.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = events.NoopPublisher{}
			logger.Info("events disabled (RECORDS_NATS_URL not set)")
		}

		// Create server components.
		recordsServer := server.NewRecordsServer(profiles, publisher, server.NewMetrics())
		grpcServer, healthServer := server.NewGRPCServer(cfg.AuthToken)

		// Start gRPC listener.
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			profiles.Close()
			return err
		}

		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		healthCtx, stopHealth := context.WithCancel(context.Background())
		healthDone := make(chan struct{})
		go func() {
			defer close(healthDone)
			recordsServer.WatchHealth(healthCtx, healthServer, healthInterval)
		}()

		// Start HTTP server.
		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           recordsServer.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start sync scheduler if any destinations are configured. Backups
		// read payloads untyped so rows of every kind are exported.
		var scheduler *recordsync.Scheduler[map[string]any]
		if cfg.SyncInterval > 0 {
			dests := syncDestinations(cmd.Context(), cfg, logger)
			if len(dests) > 0 {
				scheduler = recordsync.NewScheduler(postgres.New[map[string]any](db), dests, cfg.SyncInterval, logger)
				scheduler.Start()
				logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
			}
		}

		logger.Info("records server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"auth", cfg.AuthToken != "",
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown. Health goes NOT_SERVING first so load
		// balancers stop routing before listeners close.
		stopHealth()
		<-healthDone
		healthServer.Shutdown()

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := profiles.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// syncDestinations builds the configured backup destinations. A destination
// that cannot be created is logged and skipped.
func syncDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []recordsync.Destination {
	var dests []recordsync.Destination

	if cfg.SyncS3Bucket != "" {
		s3Dest, err := recordsync.NewS3Destination(ctx, recordsync.S3Options{
			Bucket:   cfg.SyncS3Bucket,
			Key:      cfg.SyncS3Key,
			Region:   cfg.SyncS3Region,
			Endpoint: cfg.SyncS3Endpoint,
		})
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}

	if cfg.SyncFile != "" {
		dests = append(dests, recordsync.NewFileDestination(cfg.SyncFile))
		logger.Info("sync file destination enabled", "path", cfg.SyncFile)
	}

	return dests
}

func init() {
	serveCmd.Flags().StringSlice("env-file", nil, "dotenv files to load before reading RECORDS_* variables (default .env if present)")
}
