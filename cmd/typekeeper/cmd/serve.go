package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/solatis/typekeeper/internal/core/api"
	"github.com/solatis/typekeeper/internal/core/config"
	"github.com/solatis/typekeeper/internal/core/db"
	"github.com/solatis/typekeeper/internal/core/server"
	"github.com/solatis/typekeeper/internal/engine"
	"github.com/solatis/typekeeper/internal/typedef"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC schema service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
	serveCmd.Flags().String("targets", "", "targets file opened at startup")
	serveCmd.Flags().Bool("strict", false, "reject records with fields outside the known set")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger := slog.Default()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("targets") {
		cfg.TargetsFile, _ = cmd.Flags().GetString("targets")
	}
	if cmd.Flags().Changed("strict") {
		cfg.Strict, _ = cmd.Flags().GetBool("strict")
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	sink, err := engine.NewJSONLSink(filepath.Join(cfg.DataDir, "events"))
	if err != nil {
		return fmt.Errorf("failed to create event sink: %w", err)
	}

	opts := []typedef.Option{
		typedef.WithMetrics(engine.NewMetricsRecorder()),
		typedef.WithLogger(logger),
		typedef.WithStrict(cfg.Strict),
	}
	if cfg.DatabaseURL != "" {
		database, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		if err := db.RequireMigrated(ctx, database); err != nil {
			return fmt.Errorf("%w (run 'typekeeper migrate' first)", err)
		}
		queries, err := db.LoadQueries(database)
		if err != nil {
			return fmt.Errorf("failed to load queries: %w", err)
		}
		opts = append(opts, typedef.WithStore(db.NewFieldSetStore(queries)))
	} else {
		logger.Warn("no database configured, field sets will not survive restarts")
	}

	manager, err := typedef.NewManager(engine.NewCatalog(), sink, opts...)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}

	if cfg.TargetsFile != "" {
		tf, err := config.LoadTargets(cfg.TargetsFile)
		if err != nil {
			return err
		}
		if err := openTargets(ctx, manager, tf); err != nil {
			return err
		}
	}

	service, err := api.NewSchemaService(manager, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	grpcServer, err := server.NewGRPCServer(cfg, service, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting typekeeper",
		slog.String("version", Version),
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.Int("targets", len(manager.Targets())))

	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return grpcServer.Shutdown(shutdownCtx)
	}
}
