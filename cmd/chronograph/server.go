package chronograph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/chronograph"
	"github.com/soundprediction/chronograph/pkg/config"
	"github.com/soundprediction/chronograph/pkg/logger"
	"github.com/soundprediction/chronograph/pkg/server"
	"github.com/soundprediction/chronograph/pkg/telemetry"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Chronograph HTTP server",
	Long: `Start the Chronograph HTTP server to provide REST API access to the engine.

The server provides endpoints for:
- Applying graph transformations per tenant
- Creating and listing snapshots
- Reconstructing the graph at a past instant
- Querying the change journal and entity history
- Analytics: diffs, timelines, growth, emerging patterns, convergence
- Health checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "release", "Server mode (debug, release, test)")

	// Storage flags
	serverCmd.Flags().String("storage-backend", "memory", "Storage backend (memory, badger, neo4j)")
	serverCmd.Flags().String("storage-path", "./chronograph_db", "Badger database path")
	serverCmd.Flags().String("storage-uri", "", "Neo4j URI")
	serverCmd.Flags().String("storage-username", "", "Neo4j username")
	serverCmd.Flags().String("storage-password", "", "Neo4j password")
	serverCmd.Flags().String("storage-database", "", "Neo4j database name")

	// Engine flags
	serverCmd.Flags().Float64("edge-half-life-days", 30.0, "Edge weight decay half-life in days")
	serverCmd.Flags().Float64("edge-prune-threshold", 0.1, "Weight below which decayed edges are pruned")
	serverCmd.Flags().Int("snapshot-retention-days", 90, "Snapshot retention window in days")
	serverCmd.Flags().Int("workers", 0, "Concurrent CPU-bound graph jobs (0 = NumCPU)")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with command-line flags
	overrideConfigWithFlags(cmd, cfg)

	// Validate configuration
	if err := validateServerConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewLogger(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})

	// Capture error logs as Parquet when a telemetry path is configured.
	if cfg.Telemetry.ParquetPath != "" {
		parquetHandler, err := telemetry.NewParquetHandler(log.Handler(), cfg.Telemetry.ParquetPath)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer parquetHandler.Flush()
		log = slog.New(parquetHandler)
	}

	engine, err := chronograph.NewEngineFromConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer engine.Close()

	// Create and setup server
	srv := server.New(cfg, engine)
	srv.Setup()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("starting server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		log.Info("shutting down", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		log.Info("server stopped gracefully")
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	// Server flags
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}

	// Storage flags
	if cmd.Flags().Changed("storage-backend") {
		cfg.Storage.Backend, _ = cmd.Flags().GetString("storage-backend")
	}
	if cmd.Flags().Changed("storage-path") {
		cfg.Storage.Path, _ = cmd.Flags().GetString("storage-path")
	}
	if cmd.Flags().Changed("storage-uri") {
		cfg.Storage.URI, _ = cmd.Flags().GetString("storage-uri")
	}
	if cmd.Flags().Changed("storage-username") {
		cfg.Storage.Username, _ = cmd.Flags().GetString("storage-username")
	}
	if cmd.Flags().Changed("storage-password") {
		cfg.Storage.Password, _ = cmd.Flags().GetString("storage-password")
	}
	if cmd.Flags().Changed("storage-database") {
		cfg.Storage.Database, _ = cmd.Flags().GetString("storage-database")
	}

	// Engine flags
	if cmd.Flags().Changed("edge-half-life-days") {
		cfg.Engine.EdgeHalfLifeDays, _ = cmd.Flags().GetFloat64("edge-half-life-days")
	}
	if cmd.Flags().Changed("edge-prune-threshold") {
		cfg.Engine.EdgePruneThreshold, _ = cmd.Flags().GetFloat64("edge-prune-threshold")
	}
	if cmd.Flags().Changed("snapshot-retention-days") {
		cfg.Engine.SnapshotRetentionDays, _ = cmd.Flags().GetInt("snapshot-retention-days")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Engine.Workers, _ = cmd.Flags().GetInt("workers")
	}
}

func validateServerConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Storage.Backend == "badger" && cfg.Storage.Path == "" {
		return fmt.Errorf("storage path is required for the badger backend")
	}
	if cfg.Storage.Backend == "neo4j" && cfg.Storage.URI == "" {
		return fmt.Errorf("storage URI is required for the neo4j backend")
	}
	return nil
}
