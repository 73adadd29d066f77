// Package cli provides the command-line interface for wallharvest.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/raphaelgruber/wallharvest/internal/config"
	"github.com/raphaelgruber/wallharvest/internal/db"
	"github.com/raphaelgruber/wallharvest/internal/events"
	"github.com/raphaelgruber/wallharvest/internal/metrics"
	"github.com/raphaelgruber/wallharvest/internal/models"
	"github.com/raphaelgruber/wallharvest/internal/service"
	"github.com/raphaelgruber/wallharvest/internal/source"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, logger and db client
	cfg           config.Config
	logger        *slog.Logger
	closeLogger   func() error
	dbClient      *db.Client
	kafkaProducer *events.KafkaPublisher
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "wallharvest",
	Short: "Resumable group wall ingestion with keyword matching",
	Long: `Wallharvest collects posts and comment trees from community walls into
SurrealDB and keeps a keyword match index in step with the stored text.

Collection runs as tasks that checkpoint after every group, so an
interrupted task resumes where it stopped.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeLogger = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		var err error
		dbClient, err = db.NewClient(ctx, cfg.DB(), logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if kafkaProducer != nil {
			if err := kafkaProducer.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close kafka producer: %v\n", err)
			}
		}
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if closeLogger != nil {
			_ = closeLogger()
		}
	},
}

// pipeline bundles the wired ingestion components.
type pipeline struct {
	collector    *metrics.Collector
	orchestrator *service.Orchestrator
	manager      *service.TaskManager
}

// buildPipeline wires the stores, sources, publishers and metrics into a
// task manager.
func buildPipeline() (*pipeline, error) {
	collector := metrics.NewCollector()
	sinks := metrics.Multi{collector}
	otelSink, err := metrics.NewOTelSink(otel.GetMeterProvider())
	if err != nil {
		logger.Warn("otel metrics disabled", "error", err)
	} else {
		sinks = append(sinks, otelSink)
	}

	publishers := events.Multi{events.NewLogPublisher(logger)}
	if cfg.KafkaEnabled() && kafkaProducer == nil {
		kafkaProducer, err = events.NewKafkaPublisher(cfg.Kafka(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect kafka: %w", err)
		}
	}
	if kafkaProducer != nil {
		publishers = append(publishers, kafkaProducer)
	}

	matchSync := service.NewMatchSynchronizer(dbClient, dbClient, dbClient, sinks, logger)
	ingest := service.NewIngestService(dbClient, matchSync, logger)
	processor := service.NewGroupProcessor(
		source.NewDumpFetcher(cfg.DumpDir),
		ingest,
		models.SaveOptions{Source: cfg.SourceTag},
		sinks,
		logger,
	)
	orchestrator := service.NewOrchestrator(service.OrchestratorDeps{
		Tasks:     dbClient,
		Resolver:  source.NewCatalog(cfg.GroupsFile),
		Groups:    processor,
		Publisher: publishers,
		Metrics:   sinks,
		Logger:    logger,
	})

	return &pipeline{
		collector:    collector,
		orchestrator: orchestrator,
		manager:      service.NewTaskManager(orchestrator, dbClient, dbClient, logger),
	}, nil
}

// printTimings writes the collected operation timings in verbose mode.
func (p *pipeline) printTimings() {
	if !verbose {
		return
	}
	snap := p.collector.Snapshot()
	fmt.Println("\nTimings:")
	for _, row := range []struct {
		name string
		op   *metrics.OperationSnapshot
	}{
		{"group", snap.Group},
		{"sync own", snap.SyncOwn},
		{"sync parent", snap.SyncParent},
	} {
		if row.op == nil {
			continue
		}
		fmt.Printf("  %-12s n=%-6d avg=%.1fms max=%dms\n", row.name, row.op.Count, row.op.AvgTimeMs, row.op.MaxTimeMs)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(keywordsCmd)
}
