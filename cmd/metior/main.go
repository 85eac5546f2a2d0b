package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/metior/internal/app"
	"github.com/ternarybob/metior/internal/common"
	"github.com/ternarybob/metior/internal/scheduler"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	forceRebuild = flag.Bool("force", false, "Recompute everything, ignoring cached series")
	runOnce      = flag.Bool("once", false, "Run a single batch and exit, even when scheduling is enabled")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Metior version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("metior.toml"); err == nil {
			configFiles = append(configFiles, "metior.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}
	if *forceRebuild {
		config.Batch.ForceRebuild = true
	}

	logger := common.InitLogger(config)
	logger.Info().
		Str("version", common.GetVersion()).
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Msg("Metior starting")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("Interrupt signal received")
		cancel()
	}()

	if config.Schedule.Enabled && !*runOnce {
		sched := scheduler.New(logger, application.RunAll)
		if err := sched.Start(ctx, config.Schedule.Cron); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start scheduler")
			os.Exit(1)
		}
		logger.Info().
			Str("cron", config.Schedule.Cron).
			Msg("Running on schedule - Press Ctrl+C to stop")

		<-ctx.Done()
		sched.Stop()
		logger.Info().Msg("Metior stopped")
		return
	}

	reports, err := application.RunAll(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Batch run aborted")
	}

	failures := int64(0)
	for _, report := range reports {
		failures += report.Failures
	}
	if failures > 0 || err != nil {
		application.Close()
		os.Exit(1)
	}
}
