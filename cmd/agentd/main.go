// Package main is the entry point for agentd, the cognitive agent daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codenerd-cognitive/internal/agent"
	"codenerd-cognitive/internal/config"
	"codenerd-cognitive/internal/logging"
)

var (
	verbose    bool
	configPath string
	workspace  string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "agentd",
	Short: "agentd runs the self-reflective cognitive agent runtime",
	Long: `agentd is the cognitive runtime's daemon process.

It loads a flat configuration once at start, constructs the twelve
cognitive components (clock probe, hormone field, body schema,
confidence store, memory store, capability registry, scheduler,
reflection engine, self-description assembler, safety envelope, event
bus, and snapshot persistence), and runs them on a single cooperative
stepper until terminated.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		if err := logging.Initialize(ws); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize file logging: %v\n", err)
		}
		if err := logging.InitAudit(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize audit log: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAudit()
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

func runDaemon() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.ValidateCoreLimits(); err != nil {
		return fmt.Errorf("invalid core limits: %w", err)
	}

	a, err := agent.New(cfg)
	if err != nil {
		return fmt.Errorf("construct agent: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logging.Boot("shutdown signal received")
		cancel()
	}()

	logging.Boot("agentd starting: name=%s version=%s config=%s", cfg.Name, cfg.Version, configPath)
	a.Run(ctx)
	logging.Boot("agentd stopped")
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "agent.yaml", "path to the agent configuration file")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory for logs and data (defaults to cwd)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
