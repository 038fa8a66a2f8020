// Package main implements the bspssepy CLI, a black-start restoration
// simulator driven by a control-plan CSV against a solver Gateway.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aldahabi27/bspssepy-go/config"
)

// Build information (set via ldflags).
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		planPath   string
		natsURL    string
	)

	rootCmd := &cobra.Command{
		Use:     "bspssepy",
		Short:   "Black-start restoration simulator",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats-url", "", "external NATS server URL (default: embedded)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Load the control plan and run the restoration to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd.Context(), configPath, planPath, natsURL)
		},
	}
	runCmd.Flags().StringVar(&planPath, "plan", "", "path to control-plan CSV (default: config's planPath)")
	rootCmd.AddCommand(runCmd)

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load config and control plan, report errors, and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateOnly(cmd.Context(), configPath, planPath)
		},
	}
	validateCmd.Flags().StringVar(&planPath, "plan", "", "path to control-plan CSV (default: config's planPath)")
	rootCmd.AddCommand(validateCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func loadConfig(configPath, natsURL string) (*config.Config, *slog.Logger, error) {
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	loader := config.NewLoader(bootLogger)
	cfg, err := loader.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if natsURL != "" {
		cfg.NATS.URL = natsURL
		cfg.NATS.Embedded = false
	}

	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(cfg.Logging.Level))
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return cfg, slog.New(handler), nil
}

func resolvePlanPath(cfg *config.Config, planPath string) string {
	if planPath != "" {
		return planPath
	}
	return cfg.PlanPath
}

func runSimulation(ctx context.Context, configPath, planPath, natsURL string) error {
	cfg, logger, err := loadConfig(configPath, natsURL)
	if err != nil {
		return err
	}

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}

	plan := resolvePlanPath(cfg, planPath)
	if plan == "" {
		return fmt.Errorf("no control plan given: pass --plan or set planPath in the config")
	}
	if err := app.LoadPlan(plan); err != nil {
		return fmt.Errorf("load control plan: %w", err)
	}

	loader := config.NewLoader(logger)
	if err := loader.WatchPlan(ctx, plan, func() {
		if err := app.LoadPlan(plan); err != nil {
			logger.Warn("reload control plan failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("watch control plan: %w", err)
	}

	return app.Run(ctx)
}

func validateOnly(ctx context.Context, configPath, planPath string) error {
	cfg, logger, err := loadConfig(configPath, "")
	if err != nil {
		return err
	}

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer app.Close()

	plan := resolvePlanPath(cfg, planPath)
	if plan == "" {
		fmt.Println("config and registry are valid; no control plan configured")
		return nil
	}
	if err := app.LoadPlan(plan); err != nil {
		return fmt.Errorf("control plan invalid: %w", err)
	}

	fmt.Printf("config valid, registry built (%d generators, %d IBRs), control plan valid (%d actions)\n",
		len(app.Registry().Generators()), len(app.Registry().IBRs()), len(app.disp.Actions()))
	return nil
}
