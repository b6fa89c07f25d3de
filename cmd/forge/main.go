package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lessonforge/internal/config"
	"lessonforge/internal/logging"
)

var (
	// Global flags
	configPath string
	dataDir    string
	debug      bool

	cfg config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "lessonforge - generated interactive lesson pipeline",
	Long: `lessonforge turns a topic plus a pedagogy profile into a safe,
sandboxed, browser-renderable lesson component.

The pipeline: generate (LLM) -> lint (static safety rules) -> repair
(deterministic fixes) -> compile (import elision + transpile) -> store.
Stored content is re-linted before every mount; nothing unsafe is ever
persisted or rendered.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if debug {
			cfg.Logging.Debug = true
		}
		if err := logging.Initialize(cfg.DataDir, cfg.Logging.Debug); err != nil {
			return fmt.Errorf("initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override the workspace data directory")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "v", false, "enable debug logging")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(lintCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(traceCmd)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.forge/config.yaml"
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
