// Package commands provides the LiveBoard CLI.
package commands

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"LiveBoard/internal/config"
	"LiveBoard/internal/logging"
)

var (
	// Version information set at build time
	Version = "0.1.0"
)

// Global flags
var (
	configPath string
	logLevel   string
	prettyLogs bool
)

// cfg is loaded before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "liveboard",
	Short: "LiveBoard - a shared canvas for drawing together",
	Long: `LiveBoard lets several people draw on one canvas at the same time and
see each other's strokes and cursors live.

Run 'liveboard serve' to host a board, then 'liveboard join <link>' on
every machine that wants to draw on it.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "liveboard.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty", false, "Human-readable log output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("liveboard %s\n", Version))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(joinCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads .env, the config file and the environment, then applies the
// global flags and configures logging.
func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if rootCmd.PersistentFlags().Changed("log-level") {
		loaded.Log.Level = logLevel
	}
	if rootCmd.PersistentFlags().Changed("pretty") {
		loaded.Log.Pretty = prettyLogs
	}
	cfg = loaded

	logging.Init(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Output: cmd.ErrOrStderr(),
		Pretty: cfg.Log.Pretty,
	})
	return nil
}
