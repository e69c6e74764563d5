package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sfp-labs/fellowship-portal/internal/config"
	"github.com/sfp-labs/fellowship-portal/internal/program"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "fellowship-portal",
	Short: "Student fellowship application portal",
	Long: `fellowship-portal hosts the multi-step fellowship application form and
relays finished applications to the collection script.

Configuration is read from the environment, after applying the dotenv file
given with --env-file (default .env) without overriding existing variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(phaseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration and installs the JSON logger at the
// configured level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.Level,
	}))
	slog.SetDefault(logger)

	return cfg, nil
}

// loadProgram returns a loader holding the configured program, or the
// built-in one when no file is set.
func loadProgram(path string) (*program.Loader, error) {
	loader := program.NewLoader()
	if path == "" {
		return loader, nil
	}
	if err := loader.LoadFromFile(path); err != nil {
		return nil, fmt.Errorf("failed to load program %s: %w", path, err)
	}
	return loader, nil
}
