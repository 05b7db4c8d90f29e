package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/sessionlock"
	"github.com/aretw0/sessionlock/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sessionlock",
	Short: "Shared session store with lock-aware access",
	Long: `sessionlock keeps per-client session state in a shared backend (memory, Redis or MongoDB)
and coordinates concurrent access with lock tokens stored in each record.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file (SESSIONLOCK_* env vars override it)")
	rootCmd.PersistentFlags().String("log-level", "", "Override log.level (debug, info, warn, error)")
}

// loadConfig reads the config named by --config and applies --log-level.
func loadConfig(cmd *cobra.Command) sessionlock.Config {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := sessionlock.LoadConfig(path)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg
}

func newLogger(cfg sessionlock.Config) *slog.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Log.Format == string(logging.FormatJSON) {
		return logging.NewJSON(level)
	}
	return logging.New(level)
}

// openService builds the store from config, exiting on failure.
func openService(cmd *cobra.Command, opts ...sessionlock.Option) (*sessionlock.Service, *slog.Logger) {
	cfg := loadConfig(cmd)
	logger := newLogger(cfg)

	opts = append([]sessionlock.Option{sessionlock.WithLogger(logger)}, opts...)
	svc, err := sessionlock.Open(cmd.Context(), cfg, opts...)
	if err != nil {
		fmt.Printf("Error opening %s store: %v\n", cfg.Backend, err)
		os.Exit(1)
	}
	return svc, logger
}
