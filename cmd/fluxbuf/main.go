// Package main implements the fluxbuf CLI, which runs the buffer demo
// scenarios and reads the recorded buffer history.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/petrijr/fluxbuf/internal/config"
)

var (
	// configPath is the YAML configuration file, optional
	configPath string
	// cfg is loaded before any subcommand runs
	cfg *config.Config
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fluxbuf",
	Short: "Run buffer scenarios and inspect buffer history",
	Long: `fluxbuf drives the buffer core of a reactive workflow engine.

Configuration is read from the file given with --config and from FLUXBUF_*
environment variables, e.g. FLUXBUF_EVENTS_BACKEND=sqlite.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		slog.SetDefault(newLogger(cmd, cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(eventsCmd)
}

func newLogger(cmd *cobra.Command, c *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), opts))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), opts))
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
