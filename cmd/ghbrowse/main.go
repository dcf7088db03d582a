// Package main is the entry point for the ghbrowse CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/github-user-browser/pkg/config"
	"github.com/Sternrassler/github-user-browser/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg is loaded before any subcommand runs.
var cfg config.Config

// rootCmd is the base command for the ghbrowse CLI.
var rootCmd = &cobra.Command{
	Use:   "ghbrowse",
	Short: "Search GitHub users and load their profiles",
	Long: `ghbrowse searches GitHub users by location, language and repository
count, pages through every result GitHub will return, loads full profiles
concurrently and exports them as CSV.

Credentials are read from GHUB_USERNAME and GHUB_TOKEN (or ghbrowse.yaml).
With GHUB_REDIS_URL set, loaded profiles and the search cooldown are shared
between runs.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.New()
		if err := v.BindPFlag("log.level", cmd.Flags().Lookup("log-level")); err != nil {
			return err
		}
		if err := v.BindPFlag("log.pretty", cmd.Flags().Lookup("pretty")); err != nil {
			return err
		}

		configFile, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		cfg = loaded

		_, err = logging.Setup(logging.Config{
			Level:  cfg.Log.Level,
			Pretty: cfg.Log.Pretty,
			Output: cmd.ErrOrStderr(),
		})
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./ghbrowse.yaml or ~/.config/ghbrowse/ghbrowse.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("pretty", false, "human-readable log output")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
