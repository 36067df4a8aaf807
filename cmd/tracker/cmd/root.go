// Package cmd provides the CLI commands for the media tracker.
package cmd

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/media-tracker/internal/config"
	"github.com/tbourn/media-tracker/internal/sysutil"
)

// version is set at build time with -ldflags "-X .../cmd.version=v1.2.3".
var version string

var (
	envFile  string
	logLevel string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Track game prices across storefronts",
	Long: `tracker resolves and caches game prices per storefront and region,
and refreshes the prices of every wishlisted game on a schedule.

Examples:
  tracker serve
  tracker refresh --store switch
  tracker migrate`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	rootCmd.AddCommand(versionCmd)
}

// initConfig loads the dotenv file (if any), reads the configuration and
// sets up the global logger.
func initConfig(cmd *cobra.Command, _ []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	sysutil.ConfigureLogger(sysutil.LoggerOptions{
		Pretty:  cfg.LogPretty,
		Service: cfg.OTEL.ServiceName,
		Version: buildVersion(),
	})
	if _, err := sysutil.SetLogLevel(cmp.Or(logLevel, cfg.LogLevel)); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}

	log.Debug().Str("command", cmd.Name()).Str("db", cfg.DBPath).Msg("configuration loaded")
	return nil
}

func buildVersion() string {
	return cmp.Or(version, "dev")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// No configuration needed.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tracker %s (%s %s/%s)\n", buildVersion(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
