// Root command for the twitlog CLI.
package main

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/twitlog/internal/logging"
	"github.com/mesh-intelligence/twitlog/internal/paths"
	"github.com/mesh-intelligence/twitlog/pkg/twitlog"
	"github.com/mesh-intelligence/twitlog/pkg/types"
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagUsername  string
	flagLogLevel  string
	flagLogFormat string
)

// Set by PersistentPreRunE for every subcommand.
var (
	cfg       types.Config
	configDir string
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "twitlog",
	Short: "twitlog archives a social account into a local SQLite file",
	Long: `twitlog polls the social API for an account's followers, friends,
profiles, tweets and tweet metrics, and keeps their history in one SQLite
database per user under the data directory.`,
	Version:       twitlog.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, err := paths.ResolveConfigDir(flagConfigDir)
		if err != nil {
			return err
		}
		configDir = dir

		v, err := loadConfig(configDir)
		if err != nil {
			return err
		}
		applyFlags(v, cmd)

		cfg, err = buildConfig(v)
		if err != nil {
			return err
		}
		logger = logging.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr).
			With("run", runID())
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: platform config dir/twitlog)")
	pf.StringVar(&flagDataDir, "data-dir", "", "data directory (default: $(CWD)/.twitlog)")
	pf.StringVarP(&flagUsername, "username", "u", "", "account whose archive is used")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "log format: text or json")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(followersCmd)
	rootCmd.AddCommand(tweetsCmd)
	rootCmd.AddCommand(analyticsCmd)
}

// runID tags every log line of one invocation.
func runID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
