// Init command for the twitlog CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/twitlog/internal/paths"
)

var flagInitForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write config.yaml and create the user's database",
	Long: `init records the username (and data directory, when given) in
config.yaml inside the configuration directory, then creates and migrates
the user's database.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		path := paths.ConfigFile(configDir)
		if err := writeUserConfig(path, flagInitForce); err != nil {
			return err
		}

		conn, err := openArchive(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		fmt.Println("twitlog initialized")
		fmt.Println("  config:  ", path)
		fmt.Println("  database:", cfg.DatabasePath())
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&flagInitForce, "force", false, "overwrite the username in an existing config.yaml")
}

// fileConfig is the part of config.yaml that init manages.
type fileConfig struct {
	Username  string `yaml:"username"`
	DataDir   string `yaml:"data_dir,omitempty"`
	LogLevel  string `yaml:"log_level,omitempty"`
	LogFormat string `yaml:"log_format,omitempty"`
}

// writeUserConfig stores the username in config.yaml. Other keys in the
// file are kept. A different username is only replaced with force.
func writeUserConfig(path string, force bool) error {
	doc := map[string]any{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	}
	if existing, _ := doc[cfgKeyUsername].(string); existing != "" && existing != cfg.Username && !force {
		return fmt.Errorf("config.yaml already names user %q (use --force)", existing)
	}

	fc := fileConfig{Username: cfg.Username, LogLevel: cfg.LogLevel, LogFormat: cfg.LogFormat}
	if flagDataDir != "" {
		fc.DataDir = cfg.DataDir
	}
	managed, err := yaml.Marshal(fc)
	if err != nil {
		return err
	}
	var fields map[string]any
	if err := yaml.Unmarshal(managed, &fields); err != nil {
		return err
	}
	for k, v := range fields {
		doc[k] = v
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, out, 0o600)
}
