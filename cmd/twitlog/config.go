// Config loading for the twitlog CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/twitlog/internal/paths"
	"github.com/mesh-intelligence/twitlog/internal/twitter"
	"github.com/mesh-intelligence/twitlog/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "TWITLOG"
)

// Config keys.
const (
	cfgKeyUsername    = "username"
	cfgKeyDataDir     = "data_dir"
	cfgKeyLogLevel    = "log_level"
	cfgKeyLogFormat   = "log_format"
	cfgKeyCookies     = "cookies"
	cfgKeyBearerToken = "credentials.bearer_token"
)

// envCookies holds the JSON object of browser cookies for the web session.
const envCookies = envPrefix + "_COOKIES"

// envBearerToken sets credentials.bearer_token.
const envBearerToken = envPrefix + "_BEARER_TOKEN"

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# twitlog configuration
# Every key can also be set through a TWITLOG_* environment variable.

# Account whose archive is used (or --username / TWITLOG_USERNAME).
# username:

# Data directory (optional; overridable by --data-dir flag)
# data_dir:

log_level: info
log_format: text

# credentials:
#   bearer_token:
`

// loadConfig reads config.yaml from configDir with viper, creating the
// directory and a default file on first run, and binds the environment.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetDefault(cfgKeyLogFormat, types.LogFormatText)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(cfgKeyBearerToken, envBearerToken); err != nil {
		return nil, fmt.Errorf("bind %s: %w", envBearerToken, err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile writes the default config.yaml unless one exists.
func ensureDefaultConfigFile(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}
	path := paths.ConfigFile(configDir)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// applyFlags lets explicitly set persistent flags override the file and
// the environment.
func applyFlags(v *viper.Viper, cmd *cobra.Command) {
	flags := cmd.Flags()
	for key, name := range map[string]string{
		cfgKeyUsername:  "username",
		cfgKeyLogLevel:  "log-level",
		cfgKeyLogFormat: "log-format",
	} {
		if f := flags.Lookup(name); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}
}

// buildConfig assembles the Config passed to every command. The data
// directory follows flag > config.yaml > TWITLOG_DATA_DIR > ./.twitlog.
func buildConfig(v *viper.Viper) (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(flagDataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}

	c := types.Config{
		Username:  v.GetString(cfgKeyUsername),
		DataDir:   dataDir,
		LogLevel:  strings.ToLower(v.GetString(cfgKeyLogLevel)),
		LogFormat: strings.ToLower(v.GetString(cfgKeyLogFormat)),
		Credentials: types.Credentials{
			BearerToken: v.GetString(cfgKeyBearerToken),
		},
		Cookies: v.GetStringMapString(cfgKeyCookies),
	}

	if text, ok := os.LookupEnv(envCookies); ok {
		cookies, err := twitter.ParseCookies(text)
		if err != nil {
			return types.Config{}, err
		}
		c.Cookies = cookies
	}
	return c, nil
}
