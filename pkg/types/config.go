package types

import (
	"errors"
	"path/filepath"
	"strings"
)

// Config is assembled once at process start (flags, environment, config
// file) and passed down explicitly to every command.
type Config struct {
	Username  string `json:"username" yaml:"username"`
	DataDir   string `json:"data_dir" yaml:"data_dir,omitempty"`
	LogLevel  string `json:"log_level" yaml:"log_level,omitempty"`
	LogFormat string `json:"log_format" yaml:"log_format,omitempty"`

	Credentials Credentials `json:"credentials" yaml:"credentials,omitempty"`

	// Cookies seeds the web session used for tweet analytics.
	Cookies map[string]string `json:"cookies,omitempty" yaml:"cookies,omitempty"`
}

// Credentials holds the API secrets.
type Credentials struct {
	BearerToken string `json:"bearer_token,omitempty" yaml:"bearer_token,omitempty"`
}

// Log formats accepted by Config.LogFormat.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// DatabaseExt is appended to the username to name the database file.
const DatabaseExt = ".sqlite"

// Config validation errors.
var (
	ErrUsernameEmpty     = errors.New("username must not be empty")
	ErrUsernameInvalid   = errors.New("username must not contain path separators")
	ErrLogLevelUnknown   = errors.New("unknown log level")
	ErrLogFormatUnknown  = errors.New("unknown log format")
	ErrCredentialMissing = errors.New("credential missing")
)

var knownLogLevels = map[string]bool{
	"":      true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks that the Config is well-formed. Credentials are checked
// separately by RequireAPI because local-only commands do not need them.
func (c Config) Validate() error {
	if c.Username == "" {
		return ErrUsernameEmpty
	}
	if strings.ContainsAny(c.Username, `/\`) || c.Username == "." || c.Username == ".." {
		return ErrUsernameInvalid
	}
	if !knownLogLevels[strings.ToLower(c.LogLevel)] {
		return ErrLogLevelUnknown
	}
	switch c.LogFormat {
	case "", LogFormatText, LogFormatJSON:
	default:
		return ErrLogFormatUnknown
	}
	return nil
}

// RequireAPI reports whether the credentials needed by the API adapter are
// present.
func (c Config) RequireAPI() error {
	if c.Credentials.BearerToken == "" {
		return ErrCredentialMissing
	}
	return nil
}

// DatabasePath returns the database file for the configured user inside
// DataDir.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, c.Username+DatabaseExt)
}
