package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "examsplit"
	// EnvPrefix is the prefix for environment variables bound by the loader.
	EnvPrefix = "EXAMSPLIT"
)

// Loader loads JobConfig from environment variables, config files, and
// defaults, in that precedence.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// Load reads examsplit.{yaml,json,toml} from the current directory, $HOME,
// and /etc/examsplit, overlays EXAMSPLIT_-prefixed environment variables and
// the two dedicated remote-credential variables, and returns a validated
// JobConfig.
func (l *Loader) Load() (JobConfig, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}
	l.v.AddConfigPath("/etc/examsplit")

	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.v.AutomaticEnv()

	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return JobConfig{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := JobConfig{
		Strategy:             Strategy(l.v.GetString("strategy")),
		DPI:                  l.v.GetInt("dpi"),
		MaxRetries:           l.v.GetInt("max_retries"),
		MinLocalConfidence:   l.v.GetFloat64("min_local_confidence"),
		MinRemoteConfidence:  l.v.GetFloat64("min_remote_confidence"),
		ExpectedProblemCount: l.v.GetInt("expected_problem_count"),
	}
	cfg.RemoteCredentials = l.loadRemoteCredentials()

	if err := cfg.Validate(); err != nil {
		return JobConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (l *Loader) setDefaults() {
	d := DefaultJobConfig()
	l.v.SetDefault("strategy", string(d.Strategy))
	l.v.SetDefault("dpi", d.DPI)
	l.v.SetDefault("max_retries", d.MaxRetries)
	l.v.SetDefault("min_local_confidence", d.MinLocalConfidence)
	l.v.SetDefault("min_remote_confidence", d.MinRemoteConfidence)
	l.v.SetDefault("expected_problem_count", 0)
}

// loadRemoteCredentials reads REMOTE_OCR_APP_ID / REMOTE_OCR_APP_KEY,
// which intentionally use their own names rather than the EXAMSPLIT_
// prefix (they mirror the remote vendor's own naming).
func (l *Loader) loadRemoteCredentials() *RemoteCredentials {
	id := os.Getenv("REMOTE_OCR_APP_ID")
	key := os.Getenv("REMOTE_OCR_APP_KEY")
	if id == "" && key == "" {
		return nil
	}
	return &RemoteCredentials{AppID: id, AppKey: key}
}

// LoadCredentialsFile parses a "--remote-credentials-file" of the form
// `app_id=...\napp_key=...` and overrides environment-derived
// credentials with its contents.
func LoadCredentialsFile(path string) (*RemoteCredentials, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path, expected
	if err != nil {
		return nil, fmt.Errorf("reading remote credentials file: %w", err)
	}
	creds := &RemoteCredentials{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(strings.ToLower(k)) {
		case "app_id":
			creds.AppID = strings.TrimSpace(v)
		case "app_key":
			creds.AppKey = strings.TrimSpace(v)
		}
	}
	if creds.Empty() {
		return nil, fmt.Errorf("remote credentials file %s contained no app_id/app_key", path)
	}
	return creds, nil
}
