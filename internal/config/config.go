package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the tool reads,
// e.g. HOMEPOS_PROVIDER_TYPE.
const EnvPrefix = "HOMEPOS"

// Config holds the settings of one setup run.
//
// Fields:
// - Env: The logging environment (local, development, production).
// - ConfigFile: Path of the dump1090 configuration file to edit.
// - Provider: Geocoding provider selection and tuning.
// - MetricsTextfile: Optional path for a Prometheus textfile export.
// - Location: Pre-answered location query; empty means prompt.
// - EnableLocation: Pre-answered location services answer; empty means prompt.
type Config struct {
	Env             string
	ConfigFile      string
	Provider        ProviderConfig
	MetricsTextfile string
	Location        string
	EnableLocation  string
}

// ProviderConfig holds the geocoding provider settings.
type ProviderConfig struct {
	Type      string        // Type is one of nominatim, google, visicom.
	APIKey    string        // APIKey for providers that require one.
	BaseURL   string        // BaseURL overrides the Nominatim endpoint.
	UserAgent string        // UserAgent overrides the Nominatim User-Agent.
	Timeout   time.Duration // Timeout bounds each HTTP request; zero disables it.
	RateLimit int           // RateLimit in requests per second, zero uses the provider default.
}

var defaults = map[string]any{
	"env":                 "production",
	"config_file":         "dump1090.cfg",
	"provider.type":       "nominatim",
	"provider.api_key":    "",
	"provider.base_url":   "",
	"provider.user_agent": "",
	"provider.timeout":    "10s",
	"provider.rate_limit": 0,
	"metrics_textfile":    "",
	"location":            "",
	"enable_location":     "",
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"env":             "env",
	"config":          "config_file",
	"provider":        "provider.type",
	"api-key":         "provider.api_key",
	"base-url":        "provider.base_url",
	"user-agent":      "provider.user_agent",
	"timeout":         "provider.timeout",
	"rate-limit":      "provider.rate_limit",
	"metrics-file":    "metrics_textfile",
	"location":        "location",
	"enable-location": "enable_location",
}

// RegisterFlags adds the tool's flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("env", "production", "Logging environment: local, development, production")
	fs.StringP("config", "c", "dump1090.cfg", "dump1090 configuration file to update")
	fs.StringP("provider", "p", "nominatim", "Geocoding provider: nominatim, google, visicom")
	fs.String("api-key", "", "API key for the google and visicom providers")
	fs.String("base-url", "", "Nominatim search endpoint override")
	fs.String("user-agent", "", "User-Agent sent to Nominatim")
	fs.String("timeout", "10s", "Geocoding request timeout, 0 disables it")
	fs.Int("rate-limit", 0, "Geocoding requests per second")
	fs.String("metrics-file", "", "Write Prometheus metrics to this textfile after the run")
	fs.StringP("location", "l", "", "Location to geocode instead of prompting")
	fs.String("enable-location", "", "Answer the location services prompt (y/n)")
}

// Load resolves the configuration from, in order of precedence, command line
// flags, HOMEPOS_* environment variables (including a .env file in the
// working directory) and defaults. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			flag := fs.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	timeout, err := time.ParseDuration(v.GetString("provider.timeout"))
	if err != nil {
		return nil, errors.New("failed to parse provider timeout from configuration")
	}
	if timeout < 0 {
		return nil, errors.New("provider timeout must not be negative")
	}

	cfg := &Config{
		Env:        v.GetString("env"),
		ConfigFile: v.GetString("config_file"),
		Provider: ProviderConfig{
			Type:      strings.ToLower(v.GetString("provider.type")),
			APIKey:    v.GetString("provider.api_key"),
			BaseURL:   v.GetString("provider.base_url"),
			UserAgent: v.GetString("provider.user_agent"),
			Timeout:   timeout,
			RateLimit: v.GetInt("provider.rate_limit"),
		},
		MetricsTextfile: v.GetString("metrics_textfile"),
		Location:        strings.TrimSpace(v.GetString("location")),
		EnableLocation:  strings.TrimSpace(v.GetString("enable_location")),
	}

	if cfg.ConfigFile == "" {
		return nil, errors.New("config file path must not be empty")
	}

	return cfg, nil
}
