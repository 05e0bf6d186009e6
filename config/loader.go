package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix namespaces the SDK's environment variables: VENICE_API_KEY,
// VENICE_BASE_URL, VENICE_RETRY_MAX_RETRIES, and so on.
const envPrefix = "VENICE"

// LoaderConfig holds optional file overrides for Load.
type LoaderConfig struct {
	ConfigFile string
	EnvFile    string
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithConfigFile sets an explicit YAML config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// Load builds a Config from YAML, .env, and environment variables.
// Environment variables win over the .env file, which wins over YAML.
// The result has defaults applied and is validated.
func Load(opts ...LoaderOption) (*Config, error) {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}

	if envFile := resolveEnvFile(lc.EnvFile); envFile != "" {
		// godotenv never overrides variables already set in the process.
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if configFile := resolveConfigFile(lc.ConfigFile); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindEnvKeys registers every nested key viper should read from the
// environment. AutomaticEnv alone cannot discover nested keys that do not
// appear in a config file.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"api_key",
		"base_url",
		"timeout",
		"tracing",
		"retry.max_retries",
		"retry.initial_backoff",
		"retry.max_backoff",
		"retry.multiplier",
		"retry.jitter",
		"rate_limit.throttle_max_wait",
		"webhook.secret",
		"webhook.tolerance",
		"logging.level",
		"logging.format",
		"logging.output",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// resolveConfigFile returns the explicit path, or the first config file
// found in standard locations.
func resolveConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, path := range []string{"./venice.yml", "./config/venice.yml"} {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// resolveEnvFile returns the explicit path, or ./.env when present.
func resolveEnvFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if fileExists(".env") {
		return ".env"
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
