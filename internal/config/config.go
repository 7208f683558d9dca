// Package config loads roster configuration from config files,
// environment variables, and .env files.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/opencivic/roster/pkg/errors"
)

// Defaults for tunables not set anywhere else.
const (
	DefaultRegistryPageSize  = 1000
	DefaultRegistryRateLimit = 5.0
	DefaultDetailRateLimit   = 10.0
	DefaultDetailWorkers     = 8
	DefaultPlacesRateLimit   = 2.0
	DefaultHTTPTimeout       = 30 * time.Second
	DefaultOutputDir         = "output"
	DefaultCheckpointDir     = ".roster"
)

// RegistryConfig configures the Socrata registry roll source.
type RegistryConfig struct {
	BaseURL   string
	DatasetID string
	AppToken  string
	PageSize  int
	RateLimit float64
}

// DetailConfig configures the per-identifier detail API source.
type DetailConfig struct {
	BaseURL   string
	APIKey    string
	RateLimit float64
	Workers   int
}

// PlacesConfig configures the optional place enrichment source.
type PlacesConfig struct {
	BaseURL   string
	APIKey    string
	RateLimit float64
	Enabled   bool
}

// PipelineConfig configures combination and deduplication.
type PipelineConfig struct {
	Priority        string
	DedupeStrategy  string
	FuzzyThreshold  float64
	MergeDuplicates bool
}

// ExportConfig configures result output.
type ExportConfig struct {
	Dir       string
	Formats   []string
	Checksums bool
}

// Config holds the application configuration loaded from all sources.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Output  string

	// Config file actually read, if any
	ConfigFile string

	Registry   RegistryConfig
	Detail     DetailConfig
	Places     PlacesConfig
	Pipeline   PipelineConfig
	Export     ExportConfig
	Checkpoint string

	HTTPTimeout time.Duration

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// Load reads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (ROSTER_ prefix)
// 3. .env files
// 4. Config file (~/.roster.yaml)
// 5. Defaults
func Load() (*Config, error) {
	loadEnvFiles()

	viper.SetEnvPrefix("ROSTER")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	bindAPIKeys()
	setDefaults()

	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.AddConfigPath(".")
			viper.SetConfigType("yaml")
			viper.SetConfigName(".roster")
		}
	}

	// Missing config file is fine; env vars and defaults cover everything.
	_ = viper.ReadInConfig()

	cfg := &Config{
		Verbose: viper.GetBool("verbose"),
		Quiet:   viper.GetBool("quiet"),
		NoColor: viper.GetBool("no-color"),
		Output:  viper.GetString("output"),

		ConfigFile: viper.ConfigFileUsed(),

		Registry: RegistryConfig{
			BaseURL:   viper.GetString("registry.base_url"),
			DatasetID: viper.GetString("registry.dataset_id"),
			AppToken:  firstNonEmpty(viper.GetString("registry.app_token"), os.Getenv("SOCRATA_APP_TOKEN")),
			PageSize:  viper.GetInt("registry.page_size"),
			RateLimit: viper.GetFloat64("registry.rate_limit"),
		},
		Detail: DetailConfig{
			BaseURL:   viper.GetString("detail.base_url"),
			APIKey:    firstNonEmpty(viper.GetString("detail.api_key"), os.Getenv("DETAIL_API_KEY")),
			RateLimit: viper.GetFloat64("detail.rate_limit"),
			Workers:   viper.GetInt("detail.workers"),
		},
		Places: PlacesConfig{
			BaseURL:   viper.GetString("places.base_url"),
			APIKey:    firstNonEmpty(viper.GetString("places.api_key"), os.Getenv("GOOGLE_PLACES_API_KEY")),
			RateLimit: viper.GetFloat64("places.rate_limit"),
			Enabled:   viper.GetBool("places.enabled"),
		},
		Pipeline: PipelineConfig{
			Priority:        viper.GetString("pipeline.priority"),
			DedupeStrategy:  viper.GetString("pipeline.dedupe_strategy"),
			FuzzyThreshold:  viper.GetFloat64("pipeline.fuzzy_threshold"),
			MergeDuplicates: viper.GetBool("pipeline.merge_duplicates"),
		},
		Export: ExportConfig{
			Dir:       viper.GetString("export.dir"),
			Formats:   viper.GetStringSlice("export.formats"),
			Checksums: viper.GetBool("export.checksums"),
		},
		Checkpoint: viper.GetString("checkpoint.dir"),

		HTTPTimeout: viper.GetDuration("http_timeout"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}

	return cfg, nil
}

// Validate checks the configuration for values that would fail later.
func (c *Config) Validate() error {
	if c.Registry.PageSize <= 0 {
		return errors.NewConfigError("registry", "page_size must be positive", nil)
	}
	if c.Detail.Workers <= 0 {
		return errors.NewConfigError("detail", "workers must be positive", nil)
	}
	if c.Pipeline.FuzzyThreshold <= 0 || c.Pipeline.FuzzyThreshold > 1 {
		return errors.NewConfigError("pipeline", "fuzzy_threshold must be in (0, 1]", nil)
	}
	if c.Places.Enabled && c.Places.APIKey == "" {
		return errors.NewConfigError("places", "api_key required when enrichment is enabled", errors.ErrAPIKeyRequired)
	}
	return nil
}

// UpdateFromFlags applies parsed command flags, which take precedence
// over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, output string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if output != "" {
		c.Output = output
	}
}

func setDefaults() {
	viper.SetDefault("registry.base_url", "https://data.texas.gov/resource")
	viper.SetDefault("registry.dataset_id", "ap93-2zv4")
	viper.SetDefault("registry.page_size", DefaultRegistryPageSize)
	viper.SetDefault("registry.rate_limit", DefaultRegistryRateLimit)

	viper.SetDefault("detail.base_url", "https://api.cpa.texas.gov/v1")
	viper.SetDefault("detail.rate_limit", DefaultDetailRateLimit)
	viper.SetDefault("detail.workers", DefaultDetailWorkers)

	viper.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	viper.SetDefault("places.rate_limit", DefaultPlacesRateLimit)
	viper.SetDefault("places.enabled", false)

	viper.SetDefault("pipeline.priority", "detail")
	viper.SetDefault("pipeline.dedupe_strategy", "identifier")
	viper.SetDefault("pipeline.fuzzy_threshold", 0.85)
	viper.SetDefault("pipeline.merge_duplicates", false)

	viper.SetDefault("export.dir", DefaultOutputDir)
	viper.SetDefault("export.formats", []string{"json"})
	viper.SetDefault("export.checksums", true)

	viper.SetDefault("checkpoint.dir", DefaultCheckpointDir)
	viper.SetDefault("http_timeout", DefaultHTTPTimeout)
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// bindAPIKeys explicitly binds credential environment variables that do
// not carry the ROSTER_ prefix.
func bindAPIKeys() {
	for _, key := range []string{
		"SOCRATA_APP_TOKEN",
		"DETAIL_API_KEY",
		"GOOGLE_PLACES_API_KEY",
	} {
		_ = viper.BindEnv(key)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
