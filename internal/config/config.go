package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Sources    SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	LinkedIn   LinkedInConfig   `yaml:"linkedin" mapstructure:"linkedin"`
	Diffbot    DiffbotConfig    `yaml:"diffbot" mapstructure:"diffbot"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Reconcile  ReconcileConfig  `yaml:"reconcile" mapstructure:"reconcile"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Paths      PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SourcesConfig toggles the first-pass data sources.
type SourcesConfig struct {
	LinkedIn bool `yaml:"linkedin" mapstructure:"linkedin"`
	Diffbot  bool `yaml:"diffbot" mapstructure:"diffbot"`
}

// RateLimitConfig holds the throttle and retry knobs for one upstream source.
// Immutable after Load.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	TimeWindowSecs    int `yaml:"time_window_secs" mapstructure:"time_window_secs"`
	BaseDelaySecs     int `yaml:"base_delay_secs" mapstructure:"base_delay_secs"`
	MaxRetries        int `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs       int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Window returns the sliding-window span.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.TimeWindowSecs) * time.Second
}

// BaseDelay returns the linear-backoff unit delay.
func (r RateLimitConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelaySecs) * time.Second
}

// Timeout returns the per-request timeout.
func (r RateLimitConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSecs) * time.Second
}

// LinkedInConfig configures the public company-page scraper.
type LinkedInConfig struct {
	BaseURL string          `yaml:"base_url" mapstructure:"base_url"`
	Rate    RateLimitConfig `yaml:"rate" mapstructure:"rate"`
}

// DiffbotConfig holds knowledge-graph API settings.
type DiffbotConfig struct {
	Token   string          `yaml:"token" mapstructure:"token"`
	BaseURL string          `yaml:"base_url" mapstructure:"base_url"`
	Rate    RateLimitConfig `yaml:"rate" mapstructure:"rate"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string          `yaml:"key" mapstructure:"key"`
	BaseURL string          `yaml:"base_url" mapstructure:"base_url"`
	Model   string          `yaml:"model" mapstructure:"model"`
	Rate    RateLimitConfig `yaml:"rate" mapstructure:"rate"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ReconcileConfig configures cross-source merge behavior.
type ReconcileConfig struct {
	Interactive                bool    `yaml:"interactive" mapstructure:"interactive"`
	TargetCurrency             string  `yaml:"target_currency" mapstructure:"target_currency"`
	RatesFile                  string  `yaml:"rates_file" mapstructure:"rates_file"`
	RevenueConflictThreshold   float64 `yaml:"revenue_conflict_threshold" mapstructure:"revenue_conflict_threshold"`
	EmployeeAgreementTolerance float64 `yaml:"employee_agreement_tolerance" mapstructure:"employee_agreement_tolerance"`
}

// EnrichConfig configures the update-worthiness thresholds of the
// enrichment pass.
type EnrichConfig struct {
	EmployeeUpdateThreshold float64 `yaml:"employee_update_threshold" mapstructure:"employee_update_threshold"`
	RevenueUpdateThreshold  float64 `yaml:"revenue_update_threshold" mapstructure:"revenue_update_threshold"`
}

// PathsConfig holds the default file locations.
type PathsConfig struct {
	Input    string `yaml:"input" mapstructure:"input"`
	Snapshot string `yaml:"snapshot" mapstructure:"snapshot"`
	Progress string `yaml:"progress" mapstructure:"progress"`
	Export   string `yaml:"export" mapstructure:"export"`
}

// CacheConfig configures the raw-payload cache.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Path     string `yaml:"path" mapstructure:"path"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FIRMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("sources.linkedin", true)
	v.SetDefault("sources.diffbot", true)
	v.SetDefault("linkedin.base_url", "https://www.linkedin.com")
	v.SetDefault("linkedin.rate.requests_per_minute", 1)
	v.SetDefault("linkedin.rate.time_window_secs", 60)
	v.SetDefault("linkedin.rate.base_delay_secs", 5)
	v.SetDefault("linkedin.rate.max_retries", 3)
	v.SetDefault("linkedin.rate.timeout_secs", 60)
	v.SetDefault("diffbot.base_url", "https://kg.diffbot.com/kg/v3/dql")
	v.SetDefault("diffbot.rate.requests_per_minute", 1)
	v.SetDefault("diffbot.rate.time_window_secs", 60)
	v.SetDefault("diffbot.rate.base_delay_secs", 5)
	v.SetDefault("diffbot.rate.max_retries", 3)
	v.SetDefault("diffbot.rate.timeout_secs", 60)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("perplexity.rate.requests_per_minute", 3)
	v.SetDefault("perplexity.rate.time_window_secs", 60)
	v.SetDefault("perplexity.rate.base_delay_secs", 5)
	v.SetDefault("perplexity.rate.max_retries", 3)
	v.SetDefault("perplexity.rate.timeout_secs", 60)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("reconcile.interactive", false)
	v.SetDefault("reconcile.target_currency", "USD")
	v.SetDefault("reconcile.revenue_conflict_threshold", 0.10)
	v.SetDefault("reconcile.employee_agreement_tolerance", 0.10)
	v.SetDefault("enrich.employee_update_threshold", 0.10)
	v.SetDefault("enrich.revenue_update_threshold", 0.10)
	v.SetDefault("paths.input", "companies.csv")
	v.SetDefault("paths.snapshot", "firmographics.json")
	v.SetDefault("paths.progress", "enrichment_progress.json")
	v.SetDefault("paths.export", "firmographics.xlsx")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "payload_cache.db")
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable for the given command
// mode. Missing credentials for a source that cannot degrade gracefully are
// fatal; the LinkedIn source has no credential and degrades at runtime.
func (c *Config) Validate(mode string) error {
	var problems []string

	checkThreshold := func(name string, v float64) {
		if v < 0 || v > 1 {
			problems = append(problems, name+" must be between 0 and 1")
		}
	}

	switch mode {
	case "run":
		if c.Sources.Diffbot && c.Diffbot.Token == "" {
			problems = append(problems, "diffbot.token is required when sources.diffbot is enabled")
		}
		if c.Perplexity.Key == "" {
			problems = append(problems, "perplexity.key is required")
		}
		checkThreshold("reconcile.revenue_conflict_threshold", c.Reconcile.RevenueConflictThreshold)
		checkThreshold("reconcile.employee_agreement_tolerance", c.Reconcile.EmployeeAgreementTolerance)
		checkThreshold("enrich.employee_update_threshold", c.Enrich.EmployeeUpdateThreshold)
		checkThreshold("enrich.revenue_update_threshold", c.Enrich.RevenueUpdateThreshold)
	case "enrich":
		if c.Perplexity.Key == "" {
			problems = append(problems, "perplexity.key is required")
		}
		checkThreshold("enrich.employee_update_threshold", c.Enrich.EmployeeUpdateThreshold)
		checkThreshold("enrich.revenue_update_threshold", c.Enrich.RevenueUpdateThreshold)
	case "export":
		// Pure file-to-file projection, nothing to check.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
