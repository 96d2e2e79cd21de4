package config

import (
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AppName names the config directory and the keychain service.
const AppName = "lender-enrich"

// Keychain accounts for stored credentials.
const (
	KeySerpAPI        = "serpapi_key"
	KeyRealValidation = "realvalidation_token"
)

// Config holds the full application configuration.
type Config struct {
	Search      SearchConfig      `yaml:"search" mapstructure:"search"`
	DNC         DNCConfig         `yaml:"dnc" mapstructure:"dnc"`
	Scrape      ScrapeConfig      `yaml:"scrape" mapstructure:"scrape"`
	Pacing      PacingConfig      `yaml:"pacing" mapstructure:"pacing"`
	Delivery    DeliveryConfig    `yaml:"delivery" mapstructure:"delivery"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Credentials CredentialsConfig `yaml:"credentials" mapstructure:"credentials"`
}

// SearchConfig holds SerpAPI settings.
type SearchConfig struct {
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Num         int    `yaml:"num" mapstructure:"num"`
	Retries     int    `yaml:"retries" mapstructure:"retries"`
}

// DNCConfig holds RealValidation registry settings.
type DNCConfig struct {
	Token       string  `yaml:"token" mapstructure:"token"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ScrapeConfig configures page fetching.
type ScrapeConfig struct {
	TimeoutSecs         int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRedirects        int      `yaml:"max_redirects" mapstructure:"max_redirects"`
	MaxBodyBytes        int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	BlockedDomains      []string `yaml:"blocked_domains" mapstructure:"blocked_domains"`
	BreakerThreshold    int      `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int      `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
	CacheTTLMins        int      `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
}

// PacingConfig configures the waits between fetches and query variants.
type PacingConfig struct {
	ScrapeSpacingMs int `yaml:"scrape_spacing_ms" mapstructure:"scrape_spacing_ms"`
	QueryBackoffMs  int `yaml:"query_backoff_ms" mapstructure:"query_backoff_ms"`
}

// DeliveryConfig configures the upload webhook.
type DeliveryConfig struct {
	WebhookURL  string `yaml:"webhook_url" mapstructure:"webhook_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// StoreConfig configures the run journal.
type StoreConfig struct {
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// CredentialsConfig controls where secrets come from.
type CredentialsConfig struct {
	UseKeyring bool `yaml:"use_keyring" mapstructure:"use_keyring"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))

	// Environment
	v.SetEnvPrefix("LENDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("search.base_url", "https://serpapi.com")
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.num", 20)
	v.SetDefault("search.retries", 0)
	v.SetDefault("dnc.base_url", "https://api.realvalidation.com")
	v.SetDefault("dnc.timeout_secs", 10)
	v.SetDefault("dnc.rate_per_sec", 2.0)
	v.SetDefault("scrape.timeout_secs", 8)
	v.SetDefault("scrape.max_redirects", 3)
	v.SetDefault("scrape.max_body_bytes", 2<<20)
	v.SetDefault("scrape.blocked_domains", []string{"linkedin.com", "zillow.com", "facebook.com"})
	v.SetDefault("scrape.breaker_threshold", 3)
	v.SetDefault("scrape.breaker_cooldown_secs", 300)
	v.SetDefault("scrape.cache_ttl_mins", 0)
	v.SetDefault("pacing.scrape_spacing_ms", 1000)
	v.SetDefault("pacing.query_backoff_ms", 2000)
	v.SetDefault("delivery.timeout_secs", 120)
	v.SetDefault("store.dsn", "file::memory:?cache=shared")
	v.SetDefault("server.port", 3001)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("credentials.use_keyring", false)

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	for _, k := range []string{"search.api_key", "dnc.token", "delivery.webhook_url"} {
		if err := v.BindEnv(k); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", k)
		}
	}

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

	if cfg.Credentials.UseKeyring {
		cfg.Search.APIKey = fromKeyring(cfg.Search.APIKey, KeySerpAPI)
		cfg.DNC.Token = fromKeyring(cfg.DNC.Token, KeyRealValidation)
	}

	return &cfg, nil
}

// fromKeyring returns current when set, else the keychain entry for account.
// A missing entry is not an error.
func fromKeyring(current, account string) string {
	if current != "" {
		return current
	}
	secret, err := keyring.Get(AppName, account)
	if err != nil {
		if !eris.Is(err, keyring.ErrNotFound) {
			zap.L().Debug("config: keyring lookup failed", zap.String("account", account), zap.Error(err))
		}
		return ""
	}
	return secret
}

// Validate checks the settings a command needs. Mode is one of
// "enrich", "dnc" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "enrich":
		if c.Search.APIKey == "" {
			errs = append(errs, "search.api_key is required")
		}
	case "dnc":
		if c.DNC.Token == "" {
			errs = append(errs, "dnc.token is required")
		}
	case "serve":
		if c.Search.APIKey == "" {
			errs = append(errs, "search.api_key is required")
		}
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Pacing.ScrapeSpacingMs < 0 || c.Pacing.QueryBackoffMs < 0 {
		errs = append(errs, "pacing values must be >= 0")
	}
	if c.DNC.RatePerSec < 0 {
		errs = append(errs, "dnc.rate_per_sec must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
