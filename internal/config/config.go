package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Input   InputConfig   `yaml:"input" mapstructure:"input"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Skroutz SkroutzConfig `yaml:"skroutz" mapstructure:"skroutz"`
	Session SessionConfig `yaml:"session" mapstructure:"session"`
	Scrape  ScrapeConfig  `yaml:"scrape" mapstructure:"scrape"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// InputConfig configures the product CSV source.
type InputConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
}

// OutputConfig configures the result files.
type OutputConfig struct {
	TablePath     string `yaml:"table_path" mapstructure:"table_path"`
	AppendLogPath string `yaml:"append_log_path" mapstructure:"append_log_path"`
}

// StoreConfig configures the run-history database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SkroutzConfig configures the price aggregator client.
type SkroutzConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	OwnShopID     string  `yaml:"own_shop_id" mapstructure:"own_shop_id"`
	MaxAttempts   int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryWaitSecs int     `yaml:"retry_wait_secs" mapstructure:"retry_wait_secs"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// SessionConfig configures the headless browser session.
type SessionConfig struct {
	Headless        bool   `yaml:"headless" mapstructure:"headless"`
	Bin             string `yaml:"bin" mapstructure:"bin"`
	NavTimeoutSecs  int    `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	RotateEveryUses int    `yaml:"rotate_every_uses" mapstructure:"rotate_every_uses"`
}

// ScrapeConfig configures direct site fetches.
type ScrapeConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
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
	v.SetEnvPrefix("PRICESCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("input.encoding", "utf-16")
	v.SetDefault("output.table_path", "prices.csv")
	v.SetDefault("output.append_log_path", "prices.log")
	v.SetDefault("store.path", "pricescout.db")
	v.SetDefault("skroutz.base_url", "https://www.skroutz.gr")
	v.SetDefault("skroutz.max_attempts", 3)
	v.SetDefault("skroutz.retry_wait_secs", 5)
	v.SetDefault("skroutz.rate_per_sec", 1.0)
	v.SetDefault("session.headless", true)
	v.SetDefault("session.nav_timeout_secs", 45)
	v.SetDefault("session.rotate_every_uses", 10)
	v.SetDefault("scrape.timeout_secs", 30)
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

// Validate checks the settings a run cannot start without. Problems are
// collected so the operator fixes everything in one pass.
func (c *Config) Validate() error {
	var problems []string

	if c.Input.Path == "" {
		problems = append(problems, "input.path is required")
	}
	switch c.Input.Encoding {
	case "", "utf-8", "utf-16":
	default:
		problems = append(problems, "input.encoding must be utf-8 or utf-16")
	}
	if c.Skroutz.MaxAttempts < 1 {
		problems = append(problems, "skroutz.max_attempts must be >= 1")
	}
	if c.Skroutz.RetryWaitSecs < 0 {
		problems = append(problems, "skroutz.retry_wait_secs must be >= 0")
	}
	if c.Skroutz.RatePerSec <= 0 {
		problems = append(problems, "skroutz.rate_per_sec must be > 0")
	}
	if c.Session.RotateEveryUses < 1 {
		problems = append(problems, "session.rotate_every_uses must be >= 1")
	}
	if c.Scrape.TimeoutSecs < 1 {
		problems = append(problems, "scrape.timeout_secs must be >= 1")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
