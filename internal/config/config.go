package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service" mapstructure:"service"`
	Progress ProgressConfig `yaml:"progress" mapstructure:"progress"`
	Display  DisplayConfig  `yaml:"display" mapstructure:"display"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ServiceConfig points at the remote prediction service.
type ServiceConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"` // 0 = no transport timeout
}

// ProgressConfig tunes the cosmetic progress indicator.
type ProgressConfig struct {
	IntervalMs   int `yaml:"interval_ms" mapstructure:"interval_ms"`
	Step         int `yaml:"step" mapstructure:"step"`
	Ceiling      int `yaml:"ceiling" mapstructure:"ceiling"`
	MinDisplayMs int `yaml:"min_display_ms" mapstructure:"min_display_ms"`
}

// Interval returns the tick interval as a duration.
func (p ProgressConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMs) * time.Millisecond
}

// MinDisplay returns the minimum visible loading time as a duration.
func (p ProgressConfig) MinDisplay() time.Duration {
	return time.Duration(p.MinDisplayMs) * time.Millisecond
}

// DisplayConfig controls how results are rendered.
type DisplayConfig struct {
	CurrencySymbol string `yaml:"currency_symbol" mapstructure:"currency_symbol"`
	Format         string `yaml:"format" mapstructure:"format"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil {
		zap.L().Debug("config: no .env file loaded", zap.Error(err))
	}

	v := viper.New()

	v.SetConfigName("priceoptima")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PRICEOPTIMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("service.url", "http://127.0.0.1:8000/predict-price")
	v.SetDefault("service.timeout_secs", 0)
	v.SetDefault("progress.interval_ms", 300)
	v.SetDefault("progress.step", 10)
	v.SetDefault("progress.ceiling", 90)
	v.SetDefault("progress.min_display_ms", 3000)
	v.SetDefault("display.currency_symbol", "₹")
	v.SetDefault("display.format", "text")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")

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

// Validate checks the values a prediction run depends on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Service.URL)
	if err != nil {
		return eris.Wrap(err, "config: service.url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return eris.Errorf("config: service.url must be http or https (got %q)", c.Service.URL)
	}
	if u.Host == "" {
		return eris.Errorf("config: service.url has no host (got %q)", c.Service.URL)
	}
	if c.Service.TimeoutSecs < 0 {
		return eris.Errorf("config: service.timeout_secs must be >= 0 (got %d)", c.Service.TimeoutSecs)
	}

	p := c.Progress
	if p.IntervalMs <= 0 {
		return eris.Errorf("config: progress.interval_ms must be > 0 (got %d)", p.IntervalMs)
	}
	if p.Step <= 0 {
		return eris.Errorf("config: progress.step must be > 0 (got %d)", p.Step)
	}
	if p.Ceiling < 0 || p.Ceiling >= 100 {
		return eris.Errorf("config: progress.ceiling must be in [0, 100) (got %d)", p.Ceiling)
	}
	if p.MinDisplayMs < 0 {
		return eris.Errorf("config: progress.min_display_ms must be >= 0 (got %d)", p.MinDisplayMs)
	}

	switch c.Display.Format {
	case "text", "json", "yaml":
	default:
		return eris.Errorf("config: display.format must be text, json or yaml (got %q)", c.Display.Format)
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
