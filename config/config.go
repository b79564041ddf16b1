package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"go-exchange-rate-updater"
)

// Config of the exchange rate services
type Config struct {
	Env            string  `yaml:"env" env:"RATES_ENV" env-default:"local"`
	HTTP           HTTP    `yaml:"http"`
	Log            Log     `yaml:"log"`
	Feed           Feed    `yaml:"feed"`
	Cache          Cache   `yaml:"cache"`
	TargetCurrency string  `yaml:"target_currency" env:"TARGET_CURRENCY" env-default:"CZK"`
	Console        Console `yaml:"console"`
}

type HTTP struct {
	Addr           string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"HTTP_REQUEST_TIMEOUT" env-default:"15s"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Feed struct {
	URL     string        `yaml:"url" env:"FEED_URL" env-default:"https://api.cnb.cz/cnbapi/exrates/daily"`
	Format  string        `yaml:"format" env:"FEED_FORMAT" env-default:"json"`
	Timeout time.Duration `yaml:"timeout" env:"FEED_TIMEOUT" env-default:"30s"`
	// MaxRPS outbound calls per second, 0 for no limit
	MaxRPS  float64 `yaml:"max_rps" env:"FEED_MAX_RPS" env-default:"0"`
	Retry   Retry   `yaml:"retry"`
	Breaker Breaker `yaml:"breaker"`
}

type Retry struct {
	Attempts  int           `yaml:"attempts" env:"FEED_RETRY_ATTEMPTS" env-default:"3"`
	BaseDelay time.Duration `yaml:"base_delay" env:"FEED_RETRY_BASE_DELAY" env-default:"2s"`
}

type Breaker struct {
	Failures int           `yaml:"failures" env:"FEED_BREAKER_FAILURES" env-default:"5"`
	Cooldown time.Duration `yaml:"cooldown" env:"FEED_BREAKER_COOLDOWN" env-default:"30s"`
}

type Cache struct {
	Disabled   bool   `yaml:"disabled" env:"CACHE_DISABLED"`
	Backend    string `yaml:"backend" env:"CACHE_BACKEND" env-default:"memory"`
	TTLMinutes int    `yaml:"ttl_minutes" env:"CACHE_TTL_MINUTES" env-default:"60"`
	Capacity   uint   `yaml:"capacity" env:"CACHE_CAPACITY" env-default:"1024"`
	Redis      Redis  `yaml:"redis"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX" env-default:"exchange-rates"`
}

type Console struct {
	Currencies []string `yaml:"currencies" env:"CONSOLE_CURRENCIES" env-default:"USD,EUR,CZK,JPY,GBP,AUD,CAD,CHF,CNY,SEK,NZD,MXN,SGD,HKD,NOK"`
}

// TTL of cached results
func (c Cache) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// Load reads the YAML file at path, then applies environment overrides and defaults.
// An empty path reads the environment only.
// Defaults fill zero values, so a zero from the file (e.g. feed.retry.attempts: 0) needs the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("reading environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{updater.ErrInvalidArgument}, args...)...))
	}

	switch strings.ToLower(c.Feed.Format) {
	case "json", "text", "xml":
	default:
		invalid("feed.format must be json, text or xml, got %q", c.Feed.Format)
	}
	if c.Feed.Timeout <= 0 {
		invalid("feed.timeout must be positive")
	}
	if c.Feed.MaxRPS < 0 {
		invalid("feed.max_rps must not be negative")
	}
	if c.Feed.Retry.Attempts < 0 {
		invalid("feed.retry.attempts must not be negative")
	}
	if c.Feed.Breaker.Failures <= 0 {
		invalid("feed.breaker.failures must be positive")
	}
	if c.Feed.Breaker.Cooldown <= 0 {
		invalid("feed.breaker.cooldown must be positive")
	}

	if !c.Cache.Disabled {
		switch strings.ToLower(c.Cache.Backend) {
		case "memory", "redis":
		default:
			invalid("cache.backend must be memory or redis, got %q", c.Cache.Backend)
		}
		if c.Cache.TTLMinutes <= 0 {
			invalid("cache.ttl_minutes must be positive")
		}
	}

	if _, err := updater.NewCurrency(c.TargetCurrency); err != nil {
		invalid("target_currency: %v", err)
	}

	return errors.Join(errs...)
}
