package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Pricing PricingConfig `yaml:"pricing"`
	Breaker BreakerConfig `yaml:"breaker"`
	Cache   CacheConfig   `yaml:"cache"`
	Redis   RedisConfig   `yaml:"redis"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Worker  WorkerConfig  `yaml:"worker"`
	Log     LogConfig     `yaml:"log"`
}

type PricingConfig struct {
	BaseURL            string  `yaml:"base_url"`
	ClientID           string  `yaml:"client_id"`
	ClientSecret       string  `yaml:"client_secret"`
	DefaultCurrency    string  `yaml:"default_currency"`
	DefaultMax         int     `yaml:"default_max"`
	CallTimeoutSeconds int     `yaml:"call_timeout_seconds"`
	RequestsPerSecond  float64 `yaml:"requests_per_second"`
}

func (p PricingConfig) CallTimeout() time.Duration {
	return time.Duration(p.CallTimeoutSeconds) * time.Second
}

type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	CooldownSeconds  int `yaml:"cooldown_seconds"`
}

func (b BreakerConfig) Cooldown() time.Duration {
	return time.Duration(b.CooldownSeconds) * time.Second
}

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type CacheConfig struct {
	Backend    string `yaml:"backend"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	Capacity   int    `yaml:"capacity"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	QuoteEventsTopic   string   `yaml:"quote_events_topic"`
	BreakerEventsTopic string   `yaml:"breaker_events_topic"`
	GroupID            string   `yaml:"group_id"`
}

type WorkerConfig struct {
	SummaryIntervalSeconds int `yaml:"summary_interval_seconds"`
}

func (w WorkerConfig) SummaryInterval() time.Duration {
	return time.Duration(w.SummaryIntervalSeconds) * time.Second
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Default points at the provider test environment.
func Default() *Config {
	return &Config{
		Pricing: PricingConfig{
			BaseURL:            "https://test.api.amadeus.com",
			DefaultCurrency:    "USD",
			DefaultMax:         5,
			CallTimeoutSeconds: 10,
			RequestsPerSecond:  10,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			CooldownSeconds:  30,
		},
		Cache: CacheConfig{
			Backend:    CacheBackendMemory,
			TTLSeconds: 600,
			Capacity:   10000,
		},
		Kafka: KafkaConfig{
			QuoteEventsTopic:   "flight-quotes",
			BreakerEventsTopic: "flight-pricing-breaker",
			GroupID:            "tripquote-worker",
		},
		Worker: WorkerConfig{SummaryIntervalSeconds: 60},
		Log:    LogConfig{Level: "info"},
	}
}

// LoadConfig reads the YAML file at path on top of Default and applies the
// AMADEUS_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv("AMADEUS_API_URL"); ok && v != "" {
		c.Pricing.BaseURL = v
	}
	if v, ok := os.LookupEnv("AMADEUS_CLIENT_ID"); ok {
		c.Pricing.ClientID = v
	}
	if v, ok := os.LookupEnv("AMADEUS_CLIENT_SECRET"); ok {
		c.Pricing.ClientSecret = v
	}
}

// Validate checks the tunables. Blank credentials are not a load error: they
// surface as an auth configuration error on the first live quote.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Pricing.BaseURL) == "" {
		errs = append(errs, errors.New("pricing.base_url is required"))
	}
	if c.Pricing.DefaultMax <= 0 {
		errs = append(errs, errors.New("pricing.default_max must be positive"))
	}
	if c.Pricing.CallTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("pricing.call_timeout_seconds must be positive"))
	}
	if c.Pricing.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("pricing.requests_per_second must not be negative"))
	}
	if c.Breaker.FailureThreshold <= 0 {
		errs = append(errs, errors.New("breaker.failure_threshold must be positive"))
	}
	if c.Breaker.CooldownSeconds <= 0 {
		errs = append(errs, errors.New("breaker.cooldown_seconds must be positive"))
	}
	if c.Cache.TTLSeconds <= 0 {
		errs = append(errs, errors.New("cache.ttl_seconds must be positive"))
	}
	if c.Worker.SummaryIntervalSeconds <= 0 {
		errs = append(errs, errors.New("worker.summary_interval_seconds must be positive"))
	}
	if len(c.Kafka.Brokers) > 0 && (c.Kafka.QuoteEventsTopic == "" || c.Kafka.BreakerEventsTopic == "") {
		errs = append(errs, errors.New("kafka topics are required when brokers are configured"))
	}
	switch c.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis cache backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not supported", c.Cache.Backend))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
