package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production"`
	Logging     struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	} `yaml:"logging"`
	Server struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Source struct {
		Type         string        `yaml:"type" default:"binance" validate:"oneof=binance bybit"`
		RESTBaseURL  string        `yaml:"rest_base_url"`
		WSBaseURL    string        `yaml:"ws_base_url"`
		Category     string        `yaml:"category" default:"spot"`
		HTTPTimeout  time.Duration `yaml:"http_timeout" default:"10s"`
		PingInterval time.Duration `yaml:"ping_interval" default:"30s"`
		CacheDepth   int           `yaml:"cache_depth" default:"16"`
	} `yaml:"source"`
	Pipeline struct {
		Timeframe    string        `yaml:"timeframe" default:"M5" validate:"oneof=M1 M5 M15 M30 H1"`
		Lookback     int           `yaml:"lookback" default:"100" validate:"gte=2"`
		Margin       int           `yaml:"margin" default:"100" validate:"gte=0"`
		Settle       time.Duration `yaml:"settle" default:"2s"`
		MaxRetries   int           `yaml:"max_retries" default:"5" validate:"gte=0"`
		RetryBackoff time.Duration `yaml:"retry_backoff" default:"5s"`
		ModelDir     string        `yaml:"model_dir" default:"models"`
		QueueSize    int           `yaml:"queue_size" default:"256" validate:"gte=1"`
	} `yaml:"pipeline"`
	Assets []Asset `yaml:"assets" validate:"min=1,dive"`
	Kafka  struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"finadv.decisions"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"finadv"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		AsyncInsert  bool          `yaml:"async_insert" default:"true"`
		WaitForAsync bool          `yaml:"wait_for_async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// Asset configures one monitored symbol.
type Asset struct {
	Symbol   string      `yaml:"symbol" validate:"required"`
	Strategy string      `yaml:"strategy" default:"volatility"`
	Enabled  *bool       `yaml:"enabled"` // nil means enabled
	Rules    []SetupRule `yaml:"rules" validate:"dive"`
}

// IsEnabled reports whether the asset should run.
func (a Asset) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// SetupRule is one declarative confirmation rule.
type SetupRule struct {
	Condition string  `yaml:"condition" validate:"required,oneof=BUY SELL"`
	Type      string  `yaml:"type" validate:"required,oneof=price_above_ma price_below_ma rsi_above rsi_below"`
	MAType    string  `yaml:"ma_type" validate:"omitempty,oneof=sma ema"`
	Period    int     `yaml:"period" validate:"gte=0"`
	Level     float64 `yaml:"level" validate:"gte=0,lte=100"`
}

var structValidate = validator.New()

// Load reads a YAML configuration file, applies struct defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := structValidate.Struct(&c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("MODEL_DIR"); v != "" {
		c.Pipeline.ModelDir = v
	}
	return c, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	enabled := 0
	for i, a := range c.Assets {
		if a.IsEnabled() {
			enabled++
		}
		for j, r := range a.Rules {
			switch r.Type {
			case "price_above_ma", "price_below_ma":
				if r.MAType == "" || r.Period <= 0 {
					return fmt.Errorf("assets[%d].rules[%d]: %s requires ma_type and period", i, j, r.Type)
				}
			case "rsi_above", "rsi_below":
				if r.Level <= 0 {
					return fmt.Errorf("assets[%d].rules[%d]: %s requires level", i, j, r.Type)
				}
			}
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one asset must be enabled")
	}
	return nil
}
