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

// SourceConfig describes one external grey-market data source.
type SourceConfig struct {
	Name             string        `yaml:"name" validate:"required"`
	Kind             string        `yaml:"kind" default:"http" validate:"oneof=http stream"`
	URL              string        `yaml:"url" validate:"required"`
	APIKey           string        `yaml:"api_key"`
	Weight           float64       `yaml:"weight" default:"1.0" validate:"gt=0"`
	ReliabilityPrior float64       `yaml:"reliability_prior" default:"0.8" validate:"gte=0,lte=1"`
	Timeout          time.Duration `yaml:"timeout" default:"3s"`
	MaxRPS           float64       `yaml:"max_rps" default:"5"`
	// stream sources only: how old a cached quote may be before a fetch fails
	MaxQuoteAge time.Duration `yaml:"max_quote_age" default:"2m"`
}

// TierConfig controls one priority tier's polling behavior.
type TierConfig struct {
	Interval    time.Duration `yaml:"interval"`
	BatchSize   int           `yaml:"batch_size" default:"4" validate:"gt=0"`
	Parallelism int           `yaml:"parallelism" default:"4" validate:"gt=0"`
}

// InstrumentConfig seeds the initial tracking universe.
type InstrumentConfig struct {
	ID         string  `yaml:"id" validate:"required"`
	Symbol     string  `yaml:"symbol" validate:"required"`
	Status     string  `yaml:"status" default:"upcoming" validate:"oneof=upcoming open closed listed"`
	IssuePrice float64 `yaml:"issue_price" validate:"gte=0"`
	BandLow    float64 `yaml:"band_low"`
	BandHigh   float64 `yaml:"band_high"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Sources   []SourceConfig `yaml:"sources" validate:"min=1,dive"`
	Scheduler struct {
		Tiers struct {
			High   TierConfig `yaml:"high"`
			Medium TierConfig `yaml:"medium"`
			Low    TierConfig `yaml:"low"`
		} `yaml:"tiers"`
		RetryCeiling  int           `yaml:"retry_ceiling" default:"3" validate:"gt=0"`
		StaleAfter    time.Duration `yaml:"stale_after" default:"10m"`
		SweepInterval time.Duration `yaml:"sweep_interval" default:"1m"`
		PacingDelay   time.Duration `yaml:"pacing_delay" default:"100ms"`
		Retention     time.Duration `yaml:"retention" default:"168h"`
	} `yaml:"scheduler"`
	Analytics struct {
		MinDelta         float64       `yaml:"min_delta" default:"0.05"`
		ShortSMAWindow   int           `yaml:"short_sma_window" default:"5" validate:"gt=1"`
		LongSMAWindow    int           `yaml:"long_sma_window" default:"10" validate:"gt=1"`
		RSIPeriod        int           `yaml:"rsi_period" default:"14" validate:"gt=1"`
		MomentumLookback int           `yaml:"momentum_lookback" default:"5" validate:"gt=0"`
		BaselineWindow   int           `yaml:"baseline_window" default:"20" validate:"gt=1"`
		VolatilityPct    float64       `yaml:"volatility_pct" default:"8.0"`
		RapidChangePct   float64       `yaml:"rapid_change_pct" default:"5.0"`
		VolumeSpikeMult  float64       `yaml:"volume_spike_mult" default:"2.0" validate:"gt=1"`
		PriceZScore      float64       `yaml:"price_z_score" default:"2.5"`
		VolumeZScore     float64       `yaml:"volume_z_score" default:"2.0"`
		DedupWindow      time.Duration `yaml:"dedup_window" default:"10m"`
	} `yaml:"analytics"`
	Kafka struct {
		Brokers       []string `yaml:"brokers" validate:"min=1"`
		ReadingsTopic string   `yaml:"readings_topic" default:"gmp.readings"`
		AlertsTopic   string   `yaml:"alerts_topic" default:"gmp.alerts"`
		ControlTopic  string   `yaml:"control_topic" default:"gmp.control"`
		RequiredAcks  int      `yaml:"required_acks" default:"-1"`
		Compression   string   `yaml:"compression" default:"gzip"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"greypulse-control"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host         string        `yaml:"host" validate:"required"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"greypulse"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"greypulse"`
	} `yaml:"redis"`
	Instruments []InstrumentConfig `yaml:"instruments" validate:"dive"`
}

// Load reads, defaults, and validates a YAML configuration file.
// Any validation failure is fatal at startup; the engine never reloads.
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
	c.applyTierDefaults()

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
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("GMP_SOURCE_API_KEY"); v != "" {
		for i := range c.Sources {
			if c.Sources[i].APIKey == "" {
				c.Sources[i].APIKey = v
			}
		}
	}

	return c, nil
}

// applyTierDefaults fills tier intervals that defaults tags cannot express
// per-tier (the three tiers share one struct type).
func (c *Config) applyTierDefaults() {
	if c.Scheduler.Tiers.High.Interval == 0 {
		c.Scheduler.Tiers.High.Interval = 30 * time.Second
	}
	if c.Scheduler.Tiers.Medium.Interval == 0 {
		c.Scheduler.Tiers.Medium.Interval = 2 * time.Minute
	}
	if c.Scheduler.Tiers.Low.Interval == 0 {
		c.Scheduler.Tiers.Low.Interval = 10 * time.Minute
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	names := make(map[string]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		if _, dup := names[s.Name]; dup {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		names[s.Name] = struct{}{}
		if s.Timeout <= 0 {
			return fmt.Errorf("source %q: timeout must be positive", s.Name)
		}
	}
	if c.Analytics.ShortSMAWindow >= c.Analytics.LongSMAWindow {
		return fmt.Errorf("short_sma_window must be below long_sma_window")
	}
	return nil
}
