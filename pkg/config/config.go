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

var validate = validator.New()

type Config struct {
	Environment string `yaml:"environment" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"` // json or console
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	ClickHouse struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"marketpull"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"marketpull"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled     bool     `yaml:"enabled"`
		Brokers     []string `yaml:"brokers"`
		Topic       string   `yaml:"topic" default:"marketpull.facts"`
		Compression string   `yaml:"compression" default:"snappy"`
		Acks        int      `yaml:"required_acks" default:"1"`
	} `yaml:"kafka"`
	Crawler CrawlerConfig       `yaml:"crawler"`
	TTL     map[string]TTLClass `yaml:"ttl_classes" validate:"required,dive"`
	Sources []SourceSpec        `yaml:"sources" validate:"required,min=1,dive"`
}

// CrawlerConfig holds the process-wide crawl policy knobs.
type CrawlerConfig struct {
	Concurrency     int           `yaml:"concurrency" default:"8"`
	ChainBudget     time.Duration `yaml:"chain_budget" default:"30s"`
	StrategyRetries int           `yaml:"strategy_retries" default:"2"`
	RetryBackoff    time.Duration `yaml:"retry_backoff" default:"500ms"`
	RequestRate     float64       `yaml:"request_rate" default:"10"` // outbound req/s across all sources
	RequestBurst    int           `yaml:"request_burst" default:"5"`
	ClockSkew       time.Duration `yaml:"clock_skew" default:"2m"`
	RepairTimeout   time.Duration `yaml:"repair_timeout" default:"2s"`
	CacheRetention  int           `yaml:"cache_retention_factor" default:"10"` // physical TTL = logical TTL * factor
}

// TTLClass groups sources by freshness requirements: FX quotes refresh in
// seconds, monthly indices in hours.
type TTLClass struct {
	TTL      time.Duration `yaml:"ttl" validate:"required"`
	Interval time.Duration `yaml:"interval" validate:"required"` // crawl scheduling period
}

// SourceSpec fully describes one logical source: how to acquire it, how to
// parse the payload and what a sane record looks like. Immutable at crawl
// time.
type SourceSpec struct {
	ID         string         `yaml:"id" validate:"required"`
	TTLClass   string         `yaml:"ttl_class" validate:"required"`
	Unit       string         `yaml:"unit"`
	Currency   string         `yaml:"currency"`
	Parse      ParseSpec      `yaml:"parse"`
	Fields     []FieldSpec    `yaml:"fields" validate:"required,min=1,dive"`
	Strategies []StrategySpec `yaml:"strategies" validate:"required,min=1,dive"`
}

// ParseSpec selects the payload shape and its extraction rule.
type ParseSpec struct {
	Format    string `yaml:"format" validate:"required,oneof=delimited markup jsonpath"`
	Anchor    string `yaml:"anchor"`    // delimited: anchored regexp with one capture group
	Delimiter string `yaml:"delimiter"` // delimited: value separator, default ","
}

// FieldSpec locates one field in the payload and bounds its sanity
// envelope. Index applies to delimited payloads, Selector to markup,
// Path to jsonpath.
type FieldSpec struct {
	Name       string   `yaml:"name" validate:"required"`
	Required   bool     `yaml:"required"`
	Numeric    bool     `yaml:"numeric"`
	NonZero    bool     `yaml:"nonzero"` // zero is physically implausible (e.g. a price)
	Index      int      `yaml:"index"`
	Selector   string   `yaml:"selector"`
	Path       string   `yaml:"path"`
	Min        *float64 `yaml:"min"` // exclusive lower bound
	Max        *float64 `yaml:"max"` // exclusive upper bound
	ObservedAt bool     `yaml:"observed_at"` // field carries the observation timestamp
	Layout     string   `yaml:"layout"`      // time layout for observed_at fields
}

// StrategySpec is one step of a source's acquisition chain.
type StrategySpec struct {
	Kind    string            `yaml:"kind" validate:"required,oneof=endpoint page browser"`
	URL     string            `yaml:"url" validate:"required,url"`
	Timeout time.Duration     `yaml:"timeout" default:"5s"`
	Headers map[string]string `yaml:"headers"`
	WaitFor string            `yaml:"wait_for"` // browser: CSS selector to wait visible
}

// Load reads and parses a YAML configuration file.
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
		return nil, fmt.Errorf("default config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment
// variables for deployment-sensitive values.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	return c, nil
}

// Validate checks structural rules plus the cross-references the struct
// tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		s := &c.Sources[i]
		if seen[s.ID] {
			return fmt.Errorf("duplicate source id %q", s.ID)
		}
		seen[s.ID] = true
		if _, ok := c.TTL[s.TTLClass]; !ok {
			return fmt.Errorf("source %q: unknown ttl_class %q", s.ID, s.TTLClass)
		}
		if s.Parse.Format == "delimited" && s.Parse.Anchor == "" {
			return fmt.Errorf("source %q: delimited parse needs an anchor", s.ID)
		}
		for _, f := range s.Fields {
			if f.Min != nil && f.Max != nil && *f.Min >= *f.Max {
				return fmt.Errorf("source %q field %q: empty envelope", s.ID, f.Name)
			}
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled without brokers")
	}
	return nil
}

// Source returns the spec for one source id.
func (c *Config) Source(id string) (*SourceSpec, bool) {
	for i := range c.Sources {
		if c.Sources[i].ID == id {
			return &c.Sources[i], true
		}
	}
	return nil, false
}

// ClassOf resolves a source's TTL class. Config validation guarantees the
// class exists; the fallback keeps a misconfigured source conservative
// rather than uncached.
func (c *Config) ClassOf(spec *SourceSpec) TTLClass {
	if cl, ok := c.TTL[spec.TTLClass]; ok {
		return cl
	}
	return TTLClass{TTL: time.Minute, Interval: time.Minute}
}
