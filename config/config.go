// Package config loads runtime configuration for a referral mesh.
//
// Values are resolved in this order: built-in defaults, an optional YAML
// file, then REFERRALMESH_* environment variables. The result is validated
// before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Matcher kinds.
const (
	MatcherRule  = "rule"
	MatcherModel = "model"
)

// Model providers for the model matcher.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config is the complete runtime configuration.
type Config struct {
	// QueryTimeout bounds a client query end to end.
	QueryTimeout time.Duration `yaml:"query_timeout" env:"REFERRALMESH_QUERY_TIMEOUT"`

	// HopTimeout bounds each ask from one agent to a neighbor.
	HopTimeout time.Duration `yaml:"hop_timeout" env:"REFERRALMESH_HOP_TIMEOUT"`

	// DumpTimeout bounds a state dump.
	DumpTimeout time.Duration `yaml:"dump_timeout" env:"REFERRALMESH_DUMP_TIMEOUT"`

	// MatchTimeout is the watchdog for a single rule evaluation.
	MatchTimeout time.Duration `yaml:"match_timeout" env:"REFERRALMESH_MATCH_TIMEOUT"`

	// InboxSize is the message queue capacity of each agent.
	InboxSize int `yaml:"inbox_size" env:"REFERRALMESH_INBOX_SIZE"`

	// Tolerance relaxes every query component for the rule matcher.
	Tolerance float64 `yaml:"tolerance" env:"REFERRALMESH_TOLERANCE"`

	// JournalSize caps the number of retained hop records (0 = unbounded).
	JournalSize int `yaml:"journal_size" env:"REFERRALMESH_JOURNAL_SIZE"`

	SelfTest SelfTestConfig `yaml:"self_test"`
	Log      LogConfig      `yaml:"log"`
	Matcher  MatcherConfig  `yaml:"matcher"`
}

// SelfTestConfig controls the synthetic query pass run after a load.
type SelfTestConfig struct {
	Enabled         bool          `yaml:"enabled" env:"REFERRALMESH_SELF_TEST_ENABLED"`
	QueriesPerAgent int           `yaml:"queries_per_agent" env:"REFERRALMESH_SELF_TEST_QUERIES_PER_AGENT"`
	RatePerSecond   float64       `yaml:"rate_per_second" env:"REFERRALMESH_SELF_TEST_RATE_PER_SECOND"`
	Timeout         time.Duration `yaml:"timeout" env:"REFERRALMESH_SELF_TEST_TIMEOUT"`
	Spread          float64       `yaml:"spread" env:"REFERRALMESH_SELF_TEST_SPREAD"`
	Seed            uint64        `yaml:"seed" env:"REFERRALMESH_SELF_TEST_SEED"`
}

// LogConfig selects log level and output format.
type LogConfig struct {
	Level  string `yaml:"level" env:"REFERRALMESH_LOG_LEVEL"`
	Format string `yaml:"format" env:"REFERRALMESH_LOG_FORMAT"`
}

// MatcherConfig selects the rule engine.
type MatcherConfig struct {
	// Kind is "rule" or "model".
	Kind string `yaml:"kind" env:"REFERRALMESH_MATCHER_KIND"`

	// Provider and Model select the language model when Kind is "model".
	Provider string `yaml:"provider" env:"REFERRALMESH_MATCHER_PROVIDER"`
	Model    string `yaml:"model" env:"REFERRALMESH_MATCHER_MODEL"`

	// APIKey overrides the provider SDK's own environment lookup.
	APIKey string `yaml:"-" env:"REFERRALMESH_MATCHER_API_KEY"`

	// MaxCalls bounds model calls per process (0 = unlimited).
	MaxCalls int `yaml:"max_calls" env:"REFERRALMESH_MATCHER_MAX_CALLS"`

	// CacheSize is the number of cached model decisions.
	CacheSize int `yaml:"cache_size" env:"REFERRALMESH_MATCHER_CACHE_SIZE"`

	// Timeout replaces MatchTimeout as the watchdog of each decision when
	// Kind is "model".
	Timeout time.Duration `yaml:"timeout" env:"REFERRALMESH_MATCHER_TIMEOUT"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		QueryTimeout: 10 * time.Second,
		HopTimeout:   2 * time.Second,
		DumpTimeout:  time.Second,
		MatchTimeout: 250 * time.Millisecond,
		InboxSize:    64,
		JournalSize:  10000,
		SelfTest: SelfTestConfig{
			Enabled:         true,
			QueriesPerAgent: 25,
			RatePerSecond:   200,
			Timeout:         time.Second,
			Spread:          0.25,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Matcher: MatcherConfig{
			Kind:      MatcherRule,
			Provider:  ProviderAnthropic,
			CacheSize: 1024,
			Timeout:   30 * time.Second,
		},
	}
}

// Load resolves the configuration. An empty path skips the file step; a
// path that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RuleTimeout returns the watchdog applied to a single matcher decision.
// Model decisions are network round-trips and use Matcher.Timeout.
func (c *Config) RuleTimeout() time.Duration {
	if c.Matcher.Kind == MatcherModel {
		return c.Matcher.Timeout
	}
	return c.MatchTimeout
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	positive("query_timeout", c.QueryTimeout)
	positive("hop_timeout", c.HopTimeout)
	positive("dump_timeout", c.DumpTimeout)
	positive("match_timeout", c.MatchTimeout)

	if c.InboxSize < 0 {
		errs = append(errs, fmt.Errorf("inbox_size must not be negative, got %d", c.InboxSize))
	}
	if c.Tolerance < 0 || c.Tolerance > 1 {
		errs = append(errs, fmt.Errorf("tolerance must be within [0, 1], got %g", c.Tolerance))
	}
	if c.SelfTest.Enabled {
		positive("self_test.timeout", c.SelfTest.Timeout)
		if c.SelfTest.QueriesPerAgent < 0 {
			errs = append(errs, fmt.Errorf("self_test.queries_per_agent must not be negative, got %d", c.SelfTest.QueriesPerAgent))
		}
		if c.SelfTest.RatePerSecond < 0 {
			errs = append(errs, fmt.Errorf("self_test.rate_per_second must not be negative, got %g", c.SelfTest.RatePerSecond))
		}
	}
	switch c.Matcher.Kind {
	case MatcherRule:
	case MatcherModel:
		if c.Matcher.Provider != ProviderAnthropic && c.Matcher.Provider != ProviderOpenAI {
			errs = append(errs, fmt.Errorf("matcher.provider %q is not supported", c.Matcher.Provider))
		}
		positive("matcher.timeout", c.Matcher.Timeout)
	default:
		errs = append(errs, fmt.Errorf("matcher.kind %q is not supported", c.Matcher.Kind))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not supported", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
