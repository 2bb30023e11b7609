// Package config provides loading and parsing of the engine's YAML
// configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/surfaceguard/engine/quota"
)

// Config is the engine configuration, normally loaded from a YAML file.
// Every field has a usable default: an empty Config runs the engine with
// in-memory storage, no queue, and no breach lookups.
type Config struct {
	// Database configures persistent storage.
	Database DatabaseConfig `yaml:"database"`

	// Redis configures the scan queue and the shared quota counters.
	// An empty URL disables both; scans then run in-process and quota
	// counters live in the database.
	Redis RedisConfig `yaml:"redis"`

	// Quota configures the breach-lookup quota.
	Quota QuotaConfig `yaml:"quota"`

	// Breach configures the external breach-database client.
	Breach BreachConfig `yaml:"breach"`

	// Probe configures network probe behavior.
	Probe ProbeConfig `yaml:"probe"`

	// Worker configures queue workers.
	Worker WorkerConfig `yaml:"worker"`
}

// DatabaseConfig configures persistent storage.
type DatabaseConfig struct {
	// DSN is the SQLite data source name. An empty DSN selects the
	// in-memory store.
	DSN string `yaml:"dsn,omitempty"`
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string `yaml:"url,omitempty"`

	// Queue is the list key scan jobs are pushed onto.
	// Default: "scans"
	Queue string `yaml:"queue,omitempty"`

	// ConnectTimeout bounds connection establishment.
	// Format: Go duration string (e.g., "5s"). Default: 5s
	ConnectTimeout string `yaml:"connect_timeout,omitempty"`
}

// QuotaConfig configures the breach-lookup quota.
type QuotaConfig struct {
	// DailyLimit is the number of breach lookups each user may perform
	// per UTC day. Default: 2
	DailyLimit int `yaml:"daily_limit,omitempty"`
}

// BreachConfig configures the breach-database client.
type BreachConfig struct {
	// APIKey authenticates against the breach database. Empty disables
	// breach lookups; email scans then report the check as skipped.
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL overrides the breach database endpoint, mainly for tests.
	BaseURL string `yaml:"base_url,omitempty"`
}

// ProbeConfig configures network probe behavior.
type ProbeConfig struct {
	// HTTPTimeout bounds each HTTP probe.
	// Format: Go duration string. Default: 10s
	HTTPTimeout string `yaml:"http_timeout,omitempty"`

	// DNSTimeout bounds each DNS lookup. Default: 5s
	DNSTimeout string `yaml:"dns_timeout,omitempty"`

	// PortTimeout bounds each TCP connect during the port sweep.
	// Default: 2s
	PortTimeout string `yaml:"port_timeout,omitempty"`

	// Ports overrides the scanned port list.
	Ports []int `yaml:"ports,omitempty"`
}

// WorkerConfig configures queue workers.
type WorkerConfig struct {
	// Concurrency is the number of goroutines draining the scan queue.
	// Default: 1
	Concurrency int `yaml:"concurrency,omitempty"`
}

// Load reads and parses the configuration file at path, applying defaults
// and validating the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data, applying defaults and validating
// the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Redis.Queue == "" {
		c.Redis.Queue = "scans"
	}
	if c.Redis.ConnectTimeout == "" {
		c.Redis.ConnectTimeout = "5s"
	}
	if c.Quota.DailyLimit == 0 {
		c.Quota.DailyLimit = quota.DefaultDailyLimit
	}
	if c.Probe.HTTPTimeout == "" {
		c.Probe.HTTPTimeout = "10s"
	}
	if c.Probe.DNSTimeout == "" {
		c.Probe.DNSTimeout = "5s"
	}
	if c.Probe.PortTimeout == "" {
		c.Probe.PortTimeout = "2s"
	}
	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = 1
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Quota.DailyLimit < 0 {
		return fmt.Errorf("quota.daily_limit must be non-negative, got %d", c.Quota.DailyLimit)
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker.concurrency must be at least 1, got %d", c.Worker.Concurrency)
	}
	for _, port := range c.Probe.Ports {
		if port < 1 || port > 65535 {
			return fmt.Errorf("probe.ports contains invalid port %d", port)
		}
	}
	for name, value := range map[string]string{
		"redis.connect_timeout": c.Redis.ConnectTimeout,
		"probe.http_timeout":    c.Probe.HTTPTimeout,
		"probe.dns_timeout":     c.Probe.DNSTimeout,
		"probe.port_timeout":    c.Probe.PortTimeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s is not a valid duration: %q", name, value)
		}
	}
	return nil
}

// GetConnectTimeout returns the parsed Redis connect timeout.
func (c *RedisConfig) GetConnectTimeout() time.Duration {
	d, err := time.ParseDuration(c.ConnectTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetHTTPTimeout returns the parsed HTTP probe timeout.
func (c *ProbeConfig) GetHTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetDNSTimeout returns the parsed DNS lookup timeout.
func (c *ProbeConfig) GetDNSTimeout() time.Duration {
	d, err := time.ParseDuration(c.DNSTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetPortTimeout returns the parsed port connect timeout.
func (c *ProbeConfig) GetPortTimeout() time.Duration {
	d, err := time.ParseDuration(c.PortTimeout)
	if err != nil {
		return 2 * time.Second
	}
	return d
}
