// Package infra holds cross-cutting plumbing: configuration, logging,
// backoff, rate limiting and the circuit breaker.
package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yomolify/bt-ccxt-store/internal/domain"
)

// Config holds all application settings. Secrets may be overridden via
// environment variables after the file is loaded.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode     string `yaml:"mode"`     // PAPER or REAL
		Currency string `yaml:"currency"` // account currency, e.g. USDT
	} `yaml:"trading"`

	Gateway struct {
		RestURL         string  `yaml:"rest_url"`
		WSURL           string  `yaml:"ws_url"` // optional private order stream
		AccessKey       string  `yaml:"access_key"`
		SecretKey       string  `yaml:"secret_key"`
		Passphrase      string  `yaml:"passphrase"`
		RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
		Burst           int     `yaml:"burst"`
	} `yaml:"gateway"`

	Broker struct {
		CadenceSec int `yaml:"cadence_sec"`
		Workers    int `yaml:"workers"`
		QueueSize  int `yaml:"queue_size"`

		// Exchange-specific overrides for order-type names and for the
		// fields that mark an order closed/canceled.
		OrderTypes map[string]string     `yaml:"order_types"`
		Mappings   domain.StatusMappings `yaml:"mappings"`
	} `yaml:"broker"`

	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"journal"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file, applies environment
// overrides, fills defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Trading.Mode == "" {
		c.Trading.Mode = "PAPER"
	}
	if c.Trading.Currency == "" {
		c.Trading.Currency = "USDT"
	}
	if c.Broker.CadenceSec == 0 {
		c.Broker.CadenceSec = 30
	}
	if c.Broker.Workers == 0 {
		c.Broker.Workers = 4
	}
	if c.Broker.QueueSize == 0 {
		c.Broker.QueueSize = 64
	}
	if c.Gateway.RateLimitPerSec == 0 {
		c.Gateway.RateLimitPerSec = 10
	}
	if c.Gateway.Burst == 0 {
		c.Gateway.Burst = 5
	}
	if c.Broker.Mappings.ClosedOrder.Key == "" {
		c.Broker.Mappings.ClosedOrder = domain.DefaultStatusMappings().ClosedOrder
	}
	if c.Broker.Mappings.CanceledOrder.Key == "" {
		c.Broker.Mappings.CanceledOrder = domain.DefaultStatusMappings().CanceledOrder
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	mode := strings.ToUpper(c.Trading.Mode)
	if mode != "PAPER" && mode != "REAL" {
		return fmt.Errorf("unknown trading mode: %s", c.Trading.Mode)
	}

	if mode == "REAL" {
		if !hasPrefix(c.Gateway.RestURL, "http://") && !hasPrefix(c.Gateway.RestURL, "https://") {
			return fmt.Errorf("invalid gateway REST URL: %s", c.Gateway.RestURL)
		}
		if c.Gateway.AccessKey == "" || c.Gateway.SecretKey == "" {
			return fmt.Errorf("gateway credentials are required in REAL mode")
		}
	}

	if c.Gateway.WSURL != "" && !hasPrefix(c.Gateway.WSURL, "ws://") && !hasPrefix(c.Gateway.WSURL, "wss://") {
		return fmt.Errorf("invalid gateway WS URL: %s", c.Gateway.WSURL)
	}

	if c.Broker.CadenceSec <= 0 {
		return fmt.Errorf("cadence must be positive")
	}
	if c.Broker.Workers <= 0 || c.Broker.QueueSize <= 0 {
		return fmt.Errorf("workers and queue size must be positive")
	}

	if c.Broker.Mappings.ClosedOrder.Key == "" || c.Broker.Mappings.CanceledOrder.Key == "" {
		return fmt.Errorf("status mappings must name a key for closed_order and canceled_order")
	}

	return nil
}

// OrderTypeTable converts the configured order-type names into the
// domain table, falling back to the defaults for unspecified types.
func (c *Config) OrderTypeTable() (domain.OrderTypeTable, error) {
	tbl := domain.DefaultOrderTypes()
	for name, exchangeType := range c.Broker.OrderTypes {
		et, err := domain.ParseExecType(name)
		if err != nil {
			return nil, err
		}
		tbl[et] = exchangeType
	}
	return tbl, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv applies environment variables over file values.
// Environment wins so that secrets can stay out of the config file.
func overrideWithEnv(cfg *Config) {
	if cfg.Gateway.SecretKey != "" {
		fmt.Println("⚠️  SECURITY WARNING: API secret found in config file.")
		fmt.Println("   Recommendation: use environment variables instead:")
		fmt.Println("   - CCXT_ACCESS_KEY, CCXT_SECRET_KEY, CCXT_PASSPHRASE")
	}

	if key := os.Getenv("CCXT_ACCESS_KEY"); key != "" {
		cfg.Gateway.AccessKey = key
	}
	if secret := os.Getenv("CCXT_SECRET_KEY"); secret != "" {
		cfg.Gateway.SecretKey = secret
	}
	if pass := os.Getenv("CCXT_PASSPHRASE"); pass != "" {
		cfg.Gateway.Passphrase = pass
	}
}
