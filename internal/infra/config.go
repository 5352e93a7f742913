package infra

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// PairSettings configures one trade pair: its half-open amount and price
// intervals and the per-coin default trade sizes.
type PairSettings struct {
	Base  string `yaml:"base"`
	Quote string `yaml:"quote"`

	AmountMinBase  decimal.Decimal `yaml:"amount_min_base"`
	AmountMaxBase  decimal.Decimal `yaml:"amount_max_base"`
	AmountMinQuote decimal.Decimal `yaml:"amount_min_quote"`
	AmountMaxQuote decimal.Decimal `yaml:"amount_max_quote"`
	PriceMin       decimal.Decimal `yaml:"price_min"`
	PriceMax       decimal.Decimal `yaml:"price_max"`

	DefaultAmountBase  decimal.Decimal `yaml:"default_amount_base"`
	DefaultAmountQuote decimal.Decimal `yaml:"default_amount_quote"`
}

// Config holds all application settings. Secrets are overridden from the
// environment after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Exchange struct {
		Name       string          `yaml:"name"`
		WSURL      string          `yaml:"ws_url"`
		RestURL    string          `yaml:"rest_url"`
		AccessKey  string          `yaml:"access_key"`
		SecretKey  string          `yaml:"secret_key"`
		Passphrase string          `yaml:"passphrase"`
		Fee        decimal.Decimal `yaml:"fee"`
		Pairs      []PairSettings  `yaml:"pairs"`
	} `yaml:"exchange"`

	Stream struct {
		PendingDeltaCap int    `yaml:"pending_delta_cap"`
		GapPolicy       string `yaml:"gap_policy"` // "lenient" or "strict"
		CandleInterval  string `yaml:"candle_interval"`
		CandleLimit     int    `yaml:"candle_limit"`
		UserDataLimit   int    `yaml:"user_data_limit"`
		PingIntervalSec int    `yaml:"ping_interval_sec"`
		ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	} `yaml:"stream"`

	Trading struct {
		// PriceTolerance is the fraction within which a priced trade still
		// counts as a market order.
		PriceTolerance decimal.Decimal `yaml:"price_tolerance"`
	} `yaml:"trading"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies environment
// overrides for secrets, and validates the result.
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Exchange.Name == "" {
		return fmt.Errorf("exchange name is required")
	}
	if c.Exchange.WSURL == "" || (!hasPrefix(c.Exchange.WSURL, "ws://") && !hasPrefix(c.Exchange.WSURL, "wss://")) {
		return fmt.Errorf("invalid exchange WS URL: %s", c.Exchange.WSURL)
	}
	if c.Exchange.RestURL == "" || (!hasPrefix(c.Exchange.RestURL, "http://") && !hasPrefix(c.Exchange.RestURL, "https://")) {
		return fmt.Errorf("invalid exchange REST URL: %s", c.Exchange.RestURL)
	}
	if len(c.Exchange.Pairs) == 0 {
		return fmt.Errorf("at least one trade pair is required")
	}
	for _, p := range c.Exchange.Pairs {
		if p.Base == "" || p.Quote == "" || p.Base == p.Quote {
			return fmt.Errorf("invalid pair %q/%q", p.Base, p.Quote)
		}
	}
	if c.Exchange.Fee.IsNegative() {
		return fmt.Errorf("exchange fee must be non-negative")
	}
	switch c.Stream.GapPolicy {
	case "", "lenient", "strict":
	default:
		return fmt.Errorf("unknown gap policy %q", c.Stream.GapPolicy)
	}
	if c.Stream.PingIntervalSec < 0 || c.Stream.ReadTimeoutSec < 0 {
		return fmt.Errorf("stream ping interval and read timeout must be non-negative")
	}
	if c.Trading.PriceTolerance.IsNegative() {
		return fmt.Errorf("price tolerance must be non-negative")
	}
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv replaces secret values when environment variables are set.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("TRADEDESK_ACCESS_KEY"); key != "" {
		cfg.Exchange.AccessKey = key
	}
	if secret := os.Getenv("TRADEDESK_SECRET_KEY"); secret != "" {
		cfg.Exchange.SecretKey = secret
	}
	if pass := os.Getenv("TRADEDESK_PASSPHRASE"); pass != "" {
		cfg.Exchange.Passphrase = pass
	}
}
