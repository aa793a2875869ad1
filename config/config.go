package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Account declares one exchange connection feeding a group.
type Account struct {
	Name              string `yaml:"name,omitempty"`
	Exchange          string `yaml:"exchange"`
	Group             string `yaml:"group"`
	ValuationCurrency string `yaml:"valuation_currency"`
	APIKeyEnv         string `yaml:"api_key_env"`
	APISecretEnv      string `yaml:"api_secret_env"`
	AccountAddressEnv string `yaml:"account_address_env,omitempty"`
	Derivatives       bool   `yaml:"derivatives,omitempty"`
	Fund              bool   `yaml:"fund,omitempty"`
	PushUpdates       bool   `yaml:"push_updates,omitempty"`
	PollIntervalStr   string `yaml:"poll_interval,omitempty"`

	// resolved from the env vars and duration strings above
	APIKey         string        `yaml:"-"`
	APISecret      string        `yaml:"-"`
	AccountAddress string        `yaml:"-"`
	PollInterval   time.Duration `yaml:"-"`
}

// Telegram configures the chat notifier sink; empty token disables it.
type Telegram struct {
	TokenEnv string `yaml:"token_env"`
	ChatID   int64  `yaml:"chat_id"`

	Token string `yaml:"-"`
}

// Sheets configures the spreadsheet logger sink; empty spreadsheet id
// disables it.
type Sheets struct {
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	Range           string `yaml:"range,omitempty"`
	Schedule        string `yaml:"schedule,omitempty"`
}

type Config struct {
	Accounts []Account `yaml:"accounts"`
	Telegram Telegram  `yaml:"telegram,omitempty"`
	Sheets   Sheets    `yaml:"sheets,omitempty"`
}

// Get loads configuration from the yaml file named by --config.
func Get() (*Config, error) {
	path := flag.String("config", "config.yaml", "path to yaml config")
	flag.Parse()
	return FromFile(*path)
}

// FromFile loads and validates a yaml config, resolving credentials
// from the environment.
func FromFile(path string) (*Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(f)
}

// Parse decodes and validates raw yaml config bytes.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode yaml config: %w", err)
	}

	if len(cfg.Accounts) == 0 {
		return nil, fmt.Errorf("config declares no accounts")
	}

	for i := range cfg.Accounts {
		if err := cfg.Accounts[i].resolve(); err != nil {
			return nil, fmt.Errorf("account %d: %w", i, err)
		}
	}

	if cfg.Telegram.TokenEnv != "" {
		cfg.Telegram.Token = os.Getenv(cfg.Telegram.TokenEnv)
		if cfg.Telegram.Token == "" {
			return nil, fmt.Errorf("telegram token env %s is not set", cfg.Telegram.TokenEnv)
		}
	}

	return &cfg, nil
}

// Validate checks a single account declaration. A bad account is fatal
// for that connection only; callers decide how to isolate it.
func (a *Account) Validate() error {
	switch a.Exchange {
	case "binance", "bybit", "hyperliquid":
	case "":
		return fmt.Errorf("exchange is required")
	default:
		return fmt.Errorf("unsupported exchange %q", a.Exchange)
	}
	if a.Group == "" {
		return fmt.Errorf("group is required")
	}
	if a.ValuationCurrency == "" {
		return fmt.Errorf("valuation_currency is required")
	}
	if a.Exchange == "hyperliquid" {
		if a.AccountAddress == "" {
			return fmt.Errorf("account address env %s is not set", a.AccountAddressEnv)
		}
		return nil
	}
	if a.APIKey == "" || a.APISecret == "" {
		return fmt.Errorf("credentials envs %s/%s are not set", a.APIKeyEnv, a.APISecretEnv)
	}
	return nil
}

// ConnectionID identifies one account connection inside its group.
// Several accounts may share an exchange and a group (sub-accounts of
// one logical account), so the declaration index keeps their aggregator
// contributions disjoint when no explicit name is given.
func (a *Account) ConnectionID(index int) string {
	if a.Name != "" {
		return a.Name
	}
	return fmt.Sprintf("%s/%s/%d", a.Exchange, a.Group, index)
}

func (a *Account) resolve() error {
	if a.APIKeyEnv != "" {
		a.APIKey = os.Getenv(a.APIKeyEnv)
	}
	if a.APISecretEnv != "" {
		a.APISecret = os.Getenv(a.APISecretEnv)
	}
	if a.AccountAddressEnv != "" {
		a.AccountAddress = os.Getenv(a.AccountAddressEnv)
	}
	if a.PollIntervalStr != "" {
		d, err := time.ParseDuration(a.PollIntervalStr)
		if err != nil {
			return fmt.Errorf("invalid poll_interval %q: %w", a.PollIntervalStr, err)
		}
		a.PollInterval = d
	}
	if a.PollInterval == 0 {
		a.PollInterval = 5 * time.Second
	}
	return nil
}
