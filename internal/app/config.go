package app

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/kelseyhightower/envconfig"

	"github.com/famledger/famledger/internal/kdf"
	"github.com/famledger/famledger/internal/ledger"
	"github.com/famledger/famledger/internal/platform/db"
	"github.com/famledger/famledger/internal/shared"
)

// Config holds runtime configuration for the bridge and the terminal client.
type Config struct {
	AppEnv string `envconfig:"APP_ENV" default:"development"`

	BridgeAddr           string        `envconfig:"BRIDGE_ADDR" default:"127.0.0.1:7420"`
	BridgeReadTimeout    time.Duration `envconfig:"BRIDGE_READ_TIMEOUT" default:"15s"`
	BridgeWriteTimeout   time.Duration `envconfig:"BRIDGE_WRITE_TIMEOUT" default:"30s"`
	BridgeRequestTimeout time.Duration `envconfig:"BRIDGE_REQUEST_TIMEOUT" default:"30s"`
	BridgeToken          string        `envconfig:"BRIDGE_TOKEN"`
	BridgeRateLimit      int           `envconfig:"BRIDGE_RATE_LIMIT" default:"600"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	LedgerPath         string   `envconfig:"LEDGER_PATH" default:"famledger.db"`
	LedgerAccountTypes []string `envconfig:"LEDGER_ACCOUNT_TYPES" default:"cash,card,bank,deposit"`
	LedgerCurrency     string   `envconfig:"LEDGER_CURRENCY" default:"USD"`

	KDFMemoryKiB   uint32 `envconfig:"KDF_MEMORY_KIB" default:"65536"`
	KDFTimeCost    uint32 `envconfig:"KDF_TIME_COST" default:"3"`
	KDFParallelism uint8  `envconfig:"KDF_PARALLELISM" default:"4"`
	KDFKeySize     uint32 `envconfig:"KDF_KEY_SIZE" default:"32"`
	KDFSaltSize    uint32 `envconfig:"KDF_SALT_SIZE" default:"16"`
}

// LoadConfig reads configuration from environment variables and validates it.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w: %v", shared.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints. All failures are configuration
// errors.
func (c *Config) Validate() error {
	if err := c.KDFParams().Validate(); err != nil {
		return err
	}
	if c.KDFKeySize != db.KeySize {
		return fmt.Errorf("config: KDF_KEY_SIZE must be %d for store keys: %w", db.KeySize, shared.ErrConfiguration)
	}
	if _, err := c.AccountTypes(); err != nil {
		return err
	}
	if money.GetCurrency(strings.ToUpper(c.LedgerCurrency)) == nil {
		return fmt.Errorf("config: unknown currency %q: %w", c.LedgerCurrency, shared.ErrConfiguration)
	}
	if err := requireLoopback(c.BridgeAddr); err != nil {
		return err
	}
	if c.BridgeRateLimit <= 0 {
		return fmt.Errorf("config: BRIDGE_RATE_LIMIT must be positive: %w", shared.ErrConfiguration)
	}
	return nil
}

// KDFParams returns the configured Argon2id parameters.
func (c *Config) KDFParams() kdf.Params {
	return kdf.Params{
		MemoryKiB:   c.KDFMemoryKiB,
		TimeCost:    c.KDFTimeCost,
		Parallelism: c.KDFParallelism,
		KeySize:     c.KDFKeySize,
		SaltSize:    c.KDFSaltSize,
	}
}

// AccountTypes returns the configured account type set.
func (c *Config) AccountTypes() (ledger.AccountTypes, error) {
	return ledger.NewAccountTypes(c.LedgerAccountTypes...)
}

// Currency returns the display currency code.
func (c *Config) Currency() string {
	return strings.ToUpper(c.LedgerCurrency)
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

func requireLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("config: BRIDGE_ADDR %q: %w: %v", addr, shared.ErrConfiguration, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("config: BRIDGE_ADDR %q is not a loopback address: %w", addr, shared.ErrConfiguration)
	}
	return nil
}
