// internal/config/config.go
//
// This package handles configuration and the .storefront directory structure.
// Every directory the client runs from gets a .storefront/ folder holding the
// local store, logs and config.yaml.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	// StoreDir is the name of the directory we create in each working directory
	StoreDir = ".storefront"

	DefaultBaseURL     = "https://fakestoreapi.com"
	DefaultTimeout     = 10 * time.Second
	DefaultTaxRate     = "0.10"
	DefaultDeliveryFee = "5.00"
	DefaultLogLevel    = "info"

	DuplicateReject    = "reject"
	DuplicateIncrement = "increment"
)

const defaultProjectConfigYAML = `# storefront client configuration
version: 1

api:
  base_url: https://fakestoreapi.com
  timeout: 10s

pricing:
  tax_rate: "0.10"
  delivery_fee: "5.00"

cart:
  # reject: adding a product already in the cart is a no-op and opens the cart.
  # increment: adding it again bumps the line quantity.
  duplicate_policy: reject

store:
  # Serialize read-modify-write cycles per key. Set false for last-write-wins.
  serialize_writes: true

logging:
  level: info
`

// APIConfig points the client at the catalog/auth REST API.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// PricingConfig holds the rates used by the cart summary.
type PricingConfig struct {
	TaxRate     string `yaml:"tax_rate"`
	DeliveryFee string `yaml:"delivery_fee"`
}

// CartConfig captures cart engine policy.
type CartConfig struct {
	DuplicatePolicy string `yaml:"duplicate_policy"`
}

// StoreConfig captures local store behavior.
type StoreConfig struct {
	SerializeWrites *bool `yaml:"serialize_writes,omitempty"`
}

// LoggingConfig controls the zap log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ProjectConfig models .storefront/config.yaml.
type ProjectConfig struct {
	Version int           `yaml:"version"`
	API     APIConfig     `yaml:"api"`
	Pricing PricingConfig `yaml:"pricing"`
	Cart    CartConfig    `yaml:"cart"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// Config holds the runtime configuration for the client.
type Config struct {
	// ProjectDir is the directory the client was started from
	ProjectDir string

	// StoreProjectDir is ProjectDir/.storefront
	StoreProjectDir string

	Project ProjectConfig
}

// InitStoreDir creates the .storefront directory structure in the given directory.
//
// Structure created:
// .storefront/
// ├── config.yaml
// ├── state/   <- one JSON file per local store key
// ├── orders/  <- one markdown receipt per placed order
// └── logs/    <- storefront.log (zap) and activity.log
func InitStoreDir(projectDir string) error {
	root := filepath.Join(projectDir, StoreDir)
	dirs := []string{
		filepath.Join(root, "state"),
		filepath.Join(root, "orders"),
		filepath.Join(root, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(root, "config.yaml"))
}

// NewConfig creates a Config populated from .storefront/config.yaml and the
// STOREFRONT_* environment overrides.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:      projectDir,
		StoreProjectDir: filepath.Join(projectDir, StoreDir),
		Project:         defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StateDir returns the directory backing the local key-value store.
func (c *Config) StateDir() string {
	return filepath.Join(c.StoreProjectDir, "state")
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.StoreProjectDir, "logs")
}

// OrdersDir holds the archived receipts. It sits outside state/ so checkout's
// store wipe leaves it alone.
func (c *Config) OrdersDir() string {
	return filepath.Join(c.StoreProjectDir, "orders")
}

// LogPath is the zap JSON log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), "storefront.log")
}

// ActivityLogPath is the human-readable activity journal.
func (c *Config) ActivityLogPath() string {
	return filepath.Join(c.LogsDir(), "activity.log")
}

// ProjectConfigPath returns the on-disk location for the config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StoreProjectDir, "config.yaml")
}

// TaxRate returns the parsed tax rate. Values are validated at load time.
func (c *Config) TaxRate() decimal.Decimal {
	return decimal.RequireFromString(c.Project.Pricing.TaxRate)
}

// DeliveryFee returns the parsed flat delivery fee.
func (c *Config) DeliveryFee() decimal.Decimal {
	return decimal.RequireFromString(c.Project.Pricing.DeliveryFee)
}

// SerializeWrites reports whether store mutations are serialized per key.
func (c *Config) SerializeWrites() bool {
	if c.Project.Store.SerializeWrites == nil {
		return true
	}
	return *c.Project.Store.SerializeWrites
}

// DuplicatePolicy returns the configured duplicate-add policy.
func (c *Config) DuplicatePolicy() string {
	return c.Project.Cart.DuplicatePolicy
}

// SetDuplicatePolicy updates the duplicate-add policy and persists it back to
// .storefront/config.yaml.
func (c *Config) SetDuplicatePolicy(policy string) error {
	c.Project.Cart.DuplicatePolicy = policy
	return c.saveProjectConfig()
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if value := strings.TrimSpace(os.Getenv("STOREFRONT_API_URL")); value != "" {
		c.Project.API.BaseURL = value
	}
	if value := strings.TrimSpace(os.Getenv("STOREFRONT_API_TIMEOUT")); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			c.Project.API.Timeout = d
		} else if secs, err := strconv.Atoi(value); err == nil {
			c.Project.API.Timeout = time.Duration(secs) * time.Second
		}
	}
	if value := strings.TrimSpace(os.Getenv("STOREFRONT_LOG_LEVEL")); value != "" {
		c.Project.Logging.Level = value
	}
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func defaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{}
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.API.BaseURL) == "" {
		pc.API.BaseURL = DefaultBaseURL
	}
	if pc.API.Timeout == 0 {
		pc.API.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(pc.Pricing.TaxRate) == "" {
		pc.Pricing.TaxRate = DefaultTaxRate
	}
	if strings.TrimSpace(pc.Pricing.DeliveryFee) == "" {
		pc.Pricing.DeliveryFee = DefaultDeliveryFee
	}
	if strings.TrimSpace(pc.Cart.DuplicatePolicy) == "" {
		pc.Cart.DuplicatePolicy = DuplicateReject
	}
	if strings.TrimSpace(pc.Logging.Level) == "" {
		pc.Logging.Level = DefaultLogLevel
	}
}

func (pc *ProjectConfig) normalize() {
	pc.API.BaseURL = strings.TrimRight(strings.TrimSpace(pc.API.BaseURL), "/")
	pc.Pricing.TaxRate = strings.TrimSpace(pc.Pricing.TaxRate)
	pc.Pricing.DeliveryFee = strings.TrimSpace(pc.Pricing.DeliveryFee)
	pc.Cart.DuplicatePolicy = strings.ToLower(strings.TrimSpace(pc.Cart.DuplicatePolicy))
	pc.Logging.Level = strings.ToLower(strings.TrimSpace(pc.Logging.Level))
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	parsed, err := url.Parse(pc.API.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL")
	}
	if pc.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if err := validateAmount("pricing.tax_rate", pc.Pricing.TaxRate); err != nil {
		return err
	}
	if err := validateAmount("pricing.delivery_fee", pc.Pricing.DeliveryFee); err != nil {
		return err
	}
	switch pc.Cart.DuplicatePolicy {
	case DuplicateReject, DuplicateIncrement:
	default:
		return fmt.Errorf("cart.duplicate_policy must be '%s' or '%s'", DuplicateReject, DuplicateIncrement)
	}
	switch pc.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	return nil
}

func validateAmount(field, value string) error {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%s must not be negative", field)
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.StoreProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure store dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
