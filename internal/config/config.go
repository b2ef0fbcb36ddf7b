// Package config loads settings from the environment and an optional YAML
// file. Precedence: defaults, then the file, then the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration errors.
var (
	ErrMissingCredentials = errors.New("missing shopify credentials")
	ErrInvalidRate        = errors.New("invalid rate limit")
)

// Defaults.
const (
	DefaultAPIVersion  = "2024-10"
	DefaultRateLimit   = 4.0
	DefaultRateBurst   = 4
	DefaultCallTimeout = 30 * time.Second
	DefaultOutput      = "file://./output"
)

// Ledger holds the SurrealDB run ledger connection. An empty URL disables
// the ledger.
type Ledger struct {
	URL       string
	Namespace string
	Database  string
	User      string
	Pass      string
	AuthLevel string
}

// Config holds all configuration values.
type Config struct {
	// Shopify
	Shop        string
	AccessToken string
	APIVersion  string

	// Pacing
	RateLimit   float64
	RateBurst   int
	CallTimeout time.Duration

	// Output
	Output       string
	OutputPrefix string
	OutputGzip   bool
	MetricsFile  string

	// Logging
	LogFile  string
	LogLevel slog.Level

	Ledger Ledger

	// Run content, file only
	Variants       map[string]string
	InvoiceMessage string
	CustomerTags   []string
}

// Defaults returns the configuration before the file and the environment
// are applied.
func Defaults() Config {
	return Config{
		APIVersion:  DefaultAPIVersion,
		RateLimit:   DefaultRateLimit,
		RateBurst:   DefaultRateBurst,
		CallTimeout: DefaultCallTimeout,
		Output:      DefaultOutput,
		LogFile:     filepath.Join(os.TempDir(), "undftd.log"),
		LogLevel:    slog.LevelInfo,
		Ledger: Ledger{
			Namespace: "undftd",
			Database:  "runs",
			User:      "root",
			Pass:      "root",
			AuthLevel: "root",
		},
		Variants: map[string]string{},
	}
}

// Load reads configuration from environment variables.
func Load() Config {
	cfg := Defaults()
	cfg.applyEnv()
	return cfg
}

// LoadFile reads the YAML file at path, then applies the environment on
// top. An empty path behaves like Load.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := cfg.applyFile(fc); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// Validate rejects configurations no command can run with.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Shop) == "" {
		missing = append(missing, "SHOPIFY_SHOP")
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		missing = append(missing, "SHOPIFY_ACCESS_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: set %s", ErrMissingCredentials, strings.Join(missing, " and "))
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("%w: rate must be positive, got %g", ErrInvalidRate, c.RateLimit)
	}
	if c.RateBurst <= 0 {
		return fmt.Errorf("%w: burst must be positive, got %d", ErrInvalidRate, c.RateBurst)
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("call timeout must not be negative, got %s", c.CallTimeout)
	}
	return nil
}

// LedgerEnabled reports whether runs are recorded in the ledger.
func (c Config) LedgerEnabled() bool {
	return c.Ledger.URL != ""
}

type fileLedger struct {
	URL       string `yaml:"url"`
	Namespace string `yaml:"namespace"`
	Database  string `yaml:"database"`
	User      string `yaml:"user"`
	Pass      string `yaml:"pass"`
	AuthLevel string `yaml:"auth_level"`
}

type fileConfig struct {
	Shop           string            `yaml:"shop"`
	AccessToken    string            `yaml:"access_token"`
	APIVersion     string            `yaml:"api_version"`
	RateLimit      *float64          `yaml:"rate_limit"`
	RateBurst      *int              `yaml:"rate_burst"`
	CallTimeout    string            `yaml:"call_timeout"`
	Output         string            `yaml:"output"`
	OutputPrefix   string            `yaml:"output_prefix"`
	OutputGzip     *bool             `yaml:"output_gzip"`
	MetricsFile    string            `yaml:"metrics_file"`
	LogFile        string            `yaml:"log_file"`
	LogLevel       string            `yaml:"log_level"`
	Ledger         fileLedger        `yaml:"ledger"`
	Variants       map[string]string `yaml:"variants"`
	InvoiceMessage string            `yaml:"invoice_message"`
	CustomerTags   []string          `yaml:"customer_tags"`
}

func (c *Config) applyFile(fc fileConfig) error {
	setString(&c.Shop, fc.Shop)
	setString(&c.AccessToken, fc.AccessToken)
	setString(&c.APIVersion, fc.APIVersion)
	if fc.RateLimit != nil {
		c.RateLimit = *fc.RateLimit
	}
	if fc.RateBurst != nil {
		c.RateBurst = *fc.RateBurst
	}
	if fc.CallTimeout != "" {
		d, err := time.ParseDuration(fc.CallTimeout)
		if err != nil {
			return fmt.Errorf("call_timeout: %w", err)
		}
		c.CallTimeout = d
	}
	setString(&c.Output, fc.Output)
	setString(&c.OutputPrefix, fc.OutputPrefix)
	if fc.OutputGzip != nil {
		c.OutputGzip = *fc.OutputGzip
	}
	setString(&c.MetricsFile, fc.MetricsFile)
	setString(&c.LogFile, fc.LogFile)
	if fc.LogLevel != "" {
		c.LogLevel = parseLogLevel(fc.LogLevel)
	}

	setString(&c.Ledger.URL, fc.Ledger.URL)
	setString(&c.Ledger.Namespace, fc.Ledger.Namespace)
	setString(&c.Ledger.Database, fc.Ledger.Database)
	setString(&c.Ledger.User, fc.Ledger.User)
	setString(&c.Ledger.Pass, fc.Ledger.Pass)
	setString(&c.Ledger.AuthLevel, fc.Ledger.AuthLevel)

	for size, id := range fc.Variants {
		c.Variants[strings.TrimSpace(size)] = strings.TrimSpace(id)
	}
	setString(&c.InvoiceMessage, fc.InvoiceMessage)
	if len(fc.CustomerTags) > 0 {
		c.CustomerTags = fc.CustomerTags
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Shop = getEnv("SHOPIFY_SHOP", c.Shop)
	c.AccessToken = getEnv("SHOPIFY_ACCESS_TOKEN", c.AccessToken)
	c.APIVersion = getEnv("SHOPIFY_API_VERSION", c.APIVersion)

	c.RateLimit = parseFloat(getEnv("UNDFTD_RATE_LIMIT", ""), c.RateLimit)
	c.RateBurst = parseInt(getEnv("UNDFTD_RATE_BURST", ""), c.RateBurst)
	c.CallTimeout = parseDuration(getEnv("UNDFTD_CALL_TIMEOUT", ""), c.CallTimeout)

	c.Output = getEnv("UNDFTD_OUTPUT", c.Output)
	c.OutputPrefix = getEnv("UNDFTD_OUTPUT_PREFIX", c.OutputPrefix)
	if v := getEnv("UNDFTD_OUTPUT_GZIP", ""); v != "" {
		c.OutputGzip = v == "true" || v == "1"
	}
	c.MetricsFile = getEnv("UNDFTD_METRICS_FILE", c.MetricsFile)

	c.LogFile = getEnv("UNDFTD_LOG_FILE", c.LogFile)
	if v := getEnv("UNDFTD_LOG_LEVEL", ""); v != "" {
		c.LogLevel = parseLogLevel(v)
	}

	c.Ledger.URL = getEnv("UNDFTD_LEDGER_URL", c.Ledger.URL)
	c.Ledger.Namespace = getEnv("UNDFTD_LEDGER_NAMESPACE", c.Ledger.Namespace)
	c.Ledger.Database = getEnv("UNDFTD_LEDGER_DATABASE", c.Ledger.Database)
	c.Ledger.User = getEnv("UNDFTD_LEDGER_USER", c.Ledger.User)
	c.Ledger.Pass = getEnv("UNDFTD_LEDGER_PASS", c.Ledger.Pass)
	c.Ledger.AuthLevel = getEnv("UNDFTD_LEDGER_AUTH_LEVEL", c.Ledger.AuthLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Unparseable numbers keep the previous value.
func parseFloat(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		slog.Warn("ignoring invalid number", "value", s, "error", err)
		return fallback
	}
	return v
}

func parseInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		slog.Warn("ignoring invalid integer", "value", s, "error", err)
		return fallback
	}
	return v
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		slog.Warn("ignoring invalid duration", "value", s, "error", err)
		return fallback
	}
	return v
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
