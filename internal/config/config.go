package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Defaults
const (
	DefaultProviderURL         = "http://127.0.0.1:1248"
	DefaultConfirmationTimeout = 3 * time.Minute
	DefaultReceiptPoll         = 2 * time.Second
	DefaultEventPoll           = 2 * time.Second
)

// Config holds wallet daemon configuration
type Config struct {
	// Wallet provider (EIP-1193 style JSON-RPC endpoint)
	ProviderURL string

	// Token contract
	TokenAddress string

	// Expected chain; 0 disables the wrong-network warning
	ExpectedChainID int64

	// Confirmation and polling
	ConfirmationTimeout time.Duration
	ReceiptPollInterval time.Duration
	EventPollInterval   time.Duration

	// Optional transfer journal
	PostgresDSN string

	// Server
	Port             int
	RateLimitEnabled bool
	RateLimitRPS     int
	RateLimitBurst   int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ProviderURL:         getEnv("PROVIDER_URL", DefaultProviderURL),
		TokenAddress:        getEnv("TOKEN_ADDRESS", ""),
		ExpectedChainID:     getEnvInt64("EXPECTED_CHAIN_ID", 0),
		ConfirmationTimeout: getEnvDuration("CONFIRMATION_TIMEOUT", DefaultConfirmationTimeout),
		ReceiptPollInterval: getEnvDuration("RECEIPT_POLL_INTERVAL", DefaultReceiptPoll),
		EventPollInterval:   getEnvDuration("EVENT_POLL_INTERVAL", DefaultEventPoll),
		PostgresDSN:         getEnv("POSTGRES_DSN", ""),
		Port:                getEnvInt("PORT", 8080),
		RateLimitEnabled:    getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitRPS:        getEnvInt("RATE_LIMIT_RPS", 20),
		RateLimitBurst:      getEnvInt("RATE_LIMIT_BURST", 40),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.TokenAddress == "" {
		return fmt.Errorf("TOKEN_ADDRESS is required")
	}

	if !common.IsHexAddress(c.TokenAddress) {
		return fmt.Errorf("TOKEN_ADDRESS must be a hex address, got: %s", c.TokenAddress)
	}

	if c.ExpectedChainID < 0 {
		return fmt.Errorf("EXPECTED_CHAIN_ID must not be negative")
	}

	// A bounded wait is mandatory; 2-5 minutes is the sensible range for most chains
	if c.ConfirmationTimeout <= 0 {
		return fmt.Errorf("CONFIRMATION_TIMEOUT must be positive")
	}

	if c.ReceiptPollInterval <= 0 || c.EventPollInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got: %d", c.Port)
	}

	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}

	return nil
}

// ExpectedChain returns the expected chain id, or nil when unset
func (c *Config) ExpectedChain() *int64 {
	if c.ExpectedChainID == 0 {
		return nil
	}
	id := c.ExpectedChainID
	return &id
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvInt64 gets an int64 environment variable with a default value
func getEnvInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration accepts Go durations ("90s", "3m") or plain seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	valueStr = strings.ToLower(valueStr)
	return valueStr == "true" || valueStr == "1" || valueStr == "yes"
}
