package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Gateway  GatewayConfig
	Payments PaymentsConfig
	Sweep    SweepConfig
	Security SecurityConfig
	Database DatabaseConfig
	LogLevel string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// GatewayConfig holds payment gateway configuration
type GatewayConfig struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	Shortcode       string
	Passkey         string
	TillNumber      string
	MerchantName    string
	CallbackURL     string
	ConfirmationURL string
	ValidationURL   string
	Timeout         time.Duration
}

// PaymentsConfig holds payment lifecycle configuration
type PaymentsConfig struct {
	QRPaymentTTL time.Duration
	TokenBuffer  time.Duration
	// AllowLinkBeforePaid permits LinkToSale on a QR payment that has not
	// reached Paid yet ("reserve before pay"). Default is false: linking
	// an unpaid payment is rejected.
	AllowLinkBeforePaid bool
}

// SweepConfig holds background sweep intervals
type SweepConfig struct {
	ExpiryInterval  time.Duration
	MatcherInterval time.Duration
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	APIKey string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		Gateway: GatewayConfig{
			BaseURL:         getEnv("GATEWAY_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:     getEnv("GATEWAY_CONSUMER_KEY", ""),
			ConsumerSecret:  getEnv("GATEWAY_CONSUMER_SECRET", ""),
			Shortcode:       getEnv("GATEWAY_SHORTCODE", ""),
			Passkey:         getEnv("GATEWAY_PASSKEY", ""),
			TillNumber:      getEnv("GATEWAY_TILL_NUMBER", ""),
			MerchantName:    getEnv("GATEWAY_MERCHANT_NAME", "POS"),
			CallbackURL:     getEnv("GATEWAY_CALLBACK_URL", ""),
			ConfirmationURL: getEnv("GATEWAY_CONFIRMATION_URL", ""),
			ValidationURL:   getEnv("GATEWAY_VALIDATION_URL", ""),
			Timeout:         parseDuration(getEnv("GATEWAY_TIMEOUT", "30s"), 30*time.Second),
		},
		Payments: PaymentsConfig{
			QRPaymentTTL:        parseDuration(getEnv("QR_PAYMENT_TTL", "30m"), 30*time.Minute),
			TokenBuffer:         parseDuration(getEnv("TOKEN_EXPIRY_BUFFER", "5m"), 5*time.Minute),
			AllowLinkBeforePaid: parseBool(getEnv("PAYMENTS_ALLOW_LINK_BEFORE_PAID", "false"), false),
		},
		Sweep: SweepConfig{
			ExpiryInterval:  parseDuration(getEnv("EXPIRY_SWEEP_INTERVAL", "1m"), 1*time.Minute),
			MatcherInterval: parseDuration(getEnv("MATCHER_SWEEP_INTERVAL", "2m"), 2*time.Minute),
		},
		Security: SecurityConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./db/payments.db"),
		},
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}

	// Validate required fields
	if config.Gateway.ConsumerKey == "" || config.Gateway.ConsumerSecret == "" {
		return nil, fmt.Errorf("GATEWAY_CONSUMER_KEY and GATEWAY_CONSUMER_SECRET are required")
	}
	if config.Gateway.Shortcode == "" {
		return nil, fmt.Errorf("GATEWAY_SHORTCODE is required")
	}
	if config.Gateway.Passkey == "" {
		return nil, fmt.Errorf("GATEWAY_PASSKEY is required")
	}

	return config, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parseBool parses string to bool with default value
func parseBool(value string, defaultValue bool) bool {
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

// parseDuration parses string to time.Duration with default value
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
