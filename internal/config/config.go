package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/shopspring/decimal"

	"github.com/openpayments/genesis-payment-service/internal/domain/ports"
)

// Config holds all application configuration.
type Config struct {
	Env      string         `env:"APP_ENV" env-default:"production"`
	Server   ServerConfig   `env-prefix:"SERVER_"`
	Metrics  MetricsConfig  `env-prefix:"METRICS_"`
	Database DatabaseConfig `env-prefix:"DB_"`
	Gateway  GatewayConfig  `env-prefix:"GENESIS_"`
	Kafka    KafkaConfig    `env-prefix:"KAFKA_"`
	Logger   LoggerConfig   `env-prefix:"LOG_"`
	Redirect RedirectConfig `env-prefix:"REDIRECT_"`

	// PublicBaseURL is the externally reachable base URL used to build the
	// notification and return URLs handed to the gateway.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" env-default:"http://localhost:8080"`

	// AllowedCurrencies is the global currency allow list; methods without
	// allow_specific_currency fall back to it.
	AllowedCurrencies []string `env:"ALLOWED_CURRENCIES" env-default:"USD,EUR,GBP"`

	// MethodsFile points at the per-payment-method YAML configuration.
	MethodsFile string `env:"METHODS_CONFIG_PATH" env-default:"configs/methods.yaml"`

	// AdminAPIKey protects the capture/refund/void REST surface.
	AdminAPIKey string `env:"ADMIN_API_KEY"`

	methods map[string]*MethodConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string `env:"HOST" env-default:"0.0.0.0"`
	Port            int    `env:"PORT" env-default:"8080"`
	RateLimitPerSec int    `env:"RATE_LIMIT" env-default:"10"`
	RateLimitBurst  int    `env:"RATE_BURST" env-default:"20"`
}

// MetricsConfig holds the observability server configuration.
type MetricsConfig struct {
	Port int `env:"PORT" env-default:"9090"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string `env:"HOST" env-default:"localhost"`
	Port     int    `env:"PORT" env-default:"5432"`
	User     string `env:"USER" env-default:"postgres"`
	Password string `env:"PASSWORD"`
	Database string `env:"NAME" env-default:"genesis_payments"`
	SSLMode  string `env:"SSL_MODE" env-default:"disable"`
	MaxConns int32  `env:"MAX_CONNS" env-default:"25"`
	MinConns int32  `env:"MIN_CONNS" env-default:"5"`
}

// GatewayConfig holds Genesis gateway endpoints. Test-mode methods are routed
// to the staging hosts.
type GatewayConfig struct {
	GatewayURL        string `env:"GATEWAY_URL" env-default:"https://gate.emerchantpay.net"`
	WPFURL            string `env:"WPF_URL" env-default:"https://wpf.emerchantpay.net"`
	StagingGatewayURL string `env:"STAGING_GATEWAY_URL" env-default:"https://staging.gate.emerchantpay.net"`
	StagingWPFURL     string `env:"STAGING_WPF_URL" env-default:"https://staging.wpf.emerchantpay.net"`
	TimeoutSeconds    int    `env:"TIMEOUT" env-default:"30"`
}

// KafkaConfig holds the payment-events publisher configuration.
type KafkaConfig struct {
	Enabled bool     `env:"ENABLED" env-default:"false"`
	Brokers []string `env:"BROKERS" env-default:"localhost:9092"`
	Topic   string   `env:"TOPIC" env-default:"payment-events"`
}

// RedirectConfig holds the storefront URLs customers land on after the
// gateway sends them back.
type RedirectConfig struct {
	SuccessURL string `env:"SUCCESS_URL" env-default:"/checkout/success"`
	CancelURL  string `env:"CANCEL_URL" env-default:"/checkout/cancel"`
	FailureURL string `env:"FAILURE_URL" env-default:"/checkout/failure"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level       string `env:"LEVEL" env-default:"info"`
	Development bool   `env:"DEVELOPMENT" env-default:"false"`
}

// MethodConfig is the store-scoped configuration of one payment method.
type MethodConfig struct {
	Code                         string   `yaml:"code"`
	Active                       bool     `yaml:"active"`
	Title                        string   `yaml:"title"`
	Username                     string   `yaml:"username"`
	Password                     string   `yaml:"password"`
	Token                        string   `yaml:"token"`
	TransactionTypes             []string `yaml:"transaction_types"`
	OrderStatus                  string   `yaml:"order_status"`
	TestMode                     bool     `yaml:"test_mode"`
	Tokenization                 bool     `yaml:"tokenization"`
	AllowSpecificCurrency        bool     `yaml:"allow_specific_currency"`
	SpecificCurrencies           []string `yaml:"specific_currencies"`
	ThreedsAllowed               bool     `yaml:"threeds_allowed"`
	ThreedsChallengeIndicator    string   `yaml:"threeds_challenge_indicator"`
	ScaExemption                 string   `yaml:"sca_exemption"`
	ScaExemptionAmount           string   `yaml:"sca_exemption_amount"`
	IframeProcessingEnabled      bool     `yaml:"iframe_processing_enabled"`
	MultiCurrencyProcessing      bool     `yaml:"multi_currency_processing"`
	PaymentConfirmationEmail     bool     `yaml:"payment_confirmation_email_enabled"`
	BankCodes                    []string `yaml:"bank_codes"`
}

// methodsFile is the on-disk shape of the methods YAML.
type methodsFile struct {
	Methods []*MethodConfig `yaml:"methods"`
}

// Load reads service configuration from the environment and the methods file.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	var mf methodsFile
	if err := cleanenv.ReadConfig(cfg.MethodsFile, &mf); err != nil {
		return nil, fmt.Errorf("read methods config %s: %w", cfg.MethodsFile, err)
	}

	cfg.methods = make(map[string]*MethodConfig, len(mf.Methods))
	for _, m := range mf.Methods {
		if m.Code == "" {
			return nil, fmt.Errorf("methods config: entry without code")
		}
		cfg.methods[m.Code] = m
	}

	return cfg, nil
}

// Method returns the configuration for a method code, or nil when unknown.
func (c *Config) Method(code string) *MethodConfig {
	return c.methods[code]
}

// SetMethod registers a method configuration. Used by tests.
func (c *Config) SetMethod(m *MethodConfig) {
	if c.methods == nil {
		c.methods = make(map[string]*MethodConfig)
	}
	c.methods[m.Code] = m
}

// IsCurrencyAllowed reports whether the method accepts the currency: against
// its specific list when allow_specific_currency is on, against the global
// allow list otherwise. Unknown methods accept nothing.
func (c *Config) IsCurrencyAllowed(methodCode, currency string) bool {
	m := c.methods[methodCode]
	if m == nil {
		return false
	}

	list := c.AllowedCurrencies
	if m.AllowSpecificCurrency {
		list = m.SpecificCurrencies
	}
	for _, cur := range list {
		if strings.EqualFold(cur, currency) {
			return true
		}
	}
	return false
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// IsAPIAvailable reports whether the method can reach the gateway: it must be
// active and carry credentials and at least one selected transaction type.
// Missing configuration makes the method unavailable without raising errors.
func (m *MethodConfig) IsAPIAvailable() bool {
	if m == nil {
		return false
	}
	return m.Active && m.Username != "" && m.Password != "" && len(m.TransactionTypes) > 0
}

// Credentials resolves the method's gateway credentials for a single call.
func (m *MethodConfig) Credentials() ports.Credentials {
	return ports.Credentials{
		Username: m.Username,
		Password: m.Password,
		Token:    m.Token,
		TestMode: m.TestMode,
	}
}

// ScaExemptionDecimal parses the configured SCA exemption amount, defaulting
// to zero on malformed values.
func (m *MethodConfig) ScaExemptionDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(m.ScaExemptionAmount)
	if err != nil {
		return decimal.Zero
	}
	return d
}
