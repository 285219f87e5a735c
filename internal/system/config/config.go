package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Database DatabasesConfig `mapstructure:"database"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Sca      ScaConfig       `mapstructure:"sca"`
	Payments PaymentsConfig  `mapstructure:"payments"`
	Consent  ConsentConfig   `mapstructure:"consent"`
	CORS     CORSConfig      `mapstructure:"cors"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Hostname     string        `mapstructure:"hostname"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabasesConfig holds all database configurations
type DatabasesConfig struct {
	Consent DatabaseConfig `mapstructure:"consent"`
}

// DatabaseConfig holds individual database configuration
type DatabaseConfig struct {
	Type            string        `mapstructure:"type"`
	Hostname        string        `mapstructure:"hostname"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ScaMethod describes a single strong customer authentication method offered
// to PSUs, and the approach it maps to when selected.
type ScaMethod struct {
	AuthenticationType     string `mapstructure:"authentication_type"`
	AuthenticationVersion  string `mapstructure:"authentication_version"`
	AuthenticationMethodID string `mapstructure:"authentication_method_id"`
	Name                   string `mapstructure:"name"`
	MappedApproach         string `mapstructure:"mapped_approach"`
	Description            string `mapstructure:"description"`
	Default                bool   `mapstructure:"default"`
}

// ScaConfig holds strong customer authentication configuration
type ScaConfig struct {
	Required            bool        `mapstructure:"required"`
	SupportedApproaches []string    `mapstructure:"supported_approaches"`
	Methods             []ScaMethod `mapstructure:"methods"`
}

// GetDefaultMethod returns the configured default SCA method, if any.
func (s *ScaConfig) GetDefaultMethod() (ScaMethod, bool) {
	for _, m := range s.Methods {
		if m.Default {
			return m, true
		}
	}
	return ScaMethod{}, false
}

// MethodsForApproach returns all configured methods mapped to the given approach.
func (s *ScaConfig) MethodsForApproach(approach string) []ScaMethod {
	var out []ScaMethod
	for _, m := range s.Methods {
		if m.MappedApproach == approach {
			out = append(out, m)
		}
	}
	return out
}

// IsApproachSupported checks whether the given approach is configured.
func (s *ScaConfig) IsApproachSupported(approach string) bool {
	for _, a := range s.SupportedApproaches {
		if a == approach {
			return true
		}
	}
	return false
}

// PaymentsConfig holds the settlement backend configuration used for
// payment submission and cancellation confirmation.
type PaymentsConfig struct {
	BackendBaseURL     string        `mapstructure:"backend_base_url"`
	SubmissionPath     string        `mapstructure:"submission_path"`
	CancellationPath   string        `mapstructure:"cancellation_path"`
	Timeout            time.Duration `mapstructure:"timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

// ConsentConfig holds consent lifecycle behaviour flags
type ConsentConfig struct {
	// AuthorizeCancellation requires an explicit authorisation sub-flow
	// before a payment consent revocation is settled.
	AuthorizeCancellation bool `mapstructure:"authorize_cancellation"`
	// EnableMultipleRecurringConsent permits more than one active recurring
	// account consent per PSU and client.
	EnableMultipleRecurringConsent bool `mapstructure:"enable_multiple_recurring_consent"`
	// ValidateAccountIDOnRetrieval enables account-level permission checks
	// during account data submission validation.
	ValidateAccountIDOnRetrieval bool `mapstructure:"validate_account_id_on_retrieval"`
	// TenantDomain is appended to PSU identifiers by the identity layer and
	// stripped before ownership comparisons.
	TenantDomain string `mapstructure:"tenant_domain"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

var globalConfig *Config

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default configuration lookup order:
		// 1. ./repository/conf/deployment.yaml (production - relative to binary)
		// 2. ./cmd/server/repository/conf/deployment.yaml (development)
		v.SetConfigName("deployment")
		v.SetConfigType("yaml")
		v.AddConfigPath("./repository/conf")
		v.AddConfigPath("./cmd/server/repository/conf")
		v.AddConfigPath("../repository/conf")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("OB_BERLIN")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	globalConfig = &config
	return &config, nil
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.Consent.Hostname == "" {
		return fmt.Errorf("database hostname is required")
	}

	if config.Database.Consent.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if len(config.Sca.SupportedApproaches) == 0 {
		return fmt.Errorf("at least one supported SCA approach is required")
	}

	defaults := 0
	for _, m := range config.Sca.Methods {
		if m.AuthenticationMethodID == "" {
			return fmt.Errorf("sca method authentication_method_id is required")
		}
		if m.MappedApproach == "" {
			return fmt.Errorf("sca method %s has no mapped approach", m.AuthenticationMethodID)
		}
		if !config.Sca.IsApproachSupported(m.MappedApproach) {
			return fmt.Errorf("sca method %s maps to unsupported approach %s",
				m.AuthenticationMethodID, m.MappedApproach)
		}
		if m.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("only one default SCA method may be configured")
	}

	if config.Payments.BackendBaseURL == "" {
		return fmt.Errorf("payments backend base URL is required")
	}

	return nil
}

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// SetGlobal sets the global configuration (for testing purposes)
func SetGlobal(cfg *Config) {
	globalConfig = cfg
}

// GetDSN returns the database connection string
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		d.User,
		d.Password,
		d.Hostname,
		d.Port,
		d.Database,
	)
}

// GetServerAddress returns the server address in host:port format
func (s *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", s.Hostname, s.Port)
}

// GetSubmissionURL returns the settlement endpoint for submitting a payment.
func (p *PaymentsConfig) GetSubmissionURL(paymentID string) string {
	return fmt.Sprintf("%s/%s/%s", p.BackendBaseURL, p.SubmissionPath, paymentID)
}

// GetCancellationURL returns the settlement endpoint for cancelling a payment.
func (p *PaymentsConfig) GetCancellationURL(paymentID string) string {
	return fmt.Sprintf("%s/%s/%s", p.BackendBaseURL, p.CancellationPath, paymentID)
}
