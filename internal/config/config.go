// Package config loads process configuration from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/validation"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Logging  LoggingConfig  `koanf:"logging"`
	Ledger   LedgerConfig   `koanf:"ledger"`
	Security SecurityConfig `koanf:"security"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	Environment     string        `koanf:"environment" validate:"oneof=development production test"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects and configures the store backend.
type DatabaseConfig struct {
	// Driver is postgres or memory. The memory store keeps everything in
	// process and is meant for development and tests.
	Driver         string        `koanf:"driver" validate:"oneof=postgres memory"`
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port" validate:"gte=1,lte=65535"`
	User           string        `koanf:"user"`
	Password       string        `koanf:"password"`
	Name           string        `koanf:"name"`
	SSLMode        string        `koanf:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns       int32         `koanf:"max_conns" validate:"gte=1"`
	MinConns       int32         `koanf:"min_conns" validate:"gte=0"`
	ConnectRetries int           `koanf:"connect_retries" validate:"gte=1"`
	RetryDelay     time.Duration `koanf:"retry_delay" validate:"gte=0"`
	ApplySchema    bool          `koanf:"apply_schema"`
}

// DSN builds a libpq-compatible connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// LedgerConfig tunes the core operations.
type LedgerConfig struct {
	// CheckInLead is how long before start_time attendance may be marked.
	CheckInLead     time.Duration `koanf:"check_in_lead" validate:"gte=0"`
	DefaultPageSize int           `koanf:"default_page_size" validate:"gte=1"`
	MaxPageSize     int           `koanf:"max_page_size" validate:"gte=1"`
}

// SecurityConfig controls tenant resolution and request shaping.
type SecurityConfig struct {
	// JWTSecret, when set, makes a bearer token carrying a college_id claim
	// mandatory for tenant-scoped routes. Otherwise X-College-ID is trusted.
	JWTSecret         string        `koanf:"jwt_secret"`
	AdminAPIKey       string        `koanf:"admin_api_key"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"gte=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// Validate checks field rules and cross-field constraints.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}
	if c.Database.Driver == "postgres" && (c.Database.Host == "" || c.Database.Name == "") {
		return fmt.Errorf("database.host and database.name are required for the postgres driver")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) exceeds database.max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Ledger.DefaultPageSize > c.Ledger.MaxPageSize {
		return fmt.Errorf("ledger.default_page_size (%d) exceeds ledger.max_page_size (%d)", c.Ledger.DefaultPageSize, c.Ledger.MaxPageSize)
	}
	if c.Server.Environment == "production" && c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters in production")
	}
	return nil
}
