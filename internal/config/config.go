package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dsprobe/internal/logger"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config represents the complete service configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Log      logger.Config  `mapstructure:"log"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	CORS         CORSConfig    `mapstructure:"cors"`
}

// CORSConfig represents the CORS configuration
type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// DatabaseConfig represents the diagnosed database target.
// All fields except Port come from the process environment:
// DB_ENDPOINT, DB_USERNAME, DB_PASSWORD, DB_NAME.
type DatabaseConfig struct {
	Endpoint string `mapstructure:"endpoint" validate:"required"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Name     string `mapstructure:"name" validate:"required"`
}

// ProbeConfig represents probing behavior
type ProbeConfig struct {
	// Mode selects the connection lifecycle: "oneshot" opens a fresh
	// connection per probe and re-resolves per request, "pool" resolves
	// once at startup and keeps a pool per address family.
	Mode            string        `mapstructure:"mode" validate:"oneof=oneshot pool"`
	Precheck        bool          `mapstructure:"precheck"`
	PrecheckTimeout time.Duration `mapstructure:"precheck_timeout"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	Pool            PoolConfig    `mapstructure:"pool"`
}

// PoolConfig represents per-family connection pool settings (pool mode only)
type PoolConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// envBindings maps config keys to the environment variables the service
// accepts. Absence of the required database values is a startup fatal.
var envBindings = map[string]string{
	"database.endpoint": "DB_ENDPOINT",
	"database.username": "DB_USERNAME",
	"database.password": "DB_PASSWORD",
	"database.name":     "DB_NAME",
	"server.port":       "PORT",
}

// Load loads service configuration from an optional file and the environment
func Load(path string) (*Config, error) {
	v := viper.New()

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default values for configuration
func setDefaults(config *Config) {
	if config.Server.Port != 0 {
		config.Server.Address = fmt.Sprintf(":%d", config.Server.Port)
	}
	if config.Server.Address == "" {
		config.Server.Address = ":8080"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 30 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 30 * time.Second
	}
	if config.Server.IdleTimeout == 0 {
		config.Server.IdleTimeout = 60 * time.Second
	}

	if config.Database.Port == 0 {
		config.Database.Port = 3306
	}

	if config.Probe.Mode == "" {
		config.Probe.Mode = "oneshot"
	}
	if config.Probe.PrecheckTimeout == 0 {
		config.Probe.PrecheckTimeout = 5 * time.Second
	}
	if config.Probe.ConnectTimeout == 0 {
		config.Probe.ConnectTimeout = 10 * time.Second
	}
	if config.Probe.QueryTimeout == 0 {
		config.Probe.QueryTimeout = 10 * time.Second
	}
	if config.Probe.Pool.MaxOpenConns == 0 {
		config.Probe.Pool.MaxOpenConns = 5
	}
	if config.Probe.Pool.MaxIdleConns == 0 {
		config.Probe.Pool.MaxIdleConns = 2
	}
	if config.Probe.Pool.ConnMaxLifetime == 0 {
		config.Probe.Pool.ConnMaxLifetime = time.Hour
	}

	config.Log.SetDefaults()

	if len(config.Server.CORS.AllowedMethods) == 0 {
		config.Server.CORS.AllowedMethods = []string{"GET", "OPTIONS"}
	}
	if len(config.Server.CORS.AllowedHeaders) == 0 {
		config.Server.CORS.AllowedHeaders = []string{
			"Content-Type", "X-Request-ID",
		}
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if err := validator.New().Struct(config); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) {
			return err
		}
		msgs := make([]string, 0, len(errs))
		for _, fe := range errs {
			msgs = append(msgs, formatError(fe))
		}
		return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
	}

	if err := config.Log.Validate(); err != nil {
		return fmt.Errorf("invalid log config: %w", err)
	}

	return nil
}

// formatError formats a validation error
func formatError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min", "max":
		return fmt.Sprintf("%s is out of range", field)
	default:
		return fmt.Sprintf("%s failed on tag %s", field, fe.Tag())
	}
}
