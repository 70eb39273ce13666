// Package config loads the service configuration. Values come from an
// optional YAML file, overridden by UPLOADS_ prefixed environment
// variables, so containerized deployments can run file-free.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	APIHost         string        `mapstructure:"api_host"`
	DebugHost       string        `mapstructure:"debug_host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds the postgres connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// DSN returns the connection string for the database.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// SignerConfig holds the upload permission signing settings.
type SignerConfig struct {
	StoreURL      string        `mapstructure:"store_url"`
	Secret        string        `mapstructure:"secret"`
	Issuer        string        `mapstructure:"issuer"`
	Bucket        string        `mapstructure:"bucket"`
	PermissionTTL time.Duration `mapstructure:"permission_ttl"`
	SignRPS       float64       `mapstructure:"sign_rps"`
	SignBurst     int           `mapstructure:"sign_burst"`
}

// TelemetryConfig holds the OpenTelemetry exporter settings.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	ServiceName string  `mapstructure:"service_name"`
}

// Config is the root configuration for the service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Signer    SignerConfig    `mapstructure:"signer"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// Load reads configuration from the given file path (empty for none) and
// the environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("UPLOADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Signer.Secret == "" {
		return nil, fmt.Errorf("signer secret is required")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.api_host", "0.0.0.0:8080")
	v.SetDefault("server.debug_host", "0.0.0.0:4000")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "20s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "uploads")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "uploads")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 16)

	v.SetDefault("signer.store_url", "http://localhost:9000")
	v.SetDefault("signer.secret", "")
	v.SetDefault("signer.issuer", "upload-armada")
	v.SetDefault("signer.bucket", "uploads")
	v.SetDefault("signer.permission_ttl", "15m")
	v.SetDefault("signer.sign_rps", 200)
	v.SetDefault("signer.sign_burst", 50)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.sample_rate", 0.1)
	v.SetDefault("telemetry.service_name", "upload-armada-api")
}
