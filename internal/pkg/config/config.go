package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Source    SourceConfig    `mapstructure:"source"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BackendConfig points at the ex-situ REST API.
type BackendConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	PageSize   int    `mapstructure:"page_size"`
	Timeout    int    `mapstructure:"timeout"`
	RPS        int    `mapstructure:"rps"`
	MaxRetries int    `mapstructure:"max_retries"`
	MaxPages   int    `mapstructure:"max_pages"`
}

func (b BackendConfig) TimeoutDuration() time.Duration {
	return time.Duration(b.Timeout) * time.Second
}

// GeocoderConfig configures Mapbox place search. An empty token disables
// search without failing startup.
type GeocoderConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
	RPS     int    `mapstructure:"rps"`
}

// SyncConfig tunes viewport sync sessions.
type SyncConfig struct {
	DebounceMS int     `mapstructure:"debounce_ms"`
	Threshold  float64 `mapstructure:"threshold"`
	Mode       string  `mapstructure:"mode"`
}

// SourceConfig selects where objects are read from: "remote" or "postgres".
type SourceConfig struct {
	Kind string `mapstructure:"kind"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Enabled      bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("backend.base_url", "https://www.exsitu.site")
	v.SetDefault("backend.page_size", 50)
	v.SetDefault("backend.timeout", 15)
	v.SetDefault("backend.rps", 10)
	v.SetDefault("backend.max_retries", 2)
	v.SetDefault("backend.max_pages", 20)
	v.SetDefault("geocoder.token", "")
	v.SetDefault("geocoder.base_url", "https://api.mapbox.com")
	v.SetDefault("geocoder.rps", 5)
	v.SetDefault("sync.debounce_ms", 500)
	v.SetDefault("sync.threshold", 0.1)
	v.SetDefault("sync.mode", "on_demand")
	v.SetDefault("source.kind", "remote")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "exsitu")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "exsitu")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "exsitu-mirror")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_endpoint", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: EXSITU_BACKEND_BASE_URL → backend.base_url
	v.SetEnvPrefix("EXSITU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
// A missing geocoder token is not an error; search reports it at use time.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("backend.base_url must be an absolute URL, got %q", c.Backend.BaseURL))
	}
	if c.Backend.PageSize <= 0 || c.Backend.PageSize > 100 {
		errs = append(errs, fmt.Sprintf("backend.page_size must be 1-100, got %d", c.Backend.PageSize))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, "backend.timeout must be positive")
	}
	if c.Backend.RPS <= 0 {
		errs = append(errs, "backend.rps must be positive")
	}
	if c.Backend.MaxRetries < 0 {
		errs = append(errs, "backend.max_retries must not be negative")
	}
	if c.Backend.MaxPages <= 0 {
		errs = append(errs, "backend.max_pages must be positive")
	}
	if c.Geocoder.RPS <= 0 {
		errs = append(errs, "geocoder.rps must be positive")
	}
	if c.Sync.DebounceMS <= 0 {
		errs = append(errs, "sync.debounce_ms must be positive")
	}
	if c.Sync.Threshold <= 0 {
		errs = append(errs, "sync.threshold must be positive")
	}
	if c.Sync.Mode != "on_demand" && c.Sync.Mode != "eager" {
		errs = append(errs, fmt.Sprintf("sync.mode must be on_demand or eager, got %q", c.Sync.Mode))
	}
	switch c.Source.Kind {
	case "remote":
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("source.kind must be remote or postgres, got %q", c.Source.Kind))
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
