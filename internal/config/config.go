package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`

	Server struct {
		Addr         string        `mapstructure:"addr"`
		CORSOrigins  []string      `mapstructure:"cors_origins"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"server"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
	Store struct {
		Driver     string `mapstructure:"driver"`
		SQLitePath string `mapstructure:"sqlite_path"`
	} `mapstructure:"store"`
	DB struct {
		URL      string `mapstructure:"url"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Oracle struct {
		APIKey     string        `mapstructure:"api_key"`
		Project    string        `mapstructure:"project"`
		Location   string        `mapstructure:"location"`
		BaseURL    string        `mapstructure:"base_url"`
		ProModel   string        `mapstructure:"pro_model"`
		FlashModel string        `mapstructure:"flash_model"`
		Timeout    time.Duration `mapstructure:"timeout"`
	} `mapstructure:"oracle"`
	Worker struct {
		Concurrency     int           `mapstructure:"concurrency"`
		QueueSize       int           `mapstructure:"queue_size"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"worker"`
	Auth struct {
		Enabled      bool   `mapstructure:"enabled"`
		Issuer       string `mapstructure:"issuer"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		RedirectURL  string `mapstructure:"redirect_url"`
	} `mapstructure:"auth"`
	Telemetry struct {
		OTLPEndpoint   string        `mapstructure:"otlp_endpoint"`
		Insecure       bool          `mapstructure:"insecure"`
		ExportInterval time.Duration `mapstructure:"export_interval"`
	} `mapstructure:"telemetry"`
}

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("tls.hostnames", []string{"localhost"})
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.sqlite_path", "timelines.db")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.name", "timelines")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("oracle.location", "global")
	v.SetDefault("oracle.pro_model", "gemini-2.5-pro")
	v.SetDefault("oracle.flash_model", "gemini-2.5-flash")
	v.SetDefault("oracle.timeout", time.Duration(0))
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queue_size", 64)
	v.SetDefault("worker.shutdown_timeout", 30*time.Second)
	v.SetDefault("telemetry.export_interval", 30*time.Second)
}

// keys without a default are invisible to Unmarshal unless bound explicitly
var envOnlyKeys = []string{
	"tls.enable", "tls.cert_file", "tls.key_file",
	"db.url", "db.password",
	"oracle.api_key", "oracle.project", "oracle.base_url",
	"auth.enabled", "auth.issuer", "auth.client_id", "auth.client_secret", "auth.redirect_url",
	"telemetry.otlp_endpoint", "telemetry.insecure",
}

// LoadConfig loads the configuration from a file and the environment.
// An empty path searches for config.yaml in "." and "./config"; a missing
// file is not an error in that case.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TIMELINES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// normalize issuer url (strip trailing slash if any)
	config.Auth.Issuer = normalizeIssuer(config.Auth.Issuer)
	config.Store.Driver = strings.ToLower(strings.TrimSpace(config.Store.Driver))

	return &config, nil
}

// Validate checks the settings needed to serve requests.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be positive")
	}
	if c.Worker.QueueSize <= 0 {
		return errors.New("worker.queue_size must be positive")
	}
	if c.Oracle.APIKey == "" && c.Oracle.Project == "" {
		return errors.New("oracle.api_key is required unless oracle.project selects Vertex AI")
	}
	if c.Auth.Enabled && (c.Auth.Issuer == "" || c.Auth.ClientID == "") {
		return errors.New("auth.issuer and auth.client_id are required when auth is enabled")
	}
	return nil
}

// DatabaseURL returns db.url when set, otherwise a postgres URL built from the parts.
func (c *Config) DatabaseURL() string {
	if c.DB.URL != "" {
		return c.DB.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     fmt.Sprintf("%s:%d", c.DB.Host, c.DB.Port),
		Path:     "/" + c.DB.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.DB.SSLMode),
	}
	return u.String()
}

// normalizeIssuer removes any trailing slash so the value matches the
// issuer claim the provider advertises.
func normalizeIssuer(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}
