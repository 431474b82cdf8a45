package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// Config holds the main configuration for the application.
type Config struct {
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
	Storage    Storage    `mapstructure:"storage"`
	Kafka      Kafka      `mapstructure:"kafka"`
	Retry      Retry      `mapstructure:"retry"`
	Generation Generation `mapstructure:"generation"`
	History    History    `mapstructure:"history"`
	Export     Export     `mapstructure:"export"`
	Cache      Cache      `mapstructure:"cache"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort        string        `mapstructure:"http_port"` // HTTP address to listen on
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Database holds database master and slave configuration.
// An empty master host disables the image repository.
type Database struct {
	Master DatabaseNode   `mapstructure:"master"`
	Slaves []DatabaseNode `mapstructure:"slaves"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"` // apply embedded migrations on startup
}

// DatabaseNode holds connection parameters for a single database node.
type DatabaseNode struct {
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	User    string `mapstructure:"user"`
	Pass    string `mapstructure:"pass"`
	Name    string `mapstructure:"name"`
	SSLMode string `mapstructure:"ssl_mode"`
}

// Storage holds configuration for the object storage backend.
// An empty endpoint keeps every image as a data URL.
type Storage struct {
	Endpoint   string        `mapstructure:"endpoint"`
	AccessKey  string        `mapstructure:"access_key"`
	SecretKey  string        `mapstructure:"secret_key"`
	BucketName string        `mapstructure:"bucket_name"`
	UseSSL     bool          `mapstructure:"use_ssl"`
	PublicURL  string        `mapstructure:"public_url"` // base URL of a public bucket, presigned URLs otherwise
	URLExpiry  time.Duration `mapstructure:"url_expiry"`

	// TrustedHosts may be downloaded from even when they resolve to a private address.
	TrustedHosts []string `mapstructure:"trusted_hosts"`
}

// Hosts returns the hosts image URLs may point to on a private network: the
// endpoint, the public URL host and TrustedHosts.
func (s Storage) Hosts() []string {
	hosts := make([]string, 0, len(s.TrustedHosts)+2)
	if s.Endpoint != "" {
		hosts = append(hosts, s.Endpoint)
	}
	if u, err := url.Parse(s.PublicURL); err == nil && u.Host != "" {
		hosts = append(hosts, u.Host)
	}
	return append(hosts, s.TrustedHosts...)
}

// Kafka holds configuration for the export batch topic.
// Without brokers batches are processed in-process.
type Kafka struct {
	GroupID string   `mapstructure:"group_id"` // Consumer group ID
	Topic   string   `mapstructure:"topic"`    // Kafka topic name
	Brokers []string `mapstructure:"brokers"`  // List of Kafka broker addresses
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// Generation configures the image-generation client.
// Without an API key the mock generator is used.
type Generation struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retry   Retry         `mapstructure:"retry"`
}

// History configures the undo/redo stack of each session.
type History struct {
	MaxDepth    int           `mapstructure:"max_depth"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

// Export configures the export queue.
type Export struct {
	JobTimeout       time.Duration `mapstructure:"job_timeout"`
	FilenameTemplate string        `mapstructure:"filename_template"`
}

// Cache configures the local project cache.
type Cache struct {
	Path         string `mapstructure:"path"`
	MaxRevisions int    `mapstructure:"max_revisions"`
}

// DSN returns the PostgreSQL DSN string for connecting to this database node.
func (n DatabaseNode) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		n.User, n.Pass, n.Host, n.Port, n.Name, n.SSLMode,
	)
}

// setDefaults registers the values used when neither the file nor the
// environment provides one.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", ":8080")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("database.master.port", "5432")
	v.SetDefault("database.master.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.bucket_name", "nano-editor")
	v.SetDefault("storage.url_expiry", 24*time.Hour)

	v.SetDefault("kafka.topic", "export-batches")
	v.SetDefault("kafka.group_id", "nano-editor")

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", time.Second)
	v.SetDefault("retry.backoff", 2.0)

	v.SetDefault("generation.model", "gemini-2.5-flash-image-preview")
	v.SetDefault("generation.timeout", 2*time.Minute)
	v.SetDefault("generation.retry.attempts", 3)
	v.SetDefault("generation.retry.delay", time.Second)
	v.SetDefault("generation.retry.backoff", 2.0)

	v.SetDefault("history.max_depth", 500)
	v.SetDefault("history.min_interval", 150*time.Millisecond)

	v.SetDefault("export.job_timeout", 2*time.Minute)
	v.SetDefault("export.filename_template", "{name}-{index}.{format}")

	v.SetDefault("cache.path", "./data/projects.json")
	v.SetDefault("cache.max_revisions", 20)
}

// mustBindEnv binds critical environment variables to Viper keys.
//
// It panics if any environment variable cannot be bound.
func mustBindEnv(v *viper.Viper) {
	bindings := map[string]string{
		"database.master.host": "DB_HOST",
		"database.master.port": "DB_PORT",
		"database.master.user": "DB_USER",
		"database.master.pass": "DB_PASSWORD",
		"database.master.name": "DB_NAME",
		"storage.endpoint":     "STORAGE_ENDPOINT",
		"storage.access_key":   "STORAGE_ACCESS_KEY",
		"storage.secret_key":   "STORAGE_SECRET_KEY",
		"generation.api_key":   "GEMINI_API_KEY",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			zlog.Logger.Panic().Err(err).Msgf("failed to bind env %s", env)
		}
	}
}

// Load reads the configuration from the YAML file at path. A missing file is
// not an error: defaults and the environment still apply. Variables from a
// .env file in the working directory fill the environment without overriding it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setDefaults(v)
	mustBindEnv(v)

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
			zlog.Logger.Warn().Str("path", path).Msg("config file not found, using defaults")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads the configuration from the specified file path.
// It panics if the configuration cannot be read or unmarshaled.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to load config")
	}

	return cfg
}
