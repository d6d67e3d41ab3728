package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	NATS          NATSConfig          `mapstructure:"nats"`
	Auth          AuthConfig          `mapstructure:"auth"`
	CORS          CORSConfig          `mapstructure:"cors"`
	RateLimit     RateLimitConfig     `mapstructure:"ratelimit"`
	Logger        LoggerConfig        `mapstructure:"logger"`
	Classifier    ClassifierConfig    `mapstructure:"classifier"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
	Sweep         SweepConfig         `mapstructure:"sweep"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Schema          string        `mapstructure:"schema"`
	MigrateOnStart  bool          `mapstructure:"migrate_on_start"`
}

// DSN returns the pgx connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&search_path=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode, c.Schema,
	)
}

// MigrationURL returns the connection string in the form golang-migrate's pgx/v5 driver expects
func (c DatabaseConfig) MigrationURL() string {
	return "pgx5" + strings.TrimPrefix(c.DSN(), "postgres")
}

type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	Enabled    bool               `mapstructure:"enabled"`
	URL        string             `mapstructure:"url"`
	StreamName string             `mapstructure:"stream_name"`
	Subjects   NATSSubjectsConfig `mapstructure:"subjects"`
}

type NATSSubjectsConfig struct {
	// Alerts is the subject prefix alerts are published under
	Alerts string `mapstructure:"alerts"`
	// Inbound carries live SMS events from the device bridge
	Inbound string `mapstructure:"inbound"`
}

type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

// ClassifierConfig holds the tunable rule inputs of the threat classifier
type ClassifierConfig struct {
	Keywords       []string `mapstructure:"keywords"`
	SuspiciousTLDs []string `mapstructure:"suspicious_tlds"`
	RedirectParams []string `mapstructure:"redirect_params"`
	PortMinDigits  int      `mapstructure:"port_min_digits"`
	PortMaxDigits  int      `mapstructure:"port_max_digits"`
	MaxURLLength   int      `mapstructure:"max_url_length"`
}

type IngestConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

type SweepConfig struct {
	// Enabled and FrequencyDays seed the persisted scan settings until a user changes them
	Enabled       bool          `mapstructure:"enabled"`
	FrequencyDays int           `mapstructure:"frequency_days"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
}

type NotificationsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultClassifierConfig returns the stock rule inputs
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Keywords: []string{
			"login", "verify", "reset", "unlock", "confirm", "update", "password",
			"secure", "account", "urgent", "alert", "important", "gift", "win", "free",
		},
		SuspiciousTLDs: []string{
			".tk", ".ml", ".ga", ".cf", ".gq", ".xyz", ".top", ".loan", ".support", ".click",
		},
		RedirectParams: []string{"redirect=", "redir=", "url=", "goto="},
		PortMinDigits:  2,
		PortMaxDigits:  5,
		MaxURLLength:   150,
	}
}

// Defaults returns a fully populated configuration for an embedded SQLite deployment
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Unmarshalling pure defaults cannot fail
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "linkguard")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "0.1.0")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.sqlite_path", "linkguard.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "linkguard")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "linkguard")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.schema", "public")
	v.SetDefault("database.migrate_on_start", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "linkguard:")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.stream_name", "LINKGUARD_ALERTS")
	v.SetDefault("nats.subjects.alerts", "linkguard.alerts")
	v.SetDefault("nats.subjects.inbound", "linkguard.sms.received")

	v.SetDefault("auth.api_keys", []string{})

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requests_per_minute", 120)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.time_format", time.RFC3339)

	classifier := DefaultClassifierConfig()
	v.SetDefault("classifier.keywords", classifier.Keywords)
	v.SetDefault("classifier.suspicious_tlds", classifier.SuspiciousTLDs)
	v.SetDefault("classifier.redirect_params", classifier.RedirectParams)
	v.SetDefault("classifier.port_min_digits", classifier.PortMinDigits)
	v.SetDefault("classifier.port_max_digits", classifier.PortMaxDigits)
	v.SetDefault("classifier.max_url_length", classifier.MaxURLLength)

	v.SetDefault("ingest.queue_size", 256)

	v.SetDefault("sweep.enabled", false)
	v.SetDefault("sweep.frequency_days", 1)
	v.SetDefault("sweep.check_interval", time.Minute)
	v.SetDefault("sweep.lock_ttl", 10*time.Minute)

	v.SetDefault("notifications.enabled", true)
}

// Load reads configuration from a .env file, the config file and environment variables.
// A missing config file is tolerated when no explicit path is given.
func Load(configPath string) (*Config, error) {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/linkguard")
	}

	v.SetEnvPrefix("LINKGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDefault loads configuration with default search paths
func LoadDefault() (*Config, error) {
	return Load("")
}

// Validate rejects configurations the services cannot start with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == DriverSQLite && c.Database.SQLitePath == "" {
		return errors.New("database.sqlite_path is required for the sqlite driver")
	}
	if c.Ingest.QueueSize <= 0 {
		return fmt.Errorf("ingest.queue_size must be positive, got %d", c.Ingest.QueueSize)
	}
	if c.Classifier.PortMinDigits > c.Classifier.PortMaxDigits {
		return fmt.Errorf("classifier.port_min_digits (%d) exceeds port_max_digits (%d)",
			c.Classifier.PortMinDigits, c.Classifier.PortMaxDigits)
	}
	return nil
}
