// ABOUTME: Service configuration loaded from defaults, an optional file, .env and CELLSYNC_ env vars
// ABOUTME: Defaults to a local SQLite database under the XDG data directory
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. CELLSYNC_DATABASE_DSN.
const EnvPrefix = "CELLSYNC"

// Config is the full service configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	HTTP     HTTPConfig     `mapstructure:"http" validate:"required"`
	Composio ComposioConfig `mapstructure:"composio"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Log      LogConfig      `mapstructure:"log"`
	Identity IdentityConfig `mapstructure:"identity"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite3 sqlite"`
	DSN    string `mapstructure:"dsn" validate:"required"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

type ComposioConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RedisConfig enables cross-process cell locks when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// KafkaConfig enables sync events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic" validate:"required_with=Brokers"`
}

type SyncConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" validate:"gt=0"`
	LockWait     time.Duration `mapstructure:"lock_wait" validate:"gt=0"`
	LockTTL      time.Duration `mapstructure:"lock_ttl" validate:"gt=0"`
}

// IdentityConfig is who local CLI and MCP calls act as when they do not name a user.
type IdentityConfig struct {
	UserID string `mapstructure:"user_id"`
	OrgID  string `mapstructure:"org_id"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=auto json console"`
}

// DefaultDatabasePath is where the local SQLite database lives.
func DefaultDatabasePath() string {
	return filepath.Join(xdg.DataHome, "cellsync", "cellsync.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", DefaultDatabasePath())
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("composio.base_url", "https://backend.composio.dev")
	v.SetDefault("composio.api_key", "")
	v.SetDefault("composio.timeout", 30*time.Second)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "cellsync.events")
	v.SetDefault("sync.fetch_timeout", 60*time.Second)
	v.SetDefault("sync.lock_wait", 10*time.Second)
	v.SetDefault("sync.lock_ttl", 2*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("identity.user_id", "")
	v.SetDefault("identity.org_id", "")
}

// Load reads configuration. configFile may be empty, in which case cellsync.yaml
// is looked up in the working directory and the XDG config directory.
func Load(configFile string) (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("cellsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, "cellsync"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DriverName returns the database/sql driver name for the configured database.
func (c DatabaseConfig) DriverName() string {
	if c.Driver == "sqlite" {
		return "sqlite3"
	}
	return c.Driver
}
