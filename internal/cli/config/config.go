package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/omegaorm/omega/internal/orm/transaction"
)

// FileName is the configuration file looked up in the project directory
const FileName = "omega.yml"

// EnvPrefix prefixes environment overrides, e.g. OMEGA_DATABASE_DSN
const EnvPrefix = "OMEGA"

// Config represents the omega configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	ORM      ORMConfig      `mapstructure:"orm"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver    string `mapstructure:"driver"`
	DSN       string `mapstructure:"dsn"`
	Isolation string `mapstructure:"isolation"`
}

// ORMConfig tunes the entity manager
type ORMConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	LastInsertIDQuery string        `mapstructure:"last_insert_id_query"`
	Rehydrate         bool          `mapstructure:"rehydrate"`
}

// CacheConfig selects the object cache backend
type CacheConfig struct {
	Backend    string        `mapstructure:"backend"`
	Prefix     string        `mapstructure:"prefix"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	Redis      RedisConfig   `mapstructure:"redis"`
}

// RedisConfig locates the Redis server of the redis cache backend
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ServerConfig represents the health and metrics server
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "omega.db")
	v.SetDefault("database.isolation", "default")
	v.SetDefault("orm.max_retries", transaction.DefaultMaxRetries)
	v.SetDefault("orm.retry_backoff", "0s")
	v.SetDefault("orm.last_insert_id_query", "")
	v.SetDefault("orm.rehydrate", false)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.prefix", "omega:")
	v.SetDefault("cache.default_ttl", "1h")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("server.addr", ":9090")
}

// Load loads the configuration from the current directory
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom loads omega.yml (or omega.yaml) from dir. A .env file in dir is
// read into the environment first; OMEGA_* variables override the file.
func LoadFrom(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("omega")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Save writes cfg to path as YAML
func Save(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("database.driver", cfg.Database.Driver)
	v.Set("database.dsn", cfg.Database.DSN)
	v.Set("database.isolation", cfg.Database.Isolation)
	v.Set("orm.max_retries", cfg.ORM.MaxRetries)
	v.Set("orm.retry_backoff", cfg.ORM.RetryBackoff.String())
	v.Set("orm.last_insert_id_query", cfg.ORM.LastInsertIDQuery)
	v.Set("orm.rehydrate", cfg.ORM.Rehydrate)
	v.Set("cache.backend", cfg.Cache.Backend)
	v.Set("cache.prefix", cfg.Cache.Prefix)
	v.Set("cache.default_ttl", cfg.Cache.DefaultTTL.String())
	v.Set("cache.redis.addr", cfg.Cache.Redis.Addr)
	v.Set("cache.redis.db", cfg.Cache.Redis.DB)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.development", cfg.Log.Development)
	v.Set("server.addr", cfg.Server.Addr)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Default returns the configuration used when no file is present
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	_ = v.Unmarshal(&config)
	return &config
}

// Exists reports whether dir holds an omega configuration file
func Exists(dir string) bool {
	for _, name := range []string{"omega.yml", "omega.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// RetryConfig converts the ORM settings into a retry policy
func (c ORMConfig) RetryConfig() *transaction.RetryConfig {
	config := transaction.DefaultRetryConfig()
	config.MaxRetries = c.MaxRetries
	config.BaseBackoff = c.RetryBackoff
	config.Jitter = c.RetryBackoff > 0
	return config
}

// Logger builds the zap logger described by the configuration
func (c LogConfig) Logger() (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, fmt.Errorf("invalid log.level %q: %w", c.Level, err)
	}

	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.ORM.MaxRetries < 0 {
		return fmt.Errorf("orm.max_retries must not be negative, got: %d", cfg.ORM.MaxRetries)
	}
	switch cfg.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got: %s", cfg.Cache.Backend)
	}
	if _, err := transaction.ParseIsolationLevel(cfg.Database.Isolation); err != nil {
		return fmt.Errorf("database.isolation: %w", err)
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}
