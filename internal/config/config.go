package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type InstrumentationConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RetentionDays   int     `mapstructure:"retention_days"`
	SamplingRate    float64 `mapstructure:"sampling_rate"`
	BufferSize      int     `mapstructure:"buffer_size"`
	FlushIntervalMs int     `mapstructure:"flush_interval_ms"`
}

type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	Database        DatabaseConfig        `mapstructure:"database"`
	Definitions     DefinitionsConfig     `mapstructure:"definitions"`
	Cache           CacheConfig           `mapstructure:"cache"`
	Notifier        NotifierConfig        `mapstructure:"notifier"`
	Auth            AuthConfig            `mapstructure:"auth"`
	Instrumentation InstrumentationConfig `mapstructure:"instrumentation"`
	Log             LogConfig             `mapstructure:"log"`

	// Roles maps a role name to the capabilities it grants.
	Roles map[string][]string `mapstructure:"roles"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
	Path     string `mapstructure:"path"` // directory for SQLite database files
}

type DefinitionsConfig struct {
	Path string `mapstructure:"path"`
}

type CacheConfig struct {
	LRUSize int `mapstructure:"lru_size"`
}

type NotifierConfig struct {
	TransientTTLSeconds int `mapstructure:"transient_ttl_seconds"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.IsSQLite() {
		return d.Path + "/" + d.Name + ".db"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsSQLite reports whether the sqlite dialect serves this config. Every
// driver other than postgres does.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver != "postgres"
}

// Load reads customfields.yaml from the working directory (or two levels up),
// overlays CUSTOMFIELDS_* environment variables, and applies defaults. A
// missing file is not an error.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path searches
// the default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("customfields")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("../..")
	}

	setDefaults(v)

	v.SetEnvPrefix("customfields")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "customfields")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.path", "./data")
	v.SetDefault("definitions.path", "./definitions")
	v.SetDefault("cache.lru_size", 128)
	v.SetDefault("notifier.transient_ttl_seconds", 30)
	v.SetDefault("auth.jwt_secret", "changeme-secret")
	v.SetDefault("roles", map[string][]string{
		"editor": {"edit_posts"},
	})
	v.SetDefault("instrumentation.enabled", true)
	v.SetDefault("instrumentation.retention_days", 7)
	v.SetDefault("instrumentation.sampling_rate", 1.0)
	v.SetDefault("instrumentation.buffer_size", 500)
	v.SetDefault("instrumentation.flush_interval_ms", 100)
	v.SetDefault("log.level", "info")
}
