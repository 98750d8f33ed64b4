package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Forest   ForestConfig   `mapstructure:"forest"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ForestConfig holds the settings shared with the Forest Admin project.
type ForestConfig struct {
	EnvSecret            string   `mapstructure:"env_secret"`
	AuthSecret           string   `mapstructure:"auth_secret"`
	ServerURL            string   `mapstructure:"server_url"`
	SchemaFile           string   `mapstructure:"schema_file"`
	SendApimapOnStart    bool     `mapstructure:"send_apimap_on_start"`
	PermissionExpiration int      `mapstructure:"permission_expiration"` // seconds
	TablePrefix          string   `mapstructure:"table_prefix"`
	CorsOrigins          []string `mapstructure:"cors_origins"`
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

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or console
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path + "/" + d.Name + ".db"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

// Validate checks the settings required to talk to Forest Admin.
func (c *Config) Validate() error {
	if c.Forest.EnvSecret == "" {
		return errors.New("forest.env_secret is required")
	}
	if c.Forest.AuthSecret == "" {
		return errors.New("forest.auth_secret is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	// empty defaults so AutomaticEnv picks these up during Unmarshal
	v.SetDefault("forest.env_secret", "")
	v.SetDefault("forest.auth_secret", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("log.file", "")
	v.SetDefault("forest.server_url", "https://api.forestadmin.com")
	v.SetDefault("forest.schema_file", ".forestadmin-schema.json")
	v.SetDefault("forest.send_apimap_on_start", true)
	v.SetDefault("forest.permission_expiration", 3600)
	v.SetDefault("forest.table_prefix", "")
	v.SetDefault("forest.cors_origins", []string{"https://app.forestadmin.com"})
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.path", "./data")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
}

// Load reads forest.yaml (optional) and the environment. FOREST_ENV_SECRET
// overrides forest.env_secret, DATABASE_HOST overrides database.host, etc.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("forest")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

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
