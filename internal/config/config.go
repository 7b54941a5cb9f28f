package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

// Config holds the configuration for the profilehub server and its dependencies.
type Config struct {
	// Listen is the address the HTTP server will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// Gzip enables gzip compression for API responses.
	Gzip bool `yaml:"gzip" mapstructure:"gzip"`
	// Database holds the database configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Storage holds the configuration of the uploaded file storage.
	Storage *StorageConfig `yaml:"storage" mapstructure:"storage"`
	// Password holds the password hashing configuration.
	Password *PasswordConfig `yaml:"password" mapstructure:"password"`
	// CORS holds the cross-origin configuration.
	CORS *CORSConfig `yaml:"cors" mapstructure:"cors"`
	// Cache holds the profile cache configuration.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// Driver selects the database backend ("sqlite" or "postgres").
	Driver DatabaseDriver `yaml:"driver" mapstructure:"driver"`
	// Path is the path to the sqlite database file.
	Path string `yaml:"path" mapstructure:"path"`
	// DSN is the postgres connection string.
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// StorageConfig holds the configuration of the uploaded file storage.
type StorageConfig struct {
	// Type is the storage backend ("local" or "s3").
	Type StorageType `yaml:"type" mapstructure:"type"`
	// Dir is the directory uploads are written to when using the local backend.
	Dir string `yaml:"dir" mapstructure:"dir"`
	// S3 holds the S3 backend configuration.
	S3 *S3Config `yaml:"s3" mapstructure:"s3"`
}

// S3Config holds the configuration for an S3 compatible object store.
type S3Config struct {
	Bucket       string `yaml:"bucket" mapstructure:"bucket"`
	Region       string `yaml:"region" mapstructure:"region"`
	Endpoint     string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey    string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey    string `yaml:"secret_key" mapstructure:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style" mapstructure:"use_path_style"`
}

// PasswordConfig holds the password hashing configuration.
type PasswordConfig struct {
	// Cost is the bcrypt cost factor.
	Cost int `yaml:"cost" mapstructure:"cost"`
}

// CORSConfig holds the cross-origin configuration.
type CORSConfig struct {
	// AllowedOrigins lists the allowed origins. "*" allows every origin.
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// AllowsAll reports whether every origin is allowed.
func (c *CORSConfig) AllowsAll() bool {
	if c == nil || len(c.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// CacheConfig holds the configuration for the profile cache.
type CacheConfig struct {
	// Enabled indicates whether profile responses are cached.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Type is the type of cache engine to use (e.g., "memory", "redis").
	Type CacheType `yaml:"type" mapstructure:"type"`
	// RedisURL is the address of the redis server if using redis.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	// TTL is how long a cached profile stays valid.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
// A missing config file is not an error, defaults and environment variables are used instead.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("PROFILEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// the s3 section has no defaults, so automatic env doesn't pick it up
	bindNestedEnv(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.profilehub")
		v.AddConfigPath("/etc/profilehub")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Debug("No config file found, using defaults and environment")
	} else {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:8000")
	v.SetDefault("gzip", true)

	v.SetDefault("database.driver", DatabaseDriverSQLite)
	v.SetDefault("database.path", "./data/profilehub.db")
	v.SetDefault("database.dsn", "")

	v.SetDefault("storage.type", StorageTypeLocal)
	v.SetDefault("storage.dir", "uploads")

	v.SetDefault("password.cost", bcrypt.DefaultCost)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.type", CacheTypeMemory)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 5*time.Minute)
}

func bindNestedEnv(v *viper.Viper) {
	v.MustBindEnv("storage.s3.bucket", "PROFILEHUB_STORAGE_S3_BUCKET")
	v.MustBindEnv("storage.s3.region", "PROFILEHUB_STORAGE_S3_REGION")
	v.MustBindEnv("storage.s3.endpoint", "PROFILEHUB_STORAGE_S3_ENDPOINT")
	v.MustBindEnv("storage.s3.access_key", "PROFILEHUB_STORAGE_S3_ACCESS_KEY")
	v.MustBindEnv("storage.s3.secret_key", "PROFILEHUB_STORAGE_S3_SECRET_KEY")
	v.MustBindEnv("storage.s3.use_path_style", "PROFILEHUB_STORAGE_S3_USE_PATH_STYLE")
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing config")
	}

	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}

	if c.Database == nil {
		return fmt.Errorf("missing database config")
	}
	switch c.Database.Driver {
	case DatabaseDriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required when using sqlite")
		}
	case DatabaseDriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required when using postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Storage == nil {
		return fmt.Errorf("missing storage config")
	}
	switch c.Storage.Type {
	case StorageTypeLocal:
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage dir is required when using local storage")
		}
	case StorageTypeS3:
		if c.Storage.S3 == nil {
			return fmt.Errorf("missing s3 config")
		}
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required when using s3 storage")
		}
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("s3 region is required when using s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}

	if c.Password == nil {
		return fmt.Errorf("missing password config")
	}
	if c.Password.Cost < bcrypt.MinCost || c.Password.Cost > bcrypt.MaxCost {
		return fmt.Errorf("password cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if c.Cache != nil && c.Cache.Enabled && c.Cache.Type == CacheTypeRedis && c.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when Redis cache is enabled") //nolint:staticcheck
	}

	return nil
}

// sanitizeConfig sanitizes the configuration values.
func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	c.Listen = strings.TrimSpace(c.Listen)

	if c.Storage != nil && c.Storage.S3 != nil {
		c.Storage.S3.Endpoint = urlSanitize(c.Storage.S3.Endpoint)
	}

	if c.Password == nil {
		c.Password = &PasswordConfig{Cost: bcrypt.DefaultCost}
	}

	if c.Cache == nil {
		c.Cache = &CacheConfig{
			Enabled: false,
			Type:    CacheTypeMemory,
		}
	}
	c.Cache.RedisURL = strings.TrimSpace(c.Cache.RedisURL)
}

func urlSanitize(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}
