package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store drivers understood by InitStore.
const (
	DriverMongo  = "mongo"
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via config files or the environment.
type AppConfig struct {
	App      AppSection      `yaml:"app"`
	Database DatabaseSection `yaml:"database"`
	Redis    RedisSection    `yaml:"redis"`
	NATS     NATSSection     `yaml:"nats"`
	Log      LogSection      `yaml:"log"`
	Admin    AdminSection    `yaml:"admin"`
}

type AppSection struct {
	Port               string   `yaml:"port"`
	JWTSecret          string   `yaml:"jwt_secret"`
	JWTExpiryHours     int      `yaml:"jwt_expiry_hours"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	GinMode            string   `yaml:"gin_mode"`
	// Maintenance relaxes the empty-password and admin-email rules used during setup.
	Maintenance bool `yaml:"maintenance"`
	// LoginMaxFailures failed logins per IP and email ban the pair for LoginBanMinutes. A negative value disables the guard.
	LoginMaxFailures int `yaml:"login_max_failures"`
	LoginBanMinutes  int `yaml:"login_ban_minutes"`
}

type DatabaseSection struct {
	Driver string `yaml:"driver"`
	// MongoURI is used when Driver is mongo.
	MongoURI string `yaml:"mongo_uri"`
	MongoDB  string `yaml:"mongo_db"`
	// DatabaseURI is a full MySQL DSN; when empty one is built from the DB* fields.
	DatabaseURI string `yaml:"database_uri"`
	DBHost      string `yaml:"host"`
	DBPort      string `yaml:"port"`
	DBUser      string `yaml:"user"`
	DBPassword  string `yaml:"password"`
	DBName      string `yaml:"name"`
	// TimeoutSec bounds every store call made on behalf of a request.
	TimeoutSec int `yaml:"timeout_sec"`
	// RetryMax bounds the retries of each best-effort cascade step.
	RetryMax int `yaml:"retry_max"`
}

type RedisSection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
}

type NATSSection struct {
	// URL is the NATS server URL (empty = events disabled)
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type LogSection struct {
	Level      string `yaml:"level"`
	Path       string `yaml:"path"`
	GinPath    string `yaml:"gin_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type AdminSection struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
// Precedence: config file -> defaults -> environment variable overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = filepath.Join("config", "config.yaml")
	}
	if err := LoadFile(path, &cfg); err != nil {
		log.Fatalf("invalid config file %s: %v", path, err)
	}

	ApplyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Override replaces the cached configuration. Used by commands that build their own config and by tests.
func Override(c AppConfig) {
	cfg = c
	loaded = true
}

// LoadFile reads a YAML (or JSON) file into out if present. Returns error only for an invalid file.
func LoadFile(path string, out *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil // silently ignore missing file
		}
		return err
	}
	return yaml.Unmarshal(data, out)
}

// ApplyDefaults sets sane defaults for zero-value fields.
func ApplyDefaults(c *AppConfig) {
	if c.App.Port == "" {
		c.App.Port = "8080"
	}
	if c.App.GinMode == "" {
		c.App.GinMode = "release"
	}
	if c.App.JWTExpiryHours == 0 {
		c.App.JWTExpiryHours = 72
	}
	if c.App.RateLimitPerMinute == 0 {
		c.App.RateLimitPerMinute = 120
	}
	if c.App.LoginMaxFailures == 0 {
		c.App.LoginMaxFailures = 10
	}
	if c.App.LoginBanMinutes == 0 {
		c.App.LoginBanMinutes = 15
	}
	if len(c.App.AllowedOrigins) == 0 {
		c.App.AllowedOrigins = []string{"*"}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverMongo
	}
	if c.Database.MongoURI == "" {
		c.Database.MongoURI = "mongodb://127.0.0.1:27017"
	}
	if c.Database.MongoDB == "" {
		c.Database.MongoDB = "social_media"
	}
	if c.Database.DBHost == "" {
		c.Database.DBHost = "127.0.0.1"
	}
	if c.Database.DBPort == "" {
		c.Database.DBPort = "3306"
	}
	if c.Database.DBUser == "" {
		c.Database.DBUser = "root"
	}
	if c.Database.DBName == "" {
		c.Database.DBName = "social_media"
	}
	if c.Database.TimeoutSec == 0 {
		c.Database.TimeoutSec = 10
	}
	if c.Database.RetryMax == 0 {
		c.Database.RetryMax = 3
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "social"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.GinPath == "" {
		c.Log.GinPath = "logs/go_gin.log"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 7
	}
	if c.Admin.Name == "" {
		c.Admin.Name = "Administrator"
	}
}

// ApplyEnvOverrides maps known environment variables onto config values when present.
func ApplyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.App.Port = v
	}
	if v := getEnv("JWT_SECRET", ""); v != "" {
		c.App.JWTSecret = v
	}
	if v := getEnv("JWT_EXPIRY_HOURS", ""); v != "" {
		c.App.JWTExpiryHours = mustParseInt(v)
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.App.RateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.App.AllowedOrigins = splitAndTrim(v)
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.App.GinMode = v
	}
	if v := getEnv("LOGIN_MAX_FAILURES", ""); v != "" {
		c.App.LoginMaxFailures = mustParseInt(v)
	}
	if v := getEnv("LOGIN_BAN_MINUTES", ""); v != "" {
		c.App.LoginBanMinutes = mustParseInt(v)
	}
	if v := getEnv("MAINTENANCE", ""); v != "" {
		c.App.Maintenance = v == "1" || v == "true"
	}
	if v := getEnv("DB_DRIVER", ""); v != "" {
		c.Database.Driver = strings.ToLower(v)
	}
	if v := getEnv("MONGO_URI", ""); v != "" {
		c.Database.MongoURI = v
	}
	if v := getEnv("MONGO_DB", ""); v != "" {
		c.Database.MongoDB = v
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.Database.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.Database.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.Database.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.Database.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.Database.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.Database.DBName = v
	}
	if v := getEnv("DB_TIMEOUT_SEC", ""); v != "" {
		c.Database.TimeoutSec = mustParseInt(v)
	}
	if v := getEnv("STORE_RETRY_MAX", ""); v != "" {
		c.Database.RetryMax = mustParseInt(v)
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.Redis.Host = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.Redis.Port = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.Redis.DB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.Redis.Password = v
	}
	if v := getEnv("NATS_URL", ""); v != "" {
		c.NATS.URL = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.Log.Level = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.Log.Path = v
	}
	if v := getEnv("GIN_LOG_PATH", ""); v != "" {
		c.Log.GinPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.Log.MaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.Log.MaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.Log.MaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.Log.Compress = v == "true"
	}
	if v := getEnv("ADMIN_EMAIL", ""); v != "" {
		c.Admin.Email = v
	}
	if v := getEnv("ADMIN_PASSWORD", ""); v != "" {
		c.Admin.Password = v
	}
	if v := getEnv("ADMIN_NAME", ""); v != "" {
		c.Admin.Name = v
	}
}

// Validate checks that the configuration is usable.
func (c *AppConfig) Validate() error {
	if c.App.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set in environment variables or app.jwt_secret")
	}
	switch c.Database.Driver {
	case DriverMongo, DriverMySQL, DriverMemory:
	default:
		return fmt.Errorf("database.driver must be one of %s, %s, %s (got %q)", DriverMongo, DriverMySQL, DriverMemory, c.Database.Driver)
	}
	if c.Database.RetryMax < 0 {
		return fmt.Errorf("database.retry_max must not be negative")
	}
	if c.App.JWTExpiryHours < 0 {
		return fmt.Errorf("app.jwt_expiry_hours must not be negative")
	}
	return nil
}

// MySQLDSN returns the DSN used by the gorm MySQL driver.
func (c *AppConfig) MySQLDSN() string {
	if c.Database.DatabaseURI != "" {
		return c.Database.DatabaseURI
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.Database.DBUser,
		c.Database.DBPassword,
		c.Database.DBHost,
		c.Database.DBPort,
		c.Database.DBName,
	)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
