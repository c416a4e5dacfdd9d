package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Storage   string          `mapstructure:"storage" validate:"oneof=mongo postgres memory"`
	Log       LogConfig       `mapstructure:"log"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Reader    ReaderConfig    `mapstructure:"reader"`
	FMPCloud  FMPCloudConfig  `mapstructure:"fmpcloud"`

	AlphaVantage AlphaVantageConfig `mapstructure:"alphavantage"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"` // log level
	Format      string `mapstructure:"format" validate:"oneof=json console"`         // log format
	OutputFile  string `mapstructure:"output_file"`                                  // file path to store logs (optional)
	Environment string `mapstructure:"environment"`                                  // "dev" or "prod"
}

// BootstrapConfig drives cmd/bootstrap.
type BootstrapConfig struct {
	Engine      string   `mapstructure:"engine" validate:"oneof=mongo postgres"`
	Databases   []string `mapstructure:"databases" validate:"min=1,dive,required"`
	Role        string   `mapstructure:"role" validate:"required"`
	Collections bool     `mapstructure:"collections"`
	Indexes     bool     `mapstructure:"indexes"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	Mode            string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Tickers         []string      `mapstructure:"tickers"`
	Kinds           []string      `mapstructure:"kinds" validate:"dive,oneof=ohlc simple"`
	CredentialsFile string        `mapstructure:"credentials_file"` // JSON users file, empty disables authentication
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type ReaderConfig struct {
	Provider string        `mapstructure:"provider" validate:"oneof=fmpcloud alphavantage"`
	Tickers  []string      `mapstructure:"tickers"`
	Cron     string        `mapstructure:"cron"` // empty: run once and exit
	Timeout  time.Duration `mapstructure:"timeout"`
}

type FMPCloudConfig struct {
	BaseURL      string        `mapstructure:"base_url" validate:"required,url"`
	APIKeySecret string        `mapstructure:"api_key_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
	CachePath    string        `mapstructure:"cache_path"` // sqlite file, empty disables the cache
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// AlphaVantageConfig configures the alternative provider. Its responses go
// through the fmpcloud response cache settings.
type AlphaVantageConfig struct {
	BaseURL      string        `mapstructure:"base_url" validate:"required,url"`
	APIKeySecret string        `mapstructure:"api_key_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// defaults registers every leaf key. AutomaticEnv only overrides keys viper
// already knows, so keys without a meaningful default (credentials) are
// registered empty.
var defaults = map[string]any{
	"storage":                     "mongo",
	"log.level":                   "info",
	"log.format":                  "console",
	"log.environment":             "dev",
	"log.output_file":             "",
	"mongo.uri":                   "",
	"mongo.host":                  "localhost",
	"mongo.port":                  27017,
	"mongo.database":              "stock_market",
	"mongo.auth_source":           "admin",
	"mongo.admin_user":            "",
	"mongo.admin_password":        "",
	"mongo.timeout":               5 * time.Second,
	"postgres.host":               "localhost",
	"postgres.port":               5432,
	"postgres.user":               "",
	"postgres.password":           "",
	"postgres.timezone":           "",
	"postgres.dbname":             "stock_market",
	"postgres.admin_dbname":       "postgres",
	"postgres.sslmode":            "disable",
	"postgres.max_open_conns":     10,
	"postgres.max_idle_conns":     5,
	"postgres.conn_max_lifetime":  time.Hour,
	"secrets.source":              "file",
	"secrets.dir":                 "/run/secrets",
	"secrets.username":            "",
	"secrets.password":            "",
	"secrets.username_key":        "mongodb_username",
	"secrets.password_key":        "mongodb_password",
	"secrets.region":              "",
	"bootstrap.engine":            "mongo",
	"bootstrap.databases":         []string{"stock_market", "stock_market-dev", "stock_market-test"},
	"bootstrap.role":              "readWrite",
	"bootstrap.collections":       true,
	"bootstrap.indexes":           true,
	"server.addr":                 "0.0.0.0:8000",
	"server.mode":                 "release",
	"server.read_timeout":         10 * time.Second,
	"server.write_timeout":        30 * time.Second,
	"server.shutdown_timeout":     10 * time.Second,
	"server.tickers":              []string{},
	"server.credentials_file":     "",
	"server.kinds":                []string{"ohlc", "simple"},
	"redis.enabled":               false,
	"redis.addr":                  "localhost:6379",
	"redis.password":              "",
	"redis.db":                    0,
	"redis.ttl":                   5 * time.Minute,
	"reader.provider":             "fmpcloud",
	"reader.tickers":              []string{"AAPL", "MSFT", "AMZN", "GOOG", "META"},
	"reader.cron":                 "",
	"reader.timeout":              2 * time.Minute,
	"fmpcloud.base_url":           "https://fmpcloud.io/api/v3",
	"fmpcloud.api_key_secret":     "fmp_cloud_api_key",
	"fmpcloud.timeout":            30 * time.Second,
	"fmpcloud.cache_path":         "",
	"fmpcloud.cache_ttl":          12 * time.Hour,
	"alphavantage.base_url":       "https://www.alphavantage.co/query",
	"alphavantage.api_key_secret": "alphavantage_api_key",
	"alphavantage.timeout":        30 * time.Second,
}

// Load loads application configuration using Viper.
// It reads an optional config.yaml and overrides with environment variables
// (e.g. MONGO_HOST, SERVER_ADDR). A .env file in the working directory is
// loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")

		ex, _ := os.Executable()
		if strings.Contains(ex, "go-build") {
			pwd, _ := os.Getwd()
			v.AddConfigPath(filepath.Join(pwd, "../../config"))
		} else {
			v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
		}
	}

	// Support environment variables with dot notation (e.g., MONGO_HOST)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
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

// Validate checks struct constraints on every section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
