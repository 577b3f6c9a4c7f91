package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds every setting the server needs. Values come from, in order of
// precedence: environment, an optional config file, then defaults.
type Config struct {
	Env  string
	Port string

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		TimeZone string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	JWT struct {
		Secret        string
		Expiry        time.Duration
		RefreshExpiry time.Duration
	}

	Log struct {
		Level  string
		Format string
		Output string
		File   string
	}

	StartingBalance decimal.Decimal
	AdminEmails     []string

	NATSURL          string
	CacheTTL         time.Duration
	CacheRefreshSpec string
	RateLimitRPS     float64
	RateLimitBurst   int
	SeedFile         string
}

var defaults = map[string]any{
	"env":                "development",
	"port":               "8080",
	"db_host":            "localhost",
	"db_port":            "5432",
	"db_user":            "postgres",
	"db_name":            "stock_trader",
	"db_sslmode":         "disable",
	"db_timezone":        "UTC",
	"redis_addr":         "127.0.0.1:6379",
	"redis_db":           0,
	"jwt_expiry":         "24h",
	"refresh_expiry":     "168h",
	"starting_balance":   "10000",
	"cache_ttl":          "5m",
	"cache_refresh_spec": "@every 5m",
	"log_level":          "info",
	"log_format":         "json",
	"log_output":         "stdout",
	"log_file":           "logs/app.log",
	"rate_limit_rps":     5.0,
	"rate_limit_burst":   10,
}

// Load reads .env (if present), the optional file named by CONFIG_FILE and
// the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows about.
	for _, k := range []string{"db_password", "redis_password", "jwt_secret", "admin_emails", "nats_url", "seed_file", "config_file"} {
		_ = v.BindEnv(k)
	}

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	cfg.Env = v.GetString("env")
	cfg.Port = v.GetString("port")

	cfg.DB.Host = v.GetString("db_host")
	cfg.DB.Port = v.GetString("db_port")
	cfg.DB.User = v.GetString("db_user")
	cfg.DB.Password = v.GetString("db_password")
	cfg.DB.Name = v.GetString("db_name")
	cfg.DB.SSLMode = v.GetString("db_sslmode")
	cfg.DB.TimeZone = v.GetString("db_timezone")

	cfg.Redis.Addr = v.GetString("redis_addr")
	cfg.Redis.Password = v.GetString("redis_password")
	cfg.Redis.DB = v.GetInt("redis_db")

	cfg.JWT.Secret = v.GetString("jwt_secret")
	cfg.JWT.Expiry = v.GetDuration("jwt_expiry")
	cfg.JWT.RefreshExpiry = v.GetDuration("refresh_expiry")

	cfg.Log.Level = v.GetString("log_level")
	cfg.Log.Format = v.GetString("log_format")
	cfg.Log.Output = v.GetString("log_output")
	cfg.Log.File = v.GetString("log_file")

	balance, err := decimal.NewFromString(v.GetString("starting_balance"))
	if err != nil {
		return nil, fmt.Errorf("invalid STARTING_BALANCE: %w", err)
	}
	cfg.StartingBalance = balance

	for _, email := range strings.Split(v.GetString("admin_emails"), ",") {
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			cfg.AdminEmails = append(cfg.AdminEmails, email)
		}
	}

	cfg.NATSURL = v.GetString("nats_url")
	cfg.CacheTTL = v.GetDuration("cache_ttl")
	cfg.CacheRefreshSpec = v.GetString("cache_refresh_spec")
	cfg.RateLimitRPS = v.GetFloat64("rate_limit_rps")
	cfg.RateLimitBurst = v.GetInt("rate_limit_burst")
	cfg.SeedFile = v.GetString("seed_file")

	return cfg, cfg.Validate()
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		if c.Env != "development" {
			return errors.New("JWT_SECRET is required")
		}
		c.JWT.Secret = "development-only-secret"
	}
	if c.JWT.Expiry <= 0 {
		return fmt.Errorf("invalid JWT_EXPIRY: %s", c.JWT.Expiry)
	}
	if c.StartingBalance.IsNegative() {
		return errors.New("STARTING_BALANCE must not be negative")
	}
	return nil
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.DB.Host,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.Port,
		c.DB.SSLMode,
		c.DB.TimeZone,
	)
}

// OpenDB connects to PostgreSQL. The returned handle is owned by the caller.
func OpenDB(c *Config, gormLogger logger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(c.DSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// OpenRedis connects to Redis and verifies the connection with a ping.
func OpenRedis(ctx context.Context, c *Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return rdb, nil
}
