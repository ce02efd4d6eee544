package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "default-jwt-secret-change-in-production"

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	LockLocal = "local"
	LockRedis = "redis"
)

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config is the process configuration, read from flags, the environment and .env
type Config struct {
	AppEnv         string
	HTTPAddr       string
	StoreDriver    string
	DB             DBConfig
	MigrationsPath string
	LockBackend    string
	Redis          RedisConfig
	EventStream    string // empty disables the redis stream publisher
	HoldRate       decimal.Decimal
	SweepInterval  time.Duration
	MaxTxRetries   int
	LockTTL        time.Duration
	JWTSecret      string
	JWTIssuer      string
}

// Load parses args (normally os.Args[1:]). Every flag can also be set through
// the environment by its upper snake case name, e.g. --db-host or DB_HOST.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("auctionhouse", pflag.ContinueOnError)
	fs.String("app-env", "development", "development or production")
	fs.String("http-addr", ":9000", "HTTP listen address")
	fs.String("store-driver", StorePostgres, "postgres or memory")

	fs.String("db-host", "localhost", "")
	fs.Int("db-port", 5432, "")
	fs.String("db-user", "postgres", "")
	fs.String("db-password", "", "")
	fs.String("db-name", "auctionhouse", "")
	fs.String("db-sslmode", "disable", "")
	fs.String("migrations-path", "file://internal/shared/db/migrations/sql", "golang-migrate source URL")

	fs.String("lock-backend", LockLocal, "local or redis")
	fs.Duration("lock-ttl", 8*time.Second, "redis lock expiry")
	fs.String("redis-addr", "localhost:6379", "")
	fs.String("redis-password", "", "")
	fs.Int("redis-db", 0, "")
	fs.String("event-stream", "", "redis stream receiving auction events, empty disables it")

	fs.String("hold-rate", "0.20", "share of every bid held from the bidder's balance")
	fs.Duration("sweep-interval", 30*time.Second, "settlement sweep period")
	fs.Int("max-tx-retries", 3, "retries after a concurrent modification")

	fs.String("jwt-secret", defaultJWTSecret, "")
	fs.String("jwt-issuer", "auction-house", "")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rate, err := decimal.NewFromString(v.GetString("hold-rate"))
	if err != nil {
		return nil, fmt.Errorf("hold rate %q: %w", v.GetString("hold-rate"), err)
	}

	cfg := &Config{
		AppEnv:      v.GetString("app-env"),
		HTTPAddr:    v.GetString("http-addr"),
		StoreDriver: v.GetString("store-driver"),
		DB: DBConfig{
			Host:     v.GetString("db-host"),
			Port:     v.GetInt("db-port"),
			User:     v.GetString("db-user"),
			Password: v.GetString("db-password"),
			Name:     v.GetString("db-name"),
			SSLMode:  v.GetString("db-sslmode"),
		},
		MigrationsPath: v.GetString("migrations-path"),
		LockBackend:    v.GetString("lock-backend"),
		Redis: RedisConfig{
			Addr:     v.GetString("redis-addr"),
			Password: v.GetString("redis-password"),
			DB:       v.GetInt("redis-db"),
		},
		EventStream:   v.GetString("event-stream"),
		HoldRate:      rate,
		SweepInterval: v.GetDuration("sweep-interval"),
		MaxTxRetries:  v.GetInt("max-tx-retries"),
		LockTTL:       v.GetDuration("lock-ttl"),
		JWTSecret:     v.GetString("jwt-secret"),
		JWTIssuer:     v.GetString("jwt-issuer"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.StoreDriver != StorePostgres && c.StoreDriver != StoreMemory {
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.StoreDriver))
	}
	if c.LockBackend != LockLocal && c.LockBackend != LockRedis {
		errs = append(errs, fmt.Errorf("unknown lock backend %q", c.LockBackend))
	}
	if !c.HoldRate.IsPositive() || c.HoldRate.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("hold rate must be in (0, 1], got %s", c.HoldRate))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep interval must be positive"))
	}
	if c.LockTTL <= 0 {
		errs = append(errs, errors.New("lock ttl must be positive"))
	}
	if c.MaxTxRetries < 0 {
		errs = append(errs, errors.New("max tx retries cannot be negative"))
	}
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UsesRedis is true when any component needs a redis client.
func (c *Config) UsesRedis() bool {
	return c.LockBackend == LockRedis || c.EventStream != ""
}

// PostgresDSN builds the connection URL shared by the pool and the migrator.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     fmt.Sprintf("%s:%d", c.DB.Host, c.DB.Port),
		Path:     c.DB.Name,
		RawQuery: "sslmode=" + c.DB.SSLMode,
	}
	return u.String()
}
