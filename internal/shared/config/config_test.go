package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, LockLocal, cfg.LockBackend)
	assert.True(t, cfg.HoldRate.Equal(decimal.RequireFromString("0.2")))
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 3, cfg.MaxTxRetries)
	assert.False(t, cfg.UsesRedis())
}

func TestLoad_FlagsAndEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("EVENT_STREAM", "auction-events")

	cfg, err := Load([]string{"--http-addr=:8080", "--hold-rate=0.25", "--db-port=6543"})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, "auction-events", cfg.EventStream)
	assert.True(t, cfg.UsesRedis())
	assert.True(t, cfg.HoldRate.Equal(decimal.RequireFromString("0.25")))
	assert.Equal(t, "postgres://postgres:@localhost:6543/auctionhouse?sslmode=disable", cfg.PostgresDSN())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AppEnv:        "development",
			StoreDriver:   StoreMemory,
			LockBackend:   LockLocal,
			HoldRate:      decimal.RequireFromString("0.2"),
			SweepInterval: time.Second,
			LockTTL:       time.Second,
			JWTSecret:     defaultJWTSecret,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown_driver", mutate: func(c *Config) { c.StoreDriver = "mongo" }, wantErr: "unknown store driver"},
		{name: "unknown_lock", mutate: func(c *Config) { c.LockBackend = "zk" }, wantErr: "unknown lock backend"},
		{name: "zero_rate", mutate: func(c *Config) { c.HoldRate = decimal.Zero }, wantErr: "hold rate"},
		{name: "rate_above_one", mutate: func(c *Config) { c.HoldRate = decimal.RequireFromString("1.5") }, wantErr: "hold rate"},
		{name: "zero_sweep", mutate: func(c *Config) { c.SweepInterval = 0 }, wantErr: "sweep interval"},
		{name: "default_secret_in_production", mutate: func(c *Config) { c.AppEnv = "production" }, wantErr: "JWT_SECRET"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := c.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
