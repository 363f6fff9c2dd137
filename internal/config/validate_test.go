package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		DB: DBConfig{
			Host: "localhost", Port: 5432, User: "avellaneda",
			Password: "secret", Name: "avellaneda", SSLMode: "disable", MaxConns: 25,
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		NATS:  NATSConfig{URL: "nats://localhost:4222"},
		JWT: JWTConfig{
			Secret: "access-secret-that-is-at-least-32-chars!",
			Expiry: time.Hour,
		},
		RateLimit: RateLimitConfig{Enabled: true, Requests: 10, WindowSec: 60},
		Store:     StoreConfig{Driver: StoreDriverPostgres, MaxTxRetries: 5},
		Quota: QuotaConfig{
			Timezone:           "America/Argentina/Buenos_Aires",
			WeeklyBroadcastCap: 7,
			BroadcastDuration:  30 * time.Minute,
		},
		Agenda: AgendaConfig{DefaultSuspensionDays: 7, ShiftDays: 7},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"short jwt secret", func(c *Config) { c.JWT.Secret = "short" }, "JWT_SECRET"},
		{"missing db password", func(c *Config) { c.DB.Password = "" }, "DB_PASSWORD"},
		{"unknown store driver", func(c *Config) { c.Store.Driver = "sqlite" }, "STORE_DRIVER"},
		{"negative retries", func(c *Config) { c.Store.MaxTxRetries = -1 }, "STORE_MAX_TX_RETRIES"},
		{"bad server port", func(c *Config) { c.Server.Port = 70000 }, "SERVER_PORT"},
		{"bad redis port", func(c *Config) { c.Redis.Port = 0 }, "REDIS_PORT"},
		{"unknown zone", func(c *Config) { c.Quota.Timezone = "Mars/Olympus" }, "QUOTA_TIMEZONE"},
		{"zero cap", func(c *Config) { c.Quota.WeeklyBroadcastCap = 0 }, "QUOTA_WEEKLY_BROADCAST_CAP"},
		{"zero duration", func(c *Config) { c.Quota.BroadcastDuration = 0 }, "BROADCAST_DURATION_MINUTES"},
		{"zero suspension", func(c *Config) { c.Agenda.DefaultSuspensionDays = 0 }, "AGENDA_DEFAULT_SUSPENSION_DAYS"},
		{"custom shift", func(c *Config) { c.Agenda.ShiftDays = 14 }, "AGENDA_SHIFT_DAYS"},
		{"bad rate limit", func(c *Config) { c.RateLimit.Requests = 0 }, "RATELIMIT_REQUESTS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_MemoryDriverSkipsDatabase(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = StoreDriverMemory
	cfg.DB.Password = ""
	assert.NoError(t, cfg.Validate())
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.Secret = ""
	cfg.DB.Password = ""
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"JWT_SECRET", "DB_PASSWORD", "SERVER_PORT"} {
		assert.True(t, strings.Contains(msg, want), "missing %s in %q", want, msg)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "access-secret-that-is-at-least-32-chars!")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Store.MaxTxRetries)
	assert.Equal(t, "America/Argentina/Buenos_Aires", cfg.Quota.Timezone)
	assert.Equal(t, 7, cfg.Quota.WeeklyBroadcastCap)
	assert.Equal(t, 30*time.Minute, cfg.Quota.BroadcastDuration)
	assert.Equal(t, 7, cfg.Agenda.DefaultSuspensionDays)
	assert.Equal(t, 7, cfg.Agenda.ShiftDays)
	assert.Equal(t, time.Hour, cfg.JWT.Expiry)
	assert.True(t, cfg.RateLimit.Enabled)

	loc, err := cfg.Quota.LoadLocation()
	require.NoError(t, err)
	assert.Equal(t, "America/Argentina/Buenos_Aires", loc.String())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("QUOTA_TIMEZONE", "UTC")
	t.Setenv("QUOTA_WEEKLY_BROADCAST_CAP", "3")
	t.Setenv("BROADCAST_DURATION_MINUTES", "45")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RATELIMIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.Quota.Timezone)
	assert.Equal(t, 3, cfg.Quota.WeeklyBroadcastCap)
	assert.Equal(t, 45*time.Minute, cfg.Quota.BroadcastDuration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.RateLimit.Enabled)
}
