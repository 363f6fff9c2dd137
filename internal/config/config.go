package config

import (
	"fmt"
	"strings"
	"time"
	// Embedded zone database so QUOTA_TIMEZONE resolves on minimal images.
	_ "time/tzdata"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	NATS      NATSConfig
	JWT       JWTConfig
	Log       LogConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Store     StoreConfig
	Quota     QuotaConfig
	Agenda    AgendaConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NATSConfig; an empty URL disables event publishing.
type NATSConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type RateLimitConfig struct {
	Enabled   bool
	Requests  int
	WindowSec int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type StoreConfig struct {
	Driver       string
	MaxTxRetries int
}

type QuotaConfig struct {
	Timezone           string
	WeeklyBroadcastCap int
	BroadcastDuration  time.Duration
}

type AgendaConfig struct {
	DefaultSuspensionDays int
	ShiftDays             int
}

// LoadLocation resolves the quota time zone.
func (c QuotaConfig) LoadLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		JWT: JWTConfig{
			Secret: k.String("jwt.secret"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
		RateLimit: RateLimitConfig{
			Enabled:   k.String("ratelimit.enabled") != "false",
			Requests:  k.Int("ratelimit.requests"),
			WindowSec: k.Int("ratelimit.window.sec"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(k.String("cors.allowed.origins")),
		},
		Store: StoreConfig{
			Driver:       k.String("store.driver"),
			MaxTxRetries: k.Int("store.max.tx.retries"),
		},
		Quota: QuotaConfig{
			Timezone:           k.String("quota.timezone"),
			WeeklyBroadcastCap: k.Int("quota.weekly.broadcast.cap"),
		},
		Agenda: AgendaConfig{
			DefaultSuspensionDays: k.Int("agenda.default.suspension.days"),
			ShiftDays:             k.Int("agenda.shift.days"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "avellaneda"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "avellaneda"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.RateLimit.Requests == 0 {
		cfg.RateLimit.Requests = 10
	}
	if cfg.RateLimit.WindowSec == 0 {
		cfg.RateLimit.WindowSec = 60
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreDriverPostgres
	}
	if cfg.Store.MaxTxRetries == 0 {
		cfg.Store.MaxTxRetries = 5
	}
	if cfg.Quota.Timezone == "" {
		cfg.Quota.Timezone = "America/Argentina/Buenos_Aires"
	}
	if cfg.Quota.WeeklyBroadcastCap == 0 {
		cfg.Quota.WeeklyBroadcastCap = 7
	}
	if cfg.Agenda.DefaultSuspensionDays == 0 {
		cfg.Agenda.DefaultSuspensionDays = 7
	}
	if cfg.Agenda.ShiftDays == 0 {
		cfg.Agenda.ShiftDays = 7
	}

	// Parse durations
	expiryStr := k.String("jwt.expiry")
	if expiryStr == "" {
		expiryStr = "1h"
	}
	cfg.JWT.Expiry, err = time.ParseDuration(expiryStr)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt expiry: %w", err)
	}

	minutes := k.Int("broadcast.duration.minutes")
	if minutes == 0 {
		minutes = 30
	}
	cfg.Quota.BroadcastDuration = time.Duration(minutes) * time.Minute

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
