package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if len(c.JWT.Secret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 characters")
	}
	if c.JWT.Expiry <= 0 {
		errs = append(errs, "JWT_EXPIRY must be positive")
	}

	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.DB.Password == "" {
			errs = append(errs, "DB_PASSWORD is required")
		}
		if c.DB.Port < 1 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
		}
	case StoreDriverMemory:
		slog.Warn("STORE_DRIVER=memory: data is lost on restart")
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER must be postgres or memory, got %q", c.Store.Driver))
	}
	if c.Store.MaxTxRetries < 0 {
		errs = append(errs, "STORE_MAX_TX_RETRIES must not be negative")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	if _, err := time.LoadLocation(c.Quota.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("QUOTA_TIMEZONE %q is not a known zone", c.Quota.Timezone))
	}
	if c.Quota.WeeklyBroadcastCap < 1 {
		errs = append(errs, "QUOTA_WEEKLY_BROADCAST_CAP must be at least 1")
	}
	if c.Quota.BroadcastDuration <= 0 {
		errs = append(errs, "BROADCAST_DURATION_MINUTES must be positive")
	}
	if c.Agenda.DefaultSuspensionDays < 1 {
		errs = append(errs, "AGENDA_DEFAULT_SUSPENSION_DAYS must be at least 1")
	}
	if c.Agenda.ShiftDays != 7 {
		errs = append(errs, fmt.Sprintf("AGENDA_SHIFT_DAYS only supports 7, got %d", c.Agenda.ShiftDays))
	}

	if c.RateLimit.Enabled && (c.RateLimit.Requests < 1 || c.RateLimit.WindowSec < 1) {
		errs = append(errs, "RATELIMIT_REQUESTS and RATELIMIT_WINDOW_SEC must be positive")
	}

	if c.NATS.URL == "" {
		slog.Warn("NATS_URL is empty, events will not be published")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
