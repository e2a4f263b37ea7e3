// Copyright (c) 2026 Jyotir. All rights reserved.
// Author: dev@jyotir.app

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Jyotir identity server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// JWTSecret is the HMAC signing secret for access tokens.
	JWTSecret string `env:"JWT_SECRET,required"`

	// AccessTokenTTLHours is the access-token validity window.
	AccessTokenTTLHours int `env:"ACCESS_TOKEN_TTL_HOURS" envDefault:"2"`

	// OtpValiditySeconds is how long an issued OTP challenge remains verifiable.
	OtpValiditySeconds int `env:"OTP_VALIDITY_SECONDS" envDefault:"600"`

	// RegistrationTTLHours is how long a staged registration survives without
	// email verification. Deliberately longer than the OTP window so that
	// resend-otp never requires re-submitting the registration form.
	RegistrationTTLHours int `env:"REGISTRATION_TTL_HOURS" envDefault:"2"`

	// RefreshTokenTTLDays is the refresh-token (session) validity window.
	RefreshTokenTTLDays int `env:"REFRESH_TOKEN_TTL_DAYS" envDefault:"30"`

	// RefreshTokenBytes is the entropy of a generated refresh token.
	RefreshTokenBytes int `env:"REFRESH_TOKEN_BYTES" envDefault:"64"`

	// MaxActiveSessions caps concurrent active sessions per user. On overflow
	// the oldest session is evicted.
	MaxActiveSessions int `env:"MAX_ACTIVE_SESSIONS" envDefault:"5"`

	// ResetTokenTTLMinutes is the password-reset token validity window.
	ResetTokenTTLMinutes int `env:"RESET_TOKEN_TTL_MINUTES" envDefault:"10"`

	// SessionSweepIntervalMinutes is how often expired session rows are purged.
	SessionSweepIntervalMinutes int `env:"SESSION_SWEEP_INTERVAL_MINUTES" envDefault:"60"`

	// Per-action fixed-window rate limits for unauthenticated sensitive endpoints.
	RateLimitWindowMinutes  int `env:"RATE_LIMIT_WINDOW_MINUTES"  envDefault:"15"`
	RateLimitForgotPassword int `env:"RATE_LIMIT_FORGOT_PASSWORD" envDefault:"5"`
	RateLimitValidateToken  int `env:"RATE_LIMIT_VALIDATE_TOKEN"  envDefault:"5"`
	RateLimitResetPassword  int `env:"RATE_LIMIT_RESET_PASSWORD"  envDefault:"5"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// # Derived Durations

// AccessTokenTTL returns the access-token validity as a [time.Duration].
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLHours) * time.Hour
}

// OtpTTL returns the OTP validity as a [time.Duration].
func (c *Config) OtpTTL() time.Duration {
	return time.Duration(c.OtpValiditySeconds) * time.Second
}

// RegistrationTTL returns the staged-registration validity as a [time.Duration].
func (c *Config) RegistrationTTL() time.Duration {
	return time.Duration(c.RegistrationTTLHours) * time.Hour
}

// RefreshTokenTTL returns the refresh-token validity as a [time.Duration].
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLDays) * 24 * time.Hour
}

// ResetTokenTTL returns the password-reset token validity as a [time.Duration].
func (c *Config) ResetTokenTTL() time.Duration {
	return time.Duration(c.ResetTokenTTLMinutes) * time.Minute
}

// RateLimitWindow returns the fixed rate-limit window as a [time.Duration].
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMinutes) * time.Minute
}

// SessionSweepInterval returns the expired-session purge cadence.
func (c *Config) SessionSweepInterval() time.Duration {
	return time.Duration(c.SessionSweepIntervalMinutes) * time.Minute
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
