// Package config loads server configuration from environment variables.
//
// Required variables:
//   - DATABASE_URL: PostgreSQL connection string.
//
// Optional variables:
//   - HTTP_ADDR: listen address for the HTTP server (default ":8080").
//   - LOG_LEVEL: minimum log level (default "info").
//   - AMQP_URL: RabbitMQ connection string for attendee notifications; when
//     unset, notifications are written to the log instead.
//   - AMQP_EXCHANGE: topic exchange for notifications
//     (default "gatherd.notifications").
//   - NOTIFY_TIMEOUT: per-notification delivery timeout
//     (default "2s", must be > 0 if set).
//   - API_KEY_BCRYPT_HASH: bcrypt hash of the API bearer token; when unset,
//     the API is served unauthenticated.
//   - AUTH_RATE_LIMIT: failed auth attempts allowed per client IP per minute
//     (default 10, must be > 0 if set).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPAddr      = ":8080"
	defaultAMQPExchange  = "gatherd.notifications"
	defaultNotifyTimeout = 2 * time.Second
	defaultAuthRateLimit = 10
)

// Config holds the runtime configuration for the gatherd server.
type Config struct {
	DatabaseURL      string
	HTTPAddr         string
	LogLevel         string
	AMQPURL          string
	AMQPExchange     string
	NotifyTimeout    time.Duration
	APIKeyBcryptHash string
	AuthRateLimit    int
}

// Load reads configuration from environment variables, applying defaults
// where appropriate. It returns an error if required variables are missing
// or if optional values fail validation.
func Load() (Config, error) {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = defaultHTTPAddr
	}

	amqpExchange := strings.TrimSpace(os.Getenv("AMQP_EXCHANGE"))
	if amqpExchange == "" {
		amqpExchange = defaultAMQPExchange
	}

	notifyTimeout := defaultNotifyTimeout
	if value := strings.TrimSpace(os.Getenv("NOTIFY_TIMEOUT")); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse NOTIFY_TIMEOUT: %w", err)
		}
		if parsed <= 0 {
			return Config{}, errors.New("NOTIFY_TIMEOUT must be > 0")
		}
		notifyTimeout = parsed
	}

	authRateLimit := defaultAuthRateLimit
	if value := strings.TrimSpace(os.Getenv("AUTH_RATE_LIMIT")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse AUTH_RATE_LIMIT: %w", err)
		}
		if parsed <= 0 {
			return Config{}, errors.New("AUTH_RATE_LIMIT must be > 0")
		}
		authRateLimit = parsed
	}

	return Config{
		DatabaseURL:      databaseURL,
		HTTPAddr:         httpAddr,
		LogLevel:         strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		AMQPURL:          strings.TrimSpace(os.Getenv("AMQP_URL")),
		AMQPExchange:     amqpExchange,
		NotifyTimeout:    notifyTimeout,
		APIKeyBcryptHash: strings.TrimSpace(os.Getenv("API_KEY_BCRYPT_HASH")),
		AuthRateLimit:    authRateLimit,
	}, nil
}
