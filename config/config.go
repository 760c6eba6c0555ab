// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Chat service
	ChatBaseURL string
	Rooms       []int

	// Engine timing
	Heartbeat  time.Duration
	EditWindow time.Duration

	// Request retry
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Optional message archive (enabled when DBDsn is non-empty)
	DBDsn string

	// Ops HTTP server
	HTTPAddr string
}

// Load reads environment variables and applies defaults. CHAT_ROOMS is
// optional; a process with no rooms configured still runs (rooms can be
// joined programmatically). Missing DB_DSN disables the archive.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ChatBaseURL = os.Getenv("CHAT_BASE_URL")
	if cfg.ChatBaseURL == "" {
		cfg.ChatBaseURL = "https://chat.stackoverflow.com"
	}

	if v := os.Getenv("CHAT_ROOMS"); v != "" {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid CHAT_ROOMS entry %q: %w", part, err)
			}
			cfg.Rooms = append(cfg.Rooms, id)
		}
	}

	var err error
	if cfg.Heartbeat, err = durationEnv("CHAT_HEARTBEAT", 4*time.Second); err != nil {
		return nil, err
	}
	if cfg.EditWindow, err = durationEnv("CHAT_EDIT_WINDOW", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RetryBaseDelay, err = durationEnv("CHAT_RETRY_BASE_DELAY", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryMaxDelay, err = durationEnv("CHAT_RETRY_MAX_DELAY", 60*time.Second); err != nil {
		return nil, err
	}

	cfg.MaxAttempts = 3
	if v := os.Getenv("CHAT_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid CHAT_MAX_ATTEMPTS %q", v)
		}
		cfg.MaxAttempts = n
	}

	cfg.DBDsn = os.Getenv("DB_DSN")

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: want a positive duration", key, v)
	}
	return d, nil
}
