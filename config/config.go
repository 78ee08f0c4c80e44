// Package config reads client and board-service settings from the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"kanban-board/engine"
)

const DefaultUpdatesChannel = "board-updates"

// Client configures a board session.
type Client struct {
	APIURL         string
	Timeout        time.Duration
	UpdatesChannel string
	// RedisConnectionString enables the push subscription when set.
	RedisConnectionString string
	AlwaysRefetch         bool
	Quotas                engine.Quotas
	Debug                 bool
}

// Load reads the client configuration from the process environment.
func Load() (Client, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the client configuration through getenv.
func LoadFrom(getenv func(string) string) (Client, error) {
	cfg := Client{
		APIURL:                getenv("BOARD_API_URL"),
		Timeout:               10 * time.Second,
		UpdatesChannel:        DefaultUpdatesChannel,
		RedisConnectionString: getenv("REDIS_CONNECTION_STRING"),
		Quotas:                engine.DefaultQuotas(),
	}
	if cfg.APIURL == "" {
		return Client{}, errors.New("missing BOARD_API_URL")
	}
	if v := getenv("BOARD_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Client{}, fmt.Errorf("invalid BOARD_API_TIMEOUT: %w", err)
		}
		if d <= 0 {
			return Client{}, errors.New("invalid BOARD_API_TIMEOUT: must be greater than zero")
		}
		cfg.Timeout = d
	}
	if v := getenv("BOARD_UPDATES_CHANNEL"); v != "" {
		cfg.UpdatesChannel = v
	}
	var err error
	if cfg.AlwaysRefetch, err = parseBool(getenv, "ALWAYS_REFETCH"); err != nil {
		return Client{}, err
	}
	if cfg.Debug, err = parseBool(getenv, "DEBUG"); err != nil {
		return Client{}, err
	}
	if path := getenv("QUOTAS_FILE"); path != "" {
		q, err := LoadQuotas(path)
		if err != nil {
			return Client{}, err
		}
		cfg.Quotas = q
	}
	return cfg, nil
}

// Service configures the reference board service.
type Service struct {
	ListenAddr            string
	RedisConnectionString string
	BoardCacheTTL         time.Duration
	DeduperTTL            time.Duration
	NotifyWorkers         int
	NotifyBuffer          int
	UpdatesChannel        string
	Auth0Domain           string
	Auth0Audience         string
	AuthTestMode          bool
	TestJWTSecret         string
	Debug                 bool
}

// LoadService reads the service configuration through getenv.
func LoadService(getenv func(string) string) (Service, error) {
	cfg := Service{
		ListenAddr:            ":8080",
		RedisConnectionString: getenv("REDIS_CONNECTION_STRING"),
		BoardCacheTTL:         time.Minute,
		DeduperTTL:            24 * time.Hour,
		NotifyWorkers:         2,
		NotifyBuffer:          64,
		UpdatesChannel:        DefaultUpdatesChannel,
		Auth0Domain:           getenv("AUTH0_DOMAIN"),
		Auth0Audience:         getenv("AUTH0_AUDIENCE"),
		AuthTestMode:          getenv("AUTH0_TEST_MODE") == "1",
		TestJWTSecret:         getenv("TEST_JWT_SECRET"),
	}
	if v := getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if cfg.RedisConnectionString == "" {
		return Service{}, errors.New("missing redis config")
	}
	var err error
	if cfg.BoardCacheTTL, err = parseDuration(getenv, "BOARD_CACHE_TTL", cfg.BoardCacheTTL); err != nil {
		return Service{}, err
	}
	if cfg.DeduperTTL, err = parseDuration(getenv, "DEDUPER_TTL", cfg.DeduperTTL); err != nil {
		return Service{}, err
	}
	if cfg.NotifyWorkers, err = parsePositiveInt(getenv, "NOTIFY_WORKERS", cfg.NotifyWorkers); err != nil {
		return Service{}, err
	}
	if cfg.NotifyBuffer, err = parsePositiveInt(getenv, "NOTIFY_BUFFER", cfg.NotifyBuffer); err != nil {
		return Service{}, err
	}
	if v := getenv("BOARD_UPDATES_CHANNEL"); v != "" {
		cfg.UpdatesChannel = v
	}
	if cfg.Debug, err = parseBool(getenv, "DEBUG"); err != nil {
		return Service{}, err
	}
	if !cfg.AuthTestMode && (cfg.Auth0Domain == "" || cfg.Auth0Audience == "") {
		return Service{}, errors.New("missing Auth0 config")
	}
	return cfg, nil
}

func parseBool(getenv func(string) string, key string) (bool, error) {
	v := getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func parseDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be greater than zero", key)
	}
	return d, nil
}

func parsePositiveInt(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be greater than zero", key)
	}
	return n, nil
}
