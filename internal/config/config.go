package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv              string
	ListenAddr          string
	AdminPort           string
	AcceptTimeout       time.Duration
	PollInterval        time.Duration
	FirehoseTick        time.Duration
	MaxConnections      int64
	MaxConnectionsPerIP int
	ConnectionRate      float64
	ConnectionBurst     int
	LogLevel            string
	LogFormat           string
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:     getEnv("APP_ENV", "development"),
		ListenAddr: getEnv("CHAT_LISTEN_ADDR", ":4444"),
		AdminPort:  getEnv("ADMIN_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.AcceptTimeout, err = getDuration("ACCEPT_TIMEOUT", time.Second); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = getDuration("POLL_INTERVAL", 50*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.FirehoseTick, err = getDuration("FIREHOSE_TICK", 50*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.MaxConnections, err = getInt64("MAX_CONNECTIONS", 1024); err != nil {
		return nil, err
	}
	maxPerIP, err := getInt64("MAX_CONNECTIONS_PER_IP", 32)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnectionsPerIP = int(maxPerIP)
	if cfg.ConnectionRate, err = getFloat("CONNECTION_RATE", 10); err != nil {
		return nil, err
	}
	burst, err := getInt64("CONNECTION_BURST", 20)
	if err != nil {
		return nil, err
	}
	cfg.ConnectionBurst = int(burst)

	if cfg.AcceptTimeout <= 0 {
		return nil, fmt.Errorf("ACCEPT_TIMEOUT must be positive, got %v", cfg.AcceptTimeout)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive, got %v", cfg.PollInterval)
	}
	if cfg.FirehoseTick <= 0 {
		return nil, fmt.Errorf("FIREHOSE_TICK must be positive, got %v", cfg.FirehoseTick)
	}
	if cfg.MaxConnections <= 0 {
		return nil, fmt.Errorf("MAX_CONNECTIONS must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.MaxConnectionsPerIP <= 0 {
		return nil, fmt.Errorf("MAX_CONNECTIONS_PER_IP must be positive, got %d", cfg.MaxConnectionsPerIP)
	}
	if cfg.ConnectionRate <= 0 {
		return nil, fmt.Errorf("CONNECTION_RATE must be positive, got %v", cfg.ConnectionRate)
	}
	if cfg.ConnectionBurst <= 0 {
		return nil, fmt.Errorf("CONNECTION_BURST must be positive, got %d", cfg.ConnectionBurst)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return f, nil
}
