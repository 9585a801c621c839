// Package config provides environment-based configuration.
//
// Loads from .env file (godotenv) in main, maps environment variables to the
// Config struct with defaults, and validates durations and limits.
package config
