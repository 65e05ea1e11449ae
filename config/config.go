// Package config loads the sqlio configuration file.
//
//	database:
//	  path: /var/lib/sqlio/events.db
//	  busy_timeout: 5s
//	  max_open_conns: 1
//	  statement_ttl: 10m
//	log:
//	  level: info
//	  service: sqlio
//	  file: /var/log/sqlio.log
//	init:
//	  - CREATE TABLE IF NOT EXISTS conn_cb (token TEXT, remote_addr TEXT)
//	  - CREATE TABLE IF NOT EXISTS data_cb (token TEXT, byte INTEGER)
//	  - SELECT tcp_listen('127.0.0.1:7000', 'conn_cb', 'data_cb')
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cyberinferno/go-sqlio/logger"
)

// Config is the top level configuration.
type Config struct {
	Database Database `yaml:"database"`
	Log      Log      `yaml:"log"`
	// Init holds statements run once after the database is opened.
	Init []string `yaml:"init,omitempty"`
}

// Database configures the host engine session.
type Database struct {
	Path         string        `yaml:"path"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	StatementTTL time.Duration `yaml:"statement_ttl"`
}

// Log configures the logger.
type Log struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	// File, if set, receives JSON log lines instead of the console.
	File string `yaml:"file,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Database: Database{
			Path:         "sqlio.db",
			BusyTimeout:  5 * time.Second,
			MaxOpenConns: 1,
			StatementTTL: 10 * time.Minute,
		},
		Log: Log{
			Level:   "info",
			Service: "sqlio",
		},
	}
}

// Load reads the YAML file at path over Default(). Unknown fields are
// rejected.
//
// Parameters:
//   - path: The configuration file
//
// Returns:
//   - The merged, validated configuration
//   - An error if the file cannot be read, parsed or validated
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML over Default() and validates the result. Empty input
// yields the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("database.busy_timeout must not be negative, got %s", c.Database.BusyTimeout)
	}
	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("database.max_open_conns must not be negative, got %d", c.Database.MaxOpenConns)
	}
	if c.Database.StatementTTL < 0 {
		return fmt.Errorf("database.statement_ttl must not be negative, got %s", c.Database.StatementTTL)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}

// LoggerOptions converts the log section for logger.New.
func (c Config) LoggerOptions() logger.Options {
	return logger.Options{
		Service: c.Log.Service,
		Level:   c.Log.Level,
		File:    c.Log.File,
	}
}
