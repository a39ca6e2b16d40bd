// Package config loads and validates sqlq configuration.
//
// Sources, later ones winning:
//  1. Default()
//  2. a YAML (.yaml/.yml) or CUE (.cue) file via Load
//  3. SQLQ_* environment variables (and an optional .env file) via ApplyEnv
//  4. command-line flags, applied by the CLI
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Defaults for the database section.
const (
	DefaultDriver      = "sqlite3"
	DefaultJournalMode = "OFF"
	DefaultCacheSize   = 2000
	DefaultSynchronous = "OFF"
	DefaultQueueSize   = 50
)

// Config is the full configuration file.
type Config struct {
	Database Database `yaml:"database" json:"database"`
	Log      Log      `yaml:"log" json:"log"`
}

// Database configures the client and its storage handle.
type Database struct {
	Path         string `yaml:"path" json:"path" validate:"required"`
	Driver       string `yaml:"driver" json:"driver" validate:"oneof=sqlite3 sqlite"`
	Autocommit   bool   `yaml:"autocommit" json:"autocommit"`
	JournalMode  string `yaml:"journal_mode" json:"journal_mode" validate:"oneof=OFF DELETE TRUNCATE PERSIST MEMORY WAL"`
	CacheSize    int    `yaml:"cache_size" json:"cache_size" validate:"ne=0"`
	Synchronous  string `yaml:"synchronous" json:"synchronous" validate:"oneof=OFF NORMAL FULL EXTRA"`
	QueueSize    int    `yaml:"queue_size" json:"queue_size" validate:"gt=0"`
	PathEncoding string `yaml:"path_encoding,omitempty" json:"path_encoding,omitempty"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`
}

var validate = validator.New()

// Default returns the configuration used when nothing is specified.
// Path is left empty; it must come from a file, the environment or a flag.
func Default() Config {
	return Config{
		Database: DefaultDatabase(""),
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultDatabase returns the database defaults for path.
func DefaultDatabase(path string) Database {
	return Database{
		Path:        path,
		Driver:      DefaultDriver,
		JournalMode: DefaultJournalMode,
		CacheSize:   DefaultCacheSize,
		Synchronous: DefaultSynchronous,
		QueueSize:   DefaultQueueSize,
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := validate.Struct(c.Log); err != nil {
		return fmt.Errorf("invalid log config: %w", err)
	}
	return nil
}

// Validate checks field values and that PathEncoding names a known charset.
func (d Database) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid database config: %w", err)
	}
	if _, err := d.ResolvePath(); err != nil {
		return fmt.Errorf("invalid database config: %w", err)
	}
	return nil
}
