package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvPath         = "SQLQ_DB_PATH"
	EnvDriver       = "SQLQ_DB_DRIVER"
	EnvAutocommit   = "SQLQ_AUTOCOMMIT"
	EnvJournalMode  = "SQLQ_JOURNAL_MODE"
	EnvCacheSize    = "SQLQ_CACHE_SIZE"
	EnvSynchronous  = "SQLQ_SYNCHRONOUS"
	EnvQueueSize    = "SQLQ_QUEUE_SIZE"
	EnvPathEncoding = "SQLQ_PATH_ENCODING"
	EnvLogLevel     = "SQLQ_LOG_LEVEL"
	EnvLogFile      = "SQLQ_LOG_FILE"
	EnvLogFormat    = "SQLQ_LOG_FORMAT"
)

// ApplyEnv overrides cfg with SQLQ_* environment variables.
//
// If envFile is non-empty it is loaded first with godotenv; a missing file
// is ignored. Variables already set in the process environment win over the
// file. Mode names are upper-cased, log settings lower-cased.
func ApplyEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	db := &cfg.Database
	setString(&db.Path, EnvPath, strings.TrimSpace)
	setString(&db.Driver, EnvDriver, strings.ToLower)
	setString(&db.JournalMode, EnvJournalMode, strings.ToUpper)
	setString(&db.Synchronous, EnvSynchronous, strings.ToUpper)
	setString(&db.PathEncoding, EnvPathEncoding, strings.TrimSpace)

	if v, ok := os.LookupEnv(EnvAutocommit); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAutocommit, err)
		}
		db.Autocommit = b
	}
	if err := setInt(&db.CacheSize, EnvCacheSize); err != nil {
		return err
	}
	if err := setInt(&db.QueueSize, EnvQueueSize); err != nil {
		return err
	}

	setString(&cfg.Log.Level, EnvLogLevel, strings.ToLower)
	setString(&cfg.Log.File, EnvLogFile, strings.TrimSpace)
	setString(&cfg.Log.Format, EnvLogFormat, strings.ToLower)
	return nil
}

func setString(dst *string, key string, norm func(string) string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = norm(v)
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
