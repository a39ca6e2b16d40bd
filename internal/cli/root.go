package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlq/internal/client"
	"github.com/roach88/sqlq/internal/config"
	"github.com/roach88/sqlq/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // .yaml, .yml or .cue config file
	EnvFile string

	// Database overrides, applied after the config file and SQLQ_* variables.
	DB          string
	Driver      string
	Autocommit  bool
	JournalMode string
	CacheSize   int
	LogFile     string

	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sqlq CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sqlq",
		Short: "sqlq - serialized SQLite access",
		Long: `Run statements against a SQLite database through a single worker.

Every statement becomes a request on one bounded queue consumed by one
worker that owns the database handle, so effects happen in submission
order no matter how many callers there are.

Settings come from --config, then SQLQ_* environment variables (optionally
loaded from --env-file), then flags.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := opts.resolveConfig(cmd)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			opts.cfg = cfg
			opts.logger, opts.closeLog = logger.New(logger.Options{
				Level:   cfg.Log.Level,
				Format:  cfg.Log.Format,
				File:    cfg.Log.File,
				Console: cmd.ErrOrStderr(),
			})
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.closeLog != nil {
				return opts.closeLog()
			}
			return nil
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVarP(&opts.Config, "config", "c", "", "config file (.yaml, .yml, .cue)")
	pf.StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file with SQLQ_* variables")
	pf.StringVar(&opts.DB, "db", "", "path to SQLite database")
	pf.StringVar(&opts.Driver, "driver", config.DefaultDriver, "database/sql driver (sqlite3|sqlite)")
	pf.BoolVar(&opts.Autocommit, "autocommit", false, "commit after every statement")
	pf.StringVar(&opts.JournalMode, "journal-mode", config.DefaultJournalMode, "SQLite journal mode")
	pf.IntVar(&opts.CacheSize, "cache-size", config.DefaultCacheSize, "SQLite page cache size")
	pf.StringVar(&opts.LogFile, "log-file", "", "rotating JSON log file")

	// Add subcommands
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewOneCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewCreateTableCommand(opts))
	cmd.AddCommand(NewCreateIndexCommand(opts))
	cmd.AddCommand(NewBenchCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// resolveConfig layers the config file, the environment and explicitly
// set flags, in that order. The result is not validated.
func (o *RootOptions) resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.Config != "" {
		var err error
		if cfg, err = config.Read(o.Config); err != nil {
			return config.Config{}, err
		}
	}

	if err := config.ApplyEnv(&cfg, o.EnvFile); err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	db := &cfg.Database
	if flags.Changed("db") {
		db.Path = o.DB
	}
	if flags.Changed("driver") {
		db.Driver = o.Driver
	}
	if flags.Changed("autocommit") {
		db.Autocommit = o.Autocommit
	}
	if flags.Changed("journal-mode") {
		db.JournalMode = o.JournalMode
	}
	if flags.Changed("cache-size") {
		db.CacheSize = o.CacheSize
	}
	if flags.Changed("log-file") {
		cfg.Log.File = o.LogFile
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}

	return cfg, nil
}

// openClient validates the resolved configuration and opens a client.
func (o *RootOptions) openClient(ctx context.Context) (*client.Client, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	c, err := client.Open(ctx, o.cfg.Database, client.WithLogger(o.logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return c, nil
}

// formatter returns an OutputFormatter writing to the command's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
