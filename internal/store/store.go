package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names accepted in Options.Driver.
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

// Defaults applied by Open when the corresponding option is empty.
const (
	DefaultJournalMode = "OFF"
	DefaultCacheSize   = 2000
	DefaultSynchronous = "OFF"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var journalModes = map[string]bool{
	"DELETE": true, "TRUNCATE": true, "PERSIST": true,
	"MEMORY": true, "WAL": true, "OFF": true,
}

var synchronousModes = map[string]bool{
	"OFF": true, "NORMAL": true, "FULL": true, "EXTRA": true,
}

// Options configures the SQLite handle.
type Options struct {
	Path        string
	Driver      string
	Autocommit  bool
	JournalMode string
	CacheSize   int
	Synchronous string
}

// SQLite is a Handle backed by a single pinned database/sql connection.
type SQLite struct {
	db         *sql.DB
	conn       *sql.Conn
	autocommit bool
	inTx       bool
}

var _ Handle = (*SQLite)(nil)

// Open creates or opens a SQLite database and applies startup pragmas.
//
// The returned handle holds exactly one connection for its lifetime, so
// every statement runs on the same SQLite connection.
func Open(ctx context.Context, opts Options) (*SQLite, error) {
	if opts.Path == "" {
		return nil, errors.New("open database: empty path")
	}
	driver := opts.Driver
	if driver == "" {
		driver = DriverCGO
	}
	if driver != DriverCGO && driver != DriverPureGo {
		return nil, fmt.Errorf("open database: unknown driver %q", driver)
	}

	db, err := sql.Open(driver, DSN(opts.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := applyPragmas(ctx, conn, opts); err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &SQLite{db: db, conn: conn, autocommit: opts.Autocommit}, nil
}

// DSN turns a filesystem path into a data source name both drivers accept.
// Paths containing URI metacharacters are escaped into a file: URI so the
// drivers never parse part of the filename as query parameters.
func DSN(path string) string {
	if path == MemoryPath || strings.HasPrefix(path, "file:") {
		return path
	}
	if !strings.ContainsAny(path, "?#%") {
		return path
	}
	u := url.URL{Path: path}
	return "file:" + u.EscapedPath()
}

// applyPragmas sets the engine configuration on the pinned connection.
func applyPragmas(ctx context.Context, conn *sql.Conn, opts Options) error {
	journal := strings.ToUpper(opts.JournalMode)
	if journal == "" {
		journal = DefaultJournalMode
	}
	if !journalModes[journal] {
		return fmt.Errorf("invalid journal mode %q", opts.JournalMode)
	}

	cacheSize := opts.CacheSize
	if cacheSize == 0 {
		cacheSize = DefaultCacheSize
	}

	synchronous := strings.ToUpper(opts.Synchronous)
	if synchronous == "" {
		synchronous = DefaultSynchronous
	}
	if !synchronousModes[synchronous] {
		return fmt.Errorf("invalid synchronous mode %q", opts.Synchronous)
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA journal_mode = %s", journal),
		fmt.Sprintf("PRAGMA cache_size = %d", cacheSize),
		fmt.Sprintf("PRAGMA synchronous = %s", synchronous),
	}

	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// Exec runs a statement on the pinned connection.
func (s *SQLite) Exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	if err := s.beginIfNeeded(ctx, query); err != nil {
		return nil, err
	}
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	s.track(query)
	return res, nil
}

// Query runs a statement and returns a cursor over its rows.
func (s *SQLite) Query(ctx context.Context, query string, args []any) (Cursor, error) {
	if err := s.beginIfNeeded(ctx, query); err != nil {
		return nil, err
	}
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	s.track(query)
	return newRowsCursor(rows)
}

// Commit ends the open transaction, if any.
func (s *SQLite) Commit(ctx context.Context) error {
	if !s.inTx {
		return nil
	}
	if _, err := s.conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.inTx = false
	return nil
}

// Close commits pending writes and closes the connection.
// Safe to call more than once.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}

	var result *multierror.Error
	if err := s.Commit(context.Background()); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.conn.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close connection: %w", err))
	}
	if err := s.db.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close database: %w", err))
	}
	s.db = nil
	s.conn = nil

	return result.ErrorOrNil()
}

// InTransaction reports whether a transaction is currently open.
func (s *SQLite) InTransaction() bool {
	return s.inTx
}

// beginIfNeeded opens the implicit transaction before a data-modifying
// statement when autocommit is off.
func (s *SQLite) beginIfNeeded(ctx context.Context, query string) error {
	if s.autocommit || s.inTx {
		return nil
	}
	switch leadingKeyword(query) {
	case "INSERT", "UPDATE", "DELETE", "REPLACE":
	default:
		return nil
	}
	if _, err := s.conn.ExecContext(ctx, "BEGIN"); err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	s.inTx = true
	return nil
}

// track follows explicit transaction control statements.
func (s *SQLite) track(query string) {
	switch leadingKeyword(query) {
	case "BEGIN":
		s.inTx = true
	case "COMMIT", "END", "ROLLBACK":
		s.inTx = false
	}
}

// leadingKeyword returns the first word of a statement, upper-cased.
func leadingKeyword(query string) string {
	q := strings.TrimSpace(query)
	for strings.HasPrefix(q, "--") {
		nl := strings.IndexByte(q, '\n')
		if nl < 0 {
			return ""
		}
		q = strings.TrimSpace(q[nl+1:])
	}
	end := strings.IndexFunc(q, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end >= 0 {
		q = q[:end]
	}
	return strings.ToUpper(q)
}
