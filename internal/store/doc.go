// Package store provides the single-writer SQLite handle driven by the engine.
//
// The handle is NOT safe for concurrent use. Exactly one goroutine (the
// engine worker) may call into it for its whole lifetime; every other
// caller reaches the database through the request queue.
//
// # Database Configuration
//
//   - journal_mode: configurable, OFF by default
//   - cache_size: configurable, 2000 pages by default
//   - synchronous: configurable, OFF by default
//   - one pinned connection (SetMaxOpenConns(1) plus a held *sql.Conn)
//
// # Transactions
//
// Unless autocommit is enabled, the first data-modifying statement
// (INSERT, UPDATE, DELETE, REPLACE) opens a transaction that stays open
// until Commit. Explicit BEGIN/COMMIT/ROLLBACK statements are tracked so
// Commit never issues a COMMIT outside a transaction.
//
// Two drivers are registered: "sqlite3" (github.com/mattn/go-sqlite3, the
// default) and "sqlite" (modernc.org/sqlite, pure Go).
package store
