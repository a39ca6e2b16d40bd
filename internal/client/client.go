package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/sqlq/internal/config"
	"github.com/roach88/sqlq/internal/engine"
	"github.com/roach88/sqlq/internal/store"
)

// ErrClosed is returned by every operation issued after Close.
var ErrClosed = errors.New("client is closed")

// Row is one result row in column order.
type Row = engine.Row

// Result describes the effect of an acknowledged write.
type Result = engine.Result

// Option configures a Client.
type Option func(*settings)

type settings struct {
	logger  *slog.Logger
	onError engine.ErrorHandler
	opener  engine.Opener
}

// WithLogger sets the logger for the client and its worker.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithErrorHandler receives failures of fire-and-forget requests.
// Default: one structured error record per failure on the logger.
func WithErrorHandler(h engine.ErrorHandler) Option {
	return func(s *settings) {
		s.onError = h
	}
}

// WithOpener replaces the SQLite handle factory. Used by tests.
func WithOpener(open engine.Opener) Option {
	return func(s *settings) {
		s.opener = open
	}
}

// Client is the facade callers use from any goroutine.
//
// Every operation becomes a request on one bounded channel consumed by a
// single worker, so effects happen in enqueue order and a caller's read
// observes its own earlier writes.
//
// Thread-safety model:
//   - all methods: safe from any goroutine
//   - Close(): the close request is the last request ever enqueued
type Client struct {
	reqs   chan engine.Request
	worker *engine.Worker
	logger *slog.Logger

	autocommit  bool
	journalMode string
	cacheSize   int

	// mu guards closed and filename. Enqueues hold the read lock so Close
	// cannot slip its request in ahead of one already admitted.
	mu       sync.RWMutex
	closed   bool
	filename string

	closeOnce sync.Once
	closeErr  error
}

// Open validates cfg, starts the worker and waits until the database handle
// is open. ctx bounds only the startup wait.
func Open(ctx context.Context, cfg config.Database, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	filename, err := cfg.ResolvePath()
	if err != nil {
		return nil, err
	}

	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.opener == nil {
		s.opener = sqliteOpener(filename, cfg)
	}

	workerOpts := []engine.WorkerOption{
		engine.WithAutocommit(cfg.Autocommit),
		engine.WithLogger(s.logger),
	}
	if s.onError != nil {
		workerOpts = append(workerOpts, engine.WithErrorHandler(s.onError))
	}

	reqs := make(chan engine.Request, cfg.QueueSize)
	w := engine.NewWorker(s.opener, reqs, workerOpts...)

	s.logger.Debug("client starting", "file", filename, "driver", cfg.Driver, "queue_size", cfg.QueueSize)
	if err := w.Start(ctx); err != nil {
		close(reqs)
		return nil, fmt.Errorf("open client: %w", err)
	}

	return &Client{
		reqs:        reqs,
		worker:      w,
		logger:      s.logger,
		autocommit:  cfg.Autocommit,
		journalMode: cfg.JournalMode,
		cacheSize:   cfg.CacheSize,
		filename:    filename,
	}, nil
}

// sqliteOpener opens the real handle with the configured pragmas.
func sqliteOpener(filename string, cfg config.Database) engine.Opener {
	return func(ctx context.Context) (store.Handle, error) {
		return store.Open(ctx, store.Options{
			Path:        filename,
			Driver:      cfg.Driver,
			Autocommit:  cfg.Autocommit,
			JournalMode: cfg.JournalMode,
			CacheSize:   cfg.CacheSize,
			Synchronous: cfg.Synchronous,
		})
	}
}

// enqueue places req on the request channel, blocking while it is full.
func (c *Client) enqueue(ctx context.Context, req engine.Request) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}

	select {
	case c.reqs <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Execute enqueues a statement and returns without waiting for it to run.
// Failures are reported to the error handler.
func (c *Client) Execute(ctx context.Context, statement string, params ...any) error {
	return c.enqueue(ctx, engine.Write(statement, params))
}

// ExecuteMany enqueues statement once per item, in item order.
func (c *Client) ExecuteMany(ctx context.Context, statement string, items [][]any) error {
	for i, params := range items {
		if err := c.enqueue(ctx, engine.Write(statement, params)); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// ExecWait enqueues a statement and waits for the worker's outcome.
// Ordering is the same as Execute; ctx bounds the wait.
func (c *Client) ExecWait(ctx context.Context, statement string, params ...any) (Result, error) {
	ack := make(chan engine.Ack, 1)
	req := engine.Write(statement, params)
	req.Ack = ack

	if err := c.enqueue(ctx, req); err != nil {
		return Result{}, err
	}
	select {
	case a := <-ack:
		return a.Result, a.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Select enqueues a query and returns its rows. Rows stream in as the
// worker produces them; iterate with Next or All, then check Err.
func (c *Client) Select(ctx context.Context, statement string, params ...any) (*Rows, error) {
	stream := engine.NewRowStream()
	if err := c.enqueue(ctx, engine.Query(statement, params, stream)); err != nil {
		return nil, err
	}
	return &Rows{ctx: ctx, stream: stream}, nil
}

// SelectOne returns the first row of a query. found is false, with a nil
// error, when the query matched nothing. The rest of the result is dropped.
func (c *Client) SelectOne(ctx context.Context, statement string, params ...any) (row Row, found bool, err error) {
	rows, err := c.Select(ctx, statement, params...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	if rows.Next() {
		return rows.Row(), true, nil
	}
	return nil, false, rows.Err()
}

// Commit enqueues a commit and returns at once.
func (c *Client) Commit(ctx context.Context) error {
	return c.enqueue(ctx, engine.Commit())
}

// CommitWait enqueues a commit and waits for it to complete.
func (c *Client) CommitWait(ctx context.Context) error {
	ack := make(chan engine.Ack, 1)
	req := engine.Commit()
	req.Ack = ack

	if err := c.enqueue(ctx, req); err != nil {
		return err
	}
	select {
	case a := <-ack:
		return a.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting requests, lets the worker finish everything already
// queued, commits and closes the database. It blocks until the worker has
// exited. Calling Close again returns the first call's result.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.filename = ""
		c.reqs <- engine.Close()
		c.mu.Unlock()

		<-c.worker.Done()
		c.closeErr = c.worker.Err()
		c.logger.Debug("client closed", "error", c.closeErr)
	})
	return c.closeErr
}

// Filename returns the database filename, or "" once the client is closed.
func (c *Client) Filename() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filename
}

// Autocommit reports whether every statement is committed on its own.
func (c *Client) Autocommit() bool {
	return c.autocommit
}

// JournalMode returns the configured journal mode.
func (c *Client) JournalMode() string {
	return c.journalMode
}

// CacheSize returns the configured page cache size.
func (c *Client) CacheSize() int {
	return c.cacheSize
}

// QueueDepth returns the number of requests waiting for the worker.
func (c *Client) QueueDepth() int {
	return len(c.reqs)
}

// State returns the worker lifecycle state.
func (c *Client) State() engine.State {
	return c.worker.State()
}
