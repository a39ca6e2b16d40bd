package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// RequestKind distinguishes request shapes on the request channel.
type RequestKind int

const (
	// KindWrite executes a statement; no rows are returned.
	KindWrite RequestKind = iota + 1
	// KindQuery executes a statement and streams its rows back.
	KindQuery
	// KindCommit flushes pending writes to durable storage.
	KindCommit
	// KindClose stops the worker after closing the handle.
	KindClose
)

// String returns the lower-case request kind name used in logs.
func (k RequestKind) String() string {
	switch k {
	case KindWrite:
		return "write"
	case KindQuery:
		return "query"
	case KindCommit:
		return "commit"
	case KindClose:
		return "close"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Request is one message for the worker.
//
// Rows is set only for KindQuery. Ack is optional; when set, the worker
// sends exactly one Ack after processing instead of reporting failures
// to the ErrorHandler. Ack must have capacity 1 so the worker never waits
// on a caller that stopped listening.
type Request struct {
	Kind      RequestKind
	ID        string
	Statement string
	Params    []any
	Rows      *RowStream
	Ack       chan<- Ack
}

// Result describes the effect of a write.
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// Ack is the worker's reply to an acknowledged request.
type Ack struct {
	Result Result
	Err    error
}

// NewRequestID returns a time-ordered request identifier.
func NewRequestID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Write builds a fire-and-forget write request.
func Write(statement string, params []any) Request {
	return Request{Kind: KindWrite, ID: NewRequestID(), Statement: statement, Params: params}
}

// Query builds a query request streaming into rows.
func Query(statement string, params []any, rows *RowStream) Request {
	return Request{Kind: KindQuery, ID: NewRequestID(), Statement: statement, Params: params, Rows: rows}
}

// Commit builds a commit request.
func Commit() Request {
	return Request{Kind: KindCommit, ID: NewRequestID()}
}

// Close builds the terminal close request.
func Close() Request {
	return Request{Kind: KindClose, ID: NewRequestID()}
}
