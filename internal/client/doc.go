// Package client is the caller-facing facade over the serialization engine.
//
// Any number of goroutines share one Client. Writes are fire-and-forget:
// Execute returns as soon as the request is queued, and a failed statement
// is reported to the error handler instead of the caller. Reads look
// synchronous: Select queues a query behind every earlier request and
// streams its rows back, so a caller always sees its own prior writes.
//
// Example:
//
//	c, err := client.Open(ctx, config.DefaultDatabase("app.db"))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	_ = c.Execute(ctx, "CREATE TABLE t(id INTEGER, name TEXT)")
//	_ = c.ExecuteMany(ctx, "INSERT INTO t VALUES (?, ?)", [][]any{{1, "a"}, {2, "b"}})
//	_ = c.Commit(ctx)
//
//	row, found, err := c.SelectOne(ctx, "SELECT name FROM t WHERE id = ?", 2)
//
// When a caller needs the outcome of a write, ExecWait and CommitWait keep
// the same ordering but wait for the worker's reply.
package client
