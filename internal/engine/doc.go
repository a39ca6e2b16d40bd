// Package engine implements the serialization engine in front of the
// single-writer SQLite handle.
//
// ARCHITECTURE:
//
// Single-Writer Worker:
// One goroutine (the Worker) owns the storage handle for its whole life and
// is the only code that calls into it. Any number of producers post Requests
// on a bounded channel; the worker drains them strictly in arrival order.
// This gives:
//   - total order of side effects (enqueue order == execution order)
//   - read-after-write for any single caller
//   - bounded memory: producers block when the channel is full
//
// Request Processing Flow:
//  1. Worker.Start opens the handle on the worker goroutine, then signals ready
//  2. Requests are received one at a time (blocking receive, no polling)
//  3. Write/Commit run against the handle; failures go to the ErrorHandler
//  4. Query streams rows into the request's RowStream, then the sentinel
//  5. Close commits, closes the handle and ends the loop
//
// ERROR HANDLING:
// A failed request never stops the loop ("log and continue"). Callers that
// need the outcome attach an Ack channel to the request.
package engine
