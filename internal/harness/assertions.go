package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/sqlq/internal/client"
	"github.com/roach88/sqlq/internal/queryir"
	"github.com/roach88/sqlq/internal/querysql"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", formatEvent(event))
		}
	}

	return buf.String()
}

// assertTraceContains checks that some traced statement contains the
// assertion's statement text.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if strings.Contains(event.Statement, assertion.Statement) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("statement containing %q", assertion.Statement),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if operations appear in the specified order.
// Operations don't need to be consecutive. Each expected op is matched
// against the first occurrence after the previous match, so repeated ops
// may be listed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, op := range assertion.Ops {
		found := false
		for pos < len(trace) {
			event := trace[pos]
			pos++
			if event.Op == op {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", assertion.Ops),
				Actual:   fmt.Sprintf("%s not found in remaining trace", op),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the op appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == assertion.Op {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertRowCount counts the rows of the table matching the where filters.
func assertRowCount(ctx context.Context, c *client.Client, assertion Assertion) error {
	if err := queryir.CheckName(assertion.Table); err != nil {
		return fmt.Errorf("row_count: %w", err)
	}

	where := querysql.NewWhere(equalities(assertion.Where)...)
	if err := where.Err(); err != nil {
		return fmt.Errorf("row_count: %w", err)
	}

	row, found, err := c.SelectOne(ctx, "SELECT COUNT(*) FROM "+assertion.Table+where.Clause(), where.Values()...)
	if err != nil || !found {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("count rows of %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	if !valuesEqual(int64(assertion.Count), row[0]) {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s where %s", assertion.Count, assertion.Table, formatWhere(assertion.Where)),
			Actual:   fmt.Sprintf("%v rows", row[0]),
		}
	}
	return nil
}

// assertFinalState checks that exactly one row matches the where filters
// and that it holds the expected values. Only listed columns are checked.
func assertFinalState(ctx context.Context, c *client.Client, assertion Assertion) error {
	columns := sortedKeys(assertion.Expect)
	query, values, err := querysql.CompileSelect(queryir.Select{
		From:    assertion.Table,
		Columns: columns,
		Filter:  equalities(assertion.Where),
	})
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}

	rows, err := c.Select(ctx, query, values...)
	if err != nil {
		return err
	}
	all, err := rows.Collect()
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	switch {
	case len(all) == 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhere(assertion.Where)),
			Actual:   "row not found",
		}
	case len(all) > 1:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhere(assertion.Where)),
			Actual:   fmt.Sprintf("%d rows matched (assertion is ambiguous)", len(all)),
		}
	}

	for i, col := range columns {
		if !valuesEqual(assertion.Expect[col], all[0][i]) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v", col, assertion.Expect[col]),
				Actual:   fmt.Sprintf("field %q = %v", col, all[0][i]),
			}
		}
	}
	return nil
}

// equalities turns a where map into AND-joined equality conditions.
// Keys are sorted for deterministic SQL.
func equalities(where map[string]any) []queryir.Predicate {
	preds := make([]queryir.Predicate, 0, len(where))
	for _, key := range sortedKeys(where) {
		preds = append(preds, queryir.Condition{Field: key, Value: normalize(where[key])})
	}
	return preds
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatWhere creates a human-readable description of where filters.
func formatWhere(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// normalize maps a YAML or driver value onto the types SQLite hands back:
// integers become int64, booleans become 0/1 and byte slices become strings.
func normalize(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case uint64:
		return int64(val)
	case bool:
		if val {
			return int64(1)
		}
		return int64(0)
	case []byte:
		return string(val)
	default:
		return val
	}
}

func normalizeRow(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = normalize(v)
	}
	return out
}

// valuesEqual compares an expected value against an actual one after
// normalizing both.
func valuesEqual(expected, actual any) bool {
	e, a := normalize(expected), normalize(actual)
	if ef, ok := e.(float64); ok {
		if ai, ok := a.(int64); ok {
			return ef == float64(ai)
		}
	}
	return reflect.DeepEqual(e, a)
}

func rowsEqual(expected, actual []any) bool {
	if len(expected) != len(actual) {
		return false
	}
	for i := range expected {
		if !valuesEqual(expected[i], actual[i]) {
			return false
		}
	}
	return true
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// c provides database access for row_count and final_state.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, c *client.Client) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertRowCount, AssertFinalState:
			if c == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a database", i, assertion.Type)
			} else if assertion.Type == AssertRowCount {
				err = assertRowCount(ctx, c, assertion)
			} else {
				err = assertFinalState(ctx, c, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
