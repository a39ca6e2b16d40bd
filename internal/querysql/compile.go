package querysql

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/sqlq/internal/queryir"
)

// Compile converts a predicate list to a parameterized WHERE fragment.
// Returns (sql, values, error). The fragment has no " WHERE " prefix.
//
// CRITICAL: values are NEVER interpolated - every value becomes a ?
// placeholder and is returned in placeholder order.
//
// Top-level predicates are AND-joined. Groups are parenthesized and joined
// with their connective; empty groups are skipped. An empty list compiles
// to "".
func Compile(preds []queryir.Predicate) (string, []any, error) {
	if err := queryir.Validate(preds); err != nil {
		return "", nil, err
	}

	var parts []string
	values := []any{}

	for _, p := range preds {
		sql, vals, err := compilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		if sql == "" {
			continue
		}
		parts = append(parts, sql)
		values = append(values, vals...)
	}

	return strings.Join(parts, " AND "), values, nil
}

// compilePredicate compiles one predicate node.
func compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Condition:
		return compileCondition(pred)
	case *queryir.Condition:
		return compileCondition(*pred)
	case queryir.Group:
		return compileGroup(pred)
	case *queryir.Group:
		return compileGroup(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileCondition compiles "field <op> ?".
func compileCondition(c queryir.Condition) (string, []any, error) {
	op := strings.ToUpper(string(c.Operator()))
	return c.Field + " " + op + " ?", []any{c.Value}, nil
}

// compileGroup compiles "(a = ? OR b = ?)".
func compileGroup(g queryir.Group) (string, []any, error) {
	if len(g.Conditions) == 0 {
		return "", nil, nil
	}

	joiner := " " + strings.ToUpper(string(g.Joiner())) + " "
	parts := make([]string, 0, len(g.Conditions))
	values := make([]any, 0, len(g.Conditions))

	for _, c := range g.Conditions {
		sql, vals, err := compileCondition(c)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		values = append(values, vals...)
	}

	return "(" + strings.Join(parts, joiner) + ")", values, nil
}

// CompileSelect compiles a full SELECT statement.
//
// Identifiers are validated before they are placed in SQL text; filter
// values are parameterized.
func CompileSelect(sel queryir.Select) (string, []any, error) {
	if err := queryir.ValidateSelect(sel); err != nil {
		return "", nil, err
	}

	cols := "*"
	if len(sel.Columns) > 0 {
		cols = strings.Join(sel.Columns, ", ")
	}

	where, values, err := Compile(sel.Filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(cols)
	b.WriteString(" FROM ")
	b.WriteString(sel.From)
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	if len(sel.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(sel.OrderBy, ", "))
	}
	if sel.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(sel.Limit))
	}

	return b.String(), values, nil
}

// Where is a memoized WHERE clause builder.
//
// The predicate list is compiled once, on first use; later calls return the
// cached fragment and values. Safe for concurrent use.
type Where struct {
	preds []queryir.Predicate

	once   sync.Once
	sql    string
	values []any
	err    error
}

// NewWhere creates a builder over preds. Nothing is compiled until used.
func NewWhere(preds ...queryir.Predicate) *Where {
	return &Where{preds: preds}
}

func (w *Where) compile() {
	w.once.Do(func() {
		w.sql, w.values, w.err = Compile(w.preds)
	})
}

// SQL returns the fragment without the " WHERE " prefix, or "" when there
// are no conditions or compilation failed.
func (w *Where) SQL() string {
	w.compile()
	return w.sql
}

// Clause returns " WHERE " + fragment, or "" when there are no conditions.
func (w *Where) Clause() string {
	w.compile()
	if w.sql == "" {
		return ""
	}
	return " WHERE " + w.sql
}

// Values returns the bound values in placeholder order.
func (w *Where) Values() []any {
	w.compile()
	return w.values
}

// Err returns the compilation error, if any.
func (w *Where) Err() error {
	w.compile()
	return w.err
}

// String renders "clause | values" for logs.
func (w *Where) String() string {
	w.compile()
	if w.err != nil {
		return "invalid where: " + w.err.Error()
	}
	return fmt.Sprintf("%s | %v", w.Clause(), w.values)
}
