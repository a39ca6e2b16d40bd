package queryir

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidIdentifier is returned for table, column or field names that
// cannot be placed into SQL text safely.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// identifierPattern matches a bare SQL identifier, optionally qualified
// with one table name ("name" or "table.name").
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// bareIdentifierPattern matches an unqualified SQL identifier.
var bareIdentifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var operators = map[Operator]bool{
	OpEq: true, OpNe: true, OpNeSQL: true,
	OpLt: true, OpLe: true, OpGt: true, OpGe: true,
	OpLike: true, OpNotLike: true, OpGlob: true,
	OpIs: true, OpIsNot: true,
}

// ValidIdentifier reports whether s is a field name ("name" or "table.name")
// safe to interpolate into SQL text.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// CheckName returns ErrInvalidIdentifier (wrapped with the offending name)
// when s is not an unqualified identifier. Used for table, index and column
// names in DDL.
func CheckName(s string) error {
	if !bareIdentifierPattern.MatchString(s) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	return nil
}

// ValidOperator reports whether op is in the operator whitelist.
func ValidOperator(op Operator) bool {
	return operators[Operator(strings.ToUpper(string(op)))]
}

// ValidationError lists every problem found in a predicate list.
type ValidationError struct {
	Problems []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "invalid predicate: " + strings.Join(e.Problems, "; ")
}

// Validate checks field identifiers, operators and connectives.
//
// All problems are collected, not just the first. Returns nil when the list
// is safe to compile. Validate is a pure function with no side effects.
func Validate(preds []Predicate) error {
	v := &validator{}
	for i, p := range preds {
		v.validatePredicate(i, p)
	}
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}

// ValidateSelect checks a Select: table, columns, filter and order keys.
func ValidateSelect(sel Select) error {
	v := &validator{}
	if err := CheckName(sel.From); err != nil {
		v.addProblem("from: %v", err)
	}
	for _, col := range sel.Columns {
		if !ValidIdentifier(col) {
			v.addProblem("column %q is not a valid identifier", col)
		}
	}
	for i, p := range sel.Filter {
		v.validatePredicate(i, p)
	}
	for _, key := range sel.OrderBy {
		field := strings.TrimSuffix(strings.TrimSuffix(key, " DESC"), " ASC")
		if !ValidIdentifier(field) {
			v.addProblem("order key %q is not a valid identifier", key)
		}
	}
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

// addProblem appends a problem message.
func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

// validatePredicate validates one top-level predicate node.
func (v *validator) validatePredicate(pos int, p Predicate) {
	switch pred := p.(type) {
	case nil:
		v.addProblem("predicate %d is nil", pos)
	case Condition:
		v.validateCondition(pred)
	case *Condition:
		v.validateCondition(*pred)
	case Group:
		v.validateGroup(pred)
	case *Group:
		v.validateGroup(*pred)
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

func (v *validator) validateCondition(c Condition) {
	if !ValidIdentifier(c.Field) {
		v.addProblem("field %q is not a valid identifier", c.Field)
	}
	if !ValidOperator(c.Operator()) {
		v.addProblem("operator %q on field %q is not supported", c.Op, c.Field)
	}
}

func (v *validator) validateGroup(g Group) {
	switch Connective(strings.ToUpper(string(g.Joiner()))) {
	case And, Or:
	default:
		v.addProblem("connective %q is not AND or OR", g.Connective)
	}
	for _, c := range g.Conditions {
		v.validateCondition(c)
	}
}
