package queryir

// Predicate is one item of a WHERE condition list.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the SQL compiler.
//
// Predicate types:
//   - Condition: field <op> value
//   - Group: parenthesized conditions joined by one connective
//
// A list of predicates is AND-joined at the top level.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Operator is a comparison operator accepted in a Condition.
type Operator string

// Supported operators. Anything else is rejected by Validate.
const (
	OpEq      Operator = "="
	OpNe      Operator = "!="
	OpNeSQL   Operator = "<>"
	OpLt      Operator = "<"
	OpLe      Operator = "<="
	OpGt      Operator = ">"
	OpGe      Operator = ">="
	OpLike    Operator = "LIKE"
	OpNotLike Operator = "NOT LIKE"
	OpGlob    Operator = "GLOB"
	OpIs      Operator = "IS"
	OpIsNot   Operator = "IS NOT"
)

// Connective joins the conditions of a Group.
type Connective string

const (
	And Connective = "AND"
	Or  Connective = "OR"
)

// Condition compares one field against one bound value.
//
// Semantics:
//
//	<field> <op> ?
//
// The value is never interpolated into SQL; it is returned separately in
// placeholder order. An empty Op means "=".
//
// Example:
//
//	Condition{Field: "name", Value: "a", Op: OpEq}
//
// Translates to SQL:
//
//	name = ?   -- values: ["a"]
type Condition struct {
	Field string
	Value any
	Op    Operator
}

func (Condition) predicateNode() {}

// Operator returns the effective operator, defaulting to "=".
func (c Condition) Operator() Operator {
	if c.Op == "" {
		return OpEq
	}
	return c.Op
}

// Group is a parenthesized list of conditions joined by Connective.
//
// Semantics:
//
//	(<cond1> <conn> <cond2> <conn> ... <condN>)
//
// An empty group contributes nothing to the fragment. An empty Connective
// means AND.
//
// Example:
//
//	Group{Connective: Or, Conditions: []Condition{
//	  {Field: "a", Value: 1},
//	  {Field: "b", Value: 2},
//	}}
//
// Translates to SQL:
//
//	(a = ? OR b = ?)   -- values: [1, 2]
type Group struct {
	Conditions []Condition
	Connective Connective
}

func (Group) predicateNode() {}

// Joiner returns the effective connective, defaulting to AND.
func (g Group) Joiner() Connective {
	if g.Connective == "" {
		return And
	}
	return g.Connective
}

// All wraps conditions as an AND-joined predicate list, in the given order.
func All(conds ...Condition) []Predicate {
	out := make([]Predicate, len(conds))
	for i, c := range conds {
		out[i] = c
	}
	return out
}

// Select is a basic table read.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order> LIMIT <limit>
//
// Empty Columns selects "*". Empty OrderBy leaves row order to SQLite.
// Limit <= 0 means no limit.
type Select struct {
	From    string
	Columns []string
	Filter  []Predicate
	OrderBy []string
	Limit   int
}
