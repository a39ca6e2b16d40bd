// Package queryir provides the condition model used to build WHERE clauses.
//
// ARCHITECTURE:
//
// Callers describe filters as data; the querysql package turns them into a
// parameterized SQL fragment plus its values:
//
//	[]Predicate → querysql.Compile → ("a = ? AND (b = ? OR c = ?)", [1, 2, 3])
//
// PREDICATES:
//
//   - Condition{Field, Value, Op} - one comparison, Op defaults to "="
//   - Group{Conditions, Connective} - parenthesized, joined by AND or OR
//
// Top-level predicates are always AND-joined. Values never appear in SQL
// text; field names do, so Validate rejects anything that is not a plain
// identifier ("name" or "table.name") and any operator outside the
// whitelist.
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern. Only
// types in this package implement it, so compilers can switch exhaustively:
//
//	switch p := pred.(type) {
//	case Condition:
//	    // one comparison
//	case Group:
//	    // parenthesized list
//	}
package queryir
