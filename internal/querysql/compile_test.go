package querysql

import (
	"fmt"
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlq/internal/queryir"
)

func TestCompile_SingleCondition(t *testing.T) {
	sql, values, err := Compile(queryir.All(queryir.Condition{Field: "field", Value: "3", Op: queryir.OpEq}))
	require.NoError(t, err)

	assert.Equal(t, "field = ?", sql)
	assert.Equal(t, []any{"3"}, values)
}

func TestCompile_TwoConditions(t *testing.T) {
	sql, values, err := Compile(queryir.All(
		queryir.Condition{Field: "field", Value: "3"},
		queryir.Condition{Field: "foo", Value: "4"},
	))
	require.NoError(t, err)

	assert.Equal(t, "field = ? AND foo = ?", sql)
	assert.Equal(t, []any{"3", "4"}, values)
}

func TestCompile_Empty(t *testing.T) {
	sql, values, err := Compile(nil)
	require.NoError(t, err)

	assert.Equal(t, "", sql)
	assert.Empty(t, values)
}

func TestCompile_GroupWithOr(t *testing.T) {
	sql, values, err := Compile([]queryir.Predicate{
		queryir.Condition{Field: "a", Value: 1},
		queryir.Group{Connective: queryir.Or, Conditions: []queryir.Condition{
			{Field: "b", Value: 2},
			{Field: "c", Value: 3, Op: queryir.OpGt},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "a = ? AND (b = ? OR c > ?)", sql)
	assert.Equal(t, []any{1, 2, 3}, values)
}

func TestCompile_EmptyGroupSkipped(t *testing.T) {
	sql, values, err := Compile([]queryir.Predicate{
		queryir.Group{Connective: queryir.Or},
		queryir.Condition{Field: "a", Value: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, "a = ?", sql)
	assert.Equal(t, []any{1}, values)
}

func TestCompile_NeverInterpolatesValues(t *testing.T) {
	sql, values, err := Compile(queryir.All(
		queryir.Condition{Field: "name", Value: "x' OR '1'='1"},
	))
	require.NoError(t, err)

	assert.NotContains(t, sql, "OR")
	assert.Equal(t, "name = ?", sql)
	assert.Equal(t, []any{"x' OR '1'='1"}, values)
}

func TestCompile_LowercaseOperatorNormalized(t *testing.T) {
	sql, _, err := Compile(queryir.All(queryir.Condition{Field: "name", Value: "a%", Op: "like"}))
	require.NoError(t, err)

	assert.Equal(t, "name LIKE ?", sql)
}

func TestCompile_RejectsInvalidField(t *testing.T) {
	_, _, err := Compile(queryir.All(queryir.Condition{Field: "a; DROP TABLE t", Value: 1}))
	require.Error(t, err)

	var verr *queryir.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCompileSelect(t *testing.T) {
	sql, values, err := CompileSelect(queryir.Select{
		From:    "t",
		Columns: []string{"id", "name"},
		Filter:  queryir.All(queryir.Condition{Field: "name", Value: "a"}),
		OrderBy: []string{"id"},
		Limit:   10,
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, name FROM t WHERE name = ? ORDER BY id LIMIT 10", sql)
	assert.Equal(t, []any{"a"}, values)
}

func TestCompileSelect_Minimal(t *testing.T) {
	sql, values, err := CompileSelect(queryir.Select{From: "t"})
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM t", sql)
	assert.Empty(t, values)
}

func TestCompileSelect_RejectsBadTable(t *testing.T) {
	_, _, err := CompileSelect(queryir.Select{From: "t; DROP TABLE x"})
	assert.Error(t, err)
}

func TestWhere_Clause(t *testing.T) {
	w := NewWhere(queryir.Condition{Field: "field", Value: "3"})

	assert.Equal(t, "field = ?", w.SQL())
	assert.Equal(t, " WHERE field = ?", w.Clause())
	assert.Equal(t, []any{"3"}, w.Values())
	assert.NoError(t, w.Err())
}

func TestWhere_EmptyClause(t *testing.T) {
	w := NewWhere()

	assert.Equal(t, "", w.Clause())
	assert.Equal(t, " | []", w.String())
}

func TestWhere_String(t *testing.T) {
	w := NewWhere(
		queryir.Condition{Field: "field", Value: "3"},
		queryir.Condition{Field: "foo", Value: "4"},
	)

	assert.Equal(t, " WHERE field = ? AND foo = ? | [3 4]", w.String())
}

func TestWhere_ValuesBeforeSQL(t *testing.T) {
	// Values is usable on its own; it triggers compilation
	w := NewWhere(queryir.Condition{Field: "a", Value: 7})

	assert.Equal(t, []any{7}, w.Values())
	assert.Equal(t, "a = ?", w.SQL())
}

func TestWhere_InvalidPredicate(t *testing.T) {
	w := NewWhere(queryir.Condition{Field: "bad field", Value: 1})

	assert.Error(t, w.Err())
	assert.Equal(t, "", w.Clause())
	assert.Nil(t, w.Values())
	assert.Contains(t, w.String(), "invalid where")
}

func TestWhere_ConcurrentUse(t *testing.T) {
	w := NewWhere(queryir.Condition{Field: "a", Value: 1})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, " WHERE a = ?", w.Clause())
		}()
	}
	wg.Wait()
}

// TestCompile_Golden pins the compiled fragments of representative
// predicate lists.
func TestCompile_Golden(t *testing.T) {
	cases := []struct {
		name  string
		preds []queryir.Predicate
	}{
		{
			name: "mixed_operators",
			preds: []queryir.Predicate{
				queryir.Condition{Field: "t.id", Value: 10, Op: queryir.OpGe},
				queryir.Condition{Field: "name", Value: "a%", Op: queryir.OpLike},
				queryir.Condition{Field: "deleted", Value: nil, Op: queryir.OpIs},
			},
		},
		{
			name: "nested_groups",
			preds: []queryir.Predicate{
				queryir.Group{Connective: queryir.Or, Conditions: []queryir.Condition{
					{Field: "status", Value: "new"},
					{Field: "status", Value: "open"},
				}},
				queryir.Group{Conditions: []queryir.Condition{
					{Field: "score", Value: 1, Op: queryir.OpGt},
					{Field: "score", Value: 9, Op: queryir.OpLt},
				}},
			},
		},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := NewWhere(tc.preds...)
			require.NoError(t, w.Err())
			out := fmt.Sprintf("sql: %s\nvalues: %v\n", w.Clause(), w.Values())
			g.Assert(t, tc.name, []byte(out))
		})
	}
}
