package queryir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"name", true},
		{"_private", true},
		{"col2", true},
		{"t.name", true},
		{"", false},
		{"2col", false},
		{"a b", false},
		{"a;DROP TABLE t", false},
		{"a.b.c", false},
		{"a.", false},
		{"name--", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidIdentifier(tt.in))
		})
	}
}

func TestCheckName(t *testing.T) {
	assert.NoError(t, CheckName("users"))

	err := CheckName("t.name")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidIdentifier))
	assert.Contains(t, err.Error(), `"t.name"`)
}

func TestValidOperator(t *testing.T) {
	for _, op := range []Operator{"=", "!=", "<>", "<", "<=", ">", ">=", "LIKE", "like", "NOT LIKE", "GLOB", "IS", "IS NOT"} {
		assert.True(t, ValidOperator(op), "operator %q", op)
	}
	for _, op := range []Operator{"", "==", "IN", "; DROP", "OR"} {
		assert.False(t, ValidOperator(op), "operator %q", op)
	}
}

func TestValidate_Valid(t *testing.T) {
	preds := []Predicate{
		Condition{Field: "name", Value: "a"},
		Condition{Field: "t.age", Value: 3, Op: OpGe},
		Group{Connective: Or, Conditions: []Condition{
			{Field: "x", Value: 1},
			{Field: "y", Value: nil, Op: OpIs},
		}},
		&Condition{Field: "z", Value: 0},
		&Group{},
	}

	assert.NoError(t, Validate(preds))
}

func TestValidate_Empty(t *testing.T) {
	assert.NoError(t, Validate(nil))
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	preds := []Predicate{
		Condition{Field: "bad field", Value: 1},
		Condition{Field: "ok", Value: 1, Op: "IN"},
		Group{Connective: "XOR", Conditions: []Condition{{Field: "1x", Value: 2}}},
		nil,
	}

	err := Validate(preds)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 5)
	assert.Contains(t, err.Error(), `field "bad field"`)
	assert.Contains(t, err.Error(), `operator "IN"`)
	assert.Contains(t, err.Error(), `connective "XOR"`)
	assert.Contains(t, err.Error(), "predicate 3 is nil")
}

func TestValidateSelect(t *testing.T) {
	ok := Select{
		From:    "users",
		Columns: []string{"id", "users.name"},
		Filter:  All(Condition{Field: "id", Value: 1}),
		OrderBy: []string{"id DESC", "name"},
	}
	assert.NoError(t, ValidateSelect(ok))

	bad := Select{
		From:    "users; --",
		Columns: []string{"*x"},
		OrderBy: []string{"id; DROP"},
	}
	err := ValidateSelect(bad)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 3)
}
