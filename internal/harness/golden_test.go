package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	r := NewResult()
	r.AddTrace(TraceEvent{Op: OpExecMany, Statement: "INSERT INTO t VALUES (?)", Items: [][]any{{1}, {2}}, Outcome: outcomeQueued})
	r.AddTrace(TraceEvent{Op: OpCommit, Outcome: outcomeQueued})
	r.AddTrace(TraceEvent{Op: OpSelectOne, Statement: "SELECT x FROM t WHERE x = ?", Params: []any{2}, Outcome: "row=[2]"})
	return r
}

func TestFormatTrace(t *testing.T) {
	got := FormatTrace("sample", sampleResult().Trace)

	want := "scenario: sample\n" +
		"1 exec_many INSERT INTO t VALUES (?) items=[[1] [2]] -> queued\n" +
		"2 commit -> queued\n" +
		"3 select_one SELECT x FROM t WHERE x = ? params=[2] -> row=[2]\n"
	assert.Equal(t, want, string(got))
}

func TestFormatTrace_Empty(t *testing.T) {
	assert.Equal(t, "scenario: none\n", string(FormatTrace("none", nil)))
}

func TestGoldenPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("testdata", "golden", "basic.golden"),
		GoldenPath(filepath.Join("testdata", "scenarios", "basic.yaml"), "basic"))
}

func TestWriteAndCompareGolden(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "golden", "sample.golden")
	result := sampleResult()

	ok, exists, err := CompareGolden(path, "sample", result)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, exists)

	require.NoError(t, WriteGolden(path, "sample", result))

	ok, exists, err = CompareGolden(path, "sample", result)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, exists)

	result.AddTrace(TraceEvent{Op: OpCommit, Outcome: outcomeQueued})
	ok, exists, err = CompareGolden(path, "sample", result)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, exists)
}

func TestCompareGolden_ReadError(t *testing.T) {
	dir := t.TempDir()
	// A directory where the file should be cannot be read as a file.
	path := filepath.Join(dir, "x.golden")
	require.NoError(t, os.Mkdir(path, 0o755))

	_, _, err := CompareGolden(path, "x", NewResult())
	assert.Error(t, err)
}
