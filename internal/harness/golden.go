package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir is where scenario traces are kept, relative to the test package.
const GoldenDir = "testdata/golden"

// FormatTrace renders a trace as deterministic text, one event per line.
//
//	scenario: example
//	1 create_table CREATE TABLE t(id INTEGER, name TEXT, PRIMARY KEY (id)) -> queued
//	2 exec INSERT INTO t VALUES (?, ?) params=[1 a] -> queued
//	3 select_one SELECT name FROM t WHERE id = ? params=[1] -> row=[a]
func FormatTrace(scenarioName string, trace []TraceEvent) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", scenarioName)
	for _, event := range trace {
		buf.WriteString(formatEvent(event))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func formatEvent(event TraceEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", event.Seq, event.Op)
	if event.Statement != "" {
		b.WriteString(" " + event.Statement)
	}
	if len(event.Params) > 0 {
		fmt.Fprintf(&b, " params=%v", event.Params)
	}
	if len(event.Items) > 0 {
		fmt.Fprintf(&b, " items=%v", event.Items)
	}
	if event.Outcome != "" {
		b.WriteString(" -> " + event.Outcome)
	}
	return b.String()
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, FormatTrace(scenarioName, result.Trace))
}

// GoldenPath returns the golden file for a scenario file: a golden/
// directory next to the scenario's directory, named after the scenario.
//
//	testdata/scenarios/basic.yaml -> testdata/golden/basic.golden
func GoldenPath(scenarioPath, scenarioName string) string {
	dir := filepath.Dir(filepath.Dir(scenarioPath))
	return filepath.Join(dir, "golden", scenarioName+".golden")
}

// WriteGolden stores the rendered trace at path.
func WriteGolden(path, scenarioName string, result *Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create golden dir: %w", err)
	}
	if err := os.WriteFile(path, FormatTrace(scenarioName, result.Trace), 0o644); err != nil {
		return fmt.Errorf("write golden file: %w", err)
	}
	return nil
}

// CompareGolden checks the rendered trace against the file at path.
// A missing golden file is not an error: ok is false and exists is false.
func CompareGolden(path, scenarioName string, result *Result) (ok, exists bool, err error) {
	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("read golden file: %w", err)
	}
	return bytes.Equal(want, FormatTrace(scenarioName, result.Trace)), true, nil
}
