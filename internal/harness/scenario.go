package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of client operations with expectations.
// Each scenario runs against a fresh in-memory database.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Driver selects the SQLite driver ("sqlite3" or "sqlite").
	// Empty means the default driver.
	Driver string `yaml:"driver,omitempty"`

	// Autocommit opens the client in autocommit mode.
	Autocommit bool `yaml:"autocommit,omitempty"`

	// Setup steps run before Steps. They are traced but carry no expects.
	Setup []Step `yaml:"setup,omitempty"`

	// Steps is the main flow.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and database state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one client operation. Exactly one operation field must be set.
type Step struct {
	Exec        string    `yaml:"exec,omitempty"`
	ExecMany    string    `yaml:"exec_many,omitempty"`
	Select      string    `yaml:"select,omitempty"`
	SelectOne   string    `yaml:"select_one,omitempty"`
	Commit      bool      `yaml:"commit,omitempty"`
	CreateTable *TableDef `yaml:"create_table,omitempty"`
	CreateIndex *IndexDef `yaml:"create_index,omitempty"`

	// Params are bound to exec, select and select_one.
	Params []any `yaml:"params,omitempty"`

	// Items are the per-statement parameters of exec_many.
	Items [][]any `yaml:"items,omitempty"`

	// Expect validates the outcome. An exec with Expect waits for the
	// worker's reply instead of returning immediately.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Step operation names.
const (
	OpExec        = "exec"
	OpExecMany    = "exec_many"
	OpSelect      = "select"
	OpSelectOne   = "select_one"
	OpCommit      = "commit"
	OpCreateTable = "create_table"
	OpCreateIndex = "create_index"
)

// Op returns the operation name of the step, or "" if none or several
// operation fields are set.
func (s Step) Op() string {
	var ops []string
	if s.Exec != "" {
		ops = append(ops, OpExec)
	}
	if s.ExecMany != "" {
		ops = append(ops, OpExecMany)
	}
	if s.Select != "" {
		ops = append(ops, OpSelect)
	}
	if s.SelectOne != "" {
		ops = append(ops, OpSelectOne)
	}
	if s.Commit {
		ops = append(ops, OpCommit)
	}
	if s.CreateTable != nil {
		ops = append(ops, OpCreateTable)
	}
	if s.CreateIndex != nil {
		ops = append(ops, OpCreateIndex)
	}
	if len(ops) != 1 {
		return ""
	}
	return ops[0]
}

// TableDef describes a create_table step.
type TableDef struct {
	Name       string      `yaml:"name"`
	Columns    []ColumnDef `yaml:"columns"`
	PrimaryKey []string    `yaml:"primary_key,omitempty"`
}

// ColumnDef is one column of a TableDef.
type ColumnDef struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// IndexDef describes a create_index step.
type IndexDef struct {
	Table   string   `yaml:"table"`
	Columns []string `yaml:"columns"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Rows is the exact result of a select, in order.
	Rows [][]any `yaml:"rows,omitempty"`

	// Row is the expected first row of a select_one.
	Row []any `yaml:"row,omitempty"`

	// Found is whether select_one should find a row.
	Found *bool `yaml:"found,omitempty"`

	// Error expects the statement to fail.
	Error bool `yaml:"error,omitempty"`

	// RowsAffected is the expected change count of an exec.
	RowsAffected *int64 `yaml:"rows_affected,omitempty"`
}

// Assertion validates trace or final database state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "row_count": count rows of Table matching Where
	// - "final_state": exactly one row of Table matches Where and has Expect values
	// - "trace_contains": a traced statement contains Statement
	// - "trace_count": Op appears exactly Count times
	// - "trace_order": Ops appear in this order
	Type string `yaml:"type"`

	// Table is the table name (row_count, final_state).
	Table string `yaml:"table,omitempty"`

	// Where holds equality filters, AND-joined (row_count, final_state).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected column values (final_state).
	// Subset match - only listed columns are checked.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number (row_count, trace_count).
	Count int `yaml:"count,omitempty"`

	// Op is the operation name (trace_count).
	Op string `yaml:"op,omitempty"`

	// Statement is a substring to look for (trace_contains).
	Statement string `yaml:"statement,omitempty"`

	// Ops is the expected operation order (trace_order).
	Ops []string `yaml:"ops,omitempty"`
}

// Assertion type constants.
const (
	AssertRowCount      = "row_count"
	AssertFinalState    = "final_state"
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
	AssertTraceOrder    = "trace_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step); err != nil {
			return err
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(fmt.Sprintf("steps[%d]", i), step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks a single step.
func validateStep(where string, step Step) error {
	op := step.Op()
	if op == "" {
		return fmt.Errorf("%s: exactly one operation is required", where)
	}

	switch op {
	case OpExecMany:
		if len(step.Items) == 0 {
			return fmt.Errorf("%s: items is required for exec_many", where)
		}
	case OpCreateTable:
		if step.CreateTable.Name == "" || len(step.CreateTable.Columns) == 0 {
			return fmt.Errorf("%s: create_table needs name and columns", where)
		}
	case OpCreateIndex:
		if step.CreateIndex.Table == "" || len(step.CreateIndex.Columns) == 0 {
			return fmt.Errorf("%s: create_index needs table and columns", where)
		}
	}

	if e := step.Expect; e != nil {
		if e.Rows != nil && op != OpSelect {
			return fmt.Errorf("%s.expect: rows applies to select only", where)
		}
		if (e.Row != nil || e.Found != nil) && op != OpSelectOne {
			return fmt.Errorf("%s.expect: row/found apply to select_one only", where)
		}
		if e.RowsAffected != nil && op != OpExec {
			return fmt.Errorf("%s.expect: rows_affected applies to exec only", where)
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertTraceContains:
		if a.Statement == "" {
			return fmt.Errorf("assertions[%d]: statement is required for trace_contains", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
