// Package harness runs scripted client scenarios and checks their outcome.
//
// A scenario is a YAML file listing client operations. Each one runs against
// a fresh in-memory database through the same client, worker and store used
// in production, so a passing scenario exercises the real request ordering.
//
// # Scenario Format
//
//	name: example
//	description: "Insert, commit, read back"
//	setup:
//	  - create_table:
//	      name: t
//	      columns:
//	        - { name: id, type: INTEGER }
//	        - { name: name, type: TEXT }
//	      primary_key: [id]
//	steps:
//	  - exec_many: "INSERT INTO t VALUES (?, ?)"
//	    items: [[1, a], [2, b]]
//	  - commit: true
//	  - select_one: "SELECT name FROM t WHERE id = ?"
//	    params: [2]
//	    expect:
//	      row: [b]
//	assertions:
//	  - type: row_count
//	    table: t
//	    count: 2
//
// Operations: exec, exec_many, select, select_one, commit, create_table,
// create_index. An exec with an expect clause waits for the worker's reply;
// without one it is fire-and-forget and any failure is reported as an
// unexpected failure once the scenario drains.
//
// # Assertion Types
//
//   - row_count: counts rows of a table matching equality filters
//   - final_state: exactly one matching row holds the expected values
//   - trace_contains: some traced statement contains a substring
//   - trace_count: an operation appears exactly N times
//   - trace_order: operations appear in the given order
//
// # Golden Traces
//
// FormatTrace renders the operation trace as plain text. RunWithGolden and
// AssertGolden compare it with testdata/golden/<name>.golden via goldie;
// CompareGolden and WriteGolden do the same for the CLI.
package harness
