package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sqlq/internal/client"
)

// ExecResult is the payload of the exec command.
type ExecResult struct {
	RowsAffected int64 `json:"rows_affected"`
	LastInsertID int64 `json:"last_insert_id"`
}

func (r ExecResult) String() string {
	return fmt.Sprintf("rows_affected=%d last_insert_id=%d", r.RowsAffected, r.LastInsertID)
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <statement> [params...]",
		Short: "Execute one statement and commit",
		Long: `Execute a single statement, wait for its outcome and commit.

Parameters bind to ? placeholders in order. Each one is read as a YAML
scalar: 42 is an integer, 1.5 a float, null is NULL, anything else text.
Quote to force text, e.g. "'007'".

Examples:
  sqlq exec --db app.db "INSERT INTO t VALUES (?, ?)" 1 a
  sqlq exec --db app.db "DELETE FROM t WHERE id = ?" 1 --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(rootOpts, args[0], args[1:], cmd)
		},
	}
}

func runExec(opts *RootOptions, statement string, rawParams []string, cmd *cobra.Command) (err error) {
	out := opts.formatter(cmd)
	params, err := parseParams(rawParams)
	if err != nil {
		_ = out.Error(CodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid parameters", err)
	}

	ctx := cmd.Context()
	c, err := opts.openClient(ctx)
	if err != nil {
		return err
	}
	defer closeClient(c, &err)

	out.VerboseLog("exec %s %v", statement, params)
	res, err := c.ExecWait(ctx, statement, params...)
	if err != nil {
		_ = out.Error(CodeStatement, err.Error(), map[string]any{"statement": statement})
		return WrapExitError(ExitFailure, "statement failed", err)
	}
	if !c.Autocommit() {
		if err := c.CommitWait(ctx); err != nil {
			return WrapExitError(ExitFailure, "commit failed", err)
		}
	}

	return out.Success(ExecResult{RowsAffected: res.RowsAffected, LastInsertID: res.LastInsertID})
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <statement> [params...]",
		Short: "Run a query and print every row",
		Long: `Run a query and print its rows as they arrive.

Text output is one tab-separated line per row. JSON output collects the
rows into {"rows": [...], "count": N}.

Example:
  sqlq query --db app.db "SELECT id, name FROM t WHERE id > ?" 0`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, args[0], args[1:], cmd)
		},
	}
}

func runQuery(opts *RootOptions, statement string, rawParams []string, cmd *cobra.Command) (err error) {
	out := opts.formatter(cmd)
	params, err := parseParams(rawParams)
	if err != nil {
		_ = out.Error(CodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid parameters", err)
	}

	ctx := cmd.Context()
	c, err := opts.openClient(ctx)
	if err != nil {
		return err
	}
	defer closeClient(c, &err)

	rows, err := c.Select(ctx, statement, params...)
	if err != nil {
		return WrapExitError(ExitFailure, "query failed", err)
	}
	defer rows.Close()

	if opts.Format == "json" {
		all, err := rows.Collect()
		if err != nil {
			_ = out.Error(CodeStatement, err.Error(), map[string]any{"statement": statement})
			return WrapExitError(ExitFailure, "query failed", err)
		}
		return out.Rows(all)
	}

	n := 0
	for row := range rows.All() {
		fmt.Fprintln(out.Writer, FormatRow(row))
		n++
	}
	if err := rows.Err(); err != nil {
		_ = out.Error(CodeStatement, err.Error(), map[string]any{"statement": statement})
		return WrapExitError(ExitFailure, "query failed", err)
	}
	out.VerboseLog("%d rows", n)
	return nil
}

// NewOneCommand creates the one command.
func NewOneCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "one <statement> [params...]",
		Short: "Print the first row of a query",
		Long: `Run a query and print only its first row.

Exit codes:
  0 - A row was found
  1 - No row matched, or the query failed
  2 - Command error

Example:
  sqlq one --db app.db "SELECT name FROM t WHERE id = ?" 2`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOne(rootOpts, args[0], args[1:], cmd)
		},
	}
}

func runOne(opts *RootOptions, statement string, rawParams []string, cmd *cobra.Command) (err error) {
	out := opts.formatter(cmd)
	params, err := parseParams(rawParams)
	if err != nil {
		_ = out.Error(CodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid parameters", err)
	}

	ctx := cmd.Context()
	c, err := opts.openClient(ctx)
	if err != nil {
		return err
	}
	defer closeClient(c, &err)

	row, found, err := c.SelectOne(ctx, statement, params...)
	if err != nil {
		_ = out.Error(CodeStatement, err.Error(), map[string]any{"statement": statement})
		return WrapExitError(ExitFailure, "query failed", err)
	}
	if !found {
		_ = out.Error(CodeNoRows, "no rows", nil)
		return NewExitError(ExitFailure, "no rows")
	}

	if opts.Format == "json" {
		return out.Success(map[string]any{"row": row})
	}
	fmt.Fprintln(out.Writer, FormatRow(row))
	return nil
}

// parseParams reads each argument as a YAML scalar.
func parseParams(args []string) ([]any, error) {
	params := make([]any, 0, len(args))
	for i, arg := range args {
		if arg == "" {
			params = append(params, "")
			continue
		}
		var v any
		if err := yaml.Unmarshal([]byte(arg), &v); err != nil {
			return nil, fmt.Errorf("param %d: %w", i+1, err)
		}
		switch v.(type) {
		case nil, string, int, float64, bool:
			params = append(params, v)
		case time.Time:
			params = append(params, arg)
		default:
			return nil, fmt.Errorf("param %d: %q is not a scalar", i+1, arg)
		}
	}
	return params, nil
}

// closeClient closes c and reports a close failure unless an earlier
// error is already being returned.
func closeClient(c *client.Client, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = WrapExitError(ExitFailure, "failed to close database", cerr)
	}
}
