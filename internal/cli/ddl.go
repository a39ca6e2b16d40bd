package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlq/internal/client"
)

// NewCreateTableCommand creates the create-table command.
func NewCreateTableCommand(rootOpts *RootOptions) *cobra.Command {
	var primaryKey []string

	cmd := &cobra.Command{
		Use:   "create-table <name> <column:type>...",
		Short: "Create a table and commit",
		Long: `Create a table from name:type column pairs and commit.

Examples:
  sqlq create-table --db app.db t id:INTEGER name:TEXT --pk id
  sqlq create-table --db app.db log "msg:TEXT NOT NULL"`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateTable(rootOpts, args[0], args[1:], primaryKey, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&primaryKey, "pk", nil, "primary key columns")

	return cmd
}

func runCreateTable(opts *RootOptions, name string, defs, primaryKey []string, cmd *cobra.Command) (err error) {
	out := opts.formatter(cmd)
	columns, err := parseColumns(defs)
	if err != nil {
		_ = out.Error(CodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid columns", err)
	}
	stmt, err := client.CreateTableStatement(name, columns, primaryKey)
	if err != nil {
		_ = out.Error(CodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid table definition", err)
	}

	ctx := cmd.Context()
	c, err := opts.openClient(ctx)
	if err != nil {
		return err
	}
	defer closeClient(c, &err)

	if _, err := c.ExecWait(ctx, stmt); err != nil {
		_ = out.Error(CodeStatement, err.Error(), map[string]any{"statement": stmt})
		return WrapExitError(ExitFailure, "create table failed", err)
	}
	if err := c.CommitWait(ctx); err != nil {
		return WrapExitError(ExitFailure, "commit failed", err)
	}

	return out.Success(stmt)
}

// parseColumns turns name:type arguments into column definitions.
func parseColumns(defs []string) ([]client.Column, error) {
	columns := make([]client.Column, 0, len(defs))
	for _, def := range defs {
		name, typ, ok := strings.Cut(def, ":")
		if !ok || name == "" || strings.TrimSpace(typ) == "" {
			return nil, fmt.Errorf("column %q: want name:type", def)
		}
		columns = append(columns, client.Column{Name: name, Type: strings.TrimSpace(typ)})
	}
	return columns, nil
}

// NewCreateIndexCommand creates the create-index command.
func NewCreateIndexCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create-index <table> <column>...",
		Short: "Create <table>_index over columns and commit",
		Long: `Create an index named <table>_index over the given columns and commit.

Example:
  sqlq create-index --db app.db t name`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateIndex(rootOpts, args[0], args[1:], cmd)
		},
	}
}

func runCreateIndex(opts *RootOptions, table string, columns []string, cmd *cobra.Command) (err error) {
	out := opts.formatter(cmd)
	stmt, err := client.CreateIndexStatement(table, columns)
	if err != nil {
		_ = out.Error(CodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid index definition", err)
	}

	ctx := cmd.Context()
	c, err := opts.openClient(ctx)
	if err != nil {
		return err
	}
	defer closeClient(c, &err)

	if _, err := c.ExecWait(ctx, stmt); err != nil {
		_ = out.Error(CodeStatement, err.Error(), map[string]any{"statement": stmt})
		return WrapExitError(ExitFailure, "create index failed", err)
	}
	if err := c.CommitWait(ctx); err != nil {
		return WrapExitError(ExitFailure, "commit failed", err)
	}

	return out.Success(stmt)
}
