package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// LoadResult is the payload of the load command.
type LoadResult struct {
	Statement string `json:"statement"`
	Items     int    `json:"items"`
}

func (r LoadResult) String() string {
	return fmt.Sprintf("loaded %d items", r.Items)
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <statement> <items.yaml|->",
		Short: "Execute a statement once per parameter list",
		Long: `Execute a statement once per item of a YAML list, then commit.

The items file is a YAML sequence of parameter lists. Use - to read it
from stdin. Items are queued in file order without waiting for each one;
a failing item is logged and the rest still run.

Example items.yaml:
  - [1, a]
  - [2, b]

Example:
  sqlq load --db app.db "INSERT INTO t VALUES (?, ?)" items.yaml`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runLoad(opts *RootOptions, statement, itemsPath string, cmd *cobra.Command) (err error) {
	out := opts.formatter(cmd)
	items, err := readItems(itemsPath, cmd.InOrStdin())
	if err != nil {
		_ = out.Error(CodeInput, err.Error(), map[string]any{"file": itemsPath})
		return WrapExitError(ExitCommandError, "failed to read items", err)
	}

	ctx := cmd.Context()
	c, err := opts.openClient(ctx)
	if err != nil {
		return err
	}
	defer closeClient(c, &err)

	out.VerboseLog("loading %d items", len(items))
	if err := c.ExecuteMany(ctx, statement, items); err != nil {
		return WrapExitError(ExitFailure, "load failed", err)
	}
	if err := c.CommitWait(ctx); err != nil {
		return WrapExitError(ExitFailure, "commit failed", err)
	}

	return out.Success(LoadResult{Statement: statement, Items: len(items)})
}

// readItems decodes a YAML sequence of parameter lists from path, or
// from stdin when path is "-".
func readItems(path string, stdin io.Reader) ([][]any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}

	var items [][]any
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse items: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no items in %s", path)
	}
	return items, nil
}
