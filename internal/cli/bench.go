package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/syncs"
	"github.com/spf13/cobra"

	"github.com/roach88/sqlq/internal/client"
	"github.com/roach88/sqlq/internal/queryir"
)

// BenchOptions holds flags for the bench command.
type BenchOptions struct {
	*RootOptions
	Writers     int
	Rows        int
	Concurrency int
	Table       string
}

// BenchResult is the payload of the bench command.
type BenchResult struct {
	Writers   int           `json:"writers"`
	Rows      int           `json:"rows_per_writer"`
	Total     int           `json:"total"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	PerSecond float64       `json:"per_second"`
	Ordered   bool          `json:"ordered"`
}

func (r BenchResult) String() string {
	return fmt.Sprintf("%d writers x %d rows = %d rows in %s (%.0f rows/s), per-writer order preserved: %t",
		r.Writers, r.Rows, r.Total, r.Elapsed.Round(time.Millisecond), r.PerSecond, r.Ordered)
}

// NewBenchCommand creates the bench command.
func NewBenchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BenchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Hammer one client from concurrent writers",
		Long: `Start concurrent writers that share one client, then verify the result.

Each writer inserts (writer, seq) rows with seq counting up from 0. After
a commit the table must hold writers x rows rows and each writer's rows
must appear in the order that writer submitted them.

The table is dropped and recreated first.

Example:
  sqlq bench --db /tmp/bench.db --writers 8 --rows 1000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Writers, "writers", 8, "number of concurrent writers")
	cmd.Flags().IntVar(&opts.Rows, "rows", 200, "rows inserted by each writer")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "max writers running at once (default: all)")
	cmd.Flags().StringVar(&opts.Table, "table", "sqlq_bench", "scratch table name")

	return cmd
}

func runBench(opts *BenchOptions, cmd *cobra.Command) (err error) {
	out := opts.formatter(cmd)
	if opts.Writers <= 0 || opts.Rows <= 0 {
		return NewExitError(ExitCommandError, "--writers and --rows must be positive")
	}
	if err := queryir.CheckName(opts.Table); err != nil {
		return WrapExitError(ExitCommandError, "invalid table", err)
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = opts.Writers
	}

	ctx := cmd.Context()
	c, err := opts.openClient(ctx)
	if err != nil {
		return err
	}
	defer closeClient(c, &err)

	if _, err := c.ExecWait(ctx, "DROP TABLE IF EXISTS "+opts.Table); err != nil {
		return WrapExitError(ExitFailure, "drop scratch table", err)
	}
	columns := []client.Column{{Name: "writer", Type: "INTEGER"}, {Name: "seq", Type: "INTEGER"}}
	if err := c.CreateTable(ctx, opts.Table, columns, nil); err != nil {
		return WrapExitError(ExitFailure, "create scratch table", err)
	}

	insert := fmt.Sprintf("INSERT INTO %s(writer, seq) VALUES (?, ?)", opts.Table)
	start := time.Now()

	wg := syncs.NewErrSizedGroup(concurrency, syncs.Context(ctx), syncs.Preemptive)
	for w := range opts.Writers {
		wg.Go(func() error {
			for seq := range opts.Rows {
				if err := c.Execute(ctx, insert, w, seq); err != nil {
					return fmt.Errorf("writer %d seq %d: %w", w, seq, err)
				}
			}
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return WrapExitError(ExitFailure, "bench writers failed", err)
	}
	if err := c.CommitWait(ctx); err != nil {
		return WrapExitError(ExitFailure, "commit failed", err)
	}
	elapsed := time.Since(start)

	total, ordered, err := verifyBench(ctx, c, opts.Table, opts.Writers)
	if err != nil {
		return WrapExitError(ExitFailure, "verify bench table", err)
	}

	result := BenchResult{
		Writers:   opts.Writers,
		Rows:      opts.Rows,
		Total:     total,
		Elapsed:   elapsed,
		PerSecond: float64(total) / elapsed.Seconds(),
		Ordered:   ordered,
	}
	if want := opts.Writers * opts.Rows; total != want || !ordered {
		_ = out.Error(CodeBench, fmt.Sprintf("expected %d ordered rows, got %d (ordered=%t)", want, total, ordered), result)
		return NewExitError(ExitFailure, "bench verification failed")
	}
	return out.Success(result)
}

// verifyBench reads the table in insertion order and checks that every
// writer's seq values count up from 0 without gaps.
func verifyBench(ctx context.Context, c *client.Client, table string, writers int) (total int, ordered bool, err error) {
	rows, err := c.Select(ctx, fmt.Sprintf("SELECT writer, seq FROM %s ORDER BY rowid", table))
	if err != nil {
		return 0, false, err
	}
	defer rows.Close()

	next := make([]int64, writers)
	ordered = true
	for row := range rows.All() {
		total++
		w, _ := row[0].(int64)
		seq, _ := row[1].(int64)
		if w < 0 || int(w) >= writers || seq != next[w] {
			ordered = false
			continue
		}
		next[w]++
	}
	return total, ordered, rows.Err()
}
