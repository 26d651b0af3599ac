package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rtgl/internal/ir"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	MaxChanges int
}

// DiffReport is the diff command's result payload.
type DiffReport struct {
	Before string `json:"before"`
	After  string `json:"after"`
	ir.DiffResult
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <before.json> <after.json>",
		Short: "Compare two IR or artifact snapshots",
		Long: `Canonicalize both JSON snapshots and list every leaf path that was
added, removed or changed, in path order.

Exits with status 1 when the snapshots differ.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().IntVar(&opts.MaxChanges, "max-changes", ir.DefaultMaxChanges, "maximum number of changes to report (at least 1)")

	return cmd
}

func runDiff(cmd *cobra.Command, opts *DiffOptions, beforePath, afterPath string) error {
	formatter := opts.formatter(cmd)

	if opts.MaxChanges < 1 {
		return fail(formatter, ir.NewInputShapeError("--max-changes",
			"--max-changes must be at least 1, got %d", opts.MaxChanges))
	}

	before, err := readSnapshot(beforePath)
	if err != nil {
		return fail(formatter, err)
	}
	after, err := readSnapshot(afterPath)
	if err != nil {
		return fail(formatter, err)
	}

	report := DiffReport{
		Before:     beforePath,
		After:      afterPath,
		DiffResult: ir.Diff(before, after, opts.MaxChanges),
	}

	if formatter.IsJSON() {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else if !report.Changed {
		fmt.Fprintln(formatter.Writer, "No changes")
	} else {
		for _, c := range report.Changes {
			switch c.Type {
			case ir.ChangeAdded:
				fmt.Fprintf(formatter.Writer, "+ %s = %s\n", c.Path, c.After)
			case ir.ChangeRemoved:
				fmt.Fprintf(formatter.Writer, "- %s = %s\n", c.Path, c.Before)
			default:
				fmt.Fprintf(formatter.Writer, "~ %s: %s -> %s\n", c.Path, c.Before, c.After)
			}
		}
	}

	if report.Changed {
		return NewExitError(ExitFailure, fmt.Sprintf("%s differ", pluralize(len(report.Changes), "path")))
	}
	return nil
}

func readSnapshot(path string) (ir.IRValue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ir.NewInputShapeError(path, "failed to read snapshot: %v", err)
	}
	v, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return nil, ir.NewInputShapeError(path, "snapshot is not valid IR JSON: %v", err)
	}
	return v, nil
}
