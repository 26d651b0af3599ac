package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rtgl/internal/analyze"
	"github.com/roach88/rtgl/internal/ir"
	"github.com/roach88/rtgl/internal/policy"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Dirs         []string
	PolicyPath   string
	VerifyPolicy bool
}

// CheckReport is the check command's result payload.
type CheckReport struct {
	OK          bool            `json:"ok"`
	Components  int             `json:"components"`
	Summary     ir.Summary      `json:"summary"`
	Diagnostics []ir.Diagnostic `json:"diagnostics"`
	Validation  []string        `json:"validationErrors,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check [project-root]",
		Short: "Report diagnostics without writing an artifact",
		Long: `Run the cross-file contract checks over every component and print the
diagnostics. Nothing is hashed, cached or written.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, args)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Dirs, "dir", nil, "component directory to scan (repeatable)")
	cmd.Flags().StringVar(&opts.PolicyPath, "policy", "", "policy pack to apply")
	cmd.Flags().BoolVar(&opts.VerifyPolicy, "verify-policy", false, "require a valid policy pack signature")

	return cmd
}

func runCheck(cmd *cobra.Command, opts *CheckOptions, args []string) error {
	formatter := opts.formatter(cmd)

	cfg, err := loadProject(args)
	if err != nil {
		return fail(formatter, err)
	}
	dirs := opts.Dirs
	if len(dirs) == 0 {
		dirs = cfg.Dirs
	}
	pack, err := loadPolicy(cfg, opts.PolicyPath, opts.VerifyPolicy)
	if err != nil {
		return fail(formatter, err)
	}

	res, err := analyze.Analyze(cmd.Context(), analyze.Options{
		Root:   cfg.Root,
		Dirs:   dirs,
		Logger: opts.logger(cmd.ErrOrStderr()),
	})
	if err != nil {
		return fail(formatter, err)
	}

	diags, summary := policy.Apply(res.Diagnostics, pack)
	report := CheckReport{
		OK:          summary.Errors == 0 && res.Validation.OK,
		Components:  res.ComponentCount,
		Summary:     summary,
		Diagnostics: diags,
		Validation:  res.Validation.Errors,
	}

	if formatter.IsJSON() {
		if report.OK {
			_ = formatter.Success(report)
		} else {
			_ = formatter.Failure(ErrCodeDiagnostics, "check failed", report)
		}
	} else {
		printDiagnostics(formatter.Writer, diags)
		for _, msg := range report.Validation {
			fmt.Fprintf(formatter.Writer, "validation: %s\n", msg)
		}
		fmt.Fprintf(formatter.Writer, "Checked %s: %s, %s\n",
			pluralize(report.Components, "component"),
			pluralize(summary.Errors, "error"),
			pluralize(summary.Warnings, "warning"))
	}

	if !report.OK {
		return NewExitError(ExitFailure, "check failed")
	}
	return nil
}
