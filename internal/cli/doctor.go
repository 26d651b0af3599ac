package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rtgl/internal/compiler"
	"github.com/roach88/rtgl/internal/ir"
)

// DoctorReport is the doctor command's result payload.
type DoctorReport struct {
	Path         string     `json:"path"`
	OK           bool       `json:"ok"`
	SemanticHash string     `json:"semanticHash"`
	Summary      ir.Summary `json:"summary"`
	Problems     []string   `json:"problems"`
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor <artifact.json>",
		Short: "Check an emitted artifact for consistency",
		Long: `Validate artifact.json against the artifact schema, then check that its
summary matches its diagnostics and that diagnostics and components are in
canonical order.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func runDoctor(cmd *cobra.Command, opts *RootOptions, path string) error {
	formatter := opts.formatter(cmd)

	a, err := compiler.ReadArtifact(path)
	if err != nil {
		return fail(formatter, err)
	}

	report := DoctorReport{
		Path:         path,
		SemanticHash: a.SemanticHash,
		Summary:      a.Summary,
		Problems:     inspectArtifact(a),
	}
	report.OK = len(report.Problems) == 0

	if formatter.IsJSON() {
		if report.OK {
			_ = formatter.Success(report)
		} else {
			_ = formatter.Failure(ErrCodeVerification, "artifact is inconsistent", report)
		}
	} else {
		for _, p := range report.Problems {
			fmt.Fprintf(formatter.Writer, "problem: %s\n", p)
		}
		if report.OK {
			fmt.Fprintf(formatter.Writer, "OK: %s (%s)\n", path, a.SemanticHash)
		}
	}

	if !report.OK {
		return NewExitError(ExitFailure, fmt.Sprintf("artifact has %s", pluralize(len(report.Problems), "problem")))
	}
	return nil
}

// inspectArtifact returns the consistency problems the schema cannot
// express.
func inspectArtifact(a *compiler.Artifact) []string {
	problems := []string{}

	if want := ir.Summarize(a.Diagnostics); want != a.Summary {
		problems = append(problems, fmt.Sprintf(
			"summary is %d/%d/%d (total/errors/warnings) but diagnostics give %d/%d/%d",
			a.Summary.Total, a.Summary.Errors, a.Summary.Warnings,
			want.Total, want.Errors, want.Warnings))
	}

	sorted := slices.Clone(a.Diagnostics)
	ir.SortDiagnostics(sorted)
	if !slices.Equal(sorted, a.Diagnostics) {
		problems = append(problems, "diagnostics are not in canonical order")
	}

	if !slices.IsSortedFunc(a.Components, func(x, y compiler.ArtifactComponent) int {
		return strings.Compare(x.ComponentKey, y.ComponentKey)
	}) {
		problems = append(problems, "components are not sorted by componentKey")
	}

	if a.Metadata.CompilerVersion != ir.CompilerVersion {
		problems = append(problems, fmt.Sprintf("artifact was produced by compiler %s, this is %s",
			a.Metadata.CompilerVersion, ir.CompilerVersion))
	}
	return problems
}
