package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rtgl/internal/cache"
	"github.com/roach88/rtgl/internal/compiler"
	"github.com/roach88/rtgl/internal/ir"
	"github.com/roach88/rtgl/internal/pipeline"
	"github.com/roach88/rtgl/internal/policy"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	OutDir       string   // artifact directory, relative to the project root
	Dirs         []string // component directories
	CacheDriver  string   // overrides cache.driver
	PolicyPath   string   // policy pack to apply
	VerifyPolicy bool     // require a valid policy signature
	NoEmit       bool     // skip writing artifact.json
}

// CompileReport is the compile command's result payload.
type CompileReport struct {
	SemanticHash string                `json:"semanticHash"`
	CacheHit     bool                  `json:"cacheHit"`
	ArtifactPath string                `json:"artifactPath,omitempty"`
	Components   int                   `json:"components"`
	Summary      ir.Summary            `json:"summary"`
	Diagnostics  []ir.Diagnostic       `json:"diagnostics"`
	Policy       string                `json:"policy,omitempty"`
	Cache        cache.MetricsSnapshot `json:"cache"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [project-root]",
		Short: "Compile a component tree to artifact.json",
		Long: `Analyze every component, validate the compiler IR, compute the semantic
hash and write the canonical compile artifact.

Artifacts are cached by semantic hash: an unchanged tree is served from
the cache. The default disk cache lives in .rtgl/cache and persists
across runs, as do sqlite and postgres; memory lasts one run.
Error diagnostics make the command exit with status 1.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", "", "artifact output directory (default from rtgl.yaml)")
	cmd.Flags().StringSliceVar(&opts.Dirs, "dir", nil, "component directory to scan (repeatable)")
	cmd.Flags().StringVar(&opts.CacheDriver, "cache", "", "cache driver (memory|disk|sqlite|postgres|none)")
	cmd.Flags().StringVar(&opts.PolicyPath, "policy", "", "policy pack to apply")
	cmd.Flags().BoolVar(&opts.VerifyPolicy, "verify-policy", false, "require a valid policy pack signature")
	cmd.Flags().BoolVar(&opts.NoEmit, "no-emit", false, "do not write artifact.json")

	return cmd
}

func runCompile(cmd *cobra.Command, opts *CompileOptions, args []string) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())
	ctx := cmd.Context()

	cfg, err := loadProject(args)
	if err != nil {
		return fail(formatter, err)
	}
	if opts.CacheDriver != "" {
		cfg.Cache.Driver = opts.CacheDriver
	}
	dirs := opts.Dirs
	if len(dirs) == 0 {
		dirs = cfg.Dirs
	}
	outDir := opts.OutDir
	if outDir == "" {
		outDir = cfg.OutDir
	}

	pack, err := loadPolicy(cfg, opts.PolicyPath, opts.VerifyPolicy)
	if err != nil {
		return fail(formatter, err)
	}

	store, closeCache, err := cache.Open(ctx, cfg.CacheOptions())
	if err != nil {
		return fail(formatter, err)
	}
	defer closeCache()
	metered := cache.WithMetrics(store)

	formatter.VerboseLog("Compiling %s (cache: %s)", cfg.Root, cfg.Cache.Driver)
	res, err := pipeline.CompileProject(ctx, pipeline.Options{
		Root:   cfg.Root,
		Dirs:   dirs,
		Cache:  metered,
		Logger: logger,
	})
	if err != nil {
		return fail(formatter, err)
	}

	diags, summary := policy.Apply(res.Artifact.Diagnostics, pack)
	report := CompileReport{
		SemanticHash: res.SemanticHash,
		CacheHit:     res.CacheHit,
		Components:   len(res.Artifact.Components),
		Summary:      summary,
		Diagnostics:  diags,
		Cache:        metered.Snapshot(),
	}
	if pack != nil {
		report.Policy = pack.Name
	}

	if !opts.NoEmit {
		p, err := compiler.EmitArtifact(res.Artifact, cfg.Resolve(outDir))
		if err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, ErrCodeWriteFailed, err)
		}
		report.ArtifactPath = p
	}

	if err := outputCompileReport(formatter, report); err != nil {
		return err
	}
	if summary.Errors > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("compile found %s", pluralize(summary.Errors, "error")))
	}
	return nil
}

func outputCompileReport(formatter *OutputFormatter, r CompileReport) error {
	if formatter.IsJSON() {
		if r.Summary.Errors > 0 {
			return formatter.Failure(ErrCodeDiagnostics, "compile found error diagnostics", r)
		}
		return formatter.Success(r)
	}

	w := formatter.Writer
	printDiagnostics(w, r.Diagnostics)
	hit := ""
	if r.CacheHit {
		hit = " (cached)"
	}
	fmt.Fprintf(w, "Compiled %s: %s, %s%s\n",
		pluralize(r.Components, "component"),
		pluralize(r.Summary.Errors, "error"),
		pluralize(r.Summary.Warnings, "warning"),
		hit)
	fmt.Fprintf(w, "Semantic hash: %s\n", r.SemanticHash)
	if r.ArtifactPath != "" {
		fmt.Fprintf(w, "Wrote artifact to %s\n", r.ArtifactPath)
	}
	return nil
}
