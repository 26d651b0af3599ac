// Package pipeline runs a full compile: analysis, IR validation, semantic
// hashing, cache lookup and artifact construction.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/roach88/rtgl/internal/analyze"
	"github.com/roach88/rtgl/internal/cache"
	"github.com/roach88/rtgl/internal/compiler"
	"github.com/roach88/rtgl/internal/ir"
)

// analyzeProject runs the analysis pass. Tests replace it to feed the
// pipeline an IR that fails validation.
var analyzeProject = analyze.Analyze

// Options configures CompileProject.
type Options struct {
	Root string
	Dirs []string

	// Cache is consulted by semantic hash. Nil disables caching.
	Cache cache.Cache

	// OutDir receives artifact.json when Emit is set and the compile
	// missed the cache.
	OutDir string
	Emit   bool

	Logger *slog.Logger
}

// Result is the outcome of a compile.
type Result struct {
	Artifact     *compiler.Artifact
	SemanticHash string
	CacheHit     bool

	// ArtifactPath is set when the artifact was emitted.
	ArtifactPath string

	Analysis *analyze.Result
}

// CompileProject compiles the project at opts.Root.
//
// It fails with a KindValidation error when the compiler IR does not pass
// validation; nothing is cached or emitted in that case. On a cache hit
// the cached artifact is returned unchanged.
func CompileProject(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	analysis, err := analyzeProject(ctx, analyze.Options{
		Root:            opts.Root,
		Dirs:            opts.Dirs,
		IncludeSemantic: true,
		EmitCompilerIR:  true,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}
	if !analysis.Validation.OK {
		return nil, ir.NewValidationError(analysis.Validation.Errors)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash, err := compiler.HashSemanticCore(*analysis.CompilerIR, opts.Root)
	if err != nil {
		return nil, err
	}
	log := logger.With("semanticHash", hash)

	store := opts.Cache
	if store == nil {
		store = cache.NoopCache{}
	}

	cached, hit, err := store.Get(ctx, hash)
	if err != nil {
		log.Warn("cache lookup failed, compiling", "error", err)
	}
	if hit {
		log.Debug("compile cache hit")
		return &Result{Artifact: cached, SemanticHash: hash, CacheHit: true, Analysis: analysis}, nil
	}

	artifact, err := compiler.CreateCompileArtifact(compiler.ArtifactInput{
		ProjectRoot:  opts.Root,
		Dirs:         analysis.Dirs,
		SemanticHash: hash,
		CompilerIR:   *analysis.CompilerIR,
		Diagnostics:  analysis.Diagnostics,
	})
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, hash, artifact); err != nil {
		log.Warn("cache store failed", "error", err)
	}

	res := &Result{Artifact: artifact, SemanticHash: hash, Analysis: analysis}
	if opts.Emit {
		p, err := compiler.EmitArtifact(artifact, opts.OutDir)
		if err != nil {
			return nil, err
		}
		res.ArtifactPath = p
		log.Info("artifact emitted", "path", p)
	}
	return res, nil
}
