package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/roach88/rtgl/internal/binding"
	"github.com/roach88/rtgl/internal/compiler"
	"github.com/roach88/rtgl/internal/ir"
)

// Options configures one analysis pass.
type Options struct {
	// Root is the project root. Every recorded path is relative to it.
	Root string

	// Dirs are scanned for components, relative to Root.
	// Empty means DefaultDirs.
	Dirs []string

	// IncludeSemantic fills the semantic layer (symbols, scopes, edges, refs).
	IncludeSemantic bool

	// EmitCompilerIR returns the three IR layers in Result.CompilerIR.
	EmitCompilerIR bool

	Logger *slog.Logger
}

// Result is the outcome of an analysis pass.
type Result struct {
	// OK is true when there are no error diagnostics and the IR passed
	// validation.
	OK             bool
	CompilerIR     *ir.CompilerIR
	Validation     compiler.ValidationResult
	Diagnostics    []ir.Diagnostic
	Summary        ir.Summary
	ComponentCount int
	Dirs           []string
}

// component is the parsed state of one discovered component.
type component struct {
	key   string
	files map[ir.FileKind]string

	schema   *schemaInfo
	view     *viewInfo
	handlers *scriptInfo
	methods  *scriptInfo
	store    *scriptInfo

	// matchers holds the refs that compiled; invalid keys are reported
	// and left out.
	matchers []binding.RefMatcher
	refLines map[string]int
}

// componentName is the schema name, or "" when there is none.
func (c *component) componentName() string {
	if c.schema == nil {
		return ""
	}
	return c.schema.ComponentName
}

// Analyze discovers components under opts.Root, parses every file,
// runs the cross-file contract checks and builds the compiler IR.
//
// Problems in user source become diagnostics. An error is returned only
// when the project cannot be read at all or ctx is cancelled.
func Analyze(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(opts.Root)
	if err != nil {
		return nil, ir.NewInputShapeError(opts.Root, "project root is not readable: %v", err)
	}
	if !info.IsDir() {
		return nil, ir.NewInputShapeError(opts.Root, "project root is not a directory")
	}

	dirs := normalizeDirs(opts.Dirs)
	found, scanned, err := discover(opts.Root, dirs)
	if err != nil {
		return nil, fmt.Errorf("discover components: %w", err)
	}
	logger.Debug("discovered components", "count", len(found), "dirs", scanned)

	diags := &diagnostics{}
	components := make([]*component, 0, len(found))
	for _, cf := range found {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := loadComponent(ctx, opts.Root, cf, diags)
		if err != nil {
			return nil, err
		}
		components = append(components, c)
	}

	byName := indexByName(components, diags)
	for _, c := range components {
		checkComponent(c, byName, diags)
	}

	core := buildIR(components, byName, opts.IncludeSemantic)

	for _, w := range compiler.AnalyzeUsageCycles(core.Structural) {
		diags.add(CodeUsageCycle, viewPathFor(components, w.Path[0]), 0, "%s", w.Message)
	}

	ir.SortDiagnostics(diags.items)
	if opts.IncludeSemantic {
		core.Semantic.Findings = append(core.Semantic.Findings, diags.items...)
	}

	validation := compiler.Result(compiler.Validate(core))
	for _, msg := range validation.Errors {
		logger.Warn("compiler IR validation error", "error", msg)
	}

	items := diags.items
	if items == nil {
		items = []ir.Diagnostic{}
	}
	summary := ir.Summarize(items)

	result := &Result{
		OK:             summary.Errors == 0 && validation.OK,
		Validation:     validation,
		Diagnostics:    items,
		Summary:        summary,
		ComponentCount: len(components),
		Dirs:           dirs,
	}
	if opts.EmitCompilerIR {
		result.CompilerIR = &core
	}

	logger.Info("analysis complete",
		"components", result.ComponentCount,
		"errors", summary.Errors,
		"warnings", summary.Warnings,
	)
	return result, nil
}

// normalizeDirs cleans dirs to forward-slash relative paths, falling back
// to DefaultDirs.
func normalizeDirs(dirs []string) []string {
	if len(dirs) == 0 {
		dirs = DefaultDirs
	}
	out := make([]string, 0, len(dirs))
	seen := make(map[string]bool)
	for _, d := range dirs {
		d = path.Clean(filepath.ToSlash(strings.TrimSpace(d)))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// loadComponent reads and parses every file of cf. Parse failures are
// diagnostics; only I/O failures are errors.
func loadComponent(ctx context.Context, root string, cf componentFiles, diags *diagnostics) (*component, error) {
	c := &component{key: cf.key, files: cf.files, refLines: make(map[string]int)}

	read := func(kind ir.FileKind) ([]byte, bool, error) {
		rel, ok := cf.files[kind]
		if !ok {
			return nil, false, nil
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, false, fmt.Errorf("read %s: %w", rel, err)
		}
		return data, true, nil
	}

	if data, ok, err := read(ir.FileSchema); err != nil {
		return nil, err
	} else if ok {
		rel := cf.files[ir.FileSchema]
		schema, err := parseSchema(data)
		switch {
		case err != nil:
			diags.add(CodeSchemaInvalid, rel, yamlErrorLine(err), "invalid schema YAML: %v", err)
		case strings.TrimSpace(schema.ComponentName) == "":
			diags.add(CodeSchemaInvalid, rel, 0, "schema must define componentName")
			c.schema = schema
		default:
			c.schema = schema
		}
		if c.schema != nil {
			c.schema.Props = checkNames(c.schema.Props, "prop", rel, diags)
			c.schema.Events = checkNames(c.schema.Events, "event", rel, diags)
			c.schema.Methods = checkNames(c.schema.Methods, "method", rel, diags)
			c.schema.Required = checkRequired(c.schema, rel, diags)
		}
	}

	if data, ok, err := read(ir.FileView); err != nil {
		return nil, err
	} else if ok {
		view, err := parseView(data)
		if err != nil {
			diags.add(CodeViewInvalid, cf.files[ir.FileView], yamlErrorLine(err), "invalid view YAML: %v", err)
		} else {
			c.view = view
		}
	}

	scripts := []struct {
		kind ir.FileKind
		dst  **scriptInfo
	}{
		{ir.FileHandlers, &c.handlers},
		{ir.FileMethods, &c.methods},
		{ir.FileStore, &c.store},
	}
	for _, s := range scripts {
		data, ok, err := read(s.kind)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		info, err := parseScript(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cf.files[s.kind], err)
		}
		if info.SyntaxErrorLine > 0 {
			diags.add(CodeScriptSyntax, cf.files[s.kind], info.SyntaxErrorLine, "syntax error in %s file", s.kind)
		}
		*s.dst = info
	}

	return c, nil
}

// checkNames reports blank declaration names and returns the rest.
func checkNames(decls []namedLine, what, rel string, diags *diagnostics) []namedLine {
	kept := make([]namedLine, 0, len(decls))
	for _, d := range decls {
		if strings.TrimSpace(d.Name) == "" {
			diags.add(CodeSchemaInvalid, rel, d.Line, "%s name must not be blank", what)
			continue
		}
		kept = append(kept, d)
	}
	return kept
}

// checkRequired reports required props missing from properties and
// returns the declared subset.
func checkRequired(schema *schemaInfo, rel string, diags *diagnostics) []string {
	declared := make(map[string]bool, len(schema.Props))
	for _, p := range schema.Props {
		declared[p.Name] = true
	}
	kept := make([]string, 0, len(schema.Required))
	for _, req := range schema.Required {
		if !declared[req] {
			diags.add(CodeSchemaInvalid, rel, schema.Line,
				"required prop %q is not declared in propsSchema.properties", req)
			continue
		}
		kept = append(kept, req)
	}
	return kept
}

// indexByName maps componentName to component. Later duplicates (in key
// order) are reported and not indexed.
func indexByName(components []*component, diags *diagnostics) map[string]*component {
	byName := make(map[string]*component)
	for _, c := range components {
		name := c.componentName()
		if name == "" {
			continue
		}
		if first, dup := byName[name]; dup {
			diags.add(CodeSchemaDuplicateName, c.files[ir.FileSchema], c.schema.Line,
				"componentName %q is already used by %s", name, first.key)
			continue
		}
		byName[name] = c
	}
	return byName
}

func viewPathFor(components []*component, key string) string {
	for _, c := range components {
		if c.key != key {
			continue
		}
		if p, ok := c.files[ir.FileView]; ok {
			return p
		}
	}
	return ir.UnknownFilePath
}
