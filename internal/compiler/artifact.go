package compiler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/rtgl/internal/ir"
)

// ArtifactFileName is the file EmitArtifact writes inside outDir.
const ArtifactFileName = "artifact.json"

// ProjectRootMarker is recorded as project.root. The absolute root never
// enters the artifact so builds from different checkouts compare equal.
const ProjectRootMarker = "."

// Artifact is the public, canonical result of a compile.
type Artifact struct {
	Version      int                 `json:"version"`
	Metadata     ArtifactMetadata    `json:"metadata"`
	SemanticHash string              `json:"semanticHash"`
	Project      ArtifactProject     `json:"project"`
	Summary      ir.Summary          `json:"summary"`
	Components   []ArtifactComponent `json:"components"`
	Diagnostics  []ir.Diagnostic     `json:"diagnostics"`
}

// ArtifactMetadata identifies the artifact schema and producer.
type ArtifactMetadata struct {
	Schema          string `json:"schema"`
	CompilerVersion string `json:"compilerVersion"`
}

// ArtifactProject records what was compiled.
type ArtifactProject struct {
	Root string   `json:"root"`
	Dirs []string `json:"dirs"`
}

// ArtifactComponent is one component row: its files and its contract.
type ArtifactComponent struct {
	ComponentKey  string            `json:"componentKey"`
	ComponentName string            `json:"componentName,omitempty"`
	Files         map[string]string `json:"files"`
	Contract      ArtifactContract  `json:"contract"`
}

// ArtifactContract lists a component's declared capabilities, sorted.
type ArtifactContract struct {
	Props         []string `json:"props"`
	RequiredProps []string `json:"requiredProps"`
	Events        []string `json:"events"`
	Methods       []string `json:"methods"`
	Handlers      []string `json:"handlers"`
	Actions       []string `json:"actions"`
	Refs          []string `json:"refs"`
}

// ArtifactInput is everything CreateCompileArtifact joins.
type ArtifactInput struct {
	ProjectRoot  string
	Dirs         []string
	SemanticHash string
	CompilerIR   ir.CompilerIR
	Diagnostics  []ir.Diagnostic
}

// CreateCompileArtifact builds the canonical artifact.
//
// Diagnostics get project-relative paths and clamped severities and are
// sorted by code, path, line, column and message. Component rows join
// the structural and typed-contract layers by componentKey; a component
// present in either layer gets a row.
func CreateCompileArtifact(in ArtifactInput) (*Artifact, error) {
	if strings.TrimSpace(in.SemanticHash) == "" {
		return nil, ir.NewInputShapeError("semanticHash", "artifact requires a semantic hash")
	}

	diags := make([]ir.Diagnostic, len(in.Diagnostics))
	for i, d := range in.Diagnostics {
		d.FilePath = NormalizePath(d.FilePath, in.ProjectRoot)
		d.Severity = ir.ClampSeverity(string(d.Severity))
		diags[i] = d
	}
	ir.SortDiagnostics(diags)

	dirs := make([]string, len(in.Dirs))
	for i, d := range in.Dirs {
		dirs[i] = NormalizePath(d, in.ProjectRoot)
	}

	a := &Artifact{
		Version: ir.ArtifactVersion,
		Metadata: ArtifactMetadata{
			Schema:          ir.ArtifactSchema,
			CompilerVersion: ir.CompilerVersion,
		},
		SemanticHash: in.SemanticHash,
		Project:      ArtifactProject{Root: ProjectRootMarker, Dirs: dirs},
		Summary:      ir.Summarize(diags),
		Components:   joinComponents(in.CompilerIR, in.ProjectRoot),
		Diagnostics:  diags,
	}
	return a, nil
}

func joinComponents(core ir.CompilerIR, projectRoot string) []ArtifactComponent {
	rows := make(map[string]*ArtifactComponent)
	row := func(key string) *ArtifactComponent {
		r, ok := rows[key]
		if !ok {
			r = &ArtifactComponent{ComponentKey: key, Files: map[string]string{}}
			rows[key] = r
		}
		return r
	}

	for _, c := range core.Structural.Components {
		r := row(c.ComponentKey)
		if c.ComponentName != "" {
			r.ComponentName = c.ComponentName
		}
		for kind, p := range c.Files {
			r.Files[string(kind)] = NormalizePath(p, projectRoot)
		}
	}
	for _, c := range core.TypedContract.Components {
		r := row(c.ComponentKey)
		if c.ComponentName != "" {
			r.ComponentName = c.ComponentName
		}
		r.Contract = ArtifactContract{
			Props:         ir.SortedUnique(c.Props),
			RequiredProps: ir.SortedUnique(c.RequiredProps),
			Events:        ir.SortedUnique(c.Events),
			Methods:       ir.SortedUnique(c.Methods),
			Handlers:      ir.SortedUnique(c.Handlers),
			Actions:       ir.SortedUnique(c.Actions),
			Refs:          ir.SortedUnique(c.Refs),
		}
	}

	out := make([]ArtifactComponent, 0, len(rows))
	for _, r := range rows {
		r.Contract = r.Contract.normalized()
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b ArtifactComponent) int {
		return strings.Compare(a.ComponentKey, b.ComponentKey)
	})
	return out
}

// normalized replaces nil lists with empty ones so every row has the same
// shape.
func (c ArtifactContract) normalized() ArtifactContract {
	fix := func(s []string) []string {
		if s == nil {
			return []string{}
		}
		return s
	}
	return ArtifactContract{
		Props:         fix(c.Props),
		RequiredProps: fix(c.RequiredProps),
		Events:        fix(c.Events),
		Methods:       fix(c.Methods),
		Handlers:      fix(c.Handlers),
		Actions:       fix(c.Actions),
		Refs:          fix(c.Refs),
	}
}

// ToValue converts the artifact into the IR value model, canonicalized.
func (a *Artifact) ToValue() ir.IRValue {
	components := make(ir.IRArray, len(a.Components))
	for i, c := range a.Components {
		files := make(ir.IRObject, len(c.Files))
		for k, p := range c.Files {
			files[k] = ir.IRString(p)
		}
		row := ir.IRObject{
			"componentKey": ir.IRString(c.ComponentKey),
			"files":        files,
			"contract": ir.IRObject{
				"props":         ir.Strings(c.Contract.Props),
				"requiredProps": ir.Strings(c.Contract.RequiredProps),
				"events":        ir.Strings(c.Contract.Events),
				"methods":       ir.Strings(c.Contract.Methods),
				"handlers":      ir.Strings(c.Contract.Handlers),
				"actions":       ir.Strings(c.Contract.Actions),
				"refs":          ir.Strings(c.Contract.Refs),
			},
		}
		if c.ComponentName != "" {
			row["componentName"] = ir.IRString(c.ComponentName)
		}
		components[i] = row
	}

	diagnostics := make(ir.IRArray, len(a.Diagnostics))
	for i, d := range a.Diagnostics {
		diagnostics[i] = d.ToValue()
	}

	v := ir.IRObject{
		"version": ir.IRInt(a.Version),
		"metadata": ir.IRObject{
			"schema":          ir.IRString(a.Metadata.Schema),
			"compilerVersion": ir.IRString(a.Metadata.CompilerVersion),
		},
		"semanticHash": ir.IRString(a.SemanticHash),
		"project": ir.IRObject{
			"root": ir.IRString(a.Project.Root),
			"dirs": ir.Strings(a.Project.Dirs),
		},
		"summary": ir.IRObject{
			"total":    ir.IRInt(a.Summary.Total),
			"errors":   ir.IRInt(a.Summary.Errors),
			"warnings": ir.IRInt(a.Summary.Warnings),
		},
		"components":  components,
		"diagnostics": diagnostics,
	}
	return ir.Canonicalize(v, "")
}

// SerializeArtifact returns the pretty-printed canonical JSON of a, with a
// trailing newline.
func SerializeArtifact(a *Artifact) ([]byte, error) {
	data, err := ir.MarshalCanonicalIndent(a.ToValue())
	if err != nil {
		return nil, fmt.Errorf("serialize artifact: %w", err)
	}
	return data, nil
}

// EmitArtifact writes a to <outDir>/artifact.json and returns the absolute
// path written.
func EmitArtifact(a *Artifact, outDir string) (string, error) {
	data, err := SerializeArtifact(a)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	p, err := filepath.Abs(filepath.Join(outDir, ArtifactFileName))
	if err != nil {
		return "", fmt.Errorf("resolve artifact path: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return p, nil
}

// ReadArtifact loads an emitted artifact, checking it against the
// artifact schema first.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return ParseArtifact(data)
}

// ParseArtifact decodes serialized artifact JSON after schema validation.
func ParseArtifact(data []byte) (*Artifact, error) {
	if err := ValidateArtifactSchema(data); err != nil {
		return nil, err
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, ir.NewInputShapeError("artifact", "decode artifact: %v", err)
	}
	return &a, nil
}
