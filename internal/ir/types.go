package ir

import "slices"

// Severity is the closed set of diagnostic severities.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// ParseSeverity accepts exactly "error" or "warn".
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(s) {
	case SeverityError, SeverityWarn:
		return Severity(s), true
	}
	return "", false
}

// ClampSeverity maps any severity string onto the closed set.
// "warn" and "warning" become SeverityWarn; everything else is an error.
func ClampSeverity(s string) Severity {
	if s == "warn" || s == "warning" {
		return SeverityWarn
	}
	return SeverityError
}

// UnknownFilePath is recorded on diagnostics that have no source file.
const UnknownFilePath = "unknown"

// Diagnostic is a compiler finding about user source. Diagnostics are data:
// they never abort a compile. Zero line/column fields are omitted.
type Diagnostic struct {
	Code      string   `json:"code"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	FilePath  string   `json:"filePath"`
	Line      int      `json:"line,omitempty"`
	Column    int      `json:"column,omitempty"`
	EndLine   int      `json:"endLine,omitempty"`
	EndColumn int      `json:"endColumn,omitempty"`
}

// ToValue converts the diagnostic into its IR shape.
func (d Diagnostic) ToValue() IRObject {
	filePath := d.FilePath
	if filePath == "" {
		filePath = UnknownFilePath
	}
	obj := IRObject{
		"code":     IRString(d.Code),
		"severity": IRString(d.Severity),
		"message":  IRString(d.Message),
		"filePath": IRString(filePath),
	}
	putInt(obj, "line", d.Line)
	putInt(obj, "column", d.Column)
	putInt(obj, "endLine", d.EndLine)
	putInt(obj, "endColumn", d.EndColumn)
	return obj
}

// CompareDiagnostics orders by code, path, line, column, then message.
func CompareDiagnostics(a, b Diagnostic) int {
	switch {
	case a.Code != b.Code:
		return cmpString(a.Code, b.Code)
	case a.FilePath != b.FilePath:
		return cmpString(a.FilePath, b.FilePath)
	case a.Line != b.Line:
		return a.Line - b.Line
	case a.Column != b.Column:
		return a.Column - b.Column
	}
	return cmpString(a.Message, b.Message)
}

// SortDiagnostics sorts in place with CompareDiagnostics.
func SortDiagnostics(diags []Diagnostic) {
	slices.SortStableFunc(diags, CompareDiagnostics)
}

// Summary counts diagnostics by severity.
type Summary struct {
	Total    int `json:"total"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}

// Summarize counts diags.
func Summarize(diags []Diagnostic) Summary {
	s := Summary{Total: len(diags)}
	for _, d := range diags {
		if d.Severity == SeverityWarn {
			s.Warnings++
		} else {
			s.Errors++
		}
	}
	return s
}

// FileKind names the role of a file inside a component.
type FileKind string

const (
	FileSchema    FileKind = "schema"
	FileView      FileKind = "view"
	FileHandlers  FileKind = "handlers"
	FileMethods   FileKind = "methods"
	FileStore     FileKind = "store"
	FileConstants FileKind = "constants"
)

// FileKinds lists every kind in a fixed order.
var FileKinds = []FileKind{FileSchema, FileView, FileHandlers, FileMethods, FileStore, FileConstants}

// StructuralComponent records what files make up a component.
type StructuralComponent struct {
	ComponentKey  string              `json:"componentKey"`
	ComponentName string              `json:"componentName,omitempty"`
	Files         map[FileKind]string `json:"files"`
}

// StructuralEdge records that one component's view references another.
type StructuralEdge struct {
	ID       string `json:"id"`
	From     string `json:"from"`
	To       string `json:"to"`
	Kind     string `json:"kind"`
	FilePath string `json:"filePath"`
	Line     int    `json:"line,omitempty"`
}

// StructuralIR answers "what exists and what references what".
type StructuralIR struct {
	Components []StructuralComponent `json:"components"`
	Edges      []StructuralEdge      `json:"edges"`
}

// SymbolKind is the closed set of semantic symbol kinds.
type SymbolKind string

const (
	SymbolProp    SymbolKind = "prop"
	SymbolEvent   SymbolKind = "event"
	SymbolMethod  SymbolKind = "method"
	SymbolHandler SymbolKind = "handler"
	SymbolAction  SymbolKind = "action"
	SymbolRef     SymbolKind = "ref"
	SymbolBinding SymbolKind = "binding"
)

// Symbol is a named entity declared or used by a component.
type Symbol struct {
	ID           string     `json:"id"`
	ComponentKey string     `json:"componentKey"`
	Kind         SymbolKind `json:"kind"`
	Name         string     `json:"name"`
	FilePath     string     `json:"filePath"`
	Line         int        `json:"line,omitempty"`
}

// Scope groups the symbols visible inside one component.
type Scope struct {
	ID           string   `json:"id"`
	ComponentKey string   `json:"componentKey"`
	Symbols      []string `json:"symbols"`
}

// SemanticEdge links a usage symbol to the symbol it resolves to.
type SemanticEdge struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

// RefRecord is a compiled ref matcher attributed to a component.
type RefRecord struct {
	ID           string `json:"id"`
	ComponentKey string `json:"componentKey"`
	RefKey       string `json:"refKey"`
	TargetType   string `json:"targetType"`
	IsWildcard   bool   `json:"isWildcard"`
	Prefix       string `json:"prefix"`
	FilePath     string `json:"filePath"`
}

// SemanticIR is the binding/usage graph.
//
// Findings holds the analyzer's diagnostics. Parse status, template ids
// and other source facts that only surface as diagnostics reach the
// semantic hash through it.
type SemanticIR struct {
	Symbols  []Symbol       `json:"symbols"`
	Scopes   []Scope        `json:"scopes"`
	Edges    []SemanticEdge `json:"edges"`
	Refs     []RefRecord    `json:"refs"`
	Findings []Diagnostic   `json:"findings"`
}

// ContractComponent is the declared capability surface of one component.
type ContractComponent struct {
	ComponentKey  string   `json:"componentKey"`
	ComponentName string   `json:"componentName,omitempty"`
	Props         []string `json:"props"`
	RequiredProps []string `json:"requiredProps"`
	Events        []string `json:"events"`
	Methods       []string `json:"methods"`
	Handlers      []string `json:"handlers"`
	Actions       []string `json:"actions"`
	Refs          []string `json:"refs"`
}

// TypedContractIR holds every component's contract.
type TypedContractIR struct {
	Components []ContractComponent `json:"components"`
}

// CompilerIR bundles the three layers that make up the semantic core.
type CompilerIR struct {
	Structural    StructuralIR    `json:"structural"`
	Semantic      SemanticIR      `json:"semantic"`
	TypedContract TypedContractIR `json:"typedContract"`
}

// ToValue converts the IR into the generic value model used by the
// canonicalizer, hasher and differ.
func (c CompilerIR) ToValue() IRObject {
	return IRObject{
		"structural":    c.Structural.ToValue(),
		"semantic":      c.Semantic.ToValue(),
		"typedContract": c.TypedContract.ToValue(),
	}
}

// ToValue converts the structural layer.
func (s StructuralIR) ToValue() IRObject {
	components := make(IRArray, len(s.Components))
	for i, c := range s.Components {
		components[i] = c.ToValue()
	}
	edges := make(IRArray, len(s.Edges))
	for i, e := range s.Edges {
		obj := IRObject{
			"id":       IRString(e.ID),
			"from":     IRString(e.From),
			"to":       IRString(e.To),
			"kind":     IRString(e.Kind),
			"filePath": IRString(e.FilePath),
		}
		putInt(obj, "line", e.Line)
		edges[i] = obj
	}
	return IRObject{"components": components, "edges": edges}
}

// ToValue converts a structural component row.
func (c StructuralComponent) ToValue() IRObject {
	files := make(IRObject, len(c.Files))
	for kind, p := range c.Files {
		files[string(kind)] = IRString(p)
	}
	obj := IRObject{
		"componentKey": IRString(c.ComponentKey),
		"files":        files,
	}
	if c.ComponentName != "" {
		obj["componentName"] = IRString(c.ComponentName)
	}
	return obj
}

// ToValue converts the semantic layer.
func (s SemanticIR) ToValue() IRObject {
	symbols := make(IRArray, len(s.Symbols))
	for i, sym := range s.Symbols {
		obj := IRObject{
			"id":           IRString(sym.ID),
			"componentKey": IRString(sym.ComponentKey),
			"kind":         IRString(sym.Kind),
			"name":         IRString(sym.Name),
			"filePath":     IRString(sym.FilePath),
		}
		putInt(obj, "line", sym.Line)
		symbols[i] = obj
	}
	scopes := make(IRArray, len(s.Scopes))
	for i, sc := range s.Scopes {
		scopes[i] = IRObject{
			"id":           IRString(sc.ID),
			"componentKey": IRString(sc.ComponentKey),
			"symbols":      Strings(sc.Symbols),
		}
	}
	edges := make(IRArray, len(s.Edges))
	for i, e := range s.Edges {
		edges[i] = IRObject{
			"id":   IRString(e.ID),
			"from": IRString(e.From),
			"to":   IRString(e.To),
			"kind": IRString(e.Kind),
		}
	}
	refs := make(IRArray, len(s.Refs))
	for i, r := range s.Refs {
		refs[i] = IRObject{
			"id":           IRString(r.ID),
			"componentKey": IRString(r.ComponentKey),
			"refKey":       IRString(r.RefKey),
			"targetType":   IRString(r.TargetType),
			"isWildcard":   IRBool(r.IsWildcard),
			"prefix":       IRString(r.Prefix),
			"filePath":     IRString(r.FilePath),
		}
	}
	findings := make(IRArray, len(s.Findings))
	for i, d := range s.Findings {
		findings[i] = d.ToValue()
	}
	return IRObject{
		"symbols":  symbols,
		"scopes":   scopes,
		"edges":    edges,
		"refs":     refs,
		"findings": findings,
	}
}

// ToValue converts the typed-contract layer.
func (t TypedContractIR) ToValue() IRObject {
	components := make(IRArray, len(t.Components))
	for i, c := range t.Components {
		components[i] = c.ToValue()
	}
	return IRObject{"components": components}
}

// ToValue converts a contract row. List fields are emitted sorted.
func (c ContractComponent) ToValue() IRObject {
	obj := IRObject{
		"componentKey":  IRString(c.ComponentKey),
		"props":         Strings(SortedUnique(c.Props)),
		"requiredProps": Strings(SortedUnique(c.RequiredProps)),
		"events":        Strings(SortedUnique(c.Events)),
		"methods":       Strings(SortedUnique(c.Methods)),
		"handlers":      Strings(SortedUnique(c.Handlers)),
		"actions":       Strings(SortedUnique(c.Actions)),
		"refs":          Strings(SortedUnique(c.Refs)),
	}
	if c.ComponentName != "" {
		obj["componentName"] = IRString(c.ComponentName)
	}
	return obj
}

// SortedUnique returns a sorted copy of values without duplicates.
// A nil input yields an empty, non-nil slice.
func SortedUnique(values []string) []string {
	out := make([]string, 0, len(values))
	out = append(out, values...)
	slices.Sort(out)
	return slices.Compact(out)
}

func putInt(obj IRObject, key string, v int) {
	if v != 0 {
		obj[key] = IRInt(v)
	}
}

func cmpString(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
