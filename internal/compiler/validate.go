package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rtgl/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Layer-wide errors (E100-E109)
	ErrDuplicateComponentKey = "E100" // componentKey appears twice in one layer
	ErrEmptyName             = "E101" // key, id or name is empty
	ErrDuplicateID           = "E102" // symbol/scope/ref/edge id appears twice

	// Reference errors (E110-E119)
	ErrUnknownEdgeEndpoint = "E110" // structural edge endpoint is not a component
	ErrUnknownComponent    = "E111" // semantic row names an unknown component
	ErrUnknownSymbol       = "E112" // scope or semantic edge names an unknown symbol

	// Contract errors (E120-E129)
	ErrRequiredNotDeclared = "E120" // required prop missing from props
)

// ValidationError represents one compiler IR invariant violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationResult is the compilerIrValidation shape consumed by the
// pipeline: OK plus every error rendered as a string.
type ValidationResult struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors"`
}

// Result renders errs as a ValidationResult.
func Result(errs []ValidationError) ValidationResult {
	out := ValidationResult{OK: len(errs) == 0, Errors: make([]string, len(errs))}
	for i, e := range errs {
		out.Errors[i] = e.Error()
	}
	return out
}

// Validate checks the internal consistency of a CompilerIR.
// Returns all errors found (does not fail-fast).
func Validate(c ir.CompilerIR) []ValidationError {
	var errs []ValidationError

	known := make(map[string]bool)
	seen := make(map[string]bool)
	for i, comp := range c.Structural.Components {
		field := fmt.Sprintf("structural.components[%d].componentKey", i)
		if strings.TrimSpace(comp.ComponentKey) == "" {
			errs = append(errs, ValidationError{Field: field, Message: "componentKey is required", Code: ErrEmptyName})
			continue
		}
		if seen[comp.ComponentKey] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate componentKey %q", comp.ComponentKey),
				Code:    ErrDuplicateComponentKey,
			})
		}
		seen[comp.ComponentKey] = true
		known[comp.ComponentKey] = true
	}

	edgeIDs := make(map[string]bool)
	for i, e := range c.Structural.Edges {
		field := fmt.Sprintf("structural.edges[%d]", i)
		errs = append(errs, checkID(field+".id", e.ID, edgeIDs)...)
		for _, end := range []struct{ name, key string }{{"from", e.From}, {"to", e.To}} {
			if !known[end.key] {
				errs = append(errs, ValidationError{
					Field:   field + "." + end.name,
					Message: fmt.Sprintf("edge endpoint %q is not a known component", end.key),
					Code:    ErrUnknownEdgeEndpoint,
				})
			}
		}
	}

	errs = append(errs, validateSemantic(c.Semantic, known)...)
	errs = append(errs, validateContract(c.TypedContract, known)...)
	return errs
}

func validateSemantic(s ir.SemanticIR, known map[string]bool) []ValidationError {
	var errs []ValidationError

	symbolIDs := make(map[string]bool)
	for i, sym := range s.Symbols {
		field := fmt.Sprintf("semantic.symbols[%d]", i)
		errs = append(errs, checkID(field+".id", sym.ID, symbolIDs)...)
		errs = append(errs, checkComponent(field+".componentKey", sym.ComponentKey, known)...)
		if strings.TrimSpace(sym.Name) == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "symbol name is required", Code: ErrEmptyName})
		}
	}

	scopeIDs := make(map[string]bool)
	for i, sc := range s.Scopes {
		field := fmt.Sprintf("semantic.scopes[%d]", i)
		errs = append(errs, checkID(field+".id", sc.ID, scopeIDs)...)
		errs = append(errs, checkComponent(field+".componentKey", sc.ComponentKey, known)...)
		for j, id := range sc.Symbols {
			if !symbolIDs[id] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.symbols[%d]", field, j),
					Message: fmt.Sprintf("scope references unknown symbol %q", id),
					Code:    ErrUnknownSymbol,
				})
			}
		}
	}

	edgeIDs := make(map[string]bool)
	for i, e := range s.Edges {
		field := fmt.Sprintf("semantic.edges[%d]", i)
		errs = append(errs, checkID(field+".id", e.ID, edgeIDs)...)
		for _, end := range []struct{ name, id string }{{"from", e.From}, {"to", e.To}} {
			if !symbolIDs[end.id] {
				errs = append(errs, ValidationError{
					Field:   field + "." + end.name,
					Message: fmt.Sprintf("edge endpoint %q is not a known symbol", end.id),
					Code:    ErrUnknownSymbol,
				})
			}
		}
	}

	refIDs := make(map[string]bool)
	for i, r := range s.Refs {
		field := fmt.Sprintf("semantic.refs[%d]", i)
		errs = append(errs, checkID(field+".id", r.ID, refIDs)...)
		errs = append(errs, checkComponent(field+".componentKey", r.ComponentKey, known)...)
		if strings.TrimSpace(r.RefKey) == "" {
			errs = append(errs, ValidationError{Field: field + ".refKey", Message: "refKey is required", Code: ErrEmptyName})
		}
	}

	return errs
}

func validateContract(t ir.TypedContractIR, known map[string]bool) []ValidationError {
	var errs []ValidationError

	seen := make(map[string]bool)
	for i, comp := range t.Components {
		field := fmt.Sprintf("typedContract.components[%d]", i)
		if seen[comp.ComponentKey] {
			errs = append(errs, ValidationError{
				Field:   field + ".componentKey",
				Message: fmt.Sprintf("duplicate componentKey %q", comp.ComponentKey),
				Code:    ErrDuplicateComponentKey,
			})
		}
		seen[comp.ComponentKey] = true
		errs = append(errs, checkComponent(field+".componentKey", comp.ComponentKey, known)...)

		for _, req := range comp.RequiredProps {
			if !slices.Contains(comp.Props, req) {
				errs = append(errs, ValidationError{
					Field:   field + ".requiredProps",
					Message: fmt.Sprintf("required prop %q is not declared in props", req),
					Code:    ErrRequiredNotDeclared,
				})
			}
		}
	}

	return errs
}

func checkID(field, id string, seen map[string]bool) []ValidationError {
	if strings.TrimSpace(id) == "" {
		return []ValidationError{{Field: field, Message: "id is required", Code: ErrEmptyName}}
	}
	if seen[id] {
		return []ValidationError{{Field: field, Message: fmt.Sprintf("duplicate id %q", id), Code: ErrDuplicateID}}
	}
	seen[id] = true
	return nil
}

func checkComponent(field, key string, known map[string]bool) []ValidationError {
	if known[key] {
		return nil
	}
	return []ValidationError{{
		Field:   field,
		Message: fmt.Sprintf("unknown component %q", key),
		Code:    ErrUnknownComponent,
	}}
}
