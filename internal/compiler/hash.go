package compiler

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/roach88/rtgl/internal/ir"
)

// HashSemanticCore returns the semantic hash of a compiler IR.
//
// Every "filePath" field is rewritten to a project-relative, forward-slash
// path before hashing, so the hash does not depend on where the project is
// checked out. The value is canonicalized, encoded with MarshalCanonical
// and hashed with the semantic-core domain prefix. Nothing time-dependent
// enters the payload.
func HashSemanticCore(core ir.CompilerIR, projectRoot string) (string, error) {
	v := RelativizeFilePaths(core.ToValue(), projectRoot)
	data, err := ir.MarshalCanonical(ir.Canonicalize(v, ""))
	if err != nil {
		return "", fmt.Errorf("hash semantic core: %w", err)
	}
	return ir.HashWithDomain(ir.DomainSemanticCore, data), nil
}

// RelativizeFilePaths returns a deep copy of v with every string
// "filePath" field normalized by NormalizePath.
func RelativizeFilePaths(v ir.IRValue, projectRoot string) ir.IRValue {
	switch val := v.(type) {
	case ir.IRObject:
		out := make(ir.IRObject, len(val))
		for k, child := range val {
			if s, ok := child.(ir.IRString); ok && k == "filePath" {
				out[k] = ir.IRString(NormalizePath(string(s), projectRoot))
				continue
			}
			out[k] = RelativizeFilePaths(child, projectRoot)
		}
		return out
	case ir.IRArray:
		out := make(ir.IRArray, len(val))
		for i, child := range val {
			out[i] = RelativizeFilePaths(child, projectRoot)
		}
		return out
	default:
		return v
	}
}

// NormalizePath makes p relative to projectRoot when it is absolute and
// converts it to a clean forward-slash path. Backslashes are treated as
// separators on every platform. Empty paths become
// ir.UnknownFilePath.
func NormalizePath(p, projectRoot string) string {
	if strings.TrimSpace(p) == "" {
		return ir.UnknownFilePath
	}
	if filepath.IsAbs(p) && projectRoot != "" {
		if rel, err := filepath.Rel(projectRoot, p); err == nil {
			p = rel
		}
	}
	return path.Clean(strings.ReplaceAll(filepath.ToSlash(p), `\`, "/"))
}
