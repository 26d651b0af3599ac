package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/roach88/rtgl/internal/config"
	"github.com/roach88/rtgl/internal/ir"
	"github.com/roach88/rtgl/internal/policy"
)

// loadProject resolves the optional root argument (default ".") and
// loads its configuration.
func loadProject(args []string) (*config.Config, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	return config.Load(abs)
}

// loadPolicy loads the pack named by the flag, or by the configuration
// when the flag is empty. No pack configured returns nil.
func loadPolicy(cfg *config.Config, flagPath string, verify bool) (*policy.Pack, error) {
	p := flagPath
	if p == "" {
		p = cfg.Resolve(cfg.Policy.Path)
	}
	if p == "" {
		return nil, nil
	}
	return policy.LoadPack(p, policy.LoadOptions{VerifySignature: verify || cfg.Policy.VerifySignature})
}

// printDiagnostics writes one line per diagnostic in path:line:col form.
func printDiagnostics(w io.Writer, diags []ir.Diagnostic) {
	for _, d := range diags {
		loc := d.FilePath
		if d.Line > 0 {
			loc = fmt.Sprintf("%s:%d", loc, d.Line)
			if d.Column > 0 {
				loc = fmt.Sprintf("%s:%d", loc, d.Column)
			}
		}
		fmt.Fprintf(w, "%s: %s %s: %s\n", loc, d.Severity, d.Code, d.Message)
	}
}

func pluralize(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
