package policy

import "github.com/roach88/rtgl/internal/ir"

// Apply returns diags with the pack's rules applied, in the same order,
// and the recomputed summary. A disabled rule drops every diagnostic with
// its code; a rule severity replaces the diagnostic's. A nil pack changes
// nothing.
func Apply(diags []ir.Diagnostic, p *Pack) ([]ir.Diagnostic, ir.Summary) {
	out := make([]ir.Diagnostic, 0, len(diags))
	if p == nil {
		out = append(out, diags...)
		return out, ir.Summarize(out)
	}

	byID := make(map[string]Rule, len(p.Rules))
	for _, r := range p.Rules {
		byID[r.ID] = r
	}
	for _, d := range diags {
		r, ok := byID[d.Code]
		if !ok {
			out = append(out, d)
			continue
		}
		if !r.IsEnabled() {
			continue
		}
		if r.Severity != "" {
			d.Severity = r.Severity
		}
		out = append(out, d)
	}
	return out, ir.Summarize(out)
}
