package analyze

import (
	"fmt"

	"github.com/roach88/rtgl/internal/ir"
)

// Diagnostic codes emitted by the analyzer. Codes are stable: policy packs
// refer to them by rule id.
const (
	CodeSchemaInvalid       = "RTGL-CHECK-SCHEMA-001"
	CodeSchemaDuplicateName = "RTGL-CHECK-SCHEMA-002"
	CodeViewInvalid         = "RTGL-CHECK-VIEW-001"
	CodeScriptSyntax        = "RTGL-CHECK-SCRIPT-001"
	CodeRefInvalidKey       = "RTGL-CHECK-REF-001"
	CodeRefElementID        = "RTGL-CHECK-REF-002"
	CodeRefUnmatched        = "RTGL-CHECK-REF-003"
	CodeEventConfig         = "RTGL-CHECK-EVENT-001"
	CodeHandlerMissing      = "RTGL-CHECK-HANDLER-001"
	CodeActionMissing       = "RTGL-CHECK-ACTION-001"
	CodeMethodMissing       = "RTGL-CHECK-METHOD-001"
	CodeCompatUnknownProp   = "RTGL-CHECK-COMPAT-001"
	CodeCompatRequiredProp  = "RTGL-CHECK-COMPAT-002"
	CodeCompatNoSchema      = "RTGL-CHECK-COMPAT-003"
	CodeUsageCycle          = "RTGL-CHECK-CYCLE-001"
)

// codeSeverity is the default severity per code.
var codeSeverity = map[string]ir.Severity{
	CodeRefUnmatched:   ir.SeverityWarn,
	CodeMethodMissing:  ir.SeverityWarn,
	CodeCompatNoSchema: ir.SeverityWarn,
	CodeUsageCycle:     ir.SeverityWarn,
}

// diagnostics accumulates findings for one analysis pass.
type diagnostics struct {
	items []ir.Diagnostic
}

func (d *diagnostics) add(code, filePath string, line int, format string, args ...any) {
	sev, ok := codeSeverity[code]
	if !ok {
		sev = ir.SeverityError
	}
	d.items = append(d.items, ir.Diagnostic{
		Code:     code,
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
		FilePath: filePath,
		Line:     line,
	})
}
