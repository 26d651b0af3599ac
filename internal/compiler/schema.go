package compiler

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/rtgl/internal/ir"
)

//go:embed artifact.cue
var artifactSchemaSource []byte

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error

	// schemaMu guards schemaCtx; cue.Context is not safe for concurrent use.
	schemaMu sync.Mutex
)

func artifactSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileBytes(artifactSchemaSource)
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile artifact schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Artifact"))
		if !schemaDef.Exists() {
			schemaErr = fmt.Errorf("artifact schema has no #Artifact definition")
		}
	})
	return schemaCtx, schemaDef, schemaErr
}

// ValidateArtifactSchema checks serialized artifact JSON against the
// embedded #Artifact CUE definition. A mismatch is a KindInputShape error
// carrying every CUE error message in Details.
func ValidateArtifactSchema(data []byte) error {
	ctx, def, err := artifactSchema()
	if err != nil {
		return err
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()

	v := ctx.CompileBytes(data)
	if err := v.Err(); err != nil {
		return &ir.Error{
			Kind:    ir.KindInputShape,
			Subject: "artifact",
			Message: "artifact is not valid JSON",
			Err:     err,
		}
	}

	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		var details []string
		for _, e := range cueerrors.Errors(err) {
			details = append(details, strings.TrimSpace(cueerrors.Details(e, nil)))
		}
		return &ir.Error{
			Kind:    ir.KindInputShape,
			Subject: "artifact",
			Message: "artifact does not match schema " + ir.ArtifactSchema,
			Details: details,
		}
	}
	return nil
}
