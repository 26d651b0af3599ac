package compiler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rtgl/internal/ir"
)

const testHash = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func sampleInput() ArtifactInput {
	return ArtifactInput{
		ProjectRoot:  "/work/app",
		Dirs:         []string{"src/components"},
		SemanticHash: testHash,
		CompilerIR: ir.CompilerIR{
			Structural: ir.StructuralIR{
				Components: []ir.StructuralComponent{
					{
						ComponentKey: "src/components/page",
						Files:        map[ir.FileKind]string{ir.FileView: "/work/app/src/components/page/page.view.yaml"},
					},
					{
						ComponentKey:  "src/components/card",
						ComponentName: "x-card",
						Files: map[ir.FileKind]string{
							ir.FileSchema: "/work/app/src/components/card/card.schema.yaml",
							ir.FileView:   "/work/app/src/components/card/card.view.yaml",
						},
					},
				},
			},
			TypedContract: ir.TypedContractIR{
				Components: []ir.ContractComponent{
					{
						ComponentKey:  "src/components/card",
						ComponentName: "x-card",
						Props:         []string{"title", "size"},
						RequiredProps: []string{"title"},
						Events:        []string{"select"},
						Handlers:      []string{"handleClick"},
						Refs:          []string{"root"},
					},
				},
			},
		},
		Diagnostics: []ir.Diagnostic{
			{
				Code:     "RTGL-CHECK-REF-003",
				Severity: "warning",
				Message:  `ref "root" does not match any element in the template`,
				FilePath: "/work/app/src/components/card/card.view.yaml",
				Line:     5,
			},
			{
				Code:     "RTGL-CHECK-COMPAT-003",
				Severity: ir.SeverityWarn,
				Message:  "view has no schema; component src/components/page has no typed contract",
				FilePath: "src/components/page/page.view.yaml",
			},
			{
				Code:     "RTGL-CHECK-COMPAT-001",
				Severity: "fatal",
				Message:  `x-card does not declare prop "bogus"`,
				FilePath: "/work/app/src/components/page/page.view.yaml",
				Line:     2,
				Column:   5,
			},
		},
	}
}

func TestCreateCompileArtifact(t *testing.T) {
	a, err := CreateCompileArtifact(sampleInput())
	require.NoError(t, err)

	assert.Equal(t, ir.ArtifactVersion, a.Version)
	assert.Equal(t, ir.ArtifactSchema, a.Metadata.Schema)
	assert.Equal(t, ProjectRootMarker, a.Project.Root)
	assert.Equal(t, ir.Summary{Total: 3, Errors: 1, Warnings: 2}, a.Summary)

	require.Len(t, a.Diagnostics, 3)
	assert.Equal(t, "RTGL-CHECK-COMPAT-001", a.Diagnostics[0].Code)
	assert.Equal(t, ir.SeverityError, a.Diagnostics[0].Severity)
	assert.Equal(t, "src/components/page/page.view.yaml", a.Diagnostics[0].FilePath)
	assert.Equal(t, ir.SeverityWarn, a.Diagnostics[2].Severity)

	require.Len(t, a.Components, 2)
	card, page := a.Components[0], a.Components[1]
	assert.Equal(t, "src/components/card", card.ComponentKey)
	assert.Equal(t, []string{"size", "title"}, card.Contract.Props)
	assert.Equal(t, "src/components/card/card.schema.yaml", card.Files["schema"])
	assert.Equal(t, "src/components/page", page.ComponentKey)
	assert.Empty(t, page.ComponentName)
	assert.NotNil(t, page.Contract.Props)
	assert.Empty(t, page.Contract.Props)
}

func TestCreateCompileArtifactRequiresHash(t *testing.T) {
	in := sampleInput()
	in.SemanticHash = ""
	_, err := CreateCompileArtifact(in)
	require.Error(t, err)
	assert.True(t, ir.IsKind(err, ir.KindInputShape))
}

func TestCreateCompileArtifactContractOnlyRow(t *testing.T) {
	in := sampleInput()
	in.CompilerIR.TypedContract.Components = append(in.CompilerIR.TypedContract.Components,
		ir.ContractComponent{ComponentKey: "src/components/orphan", Props: []string{"x"}})

	a, err := CreateCompileArtifact(in)
	require.NoError(t, err)
	require.Len(t, a.Components, 3)
	assert.Equal(t, "src/components/orphan", a.Components[1].ComponentKey)
	assert.Empty(t, a.Components[1].Files)
}

func TestSerializeArtifactGolden(t *testing.T) {
	a, err := CreateCompileArtifact(sampleInput())
	require.NoError(t, err)

	data, err := SerializeArtifact(a)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "artifact", data)
}

func TestSerializeArtifactIgnoresInputOrder(t *testing.T) {
	forward, err := CreateCompileArtifact(sampleInput())
	require.NoError(t, err)

	in := sampleInput()
	in.Diagnostics[0], in.Diagnostics[2] = in.Diagnostics[2], in.Diagnostics[0]
	in.CompilerIR.Structural.Components[0], in.CompilerIR.Structural.Components[1] =
		in.CompilerIR.Structural.Components[1], in.CompilerIR.Structural.Components[0]
	in.CompilerIR.TypedContract.Components[0].Props = []string{"size", "title"}
	shuffled, err := CreateCompileArtifact(in)
	require.NoError(t, err)

	a, err := SerializeArtifact(forward)
	require.NoError(t, err)
	b, err := SerializeArtifact(shuffled)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestEmitAndReadArtifact(t *testing.T) {
	a, err := CreateCompileArtifact(sampleInput())
	require.NoError(t, err)

	outDir := filepath.Join(t.TempDir(), "dist", "rtgl")
	p, err := EmitArtifact(a, outDir)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(p))
	assert.Equal(t, ArtifactFileName, filepath.Base(p))

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "}\n"))

	back, err := ReadArtifact(p)
	require.NoError(t, err)
	assert.Equal(t, a, back)
}

func TestValidateArtifactSchemaRejects(t *testing.T) {
	a, err := CreateCompileArtifact(sampleInput())
	require.NoError(t, err)
	data, err := SerializeArtifact(a)
	require.NoError(t, err)
	require.NoError(t, ValidateArtifactSchema(data))

	tests := []struct {
		name string
		edit func(string) string
	}{
		{"bad hash", func(s string) string { return strings.Replace(s, testHash, "not-a-hash", 1) }},
		{"unknown field", func(s string) string { return strings.Replace(s, `"version": 1`, `"version": 1, "extra": true`, 1) }},
		{"bad severity", func(s string) string { return strings.Replace(s, `"severity": "error"`, `"severity": "fatal"`, 1) }},
		{"wrong version", func(s string) string { return strings.Replace(s, `"version": 1`, `"version": 2`, 1) }},
		{"not json", func(string) string { return "{" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArtifactSchema([]byte(tt.edit(string(data))))
			require.Error(t, err)
			assert.True(t, ir.IsKind(err, ir.KindInputShape))
		})
	}
}
