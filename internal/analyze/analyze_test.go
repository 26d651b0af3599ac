package analyze

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rtgl/internal/ir"
	"github.com/roach88/rtgl/internal/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func analyzeTree(t *testing.T, files map[string]string) *Result {
	t.Helper()
	root := t.TempDir()
	testutil.WriteTree(t, root, files)
	res, err := Analyze(context.Background(), Options{
		Root:            root,
		IncludeSemantic: true,
		EmitCompilerIR:  true,
		Logger:          testLogger(),
	})
	require.NoError(t, err)
	return res
}

func diagCodes(res *Result) []string {
	codes := make([]string, 0, len(res.Diagnostics))
	for _, d := range res.Diagnostics {
		codes = append(codes, d.Code)
	}
	return codes
}

func TestAnalyzeTodoApp(t *testing.T) {
	res := analyzeTree(t, testutil.TodoApp())

	assert.True(t, res.OK)
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, ir.Summary{}, res.Summary)
	assert.True(t, res.Validation.OK, res.Validation.Errors)
	assert.Equal(t, 2, res.ComponentCount)
	assert.Equal(t, []string{"src/components"}, res.Dirs)
	require.NotNil(t, res.CompilerIR)

	core := res.CompilerIR
	require.Len(t, core.Structural.Components, 2)
	assert.Equal(t, "src/components/todoItem", core.Structural.Components[0].ComponentKey)
	assert.Equal(t, "src/components/todoList", core.Structural.Components[1].ComponentKey)
	assert.Equal(t, "src/components/todoList/todoList.view.yaml",
		core.Structural.Components[1].Files[ir.FileView])

	require.Len(t, core.Structural.Edges, 1)
	edge := core.Structural.Edges[0]
	assert.Equal(t, "src/components/todoList", edge.From)
	assert.Equal(t, "src/components/todoItem", edge.To)
	assert.Equal(t, "uses", edge.Kind)

	require.Len(t, core.TypedContract.Components, 2)
	list := core.TypedContract.Components[1]
	assert.Equal(t, "todo-list", list.ComponentName)
	assert.ElementsMatch(t, []string{"title", "maxItems"}, list.Props)
	assert.Equal(t, []string{"title"}, list.RequiredProps)
	assert.Equal(t, []string{"item-selected"}, list.Events)
	assert.Equal(t, []string{"focusInput"}, list.Methods)
	assert.Equal(t, []string{"handleInput", "handleKeydown"}, list.Handlers)
	assert.Equal(t, []string{"addTodo"}, list.Actions)
	assert.Equal(t, []string{"addButton", "newTodo", "window"}, list.Refs)

	edgeKinds := make(map[string]int)
	for _, e := range core.Semantic.Edges {
		edgeKinds[e.Kind]++
	}
	assert.Equal(t, 2, edgeKinds[EdgeKindBindsProp], "item and done bind to todo-item props")
	assert.Equal(t, 3, edgeKinds[EdgeKindListens])

	require.Len(t, core.Semantic.Scopes, 2)
	assert.Len(t, core.Semantic.Refs, 3)
	assert.Empty(t, core.Semantic.Findings)
}

func TestAnalyzeWithoutSemanticLayer(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, testutil.TodoApp())

	res, err := Analyze(context.Background(), Options{Root: root, EmitCompilerIR: true, Logger: testLogger()})
	require.NoError(t, err)
	require.NotNil(t, res.CompilerIR)
	assert.Empty(t, res.CompilerIR.Semantic.Symbols)
	assert.Len(t, res.CompilerIR.TypedContract.Components, 2)

	res, err = Analyze(context.Background(), Options{Root: root, Logger: testLogger()})
	require.NoError(t, err)
	assert.Nil(t, res.CompilerIR)
	assert.True(t, res.OK)
}

func TestAnalyzeMissingRoot(t *testing.T) {
	_, err := Analyze(context.Background(), Options{Root: "/nonexistent/rtgl/project", Logger: testLogger()})
	require.Error(t, err)
	assert.True(t, ir.IsKind(err, ir.KindInputShape))
}

func TestAnalyzeEmptyProject(t *testing.T) {
	res := analyzeTree(t, map[string]string{"README.md": "empty"})
	assert.True(t, res.OK)
	assert.Equal(t, 0, res.ComponentCount)
	assert.Empty(t, res.CompilerIR.Structural.Components)
}

func TestAnalyzeCancelledContext(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, testutil.TodoApp())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Analyze(ctx, Options{Root: root, Logger: testLogger()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeDiagnostics(t *testing.T) {
	const dir = "src/components/box/"
	schema := "componentName: x-box\n"

	tests := []struct {
		name  string
		files map[string]string
		code  string
		sev   ir.Severity
	}{
		{
			name:  "malformed schema",
			files: map[string]string{dir + "box.schema.yaml": "componentName: [unclosed\n"},
			code:  CodeSchemaInvalid,
			sev:   ir.SeverityError,
		},
		{
			name:  "missing componentName",
			files: map[string]string{dir + "box.schema.yaml": "propsSchema: {}\n"},
			code:  CodeSchemaInvalid,
			sev:   ir.SeverityError,
		},
		{
			name: "required prop not declared",
			files: map[string]string{
				dir + "box.schema.yaml": "componentName: x-box\npropsSchema:\n  properties: {}\n  required: [size]\n",
			},
			code: CodeSchemaInvalid,
			sev:  ir.SeverityError,
		},
		{
			name: "blank prop name",
			files: map[string]string{
				dir + "box.schema.yaml": "componentName: x-box\npropsSchema:\n  properties:\n    \" \": {}\n",
			},
			code: CodeSchemaInvalid,
			sev:  ir.SeverityError,
		},
		{
			name: "duplicate componentName",
			files: map[string]string{
				dir + "box.schema.yaml":                   schema,
				"src/components/other/other.schema.yaml": schema,
			},
			code: CodeSchemaDuplicateName,
			sev:  ir.SeverityError,
		},
		{
			name: "malformed view",
			files: map[string]string{
				dir + "box.schema.yaml": schema,
				dir + "box.view.yaml":   "template: [\n",
			},
			code: CodeViewInvalid,
			sev:  ir.SeverityError,
		},
		{
			name: "script syntax error",
			files: map[string]string{
				dir + "box.schema.yaml": schema,
				dir + "box.handlers.js": "export function (\n",
			},
			code: CodeScriptSyntax,
			sev:  ir.SeverityError,
		},
		{
			name: "invalid ref key",
			files: map[string]string{
				dir + "box.schema.yaml": schema,
				dir + "box.view.yaml":   "template:\n  - div#box\nrefs:\n  submit-button: {}\n",
			},
			code: CodeRefInvalidKey,
			sev:  ir.SeverityError,
		},
		{
			name: "kebab-case element id",
			files: map[string]string{
				dir + "box.schema.yaml": schema,
				dir + "box.view.yaml":   "template:\n  - div#todo-item\nrefs:\n  todo*: {}\n",
			},
			code: CodeRefElementID,
			sev:  ir.SeverityError,
		},
		{
			name: "unmatched ref",
			files: map[string]string{
				dir + "box.schema.yaml": schema,
				dir + "box.view.yaml":   "template:\n  - div#box\nrefs:\n  missing: {}\n",
			},
			code: CodeRefUnmatched,
			sev:  ir.SeverityWarn,
		},
		{
			name: "debounce with throttle",
			files: map[string]string{
				dir + "box.schema.yaml": schema,
				dir + "box.handlers.js": "export function handleClick() {}\n",
				dir + "box.view.yaml": "template:\n  - div#box\nrefs:\n  box:\n    eventListeners:\n      click:\n" +
					"        handler: handleClick\n        debounce: 10\n        throttle: 10\n",
			},
			code: CodeEventConfig,
			sev:  ir.SeverityError,
		},
		{
			name: "handler not exported",
			files: map[string]string{
				dir + "box.schema.yaml": schema,
				dir + "box.view.yaml":   "template:\n  - div#box\nrefs:\n  box:\n    eventListeners:\n      click:\n        handler: handleClick\n",
			},
			code: CodeHandlerMissing,
			sev:  ir.SeverityError,
		},
		{
			name: "action not exported",
			files: map[string]string{
				dir + "box.schema.yaml": schema,
				dir + "box.store.js":    "export const selectOpen = (s) => s.open;\n",
				dir + "box.view.yaml":   "template:\n  - div#box\nrefs:\n  box:\n    eventListeners:\n      click:\n        action: selectOpen\n",
			},
			code: CodeActionMissing,
			sev:  ir.SeverityError,
		},
		{
			name: "method not implemented",
			files: map[string]string{
				dir + "box.schema.yaml": "componentName: x-box\nmethods:\n  properties:\n    open: {}\n",
			},
			code: CodeMethodMissing,
			sev:  ir.SeverityWarn,
		},
		{
			name: "view without schema",
			files: map[string]string{
				dir + "box.view.yaml": "template:\n  - div\n",
			},
			code: CodeCompatNoSchema,
			sev:  ir.SeverityWarn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := analyzeTree(t, tt.files)
			require.Len(t, res.Diagnostics, 1, "diagnostics: %v", res.Diagnostics)
			d := res.Diagnostics[0]
			assert.Equal(t, tt.code, d.Code)
			assert.Equal(t, tt.sev, d.Severity)
			assert.NotEmpty(t, d.FilePath)
			assert.Equal(t, tt.sev == ir.SeverityWarn, res.OK)
		})
	}
}

func TestAnalyzePropCompatibility(t *testing.T) {
	files := map[string]string{
		"src/components/card/card.schema.yaml": `componentName: x-card
propsSchema:
  properties:
    heading: {}
    maxLines: {}
  required: [heading, maxLines]
`,
		"src/components/page/page.schema.yaml": "componentName: x-page\n",
		"src/components/page/page.view.yaml": `template:
  - x-card :bogus=1 max-lines=3
`,
	}

	res := analyzeTree(t, files)
	assert.False(t, res.OK)
	assert.Equal(t, []string{CodeCompatUnknownProp, CodeCompatRequiredProp}, diagCodes(res))
	assert.Contains(t, res.Diagnostics[0].Message, `"bogus"`)
	assert.Contains(t, res.Diagnostics[1].Message, `"heading"`)
	assert.Equal(t, 2, res.Diagnostics[0].Line)
}

func TestAnalyzeEmptyBindingName(t *testing.T) {
	files := map[string]string{
		"src/components/card/card.schema.yaml": `componentName: x-card
propsSchema:
  properties:
    heading: {}
`,
		"src/components/page/page.schema.yaml": "componentName: x-page\n",
		"src/components/page/page.view.yaml": `template:
  - x-card :heading=hi :=oops
`,
	}

	res := analyzeTree(t, files)
	assert.False(t, res.OK)
	assert.True(t, res.Validation.OK, res.Validation.Errors)
	require.Equal(t, []string{CodeViewInvalid}, diagCodes(res))
	assert.Equal(t, 2, res.Diagnostics[0].Line)
	assert.Contains(t, res.Diagnostics[0].Message, `":"`)

	for _, sym := range res.CompilerIR.Semantic.Symbols {
		assert.NotEmpty(t, sym.Name, sym.ID)
	}
}

func TestAnalyzeRecordsFindingsInSemanticLayer(t *testing.T) {
	files := testutil.TodoApp()
	files["src/components/broken/broken.view.yaml"] = "template: [\n"

	res := analyzeTree(t, files)
	require.NotEmpty(t, res.Diagnostics)
	assert.Equal(t, res.Diagnostics, res.CompilerIR.Semantic.Findings)
}

func TestAnalyzeUsageCycle(t *testing.T) {
	files := map[string]string{
		"src/components/a/a.schema.yaml": "componentName: x-a\n",
		"src/components/a/a.view.yaml":   "template:\n  - x-b\n",
		"src/components/b/b.schema.yaml": "componentName: x-b\n",
		"src/components/b/b.view.yaml":   "template:\n  - x-a\n",
	}

	res := analyzeTree(t, files)
	assert.True(t, res.OK)
	require.Equal(t, []string{CodeUsageCycle}, diagCodes(res))
	assert.Equal(t, "src/components/a/a.view.yaml", res.Diagnostics[0].FilePath)
	assert.Contains(t, res.Diagnostics[0].Message, "src/components/a -> src/components/b -> src/components/a")
}

func TestAnalyzeIsDeterministicAcrossRoots(t *testing.T) {
	a := analyzeTree(t, testutil.TodoApp())
	b := analyzeTree(t, testutil.TodoApp())

	left, err := ir.MarshalCanonical(ir.Canonicalize(a.CompilerIR.ToValue(), ""))
	require.NoError(t, err)
	right, err := ir.MarshalCanonical(ir.Canonicalize(b.CompilerIR.ToValue(), ""))
	require.NoError(t, err)
	assert.Equal(t, string(left), string(right))
}

func TestAnalyzeCustomDirs(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"ui/widgets/chip/chip.schema.yaml":  "componentName: x-chip\n",
		"ui/widgets/chip/extra.schema.yaml": "componentName: x-chip-extra\n",
	})

	res, err := Analyze(context.Background(), Options{
		Root:           root,
		Dirs:           []string{"ui/widgets/", "missing"},
		EmitCompilerIR: true,
		Logger:         testLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ui/widgets", "missing"}, res.Dirs)
	require.Len(t, res.CompilerIR.Structural.Components, 2)
	assert.Equal(t, "ui/widgets/chip", res.CompilerIR.Structural.Components[0].ComponentKey)
	assert.Equal(t, "ui/widgets/chip/extra", res.CompilerIR.Structural.Components[1].ComponentKey)
}
