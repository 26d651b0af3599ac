package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rtgl/internal/ir"
)

func usesEdges(pairs ...[2]string) ir.StructuralIR {
	var s ir.StructuralIR
	for _, p := range pairs {
		s.Edges = append(s.Edges, ir.StructuralEdge{ID: p[0] + "->" + p[1], From: p[0], To: p[1], Kind: EdgeKindUses})
	}
	return s
}

func TestAnalyzeUsageCycles_DAG(t *testing.T) {
	s := usesEdges([2]string{"app", "list"}, [2]string{"list", "item"}, [2]string{"app", "item"})
	assert.Empty(t, AnalyzeUsageCycles(s))
}

func TestAnalyzeUsageCycles_Empty(t *testing.T) {
	warnings := AnalyzeUsageCycles(ir.StructuralIR{})
	assert.NotNil(t, warnings)
	assert.Empty(t, warnings)
}

func TestAnalyzeUsageCycles_SelfLoop(t *testing.T) {
	warnings := AnalyzeUsageCycles(usesEdges([2]string{"tree", "tree"}))
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"tree", "tree"}, warnings[0].Path)
	assert.Contains(t, warnings[0].Message, "renders itself")
}

func TestAnalyzeUsageCycles_ThreeNodes(t *testing.T) {
	s := usesEdges([2]string{"c", "a"}, [2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"b", "leaf"})
	warnings := AnalyzeUsageCycles(s)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a", "b", "c", "a"}, warnings[0].Path)
	assert.Equal(t, "components render each other: a -> b -> c -> a", warnings[0].Message)
}

func TestAnalyzeUsageCycles_IgnoresOtherEdgeKinds(t *testing.T) {
	s := ir.StructuralIR{Edges: []ir.StructuralEdge{{ID: "x", From: "a", To: "a", Kind: "imports"}}}
	assert.Empty(t, AnalyzeUsageCycles(s))
}

func TestAnalyzeUsageCycles_Deterministic(t *testing.T) {
	s := usesEdges([2]string{"b", "a"}, [2]string{"a", "b"}, [2]string{"y", "z"}, [2]string{"z", "y"})
	first := AnalyzeUsageCycles(s)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, AnalyzeUsageCycles(s))
	}
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].Path[0])
	assert.Equal(t, "y", first[1].Path[0])
}
