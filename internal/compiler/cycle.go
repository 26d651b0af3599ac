package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rtgl/internal/ir"
)

// CycleWarning represents components that render each other.
//
// Cycles are warnings, not errors, because recursive components (trees,
// nested menus) are legal as long as the template guards the recursion.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeUsageCycles finds cycles in the structural "uses" graph.
//
// The algorithm:
//  1. Build componentKey -> used componentKeys from structural edges
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle warning
//
// Nodes and successors are visited in sorted order so the output is
// deterministic. A DAG returns an empty list.
func AnalyzeUsageCycles(s ir.StructuralIR) []CycleWarning {
	graph := buildUsageGraph(s)
	if len(graph) == 0 {
		return []CycleWarning{}
	}

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// usageGraph maps componentKey -> componentKeys it renders.
type usageGraph map[string][]string

func buildUsageGraph(s ir.StructuralIR) usageGraph {
	graph := make(usageGraph)
	for _, e := range s.Edges {
		if e.Kind != EdgeKindUses {
			continue
		}
		if !slices.Contains(graph[e.From], e.To) {
			graph[e.From] = append(graph[e.From], e.To)
		}
		if graph[e.To] == nil {
			graph[e.To] = []string{}
		}
	}
	for k := range graph {
		slices.Sort(graph[k])
	}
	return graph
}

// EdgeKindUses is the structural edge kind for "component view renders
// another component".
const EdgeKindUses = "uses"

func hasSelfLoop(node string, graph usageGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Each returned SCC is sorted.
func tarjanSCC(graph usageGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func cycleSCCToWarning(scc []string, graph usageGraph) CycleWarning {
	if len(scc) == 1 {
		key := scc[0]
		return CycleWarning{
			Path:    []string{key, key},
			Message: fmt.Sprintf("component renders itself: %s -> %s", key, key),
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("components render each other: %s", strings.Join(path, " -> ")),
	}
}

// reconstructCyclePath starts at the smallest SCC member and follows edges
// inside the SCC until it returns to the start.
func reconstructCyclePath(scc []string, graph usageGraph) []string {
	inSCC := make(map[string]bool, len(scc))
	for _, node := range scc {
		inSCC[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if inSCC[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
