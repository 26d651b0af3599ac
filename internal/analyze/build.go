package analyze

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/rtgl/internal/binding"
	"github.com/roach88/rtgl/internal/compiler"
	"github.com/roach88/rtgl/internal/contract"
	"github.com/roach88/rtgl/internal/ir"
)

// Semantic edge kinds.
const (
	EdgeKindBindsProp = "binds-prop"
	EdgeKindListens   = "listens"
)

func symbolID(key string, kind ir.SymbolKind, name string) string {
	return fmt.Sprintf("sym:%s:%s:%s", key, kind, name)
}

// buildIR assembles the three IR layers. Components arrive sorted by key,
// so every slice here is built in a deterministic order.
func buildIR(components []*component, byName map[string]*component, includeSemantic bool) ir.CompilerIR {
	core := ir.CompilerIR{
		Structural: ir.StructuralIR{
			Components: make([]ir.StructuralComponent, 0, len(components)),
			Edges:      []ir.StructuralEdge{},
		},
		Semantic: ir.SemanticIR{
			Symbols:  []ir.Symbol{},
			Scopes:   []ir.Scope{},
			Edges:    []ir.SemanticEdge{},
			Refs:     []ir.RefRecord{},
			Findings: []ir.Diagnostic{},
		},
		TypedContract: ir.TypedContractIR{Components: []ir.ContractComponent{}},
	}

	for _, c := range components {
		core.Structural.Components = append(core.Structural.Components, ir.StructuralComponent{
			ComponentKey:  c.key,
			ComponentName: c.componentName(),
			Files:         maps.Clone(c.files),
		})
		core.Structural.Edges = append(core.Structural.Edges, usageEdges(c, byName)...)

		if c.schema != nil {
			core.TypedContract.Components = append(core.TypedContract.Components, contractFor(c))
		}
		if includeSemantic {
			addSemantic(&core.Semantic, c, byName)
		}
	}
	return core
}

// usageEdges returns one "uses" edge per distinct component rendered by
// c's view, at the line of the first usage.
func usageEdges(c *component, byName map[string]*component) []ir.StructuralEdge {
	if c.view == nil {
		return nil
	}
	var edges []ir.StructuralEdge
	seen := make(map[string]bool)
	for _, el := range c.view.Elements {
		target, ok := byName[el.Tag]
		if !ok || seen[target.key] {
			continue
		}
		seen[target.key] = true
		edges = append(edges, ir.StructuralEdge{
			ID:       fmt.Sprintf("uses:%s->%s", c.key, target.key),
			From:     c.key,
			To:       target.key,
			Kind:     compiler.EdgeKindUses,
			FilePath: c.files[ir.FileView],
			Line:     el.Line,
		})
	}
	return edges
}

func contractFor(c *component) ir.ContractComponent {
	cc := ir.ContractComponent{
		ComponentKey:  c.key,
		ComponentName: c.componentName(),
		Props:         names(c.schema.Props),
		RequiredProps: slices.Clone(c.schema.Required),
		Events:        names(c.schema.Events),
		Methods:       names(c.schema.Methods),
		Handlers:      slices.Sorted(maps.Keys(exportSet(c.handlers, nil))),
		Actions:       slices.Sorted(maps.Keys(exportSet(c.store, isStoreAction))),
		Refs:          make([]string, 0, len(c.matchers)),
	}
	for _, m := range c.matchers {
		cc.Refs = append(cc.Refs, m.RefKey)
	}
	return cc
}

// symbolSet collects one component's symbols, dropping duplicate ids.
type symbolSet struct {
	out  *ir.SemanticIR
	seen map[string]bool
	ids  []string
}

func (s *symbolSet) add(sym ir.Symbol) {
	if s.seen[sym.ID] {
		return
	}
	s.seen[sym.ID] = true
	s.ids = append(s.ids, sym.ID)
	s.out.Symbols = append(s.out.Symbols, sym)
}

func addSemantic(sem *ir.SemanticIR, c *component, byName map[string]*component) {
	syms := &symbolSet{out: sem, seen: make(map[string]bool)}
	declare := func(kind ir.SymbolKind, file ir.FileKind, decls []namedLine) {
		for _, d := range decls {
			syms.add(ir.Symbol{
				ID:           symbolID(c.key, kind, d.Name),
				ComponentKey: c.key,
				Kind:         kind,
				Name:         d.Name,
				FilePath:     c.files[file],
				Line:         d.Line,
			})
		}
	}

	if c.schema != nil {
		declare(ir.SymbolProp, ir.FileSchema, c.schema.Props)
		declare(ir.SymbolEvent, ir.FileSchema, c.schema.Events)
		declare(ir.SymbolMethod, ir.FileSchema, c.schema.Methods)
	}
	if c.handlers != nil {
		declare(ir.SymbolHandler, ir.FileHandlers, c.handlers.Exports)
	}
	if c.store != nil {
		var actions []namedLine
		for _, e := range c.store.Exports {
			if isStoreAction(e.Name) {
				actions = append(actions, e)
			}
		}
		declare(ir.SymbolAction, ir.FileStore, actions)
	}

	if c.view != nil {
		viewPath := c.files[ir.FileView]
		for _, m := range c.matchers {
			syms.add(ir.Symbol{
				ID:           symbolID(c.key, ir.SymbolRef, m.RefKey),
				ComponentKey: c.key,
				Kind:         ir.SymbolRef,
				Name:         m.RefKey,
				FilePath:     viewPath,
				Line:         c.refLines[m.RefKey],
			})
			sem.Refs = append(sem.Refs, ir.RefRecord{
				ID:           fmt.Sprintf("ref:%s:%s", c.key, m.RefKey),
				ComponentKey: c.key,
				RefKey:       m.RefKey,
				TargetType:   string(m.TargetType),
				IsWildcard:   m.IsWildcard,
				Prefix:       m.Prefix,
				FilePath:     viewPath,
			})
		}
		addBindingUsages(sem, syms, c, viewPath, byName)
		addListenerEdges(sem, syms, c)
	}

	ids := slices.Clone(syms.ids)
	slices.Sort(ids)
	sem.Scopes = append(sem.Scopes, ir.Scope{
		ID:           "scope:" + c.key,
		ComponentKey: c.key,
		Symbols:      ids,
	})
}

// addBindingUsages records a binding symbol for each binding on an element
// that renders another component, linked to the target's prop when the
// target declares it.
func addBindingUsages(sem *ir.SemanticIR, syms *symbolSet, c *component, viewPath string, byName map[string]*component) {
	for idx, el := range c.view.Elements {
		target, ok := byName[el.Tag]
		if !ok {
			continue
		}
		declared := make(map[string]bool)
		if target.schema != nil {
			for _, p := range target.schema.Props {
				declared[p.Name] = true
			}
		}

		for _, raw := range el.Bindings {
			kind, name := binding.ClassifyBinding(raw)
			if name == "" || kind == binding.KindAttribute && ignoredAttributes[name] {
				continue
			}
			useID := fmt.Sprintf("use:%s:%d:%s", c.key, idx, raw)
			syms.add(ir.Symbol{
				ID:           useID,
				ComponentKey: c.key,
				Kind:         ir.SymbolBinding,
				Name:         name,
				FilePath:     viewPath,
				Line:         el.Line,
			})

			prop := name
			if !declared[prop] {
				prop = kebabToCamel(name)
			}
			if !declared[prop] {
				continue
			}
			to := symbolID(target.key, ir.SymbolProp, prop)
			sem.Edges = append(sem.Edges, ir.SemanticEdge{
				ID:   fmt.Sprintf("%s:%s->%s", EdgeKindBindsProp, useID, to),
				From: useID,
				To:   to,
				Kind: EdgeKindBindsProp,
			})
		}
	}
}

// addListenerEdges links each ref to the handlers and actions its
// listeners call. Listeners that failed validation or name a missing
// target produce no edge.
func addListenerEdges(sem *ir.SemanticIR, syms *symbolSet, c *component) {
	for _, m := range c.matchers {
		from := symbolID(c.key, ir.SymbolRef, m.RefKey)
		for _, eventType := range sortedKeys(m.RefConfig.EventListeners) {
			cfg := m.RefConfig.EventListeners[eventType]
			if _, err := contract.ValidateEventConfig(contract.EventConfigInput{
				EventType: eventType,
				Config:    cfg,
				RefKey:    m.RefKey,
			}); err != nil {
				continue
			}
			name, isAction := contract.ListenerTarget(cfg)
			kind := ir.SymbolHandler
			if isAction {
				kind = ir.SymbolAction
			}
			to := symbolID(c.key, kind, name)
			if !syms.seen[to] {
				continue
			}
			sem.Edges = append(sem.Edges, ir.SemanticEdge{
				ID:   fmt.Sprintf("%s:%s:%s->%s", EdgeKindListens, from, eventType, to),
				From: from,
				To:   to,
				Kind: EdgeKindListens,
			})
		}
	}
}

func names(decls []namedLine) []string {
	out := make([]string, 0, len(decls))
	for _, d := range decls {
		out = append(out, d.Name)
	}
	return out
}
