package analyze

import (
	"slices"
	"strings"

	"github.com/roach88/rtgl/internal/binding"
	"github.com/roach88/rtgl/internal/contract"
	"github.com/roach88/rtgl/internal/ir"
)

// ignoredAttributes never count as prop bindings on a child component.
var ignoredAttributes = map[string]bool{
	"id":    true,
	"class": true,
	"style": true,
	"slot":  true,
	"key":   true,
}

// checkComponent runs the per-component contract checks and compiles the
// component's ref matchers.
func checkComponent(c *component, byName map[string]*component, diags *diagnostics) {
	checkMethods(c, diags)

	if c.view == nil {
		return
	}
	viewPath := c.files[ir.FileView]
	if c.schema == nil {
		diags.add(CodeCompatNoSchema, viewPath, 0, "view has no schema; component %s has no typed contract", c.key)
	}

	compileRefs(c, viewPath, diags)
	checkListeners(c, viewPath, diags)
	checkRefTargets(c, viewPath, diags)
	checkUsages(c, viewPath, byName, diags)
}

// compileRefs compiles each ref key on its own so every invalid key is
// reported, not just the first.
func compileRefs(c *component, viewPath string, diags *diagnostics) {
	for _, ref := range c.view.Refs {
		m, err := binding.CreateRefMatchers(map[string]binding.RefConfig{ref.Key: ref.Config})
		if err != nil {
			diags.add(CodeRefInvalidKey, viewPath, ref.Line, "%v", err)
			continue
		}
		c.matchers = append(c.matchers, m...)
		c.refLines[ref.Key] = ref.Line
	}
	slices.SortFunc(c.matchers, func(a, b binding.RefMatcher) int {
		return strings.Compare(a.RefKey, b.RefKey)
	})
}

// checkListeners validates each listener config and that the handler or
// action it names exists.
func checkListeners(c *component, viewPath string, diags *diagnostics) {
	handlers := exportSet(c.handlers, nil)
	actions := exportSet(c.store, isStoreAction)

	for _, m := range c.matchers {
		line := c.refLines[m.RefKey]
		for _, eventType := range sortedKeys(m.RefConfig.EventListeners) {
			cfg := m.RefConfig.EventListeners[eventType]
			_, err := contract.ValidateEventConfig(contract.EventConfigInput{
				EventType: eventType,
				Config:    cfg,
				RefKey:    m.RefKey,
			})
			if err != nil {
				diags.add(CodeEventConfig, viewPath, line, "%v", err)
				continue
			}

			name, isAction := contract.ListenerTarget(cfg)
			switch {
			case isAction && !actions[name]:
				diags.add(CodeActionMissing, viewPath, line,
					"ref %q event %q: action %q is not exported by the store file", m.RefKey, eventType, name)
			case !isAction && !handlers[name]:
				diags.add(CodeHandlerMissing, viewPath, line,
					"ref %q event %q: handler %q is not exported by the handlers file", m.RefKey, eventType, name)
			}
		}
	}
}

// checkRefTargets resolves every template element to its best ref,
// validates the ids that id refs bind to, and warns about refs nothing
// matches.
func checkRefTargets(c *component, viewPath string, diags *diagnostics) {
	used := make(map[string]bool)
	for _, m := range c.matchers {
		if m.TargetType == binding.TargetGlobal {
			used[m.RefKey] = true
		}
	}

	for _, el := range c.view.Elements {
		m, ok := binding.ResolveBestRefMatcher(c.matchers, el.target())
		if !ok {
			continue
		}
		used[m.RefKey] = true
		if m.TargetType != binding.TargetID || el.dynamicID() {
			continue
		}
		if err := contract.ValidateElementIDForRefs(el.ID); err != nil {
			diags.add(CodeRefElementID, viewPath, el.Line, "%v", err)
		}
	}

	for _, m := range c.matchers {
		if !used[m.RefKey] {
			diags.add(CodeRefUnmatched, viewPath, c.refLines[m.RefKey],
				"ref %q does not match any element in the template", m.RefKey)
		}
	}
}

// checkUsages verifies bindings on elements that render another component
// against that component's props. Bindings with nothing after their prefix
// are reported on every element.
func checkUsages(c *component, viewPath string, byName map[string]*component, diags *diagnostics) {
	for _, el := range c.view.Elements {
		for _, raw := range el.Bindings {
			if _, name := binding.ClassifyBinding(raw); name == "" {
				diags.add(CodeViewInvalid, viewPath, el.Line, "%s has a binding %q with no name", el.Tag, raw)
			}
		}

		target, ok := byName[el.Tag]
		if !ok || target.schema == nil {
			continue
		}

		declared := make(map[string]bool, len(target.schema.Props))
		for _, p := range target.schema.Props {
			declared[p.Name] = true
		}

		bound := make(map[string]bool)
		for _, raw := range el.Bindings {
			kind, name := binding.ClassifyBinding(raw)
			if name == "" || kind == binding.KindAttribute && ignoredAttributes[name] {
				continue
			}
			bound[name] = true
			bound[kebabToCamel(name)] = true
			if kind == binding.KindProp && !declared[name] {
				diags.add(CodeCompatUnknownProp, viewPath, el.Line,
					"%s does not declare prop %q", el.Tag, name)
			}
		}

		for _, req := range target.schema.Required {
			if !bound[req] {
				diags.add(CodeCompatRequiredProp, viewPath, el.Line,
					"%s requires prop %q", el.Tag, req)
			}
		}
	}
}

// checkMethods warns about schema methods the methods file does not export.
func checkMethods(c *component, diags *diagnostics) {
	if c.schema == nil || len(c.schema.Methods) == 0 {
		return
	}
	impl := exportSet(c.methods, nil)
	for _, m := range c.schema.Methods {
		if !impl[m.Name] {
			diags.add(CodeMethodMissing, c.files[ir.FileSchema], m.Line,
				"method %q is declared but not exported by the methods file", m.Name)
		}
	}
}

// isStoreAction reports whether a store export is an action. Selectors and
// the initial-state factory are not.
func isStoreAction(name string) bool {
	return !strings.HasPrefix(name, "select") && name != "createInitialState"
}

// exportSet returns the exported names of s that pass keep (nil keeps all).
func exportSet(s *scriptInfo, keep func(string) bool) map[string]bool {
	set := make(map[string]bool)
	if s == nil {
		return set
	}
	for _, e := range s.Exports {
		if keep == nil || keep(e.Name) {
			set[e.Name] = true
		}
	}
	return set
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func kebabToCamel(s string) string {
	if !strings.Contains(s, "-") {
		return s
	}
	parts := strings.Split(s, "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
