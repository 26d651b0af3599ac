package analyze

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rtgl/internal/binding"
)

var tagPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*$`)

// viewElement is one element of a view template.
type viewElement struct {
	Tag     string
	ID      string
	Classes []string

	// Bindings are the raw names from the selector's attribute part,
	// including ":" and "." prefixes.
	Bindings []string
	Line     int
}

// dynamicID reports whether the element id contains an interpolation.
func (e viewElement) dynamicID() bool {
	return strings.Contains(e.ID, "${")
}

// staticID is the id up to its first interpolation.
func (e viewElement) staticID() string {
	if i := strings.Index(e.ID, "${"); i >= 0 {
		return e.ID[:i]
	}
	return e.ID
}

// target converts the element into the shape ref matchers work on.
func (e viewElement) target() binding.Element {
	return binding.Element{ID: e.staticID(), Classes: e.Classes}
}

// refEntry is one key of a view's refs map.
type refEntry struct {
	Key    string
	Line   int
	Config binding.RefConfig
}

// viewInfo is the parsed content of a .view.yaml file.
type viewInfo struct {
	Elements []viewElement
	Refs     []refEntry
}

// parseView reads the template tree and refs map of a view document.
func parseView(data []byte) (*viewInfo, error) {
	root, err := parseYAMLDocument(data)
	if err != nil {
		return nil, err
	}
	info := &viewInfo{}
	if root == nil {
		return info, nil
	}

	if tmpl := mappingValue(root, "template"); tmpl != nil {
		walkTemplate(tmpl, &info.Elements)
	}

	refs := mappingValue(root, "refs")
	if refs != nil && refs.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(refs.Content); i += 2 {
			keyNode, valNode := refs.Content[i], refs.Content[i+1]
			var cfg binding.RefConfig
			if err := valNode.Decode(&cfg); err != nil {
				return nil, &yamlShapeError{line: valNode.Line, msg: "ref " + keyNode.Value + ": " + err.Error()}
			}
			info.Refs = append(info.Refs, refEntry{Key: keyNode.Value, Line: keyNode.Line, Config: cfg})
		}
	}
	return info, nil
}

// walkTemplate collects elements depth-first in document order. Sequence
// items are either bare selectors or single-entry mappings of selector to
// children. Keys starting with "$" are control flow ($if, $for) and only
// contribute their children.
func walkTemplate(node *yaml.Node, out *[]viewElement) {
	switch node.Kind {
	case yaml.SequenceNode:
		for _, item := range node.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				if el, ok := parseSelector(item.Value, item.Line); ok {
					*out = append(*out, el)
				}
			case yaml.MappingNode, yaml.SequenceNode:
				walkTemplate(item, out)
			}
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			if !strings.HasPrefix(strings.TrimSpace(key.Value), "$") {
				if el, ok := parseSelector(key.Value, key.Line); ok {
					*out = append(*out, el)
				}
			}
			if val.Kind == yaml.SequenceNode || val.Kind == yaml.MappingNode {
				walkTemplate(val, out)
			}
		}
	}
}

// parseSelector splits `tag#id.class1.class2 attrs...`. Interpolations
// (`${...}`) inside the id or a class are kept verbatim. Strings that do
// not start with a tag name are text nodes.
func parseSelector(s string, line int) (viewElement, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !isTagStart(s[0]) {
		return viewElement{}, false
	}

	head, attrs := splitHead(s)
	el := viewElement{Line: line}

	var (
		part  strings.Builder
		mode  byte // 0 tag, '#' id, '.' class
		depth int
	)
	flush := func() {
		v := part.String()
		part.Reset()
		switch mode {
		case 0:
			el.Tag = v
		case '#':
			el.ID = v
		case '.':
			if v != "" {
				el.Classes = append(el.Classes, v)
			}
		}
	}
	for i := 0; i < len(head); i++ {
		c := head[i]
		switch {
		case c == '$' && i+1 < len(head) && head[i+1] == '{':
			depth++
			part.WriteString("${")
			i++
			continue
		case c == '}' && depth > 0:
			depth--
		case depth == 0 && (c == '#' || c == '.'):
			flush()
			mode = c
			continue
		}
		part.WriteByte(c)
	}
	flush()

	if !tagPattern.MatchString(el.Tag) {
		return viewElement{}, false
	}
	el.Bindings = binding.CollectBindingNames(attrs)
	return el, true
}

// splitHead cuts the selector at the first whitespace outside an
// interpolation.
func splitHead(s string) (string, string) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '$' && i+1 < len(s) && s[i+1] == '{':
			depth++
			i++
		case s[i] == '}' && depth > 0:
			depth--
		case depth == 0 && (s[i] == ' ' || s[i] == '\t'):
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

func isTagStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
