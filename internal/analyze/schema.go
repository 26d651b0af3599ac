package analyze

import (
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// namedLine is a declared name with its 1-based source line.
type namedLine struct {
	Name string
	Line int
}

// schemaInfo is the parsed contract of a .schema.yaml file.
type schemaInfo struct {
	ComponentName string
	Line          int
	Props         []namedLine
	Required      []string
	Events        []namedLine
	Methods       []namedLine
}

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// yamlErrorLine extracts the line number yaml.v3 embeds in its messages.
func yamlErrorLine(err error) int {
	m := yamlLinePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// parseYAMLDocument returns the top-level mapping of a YAML document.
// An empty document yields a nil node and no error.
func parseYAMLDocument(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &yamlShapeError{line: root.Line, msg: "document must be a mapping"}
	}
	return root, nil
}

type yamlShapeError struct {
	line int
	msg  string
}

func (e *yamlShapeError) Error() string {
	return "line " + strconv.Itoa(e.line) + ": " + e.msg
}

// mappingValue looks up key in a mapping node.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// mappingKeys lists the keys of a mapping node in document order.
func mappingKeys(node *yaml.Node) []namedLine {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]namedLine, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k := node.Content[i]
		keys = append(keys, namedLine{Name: k.Value, Line: k.Line})
	}
	return keys
}

// parseSchema reads componentName, props, required props, events and
// methods from a schema document.
func parseSchema(data []byte) (*schemaInfo, error) {
	root, err := parseYAMLDocument(data)
	if err != nil {
		return nil, err
	}
	info := &schemaInfo{}
	if root == nil {
		return info, nil
	}

	if name := mappingValue(root, "componentName"); name != nil && name.Kind == yaml.ScalarNode {
		info.ComponentName = name.Value
		info.Line = name.Line
	}

	props := mappingValue(root, "propsSchema")
	info.Props = mappingKeys(mappingValue(props, "properties"))
	if req := mappingValue(props, "required"); req != nil && req.Kind == yaml.SequenceNode {
		for _, item := range req.Content {
			if item.Kind == yaml.ScalarNode && item.Value != "" {
				info.Required = append(info.Required, item.Value)
			}
		}
	}

	info.Events = mappingKeys(mappingValue(root, "events"))
	info.Methods = mappingKeys(mappingValue(mappingValue(root, "methods"), "properties"))
	return info, nil
}
