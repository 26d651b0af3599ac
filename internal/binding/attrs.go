package binding

import (
	"regexp"
	"strings"
)

// attrPairPattern matches name=value pairs. Values may be double-quoted,
// single-quoted or bare (up to the next whitespace).
var attrPairPattern = regexp.MustCompile(`([^\s=]+)=("[^"]*"|'[^']*'|\S*)`)

// CollectBindingNames tokenizes the attribute part of a view selector and
// returns every binding name it declares, de-duplicated in discovery order.
//
// name=value pairs are collected first and cut out of the string; the
// remainder is then scanned for bare boolean attributes. A bare token that
// starts with "." or ":" (property and prop binding prefixes) or still
// contains "=" is not a boolean attribute and is skipped.
func CollectBindingNames(attrs string) []string {
	names := make([]string, 0)
	seen := make(map[string]bool)
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	for _, m := range attrPairPattern.FindAllStringSubmatch(attrs, -1) {
		add(m[1])
	}

	rest := attrPairPattern.ReplaceAllString(attrs, " ")
	for _, token := range strings.Fields(rest) {
		if strings.HasPrefix(token, ".") || strings.HasPrefix(token, ":") || strings.Contains(token, "=") {
			continue
		}
		add(token)
	}

	return names
}

// Kind classifies a binding name by its prefix.
type Kind string

const (
	// KindAttribute is a plain HTML attribute (name=value or boolean).
	KindAttribute Kind = "attribute"

	// KindProp is a ":name=" prop binding passed to a child component.
	KindProp Kind = "prop"

	// KindProperty is a ".name=" DOM property binding.
	KindProperty Kind = "property"
)

// ClassifyBinding splits a binding name into its kind and bare name.
func ClassifyBinding(name string) (Kind, string) {
	switch {
	case strings.HasPrefix(name, ":"):
		return KindProp, name[1:]
	case strings.HasPrefix(name, "."):
		return KindProperty, name[1:]
	default:
		return KindAttribute, name
	}
}
