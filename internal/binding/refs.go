package binding

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/rtgl/internal/ir"
)

// TargetType is the closed set of ref target kinds.
type TargetType string

const (
	TargetID     TargetType = "id"
	TargetClass  TargetType = "class"
	TargetGlobal TargetType = "global"
)

// globalRefNames are the reserved ref keys that bind to window/document.
var globalRefNames = map[string]bool{
	"window":   true,
	"document": true,
}

var (
	idRefKeyPattern    = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*\*?$`)
	classRefKeyPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*\*?$`)
)

// RefConfig is the value side of a view's refs map.
type RefConfig struct {
	// EventListeners maps an event type to its raw listener config.
	EventListeners map[string]map[string]any `json:"eventListeners,omitempty" yaml:"eventListeners"`
}

// RefMatcher is a compiled refs entry. Matchers are built once per analysis
// pass and consumed read-only afterwards.
type RefMatcher struct {
	RefKey     string
	RefConfig  RefConfig
	TargetType TargetType
	IsWildcard bool

	// Prefix is the selector name without its "#"/"." prefix and without
	// the trailing "*".
	Prefix string
}

// CreateRefMatchers compiles a refs map. Keys are processed in sorted
// order so the result is deterministic. Any malformed key fails the whole
// map with a KindContract error naming the key.
func CreateRefMatchers(refs map[string]RefConfig) ([]RefMatcher, error) {
	keys := make([]string, 0, len(refs))
	for k := range refs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	matchers := make([]RefMatcher, 0, len(keys))
	for _, key := range keys {
		m, err := compileRefKey(key)
		if err != nil {
			return nil, err
		}
		m.RefConfig = refs[key]
		matchers = append(matchers, m)
	}
	return matchers, nil
}

func compileRefKey(key string) (RefMatcher, error) {
	if globalRefNames[key] {
		return RefMatcher{RefKey: key, TargetType: TargetGlobal, Prefix: key}, nil
	}

	target := TargetID
	name := key
	pattern := idRefKeyPattern
	switch {
	case strings.HasPrefix(key, "#"):
		name = key[1:]
	case strings.HasPrefix(key, "."):
		target = TargetClass
		name = key[1:]
		pattern = classRefKeyPattern
	}

	if !pattern.MatchString(name) {
		if target == TargetClass {
			return RefMatcher{}, ir.NewContractError(key,
				"invalid ref key %q: class refs must match %s", key, classRefKeyPattern.String())
		}
		return RefMatcher{}, ir.NewContractError(key,
			"invalid ref key %q: id refs must be camelCase and match %s", key, idRefKeyPattern.String())
	}

	wildcard := strings.HasSuffix(name, "*")
	base := strings.TrimSuffix(name, "*")
	if globalRefNames[base] {
		return RefMatcher{}, ir.NewContractError(key,
			"invalid ref key %q: %q is reserved for global refs", key, base)
	}

	return RefMatcher{
		RefKey:     key,
		TargetType: target,
		IsWildcard: wildcard,
		Prefix:     base,
	}, nil
}

// Element describes a template element (or a global object) that refs may
// bind to.
type Element struct {
	ID      string
	Classes []string

	// Global is "window" or "document" for global listeners.
	Global string
}

// Matches reports whether m applies to el.
func (m RefMatcher) Matches(el Element) bool {
	switch m.TargetType {
	case TargetGlobal:
		return el.Global != "" && el.Global == m.Prefix
	case TargetID:
		return el.ID != "" && m.matchName(el.ID)
	case TargetClass:
		for _, c := range el.Classes {
			if m.matchName(c) {
				return true
			}
		}
	}
	return false
}

func (m RefMatcher) matchName(name string) bool {
	if m.IsWildcard {
		return strings.HasPrefix(name, m.Prefix)
	}
	return name == m.Prefix
}

// specificity ranks a matcher; lower is more specific.
func (m RefMatcher) specificity() int {
	switch {
	case m.TargetType == TargetGlobal:
		return 0
	case m.TargetType == TargetID && !m.IsWildcard:
		return 0
	case m.TargetType == TargetID:
		return 1
	case !m.IsWildcard:
		return 2
	default:
		return 3
	}
}

// ResolveBestRefMatcher picks the single most specific matcher for el:
// exact id > wildcard id > exact class > wildcard class. Among wildcards of
// the same kind the longest prefix wins; remaining ties go to the
// lexicographically smallest ref key.
func ResolveBestRefMatcher(matchers []RefMatcher, el Element) (RefMatcher, bool) {
	var best RefMatcher
	found := false
	for _, m := range matchers {
		if !m.Matches(el) {
			continue
		}
		if !found || moreSpecific(m, best) {
			best = m
			found = true
		}
	}
	return best, found
}

func moreSpecific(a, b RefMatcher) bool {
	if sa, sb := a.specificity(), b.specificity(); sa != sb {
		return sa < sb
	}
	if len(a.Prefix) != len(b.Prefix) {
		return len(a.Prefix) > len(b.Prefix)
	}
	return a.RefKey < b.RefKey
}

// String renders a matcher for diagnostics.
func (m RefMatcher) String() string {
	return fmt.Sprintf("%s(%s)", m.TargetType, m.RefKey)
}
