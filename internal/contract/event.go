package contract

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/roach88/rtgl/internal/ir"
)

// booleanOptions must hold a bool when present.
var booleanOptions = []string{
	"preventDefault",
	"stopPropagation",
	"stopImmediatePropagation",
	"targetOnly",
	"once",
}

// rateLimitOptions must hold a non-negative finite number when present.
var rateLimitOptions = []string{"debounce", "throttle"}

// EventConfigInput identifies one listener entry of a ref.
type EventConfigInput struct {
	EventType string
	Config    map[string]any
	RefKey    string
}

// RateLimit reports which rate-limit wrapper a listener needs.
type RateLimit struct {
	HasDebounce bool
	HasThrottle bool
}

// ValidateEventConfig checks one listener config. Every violation is a
// KindContract error naming the event type and ref key.
//
// Rules:
//   - boolean options must be bools
//   - debounce/throttle must be non-negative finite numbers
//   - debounce and throttle are mutually exclusive
//   - exactly one of handler or action is set
func ValidateEventConfig(in EventConfigInput) (RateLimit, error) {
	subject := fmt.Sprintf("ref %q event %q", in.RefKey, in.EventType)
	if in.Config == nil {
		return RateLimit{}, ir.NewContractError(subject, "event listener config must be an object")
	}

	for _, opt := range booleanOptions {
		v, ok := in.Config[opt]
		if !ok {
			continue
		}
		if _, isBool := v.(bool); !isBool {
			return RateLimit{}, ir.NewContractError(subject, "%q must be a boolean", opt)
		}
	}

	var rl RateLimit
	for _, opt := range rateLimitOptions {
		v, ok := in.Config[opt]
		if !ok {
			continue
		}
		n, isNum := toFloat(v)
		if !isNum || math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
			return RateLimit{}, ir.NewContractError(subject, "%q must be a non-negative finite number", opt)
		}
		if opt == "debounce" {
			rl.HasDebounce = true
		} else {
			rl.HasThrottle = true
		}
	}
	if rl.HasDebounce && rl.HasThrottle {
		return RateLimit{}, ir.NewContractError(subject, "debounce and throttle cannot be used together")
	}

	handler := nonEmptyString(in.Config["handler"])
	action := nonEmptyString(in.Config["action"])
	switch {
	case handler && action:
		return RateLimit{}, ir.NewContractError(subject, "cannot define both handler and action")
	case !handler && !action:
		return RateLimit{}, ir.NewContractError(subject, "must define either handler or action")
	}

	return rl, nil
}

// ListenerTarget returns the handler or action name a validated config
// points at and whether it is an action.
func ListenerTarget(config map[string]any) (name string, isAction bool) {
	if s, ok := config["action"].(string); ok && strings.TrimSpace(s) != "" {
		return s, true
	}
	s, _ := config["handler"].(string)
	return s, false
}

func nonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

var (
	refElementIDPattern = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*$`)
	kebabCasePattern    = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)+$`)
)

// ValidateElementIDForRefs checks that an element id targeted by an id ref
// is camelCase. kebab-case ids get a dedicated message since they are the
// most common mistake.
func ValidateElementIDForRefs(id string) error {
	if refElementIDPattern.MatchString(id) {
		return nil
	}
	if kebabCasePattern.MatchString(id) {
		return ir.NewContractError(id,
			"element id %q is kebab-case; ids used by refs must be camelCase (e.g. %q)", id, toCamel(id))
	}
	return ir.NewContractError(id,
		"element id %q is invalid for refs: must match %s", id, refElementIDPattern.String())
}

func toCamel(kebab string) string {
	parts := strings.Split(kebab, "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
