// Package policy loads policy packs: YAML rule sets that override the
// severity of built-in diagnostics or switch them off.
//
// A pack is data only. Keys that suggest embedded logic (anything whose
// name contains "script", "command" or "eval") are rejected outright, and
// a pack can be pinned by a SHA-256 digest of its canonical content.
package policy

import (
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rtgl/internal/ir"
)

// MaxRules caps the number of rules in one pack.
const MaxRules = 500

// SignatureAlgorithm is the only supported digest algorithm.
const SignatureAlgorithm = "sha256"

var (
	topLevelKeys = []string{"name", "rules", "signature", "version", "languageLevel"}
	ruleKeys     = []string{"id", "severity", "enabled", "description", "tags", "metadata"}
	unsafeWords  = []string{"script", "command", "eval"}
)

// Pack is a validated policy pack.
type Pack struct {
	// Name identifies the pack. Always non-empty.
	Name string

	// Version and LanguageLevel are free-form and carried through as text.
	Version       string
	LanguageLevel string

	Rules []Rule

	Signature Signature

	// Digest is the canonical digest of the pack with its signature
	// removed. It is computed whether or not the signature was verified.
	Digest string

	// Path is the file the pack was loaded from, if any.
	Path string
}

// Rule overrides one diagnostic. ID is matched against diagnostic codes.
type Rule struct {
	ID string

	// Severity replaces the diagnostic severity when set.
	Severity ir.Severity

	// Enabled is nil when the pack does not say; nil means enabled.
	Enabled *bool

	Description string
	Tags        []string
	Metadata    map[string]any
}

// IsEnabled reports whether the rule lets its diagnostic through.
func (r Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Signature describes the pack's signature block.
type Signature struct {
	// Enabled is true when the signature was checked at load time.
	Enabled bool

	Algorithm string
	Digest    string
}

// LoadOptions configures LoadPack and ParsePack.
type LoadOptions struct {
	// VerifySignature requires a signature block whose digest matches
	// the pack content. Any failure is a KindTrust error.
	VerifySignature bool
}

// LoadPack reads and validates the pack at path.
func LoadPack(path string, opts LoadOptions) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy pack: %w", err)
	}
	p, err := ParsePack(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.Path = path
	return p, nil
}

// ParsePack validates a pack document. Shape problems are KindInputShape
// errors; unsafe keys and signature failures are KindTrust errors.
func ParsePack(data []byte, opts LoadOptions) (*Pack, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ir.Error{Kind: ir.KindInputShape, Message: "invalid policy pack YAML", Err: err}
	}
	if raw == nil {
		return nil, ir.NewInputShapeError("", "policy pack is empty")
	}
	if err := checkKeys(raw, topLevelKeys, "policy pack"); err != nil {
		return nil, err
	}

	name, ok := raw["name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return nil, ir.NewInputShapeError("name", "policy pack must define a non-empty name")
	}

	p := &Pack{
		Name:          name,
		Version:       scalarText(raw["version"]),
		LanguageLevel: scalarText(raw["languageLevel"]),
	}

	rules, err := parseRules(raw["rules"])
	if err != nil {
		return nil, err
	}
	p.Rules = rules

	content := make(map[string]any, len(raw))
	for k, v := range raw {
		if k != "signature" {
			content[k] = v
		}
	}
	p.Digest, err = Digest(content)
	if err != nil {
		return nil, err
	}

	sig, err := parseSignature(raw["signature"])
	if err != nil {
		return nil, err
	}
	p.Signature = sig
	if opts.VerifySignature {
		if err := verifySignature(raw["signature"] != nil, sig, p.Digest); err != nil {
			return nil, err
		}
		p.Signature.Enabled = true
	}
	return p, nil
}

// Digest canonicalizes content and returns its SHA-256 as lowercase hex.
// content must not include the signature block.
//
// Floats and timestamps have no IR form; they enter the digest as their
// canonical text (shortest float formatting, RFC 3339 in UTC). Integral
// floats digest as integers.
func Digest(content map[string]any) (string, error) {
	v, err := digestValue(content, "")
	if err != nil {
		return "", err
	}
	return ir.CanonicalDigest(v)
}

func digestValue(v any, where string) (ir.IRValue, error) {
	switch val := v.(type) {
	case nil:
		return ir.IRNull{}, nil
	case string:
		return ir.IRString(val), nil
	case bool:
		return ir.IRBool(val), nil
	case int:
		return ir.IRInt(val), nil
	case int64:
		return ir.IRInt(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return ir.IRString(strconv.FormatUint(val, 10)), nil
		}
		return ir.IRInt(int64(val)), nil
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return ir.IRInt(int64(val)), nil
		}
		return ir.IRString(formatFloat(val)), nil
	case time.Time:
		return ir.IRString(formatTime(val)), nil
	case map[string]any:
		obj := make(ir.IRObject, len(val))
		for k, child := range val {
			cv, err := digestValue(child, joinKey(where, k))
			if err != nil {
				return nil, err
			}
			obj[k] = cv
		}
		return obj, nil
	case []any:
		arr := make(ir.IRArray, len(val))
		for i, child := range val {
			cv, err := digestValue(child, fmt.Sprintf("%s[%d]", where, i))
			if err != nil {
				return nil, err
			}
			arr[i] = cv
		}
		return arr, nil
	default:
		return nil, ir.NewInputShapeError(where, "policy pack value at %s has unsupported type %T", where, v)
	}
}

func joinKey(where, key string) string {
	if where == "" {
		return key
	}
	return where + "." + key
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// checkKeys rejects unsafe keys first, then keys outside allowed.
func checkKeys(m map[string]any, allowed []string, where string) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		lower := strings.ToLower(k)
		for _, w := range unsafeWords {
			if strings.Contains(lower, w) {
				return ir.NewTrustError(k, "%s contains unsafe key %q", where, k)
			}
		}
	}
	for _, k := range keys {
		if !slices.Contains(allowed, k) {
			return ir.NewInputShapeError(k, "%s has unsupported key %q", where, k)
		}
	}
	return nil
}

func parseRules(v any) ([]Rule, error) {
	if v == nil {
		return []Rule{}, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, ir.NewInputShapeError("rules", "rules must be a list")
	}
	if len(items) > MaxRules {
		return nil, ir.NewInputShapeError("rules", "policy pack has %d rules; at most %d are allowed", len(items), MaxRules)
	}

	rules := make([]Rule, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		where := fmt.Sprintf("rules[%d]", i)
		m, ok := item.(map[string]any)
		if !ok {
			return nil, ir.NewInputShapeError(where, "rule must be a mapping")
		}
		if err := checkKeys(m, ruleKeys, where); err != nil {
			return nil, err
		}
		r, err := parseRule(m, where)
		if err != nil {
			return nil, err
		}
		if seen[r.ID] {
			return nil, ir.NewInputShapeError(where+".id", "duplicate rule id %q", r.ID)
		}
		seen[r.ID] = true
		rules = append(rules, r)
	}
	return rules, nil
}

func parseRule(m map[string]any, where string) (Rule, error) {
	var r Rule

	id, ok := m["id"].(string)
	if !ok || strings.TrimSpace(id) == "" {
		return r, ir.NewInputShapeError(where+".id", "rule must have a non-empty string id")
	}
	r.ID = id

	if v, present := m["severity"]; present {
		s, _ := v.(string)
		sev, ok := ir.ParseSeverity(s)
		if !ok {
			return r, ir.NewInputShapeError(where+".severity", "rule %q severity must be error or warn, got %v", id, v)
		}
		r.Severity = sev
	}

	if v, present := m["enabled"]; present {
		b, ok := v.(bool)
		if !ok {
			return r, ir.NewInputShapeError(where+".enabled", "rule %q enabled must be a boolean", id)
		}
		r.Enabled = &b
	}

	if v, present := m["description"]; present {
		s, ok := v.(string)
		if !ok {
			return r, ir.NewInputShapeError(where+".description", "rule %q description must be a string", id)
		}
		r.Description = s
	}

	if v, present := m["tags"]; present {
		list, ok := v.([]any)
		if !ok {
			return r, ir.NewInputShapeError(where+".tags", "rule %q tags must be a list of strings", id)
		}
		for _, t := range list {
			s, ok := t.(string)
			if !ok {
				return r, ir.NewInputShapeError(where+".tags", "rule %q tags must be a list of strings", id)
			}
			r.Tags = append(r.Tags, s)
		}
	}

	if v, present := m["metadata"]; present {
		md, ok := v.(map[string]any)
		if !ok {
			return r, ir.NewInputShapeError(where+".metadata", "rule %q metadata must be a mapping", id)
		}
		r.Metadata = md
	}
	return r, nil
}

func parseSignature(v any) (Signature, error) {
	if v == nil {
		return Signature{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return Signature{}, ir.NewInputShapeError("signature", "signature must be a mapping")
	}
	algorithm, _ := m["algorithm"].(string)
	digest, _ := m["digest"].(string)
	return Signature{Algorithm: algorithm, Digest: digest}, nil
}

func verifySignature(present bool, sig Signature, digest string) error {
	if !present {
		return ir.NewTrustError("signature", "policy pack must define a signature")
	}
	if sig.Algorithm != SignatureAlgorithm {
		return ir.NewTrustError("signature.algorithm", "unsupported signature algorithm %q; want %q", sig.Algorithm, SignatureAlgorithm)
	}
	if !isHexDigest(sig.Digest) {
		return ir.NewTrustError("signature.digest", "signature digest must be 64 lowercase hex characters")
	}
	if sig.Digest != digest {
		return ir.NewTrustError("signature.digest", "policy pack digest mismatch: signed %s, content %s", sig.Digest, digest)
	}
	return nil
}

func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func scalarText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		return formatFloat(val)
	case time.Time:
		return formatTime(val)
	default:
		return fmt.Sprint(v)
	}
}
