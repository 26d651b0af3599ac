package release

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/roach88/rtgl/internal/ir"
)

// Provenance document identifiers.
const (
	ProvenanceSchema        = "rtgl-release-provenance-v1"
	ProvenancePredicateType = "https://slsa.dev/provenance/v1"
)

// Source environment variables. Each falls back to "local".
const (
	EnvRepository = "GITHUB_REPOSITORY"
	EnvRef        = "GITHUB_REF"
	EnvSHA        = "GITHUB_SHA"

	localSource = "local"
)

// Provenance attests how a release was built and which files it contains.
type Provenance struct {
	Schema         string             `json:"schema"`
	PredicateType  string             `json:"predicateType"`
	Builder        Builder            `json:"builder"`
	Source         Source             `json:"source"`
	Metadata       ProvenanceMetadata `json:"metadata"`
	Subject        []Subject          `json:"subject"`
	ManifestDigest string             `json:"manifestDigest"`
}

// Builder identifies the toolchain that produced the release.
type Builder struct {
	ID              string `json:"id"`
	Runtime         string `json:"runtime"`
	Platform        string `json:"platform"`
	Arch            string `json:"arch"`
	CompilerVersion string `json:"compilerVersion"`
}

// Source identifies the revision that was built.
type Source struct {
	Repository string `json:"repository"`
	Ref        string `json:"ref"`
	SHA        string `json:"sha"`
}

// ProvenanceMetadata describes the build invocation.
type ProvenanceMetadata struct {
	InvocationID string `json:"invocationId"`
	StartedOn    string `json:"startedOn"`
}

// Subject is one attested file.
type Subject struct {
	Name   string        `json:"name"`
	Digest SubjectDigest `json:"digest"`
	Size   int64         `json:"size"`
}

// SubjectDigest holds a subject's digests by algorithm.
type SubjectDigest struct {
	SHA256 string `json:"sha256"`
}

// ProvenanceOptions configures CreateProvenance. Every field is optional.
type ProvenanceOptions struct {
	// BuilderID defaults to "rtgl@<compiler version>".
	BuilderID string

	// Getenv reads the source variables. Nil means os.Getenv.
	Getenv func(string) string

	Clock Clock
	IDs   IDGenerator
}

// CreateProvenance attests m: one subject per manifest entry, plus the
// digest of the manifest itself.
func CreateProvenance(m *Manifest, opts ProvenanceOptions) (*Provenance, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	ids := opts.IDs
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	builderID := opts.BuilderID
	if builderID == "" {
		builderID = Generator()
	}

	digest, err := m.Digest()
	if err != nil {
		return nil, err
	}

	subjects := make([]Subject, 0, len(m.Artifacts))
	for _, e := range m.Artifacts {
		subjects = append(subjects, Subject{Name: e.Path, Digest: SubjectDigest{SHA256: e.SHA256}, Size: e.Size})
	}

	env := func(key string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return localSource
	}

	return &Provenance{
		Schema:        ProvenanceSchema,
		PredicateType: ProvenancePredicateType,
		Builder: Builder{
			ID:              builderID,
			Runtime:         runtime.Version(),
			Platform:        runtime.GOOS,
			Arch:            runtime.GOARCH,
			CompilerVersion: ir.CompilerVersion,
		},
		Source: Source{
			Repository: env(EnvRepository),
			Ref:        env(EnvRef),
			SHA:        env(EnvSHA),
		},
		Metadata: ProvenanceMetadata{
			InvocationID: ids.Generate(),
			StartedOn:    clock.Now().UTC().Format(time.RFC3339),
		},
		Subject:        subjects,
		ManifestDigest: digest,
	}, nil
}

// WriteProvenance writes p to dir/release-provenance.json.
func WriteProvenance(dir string, p *Provenance) error {
	return writeJSON(filepath.Join(dir, ProvenanceFileName), p)
}

// ReadProvenance loads dir/release-provenance.json.
func ReadProvenance(dir string) (*Provenance, error) {
	var p Provenance
	if err := readJSON(filepath.Join(dir, ProvenanceFileName), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SubjectMismatch is a provenance subject the manifest does not back.
type SubjectMismatch struct {
	Name     string `json:"name"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Reason   string `json:"reason"`
}

// Subject mismatch reasons.
const (
	ReasonNotInManifest  = "not-in-manifest"
	ReasonDigestMismatch = "digest-mismatch"
)

// ProvenanceVerifyResult is the outcome of VerifyProvenance.
type ProvenanceVerifyResult struct {
	// OK requires every subject to match the manifest.
	OK         bool              `json:"ok"`
	Mismatches []SubjectMismatch `json:"mismatches"`

	// ManifestDigestMatch reports whether the attested manifest digest
	// equals the current manifest. It is informational and does not
	// affect OK.
	ManifestDigestMatch bool `json:"manifestDigestMatch"`

	// ProvenanceSHA256 is the digest of the provenance file as read.
	ProvenanceSHA256 string `json:"provenanceSha256"`
}

// VerifyProvenance cross-checks dir's provenance subjects against its
// manifest.
func VerifyProvenance(dir string) (*ProvenanceVerifyResult, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	p, err := ReadProvenance(dir)
	if err != nil {
		return nil, err
	}
	fileSum, _, err := hashFile(filepath.Join(dir, ProvenanceFileName))
	if err != nil {
		return nil, err
	}

	res := &ProvenanceVerifyResult{
		Mismatches:       CheckSubjects(m, p),
		ProvenanceSHA256: fileSum,
	}
	if digest, err := m.Digest(); err == nil {
		res.ManifestDigestMatch = digest == p.ManifestDigest
	}
	res.OK = len(res.Mismatches) == 0
	return res, nil
}

// CheckSubjects returns the subjects of p that are absent from m or carry
// a different digest, sorted by name.
func CheckSubjects(m *Manifest, p *Provenance) []SubjectMismatch {
	mismatches := []SubjectMismatch{}
	for _, s := range p.Subject {
		e, ok := m.Lookup(s.Name)
		switch {
		case !ok:
			mismatches = append(mismatches, SubjectMismatch{
				Name:   s.Name,
				Actual: s.Digest.SHA256,
				Reason: ReasonNotInManifest,
			})
		case e.SHA256 != s.Digest.SHA256:
			mismatches = append(mismatches, SubjectMismatch{
				Name:     s.Name,
				Expected: e.SHA256,
				Actual:   s.Digest.SHA256,
				Reason:   ReasonDigestMismatch,
			})
		}
	}
	slices.SortFunc(mismatches, func(a, b SubjectMismatch) int {
		return strings.Compare(a.Name, b.Name)
	})
	return mismatches
}
