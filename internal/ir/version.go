package ir

// Version constants for the public compile artifact.
const (
	// ArtifactSchema names the artifact JSON schema.
	ArtifactSchema = "rtgl-compile-artifact-v1"

	// ArtifactVersion is the artifact "version" field.
	ArtifactVersion = 1

	// CompilerVersion identifies this compiler in artifact metadata and
	// release provenance.
	CompilerVersion = "0.4.0"
)
