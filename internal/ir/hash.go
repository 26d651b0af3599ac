package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainSemanticCore separates semantic-core hashes from any other SHA-256
// in the toolchain. The version suffix allows algorithm migration.
const DomainSemanticCore = "rtgl/semantic-core/v1"

// HashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
// The null byte prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SHA256Hex returns the plain lowercase hex SHA-256 of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CanonicalDigest canonicalizes v, encodes it with MarshalCanonical and
// returns the plain SHA-256 of the bytes. External tools can recompute it
// without knowing about domain prefixes.
func CanonicalDigest(v IRValue) (string, error) {
	data, err := MarshalCanonical(Canonicalize(v, ""))
	if err != nil {
		return "", fmt.Errorf("canonical digest: %w", err)
	}
	return SHA256Hex(data), nil
}
