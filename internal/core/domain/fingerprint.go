package domain

import (
	"github.com/opencontainers/go-digest"
)

// fingerprintDomain separates fingerprints from any other SHA-256 of the same bytes
// and is bumped whenever the canonical encoding changes.
const fingerprintDomain = "memo/v1\x00"

// FingerprintLength is the number of hex characters in a fingerprint.
const FingerprintLength = 64

// Fingerprint identifies a computation by its inputs and the code that produces them.
type Fingerprint string

// ComputeFingerprint derives the fingerprint of codeIdentity and inputs.
// Equal inputs give equal fingerprints regardless of map iteration order.
func ComputeFingerprint(codeIdentity string, inputs map[string]any) (Fingerprint, error) {
	canonical, err := CanonicalInputs(codeIdentity, inputs)
	if err != nil {
		return "", err
	}
	return FingerprintOf(canonical), nil
}

// FingerprintOf hashes an encoding produced by CanonicalInputs.
func FingerprintOf(canonical []byte) Fingerprint {
	payload := make([]byte, 0, len(fingerprintDomain)+len(canonical))
	payload = append(payload, fingerprintDomain...)
	payload = append(payload, canonical...)
	return Fingerprint(digest.SHA256.FromBytes(payload).Encoded())
}

// String returns the hex form of the fingerprint.
func (f Fingerprint) String() string {
	return string(f)
}

// Short returns an abbreviated form for log messages.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// Valid reports whether f has the shape of a computed fingerprint.
func (f Fingerprint) Valid() bool {
	if len(f) != FingerprintLength {
		return false
	}
	for _, c := range f {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
