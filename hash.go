package contracts

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"regexp"

	"golang.org/x/crypto/blake2b"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainParam = "contracts:param:v1"
	DomainTask  = "contracts:task:v1"
	DomainRoot  = "contracts:prov:v1"
	DomainSeed  = "contracts:seed:v1"
	DomainEnv   = "contracts:env:v1"
	DomainBatch = "contracts:batch:v1"
	DomainJob   = "contracts:job:v1"
)

// DigestHexLen is the length of every content-addressed identifier:
// a 256-bit digest rendered as lowercase hexadecimal.
const DigestHexLen = 64

var reDigestHex = regexp.MustCompile(`^[a-f0-9]{64}$`)

// IsDigestHex reports whether s has the fixed identifier shape:
// exactly 64 lowercase hex characters.
func IsDigestHex(s string) bool {
	return reDigestHex.MatchString(s)
}

// sumWithDomain computes a BLAKE2b-256 digest with domain separation.
// Format: BLAKE2b-256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func sumWithDomain(domain string, data []byte) [32]byte {
	framed := make([]byte, 0, len(domain)+1+len(data))
	framed = append(framed, domain...)
	framed = append(framed, 0x00)
	framed = append(framed, data...)
	return blake2b.Sum256(framed)
}

// hashWithDomain renders sumWithDomain as 64 lowercase hex characters.
//
// Example: hashWithDomain("contracts:param:v1", canonicalBytes)
func hashWithDomain(domain string, data []byte) string {
	sum := sumWithDomain(domain, data)
	return hex.EncodeToString(sum[:])
}

// ComputeParamID computes the content-addressed ID of a parameter mapping.
// The ID is a pure function of the mapping's contents: no randomness, no
// environmental dependence, identical across processes, machines, and time.
// Returns an error if the mapping cannot be canonically encoded.
func ComputeParamID(params Params) (string, error) {
	canonical, err := EncodeParams(params)
	if err != nil {
		return "", fmt.Errorf("ComputeParamID: %w", err)
	}
	return hashWithDomain(DomainParam, canonical), nil
}

// MustParamID is like ComputeParamID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParamID(params Params) string {
	id, err := ComputeParamID(params)
	if err != nil {
		panic(err)
	}
	return id
}

// seedDigest hashes a seed as its 8-byte big-endian representation.
// Seeds occupy the full uint64 domain, so they never pass through a JSON
// integer on the way to a digest.
func seedDigest(seed uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seed)
	return hashWithDomain(DomainSeed, b[:])
}

// payloadDigest hashes a structured payload via canonical JSON under the
// provenance domain.
func payloadDigest(payload map[string]any) (string, error) {
	canonical, err := marshalCanonicalJSON(payload)
	if err != nil {
		return "", fmt.Errorf("payloadDigest: %w", err)
	}
	return hashWithDomain(DomainRoot, canonical), nil
}
