// Package canonical provides RFC 8785 (JSON Canonicalization Scheme) encoding
// used wherever two evaluations must be compared byte for byte or an identifier
// must be derived from content.
package canonical

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

// namespace scopes content-derived identifiers to this module.
var namespace = uuid.MustParse("6f1c1f4e-8d0a-5c4e-9b5e-2f3c7a9d1e42")

// Marshal returns the canonical JSON form of v. Struct json tags are honored.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: transform: %w", err)
	}
	return out, nil
}

// Hash returns the hex SHA-256 digest of the canonical form of v.
func Hash(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// ID derives a stable UUIDv5 from the canonical form of v.
// Identical values always produce the same identifier.
func ID(v any) (uuid.UUID, error) {
	b, err := Marshal(v)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.NewSHA1(namespace, b), nil
}

// Fraction maps the canonical form of v onto [0, 1). It replaces random draws
// in rules that must replay identically.
func Fraction(v any) (float64, error) {
	b, err := Marshal(v)
	if err != nil {
		return 0, err
	}
	sum := sha256.Sum256(b)
	n := binary.BigEndian.Uint64(sum[:8]) >> 11
	return float64(n) / float64(uint64(1)<<53), nil
}
