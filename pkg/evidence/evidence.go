// Package evidence prepares system data for checkers: loading evidence
// documents, fingerprinting them, and shaping extracted signature material.
package evidence

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/Mindburn-Labs/fuse/pkg/canonicalize"
	"github.com/Mindburn-Labs/fuse/pkg/checker"
)

// SignatureEvidence is an already-extracted Ed25519 signature triple, each
// field lowercase hex without prefix.
type SignatureEvidence struct {
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
	Message   string `json:"message"`
}

// NewSignatureEvidence hex-encodes raw signature material.
func NewSignatureEvidence(publicKey, signature, message []byte) SignatureEvidence {
	return SignatureEvidence{
		PublicKey: hex.EncodeToString(publicKey),
		Signature: hex.EncodeToString(signature),
		Message:   hex.EncodeToString(message),
	}
}

// SystemData shapes the triple for the signature checker.
func (e SignatureEvidence) SystemData() checker.SystemData {
	return checker.SystemData{
		"public_key": e.PublicKey,
		"signature":  e.Signature,
		"message":    e.Message,
	}
}

const (
	mockSeed        = "c2pa-test-seed-for-mock-data-123"
	mockMessagePart = "C2PA mock claim data: This is a test message for C2PA signature verification in zkVM. "
	mockRepeats     = 30
)

// MockSignatureEvidence returns a deterministic, valid triple resembling the
// claim signature of a media provenance manifest. The message is a few KB,
// close to real manifest claims.
func MockSignatureEvidence() SignatureEvidence {
	priv := ed25519.NewKeyFromSeed([]byte(mockSeed))

	message := make([]byte, 0, len(mockMessagePart)*mockRepeats)
	for i := 0; i < mockRepeats; i++ {
		message = append(message, mockMessagePart...)
	}

	return NewSignatureEvidence(priv.Public().(ed25519.PublicKey), ed25519.Sign(priv, message), message)
}

// ParseSystemData strictly decodes a JSON evidence document.
func ParseSystemData(data []byte) (checker.SystemData, error) {
	obj, err := canonicalize.ParseObject(data)
	if err != nil {
		return nil, fmt.Errorf("invalid system data: %w", err)
	}
	return checker.SystemData(obj), nil
}

// LoadSystemData reads and decodes an evidence file.
func LoadSystemData(path string) (checker.SystemData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read system data %s: %w", path, err)
	}
	return ParseSystemData(data)
}

// Fingerprint returns the "sha256:"-prefixed digest of the canonical form of
// system data, independent of key order and whitespace.
func Fingerprint(data checker.SystemData) (string, error) {
	b, err := canonicalize.JCS(data)
	if err != nil {
		return "", err
	}
	return "sha256:" + canonicalize.HashBytes(b), nil
}
