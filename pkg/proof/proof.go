// Package proof holds ComplianceProof, the attestation binding a spec hash to
// a committed result, and its verification against a trust anchor.
package proof

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Mindburn-Labs/fuse/pkg/canonicalize"
	"github.com/Mindburn-Labs/fuse/pkg/checker"
)

// Assurance is the strength of the guarantee behind a proof.
type Assurance string

const (
	// AssurancePlaceholder carries no cryptographic guarantee.
	AssurancePlaceholder Assurance = "placeholder"
	// AssuranceAttested is backed by a trusted execution receipt.
	AssuranceAttested Assurance = "attested"
)

// BackendVerifier checks attestation material produced by a proving backend.
type BackendVerifier interface {
	VerifyProof(ctx context.Context, imageID string, proofBytes, journal []byte) error
}

// TrustAnchor is what a verifier pins: the executor identity it expects and
// the backend able to check proofs for it.
type TrustAnchor struct {
	ImageID  string
	Verifier BackendVerifier
}

// ComplianceProof attests that a (spec hash, result) pair came out of one
// checker execution. Empty proof bytes mark a placeholder proof. Values are
// immutable; accessors return copies.
type ComplianceProof struct {
	specHash   string
	result     checker.Result
	proofBytes []byte
}

// New builds a proof, copying proofBytes.
func New(specHash string, result checker.Result, proofBytes []byte) *ComplianceProof {
	return &ComplianceProof{
		specHash:   specHash,
		result:     result,
		proofBytes: bytes.Clone(proofBytes),
	}
}

// Placeholder builds a proof with no attestation material.
func Placeholder(specHash string, result checker.Result) *ComplianceProof {
	return New(specHash, result, nil)
}

func (p *ComplianceProof) SpecHash() string       { return p.specHash }
func (p *ComplianceProof) Result() checker.Result { return p.result }
func (p *ComplianceProof) ProofBytes() []byte     { return bytes.Clone(p.proofBytes) }

// IsPlaceholder reports whether the proof carries no attestation. A
// placeholder verifies structurally but proves nothing.
func (p *ComplianceProof) IsPlaceholder() bool {
	return len(p.proofBytes) == 0
}

// Assurance reports the strength of the proof.
func (p *ComplianceProof) Assurance() Assurance {
	if p.IsPlaceholder() {
		return AssurancePlaceholder
	}
	return AssuranceAttested
}

// Journal returns the committed output this proof claims.
func (p *ComplianceProof) Journal() Journal {
	return Journal{SpecHash: p.specHash, Result: p.result}
}

// Verify checks the proof against expectedSpecHash.
//
// A placeholder proof succeeds unconditionally; callers must consult
// IsPlaceholder or Assurance before treating that success as attestation.
// An attested proof must be bound to expectedSpecHash and accepted by the
// anchor's backend for the anchor's executor identity.
func (p *ComplianceProof) Verify(ctx context.Context, expectedSpecHash string, anchor *TrustAnchor) error {
	if p.IsPlaceholder() {
		return nil
	}
	if p.specHash != expectedSpecHash {
		return &VerifyError{Code: CodeSpecHashMismatch, Message: fmt.Sprintf("proof is bound to %s, expected %s", p.specHash, expectedSpecHash)}
	}
	if anchor == nil || anchor.Verifier == nil || anchor.ImageID == "" {
		return &VerifyError{Code: CodeNoTrustAnchor, Message: "attested proof requires a trust anchor"}
	}

	journal, err := p.Journal().Encode()
	if err != nil {
		return err
	}

	if err := anchor.Verifier.VerifyProof(ctx, anchor.ImageID, p.proofBytes, journal); err != nil {
		if errors.Is(err, ErrExecutorMismatch) {
			return &VerifyError{Code: CodeExecutorMismatch, Err: err}
		}
		if errors.Is(err, ErrMalformed) {
			return &VerifyError{Code: CodeMalformed, Err: err}
		}
		return &VerifyError{Code: CodeRejected, Err: err}
	}
	return nil
}

type wireProof struct {
	SpecHash   string         `json:"spec_hash"`
	Result     checker.Result `json:"result"`
	ProofBytes string         `json:"proof_bytes"`
}

// MarshalJSON emits {spec_hash, result, proof_bytes(hex)}.
func (p *ComplianceProof) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireProof{
		SpecHash:   p.specHash,
		Result:     p.result,
		ProofBytes: hex.EncodeToString(p.proofBytes),
	})
}

// UnmarshalJSON accepts the wire form; proof_bytes may be empty.
func (p *ComplianceProof) UnmarshalJSON(data []byte) error {
	if _, err := canonicalize.ParseObject(data); err != nil {
		return &VerifyError{Code: CodeMalformed, Message: "proof is not a JSON object", Err: err}
	}
	var w wireProof
	if err := json.Unmarshal(data, &w); err != nil {
		return &VerifyError{Code: CodeMalformed, Err: err}
	}
	if !w.Result.Valid() {
		return &VerifyError{Code: CodeMalformed, Message: "proof result missing"}
	}
	raw, err := hex.DecodeString(w.ProofBytes)
	if err != nil {
		return &VerifyError{Code: CodeMalformed, Message: "proof_bytes is not hex", Err: err}
	}
	*p = ComplianceProof{specHash: w.SpecHash, result: w.Result, proofBytes: raw}
	return nil
}

// Parse decodes a proof from its wire form.
func Parse(data []byte) (*ComplianceProof, error) {
	var p ComplianceProof
	if err := p.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &p, nil
}
