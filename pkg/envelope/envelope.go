// Package envelope pairs one ComplianceSpec with one ComplianceProof and
// decides whether a verifier may rely on the pair.
//
// Verification distinguishes three outcomes: an attested Pass, an attested
// Fail, and "could not attest" (an *Error). Placeholder proofs verify
// structurally but are reported with placeholder assurance and can be
// refused outright with RequireAttested.
package envelope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Mindburn-Labs/fuse/pkg/canonicalize"
	"github.com/Mindburn-Labs/fuse/pkg/checker"
	"github.com/Mindburn-Labs/fuse/pkg/proof"
	"github.com/Mindburn-Labs/fuse/pkg/spec"
)

// VerifiableComplianceEnvelope exclusively owns copies of its spec and proof.
type VerifiableComplianceEnvelope struct {
	spec  *spec.ComplianceSpec
	proof *proof.ComplianceProof
}

// New wraps copies of s and p.
func New(s *spec.ComplianceSpec, p *proof.ComplianceProof) *VerifiableComplianceEnvelope {
	env := &VerifiableComplianceEnvelope{spec: s.Clone()}
	if p != nil {
		env.proof = proof.New(p.SpecHash(), p.Result(), p.ProofBytes())
	}
	return env
}

// Spec returns a copy of the wrapped spec.
func (e *VerifiableComplianceEnvelope) Spec() *spec.ComplianceSpec { return e.spec.Clone() }

// Proof returns the wrapped proof.
func (e *VerifiableComplianceEnvelope) Proof() *proof.ComplianceProof { return e.proof }

// Verify runs the default verifier: system clock, no trust anchor, placeholder
// proofs allowed. Attested proofs need a Verifier with a trust anchor.
func (e *VerifiableComplianceEnvelope) Verify(ctx context.Context) error {
	return NewVerifier().Verify(ctx, e)
}

// IsCompliant is Verify followed by the committed result.
func (e *VerifiableComplianceEnvelope) IsCompliant(ctx context.Context) (bool, error) {
	return NewVerifier().IsCompliant(ctx, e)
}

type wireEnvelope struct {
	Spec  json.RawMessage `json:"spec"`
	Proof json.RawMessage `json:"proof"`
}

// MarshalJSON emits {spec, proof}.
func (e *VerifiableComplianceEnvelope) MarshalJSON() ([]byte, error) {
	if e.spec == nil || e.proof == nil {
		return nil, &Error{Code: CodeMalformed, Message: "envelope is incomplete"}
	}
	s, err := json.Marshal(e.spec)
	if err != nil {
		return nil, err
	}
	p, err := json.Marshal(e.proof)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{Spec: s, Proof: p})
}

// Parse decodes an envelope from its wire form.
func Parse(data []byte) (*VerifiableComplianceEnvelope, error) {
	obj, err := canonicalize.ParseObject(data)
	if err != nil {
		return nil, &Error{Code: CodeMalformed, Message: "envelope is not a JSON object", Err: err}
	}
	for k := range obj {
		if k != "spec" && k != "proof" {
			return nil, &Error{Code: CodeMalformed, Message: fmt.Sprintf("unexpected field %q", k)}
		}
	}

	var w wireEnvelope
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return nil, &Error{Code: CodeMalformed, Err: err}
	}
	if len(w.Spec) == 0 || len(w.Proof) == 0 {
		return nil, &Error{Code: CodeMalformed, Message: "envelope requires spec and proof"}
	}

	s, err := spec.Parse(w.Spec)
	if err != nil {
		return nil, &Error{Code: CodeMalformed, Message: "invalid spec", Err: err}
	}
	p, err := proof.Parse(w.Proof)
	if err != nil {
		return nil, &Error{Code: CodeMalformed, Message: "invalid proof", Err: err}
	}
	return &VerifiableComplianceEnvelope{spec: s, proof: p}, nil
}

// Outcome is the result of a successful verification.
type Outcome struct {
	Compliant bool            `json:"compliant"`
	Result    checker.Result  `json:"result"`
	Assurance proof.Assurance `json:"assurance"`
	SpecHash  string          `json:"spec_hash"`
}
