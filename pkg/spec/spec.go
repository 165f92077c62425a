// Package spec defines ComplianceSpec, the declarative claim a checker is run
// against, and its canonical identity hash.
package spec

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/Mindburn-Labs/fuse/pkg/canonicalize"
)

// HashProfile names the canonicalisation profile used by Hash.
const HashProfile = "jcs+nfc"

// Field names as they appear on the wire.
const (
	FieldClaim           = "claim"
	FieldSystemHash      = "system_hash"
	FieldConstraints     = "constraints"
	FieldJurisdiction    = "jurisdiction"
	FieldVersion         = "version"
	FieldExpiry          = "expiry"
	FieldMetadata        = "metadata"
	FieldDisclosedFields = "disclosed_fields"
	FieldSpecHash        = "spec_hash"
)

var disclosableFields = []string{
	FieldClaim, FieldSystemHash, FieldConstraints, FieldJurisdiction,
	FieldVersion, FieldExpiry, FieldMetadata,
}

// ComplianceSpec is the claim under test. Treat values as immutable once
// built; use Clone to derive a modified copy.
type ComplianceSpec struct {
	Claim        string            `json:"claim" yaml:"claim"`
	SystemHash   string            `json:"system_hash" yaml:"system_hash"`
	Constraints  map[string]string `json:"constraints" yaml:"constraints"`
	Jurisdiction string            `json:"jurisdiction" yaml:"jurisdiction"`
	Version      string            `json:"version" yaml:"version"`
	Expiry       time.Time         `json:"expiry" yaml:"expiry"`

	// Metadata is informational and never part of the identity hash.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	// DisclosedFields selects the fields revealed to a verifier. Nil means all.
	DisclosedFields []string `json:"disclosed_fields,omitempty" yaml:"disclosed_fields,omitempty"`
}

// New builds a spec, copying the constraints map.
func New(claim, systemHash string, constraints map[string]string, jurisdiction, version string, expiry time.Time) *ComplianceSpec {
	return &ComplianceSpec{
		Claim:        claim,
		SystemHash:   systemHash,
		Constraints:  copyConstraints(constraints),
		Jurisdiction: jurisdiction,
		Version:      version,
		Expiry:       expiry,
	}
}

// hashInput is the identity-bearing subset of the spec.
type hashInput struct {
	Claim        string            `json:"claim"`
	Constraints  map[string]string `json:"constraints"`
	Expiry       string            `json:"expiry"`
	Jurisdiction string            `json:"jurisdiction"`
	SystemHash   string            `json:"system_hash"`
	Version      string            `json:"version"`
}

// Hash returns the hex SHA-256 of the canonical identity fields. It is a pure
// function of claim, system_hash, constraints, jurisdiction, version and
// expiry; metadata and disclosed_fields never contribute.
func (s *ComplianceSpec) Hash() string {
	if s == nil {
		return ""
	}
	h, err := canonicalize.CanonicalHashWith(hashInput{
		Claim:        s.Claim,
		Constraints:  copyConstraints(s.Constraints),
		Expiry:       FormatExpiry(s.Expiry),
		Jurisdiction: s.Jurisdiction,
		SystemHash:   s.SystemHash,
		Version:      s.Version,
	}, canonicalize.Options{NormalizeStrings: true})
	if err != nil {
		// Only reachable when two constraint keys collide under NFC;
		// Validate reports that case.
		return ""
	}
	return h
}

// FormatExpiry renders t as UTC RFC 3339 with fractional seconds only when
// they are non-zero.
func FormatExpiry(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// IsExpired reports whether at is strictly after the spec's expiry.
func (s *ComplianceSpec) IsExpired(at time.Time) bool {
	return at.After(s.Expiry)
}

// IsDisclosed reports whether field is revealed to verifiers.
func (s *ComplianceSpec) IsDisclosed(field string) bool {
	if s.DisclosedFields == nil {
		return true
	}
	return slices.Contains(s.DisclosedFields, field)
}

// Disclosed returns the selective-disclosure view of the spec: the disclosed
// fields plus spec_hash, which is always present so the view stays bound to
// the full claim.
func (s *ComplianceSpec) Disclosed() map[string]any {
	all := map[string]any{
		FieldClaim:        s.Claim,
		FieldSystemHash:   s.SystemHash,
		FieldConstraints:  copyConstraints(s.Constraints),
		FieldJurisdiction: s.Jurisdiction,
		FieldVersion:      s.Version,
		FieldExpiry:       FormatExpiry(s.Expiry),
	}
	if len(s.Metadata) > 0 {
		all[FieldMetadata] = maps.Clone(s.Metadata)
	}

	view := map[string]any{FieldSpecHash: s.Hash()}
	for _, f := range disclosableFields {
		v, ok := all[f]
		if ok && s.IsDisclosed(f) {
			view[f] = v
		}
	}
	return view
}

// Clone returns a deep copy.
func (s *ComplianceSpec) Clone() *ComplianceSpec {
	if s == nil {
		return nil
	}
	c := *s
	c.Constraints = copyConstraints(s.Constraints)
	c.Metadata = cloneTree(s.Metadata)
	if s.DisclosedFields != nil {
		c.DisclosedFields = slices.Clone(s.DisclosedFields)
	}
	return &c
}

// MarshalJSON emits constraints as an object even when empty.
func (s ComplianceSpec) MarshalJSON() ([]byte, error) {
	type wire ComplianceSpec
	w := wire(s)
	w.Constraints = copyConstraints(s.Constraints)
	w.Expiry = s.Expiry.UTC()
	return json.Marshal(w)
}

func copyConstraints(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	maps.Copy(out, in)
	return out
}

func cloneTree(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneTree(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
