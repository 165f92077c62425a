package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/fuse/pkg/envelope"
	"github.com/Mindburn-Labs/fuse/pkg/proof"
	"github.com/Mindburn-Labs/fuse/pkg/prover"
)

// TrustProfile is the verifier-side trust configuration: which executor and
// attestor key an attested proof must come from.
type TrustProfile struct {
	ImageID           string        `yaml:"image_id" json:"image_id"`
	AttestorPublicKey string        `yaml:"attestor_public_key" json:"attestor_public_key"`
	RequireAttested   bool          `yaml:"require_attested" json:"require_attested"`
	ClockSkew         time.Duration `yaml:"clock_skew,omitempty" json:"clock_skew,omitempty"`
}

// LoadTrustProfile reads a YAML trust profile. Unknown keys are rejected.
func LoadTrustProfile(path string) (*TrustProfile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("load trust profile: %w", err)
	}
	return ParseTrustProfile(data)
}

// ParseTrustProfile decodes and validates a YAML trust profile.
func ParseTrustProfile(data []byte) (*TrustProfile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p TrustProfile
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse trust profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate requires image_id and attestor_public_key to appear together.
func (p *TrustProfile) Validate() error {
	if (p.ImageID == "") != (p.AttestorPublicKey == "") {
		return fmt.Errorf("trust profile: image_id and attestor_public_key must be set together")
	}
	if p.ClockSkew < 0 {
		return fmt.Errorf("trust profile: clock_skew must not be negative")
	}
	if p.AttestorPublicKey != "" {
		if _, err := prover.NewReceiptVerifierHex(p.AttestorPublicKey); err != nil {
			return fmt.Errorf("trust profile: %w", err)
		}
	}
	return nil
}

// TrustAnchor returns the anchor pinned by the profile, or nil when the
// profile pins no executor.
func (p *TrustProfile) TrustAnchor() (*proof.TrustAnchor, error) {
	if p.ImageID == "" {
		return nil, nil
	}
	v, err := prover.NewReceiptVerifierHex(p.AttestorPublicKey)
	if err != nil {
		return nil, err
	}
	return &proof.TrustAnchor{ImageID: p.ImageID, Verifier: v}, nil
}

// Verifier builds an envelope verifier configured by the profile.
func (p *TrustProfile) Verifier() (*envelope.Verifier, error) {
	anchor, err := p.TrustAnchor()
	if err != nil {
		return nil, err
	}
	return envelope.NewVerifier().
		WithTrustAnchor(anchor).
		WithClockSkew(p.ClockSkew).
		RequireAttested(p.RequireAttested), nil
}
