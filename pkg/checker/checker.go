// Package checker holds the closed set of compliance checkers.
//
// A checker is a pure function of (spec, system data) to Pass or Fail. It
// never reads the clock, randomness, network or filesystem, and it never
// returns an error: malformed input, unknown kinds and internal faults all
// fold to Fail. The set of kinds is fixed at build time so the identity of a
// guest image built from this package pins the exact behaviour being attested.
package checker

import (
	"fmt"
	"sort"

	"github.com/Mindburn-Labs/fuse/pkg/spec"
)

// Kind identifies one checker variant.
type Kind string

const (
	SOC2        Kind = "soc2"
	GDPR        Kind = "gdpr"
	SupplyChain Kind = "supply_chain"
	MLModel     Kind = "ml_model"
	Signature   Kind = "signature"
	Policy      Kind = "policy"
)

// kindAliases maps accepted alternative names to their canonical kind.
var kindAliases = map[string]Kind{
	"c2pa": Signature,
}

// SystemData is the checker-specific evidence tree. Values are the shapes
// produced by JSON decoding: map[string]any, []any, string, bool, nil and
// numbers (json.Number, float64 or Go integers).
type SystemData map[string]any

// Kinds lists every supported checker in stable order.
func Kinds() []Kind {
	kinds := []Kind{SOC2, GDPR, SupplyChain, MLModel, Signature, Policy}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// ParseKind resolves a checker name, including aliases.
func ParseKind(name string) (Kind, error) {
	if k, ok := kindAliases[name]; ok {
		return k, nil
	}
	switch k := Kind(name); k {
	case SOC2, GDPR, SupplyChain, MLModel, Signature, Policy:
		return k, nil
	}
	return "", fmt.Errorf("unknown checker %q", name)
}

// Check runs the checker selected by kind, resolving aliases first. It is
// total: every input yields Pass or Fail.
func Check(kind Kind, s *spec.ComplianceSpec, data SystemData) (result Result) {
	defer func() {
		if recover() != nil {
			result = Fail
		}
	}()

	if s == nil {
		return Fail
	}
	if k, ok := kindAliases[string(kind)]; ok {
		kind = k
	}

	switch kind {
	case SOC2:
		return checkSOC2(s, data)
	case GDPR:
		return checkGDPR(s, data)
	case SupplyChain:
		return checkSupplyChain(s, data)
	case MLModel:
		return checkMLModel(s, data)
	case Signature:
		return checkSignature(data)
	case Policy:
		return checkPolicy(s, data)
	default:
		return Fail
	}
}
