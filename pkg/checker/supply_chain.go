package checker

import (
	"encoding/hex"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/Mindburn-Labs/fuse/pkg/spec"
)

const versionConstraintPrefix = "version:"

// checkSupplyChain validates an SBOM-like component list. Each component
// needs a name, a semantic version and a sha256 digest. Constraints of the
// form "version:<name>" bound the named component's version and
// required_builder pins the provenance builder of every component.
func checkSupplyChain(s *spec.ComplianceSpec, data SystemData) Result {
	components, ok := arrayField(data, "components")
	if !ok || len(components) == 0 {
		return Fail
	}

	requiredBuilder := s.Constraints["required_builder"]
	versions := make(map[string]*semver.Version, len(components))

	for _, entry := range components {
		component, ok := asObject(entry)
		if !ok {
			return Fail
		}
		name, ok := stringField(component, "name")
		if !ok || name == "" {
			return Fail
		}
		if _, dup := versions[name]; dup {
			return Fail
		}
		rawVersion, ok := stringField(component, "version")
		if !ok {
			return Fail
		}
		v, err := semver.StrictNewVersion(strings.TrimPrefix(rawVersion, "v"))
		if err != nil {
			return Fail
		}
		digest, ok := stringField(component, "digest")
		if !ok || !validSHA256Digest(digest) {
			return Fail
		}
		if requiredBuilder != "" {
			provenance, ok := objectField(component, "provenance")
			if !ok {
				return Fail
			}
			if builder, _ := stringField(provenance, "builder"); builder != requiredBuilder {
				return Fail
			}
		}
		versions[name] = v
	}

	for key, raw := range s.Constraints {
		name, found := strings.CutPrefix(key, versionConstraintPrefix)
		if !found {
			continue
		}
		constraint, err := semver.NewConstraint(raw)
		if err != nil {
			return Fail
		}
		v, present := versions[name]
		if !present || !constraint.Check(v) {
			return Fail
		}
	}
	return Pass
}

func validSHA256Digest(d string) bool {
	h, found := strings.CutPrefix(d, "sha256:")
	if !found || len(h) != 64 || strings.ToLower(h) != h {
		return false
	}
	_, err := hex.DecodeString(h)
	return err == nil
}
