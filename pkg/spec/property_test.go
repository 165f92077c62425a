package spec

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: spec hash depends on constraint contents, never on insertion order.
func TestHashPermutationStability(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("constraint insertion order is irrelevant", prop.ForAll(
		func(keys []string, value string) bool {
			forward := make(map[string]string)
			for i, k := range keys {
				forward[k] = value + string(rune('a'+i%26))
			}
			backward := make(map[string]string)
			for i := len(keys) - 1; i >= 0; i-- {
				backward[keys[i]] = forward[keys[i]]
			}

			a := New("claim", "sys", forward, "EU", "1", testExpiry)
			b := New("claim", "sys", backward, "EU", "1", testExpiry)
			return a.Hash() == b.Hash() && a.Hash() != ""
		},
		gen.SliceOf(gen.Identifier()),
		gen.AlphaString(),
	))

	properties.Property("metadata never changes the hash", prop.ForAll(
		func(key, value string) bool {
			s := testSpec()
			before := s.Hash()
			s.Metadata = map[string]any{key: value}
			return before == s.Hash()
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
