package checker

import (
	"encoding/hex"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: a valid triple passes; any single bit flip in any field fails.
func TestSignatureBitFlipRejection(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	s := specWith(nil)

	properties.Property("valid signatures pass", prop.ForAll(
		func(seed uint8, msg []byte) bool {
			pub, sig := signedTriple(seed, msg)
			return Check(Signature, s, triple(pub, sig, msg)) == Pass
		},
		gen.UInt8(),
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("single bit flips fail", prop.ForAll(
		func(seed uint8, msg []byte, field uint8, bit uint16) bool {
			if len(msg) == 0 {
				msg = []byte{0}
			}
			pub, sig := signedTriple(seed, msg)
			pub = append([]byte{}, pub...)
			sig = append([]byte{}, sig...)
			msg = append([]byte{}, msg...)

			var target []byte
			switch field % 3 {
			case 0:
				target = pub
			case 1:
				target = sig
			default:
				target = msg
			}
			i := int(bit) % (len(target) * 8)
			target[i/8] ^= 1 << (i % 8)

			d := SystemData{
				"public_key": hex.EncodeToString(pub),
				"signature":  hex.EncodeToString(sig),
				"message":    hex.EncodeToString(msg),
			}
			return Check(Signature, s, d) == Fail
		},
		gen.UInt8(),
		gen.SliceOf(gen.UInt8()),
		gen.UInt8(),
		gen.UInt16(),
	))

	properties.TestingRun(t)
}
