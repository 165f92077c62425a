package checker

import (
	"crypto/subtle"
	"encoding/hex"

	"github.com/Mindburn-Labs/fuse/pkg/crypto"
)

// checkSignature verifies an extracted Ed25519 signature triple:
// {"public_key": hex(32), "signature": hex(64), "message": hex(any)}.
//
// All three fields are decoded and the strict verification is evaluated even
// when an earlier step already failed, so a malformed input takes the same
// path as a cryptographic mismatch. The result carries no failure reason.
func checkSignature(data SystemData) Result {
	pub, okPub := hexField(data, "public_key")
	sig, okSig := hexField(data, "signature")
	msg, okMsg := hexField(data, "message")

	ok := okPub & okSig & okMsg
	ok &= boolInt(crypto.VerifyStrict(pub, msg, sig))

	return resultOf(subtle.ConstantTimeEq(int32(ok), 1) == 1)
}

func hexField(data SystemData, key string) ([]byte, int) {
	s, ok := data[key].(string)
	if !ok {
		return nil, 0
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, 0
	}
	return b, 1
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
