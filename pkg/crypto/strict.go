package crypto

import (
	"crypto/ed25519"
	"crypto/subtle"

	"filippo.io/edwards25519"
)

// VerifyStrict reports whether sig is a valid Ed25519 signature of message by
// publicKey under strict (non-malleable) rules:
//
//   - the public key and R must be canonical encodings of curve points,
//   - neither may be a point of small order,
//   - S must be a canonical scalar (S < L),
//   - and the cofactorless verification equation must hold.
//
// Wrong lengths, undecodable points and cryptographic mismatches all go through
// the same evaluation; every check runs before the flags are combined.
func VerifyStrict(publicKey, message, sig []byte) bool {
	var pub [ed25519.PublicKeySize]byte
	var rs [ed25519.SignatureSize]byte

	ok := subtle.ConstantTimeEq(int32(len(publicKey)), ed25519.PublicKeySize)
	ok &= subtle.ConstantTimeEq(int32(len(sig)), ed25519.SignatureSize)
	copy(pub[:], publicKey)
	copy(rs[:], sig)

	ok &= strictPoint(pub[:])
	ok &= strictPoint(rs[:32])
	ok &= canonicalScalar(rs[32:])
	ok &= boolInt(ed25519.Verify(pub[:], message, rs[:]))

	return ok == 1
}

// IsStrictPublicKey reports whether b is a canonical, non-small-order point.
func IsStrictPublicKey(b []byte) bool {
	if len(b) != ed25519.PublicKeySize {
		return false
	}
	return strictPoint(b) == 1
}

func strictPoint(b []byte) int {
	p, err := new(edwards25519.Point).SetBytes(b)
	if err != nil {
		return 0
	}
	// SetBytes accepts non-canonical y coordinates; re-encoding exposes them.
	canonical := subtle.ConstantTimeCompare(p.Bytes(), b)

	var cleared edwards25519.Point
	cleared.MultByCofactor(p)
	smallOrder := cleared.Equal(edwards25519.NewIdentityPoint())

	return canonical & (smallOrder ^ 1)
}

func canonicalScalar(b []byte) int {
	if _, err := edwards25519.NewScalar().SetCanonicalBytes(b); err != nil {
		return 0
	}
	return 1
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
