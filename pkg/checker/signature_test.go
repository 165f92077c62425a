package checker

import (
	"crypto/ed25519"
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedTriple(seed byte, msg []byte) (pub, sig []byte) {
	priv := ed25519.NewKeyFromSeed(bytesOf(seed, ed25519.SeedSize))
	return priv.Public().(ed25519.PublicKey), ed25519.Sign(priv, msg)
}

func bytesOf(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func triple(pub, sig, msg []byte) SystemData {
	return SystemData{
		"public_key": hex.EncodeToString(pub),
		"signature":  hex.EncodeToString(sig),
		"message":    hex.EncodeToString(msg),
	}
}

func TestSignature_Valid(t *testing.T) {
	msg := []byte("C2PA mock claim data")
	pub, sig := signedTriple(7, msg)

	s := specWith(nil)
	assert.Equal(t, Pass, Check(Signature, s, triple(pub, sig, msg)))
	assert.Equal(t, Pass, Check(Signature, s, triple(pub, ed25519.Sign(ed25519.NewKeyFromSeed(bytesOf(7, 32)), nil), nil)))
}

func TestSignature_C2PAAlias(t *testing.T) {
	msg := []byte("C2PA mock claim data")
	pub, sig := signedTriple(7, msg)
	s := specWith(nil)

	assert.Equal(t, Pass, Check(Kind("c2pa"), s, triple(pub, sig, msg)))
	assert.Equal(t, Fail, Check(Kind("c2pa"), s, triple(pub, sig, []byte("other"))))
	assert.Equal(t, Fail, Check(Kind("C2PA"), s, triple(pub, sig, msg)), "aliases are case sensitive")
}

func TestSignature_Rejections(t *testing.T) {
	msg := []byte("payload")
	pub, sig := signedTriple(9, msg)
	good := triple(pub, sig, msg)

	cases := map[string]func(d SystemData){
		"missing key":       func(d SystemData) { delete(d, "public_key") },
		"missing message":   func(d SystemData) { delete(d, "message") },
		"non-string sig":    func(d SystemData) { d["signature"] = 12 },
		"odd hex":           func(d SystemData) { d["public_key"] = d["public_key"].(string)[1:] },
		"not hex":           func(d SystemData) { d["message"] = "zz" },
		"0x prefix":         func(d SystemData) { d["signature"] = "0x" + d["signature"].(string) },
		"short key":         func(d SystemData) { d["public_key"] = hex.EncodeToString(pub[:31]) },
		"long signature":    func(d SystemData) { d["signature"] = d["signature"].(string) + "00" },
		"wrong key":         func(d SystemData) { other, _ := signedTriple(10, msg); d["public_key"] = hex.EncodeToString(other) },
		"different message": func(d SystemData) { d["message"] = hex.EncodeToString([]byte("payloae")) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := SystemData{}
			for k, v := range good {
				d[k] = v
			}
			mutate(d)
			assert.Equal(t, Fail, Check(Signature, specWith(nil), d))
		})
	}
}

func TestSignature_UppercaseHexAccepted(t *testing.T) {
	msg := []byte("case")
	pub, sig := signedTriple(3, msg)
	d := triple(pub, sig, msg)
	d["signature"] = strings.ToUpper(d["signature"].(string))
	assert.Equal(t, Pass, Check(Signature, specWith(nil), d))
}

func TestSignature_MalleatedSRejected(t *testing.T) {
	msg := []byte("malleable?")
	pub, sig := signedTriple(5, msg)
	require.Equal(t, Pass, Check(Signature, specWith(nil), triple(pub, sig, msg)))

	l, ok := new(big.Int).SetString("7237005577332262213973186563042994240857116359379907606001950938285454250989", 10)
	require.True(t, ok)

	// S is little-endian; add L and re-encode.
	sBE := make([]byte, 32)
	for i := 0; i < 32; i++ {
		sBE[31-i] = sig[32+i]
	}
	sum := new(big.Int).Add(new(big.Int).SetBytes(sBE), l).FillBytes(make([]byte, 32))
	malleated := append([]byte{}, sig...)
	for i := 0; i < 32; i++ {
		malleated[32+i] = sum[31-i]
	}

	assert.Equal(t, Fail, Check(Signature, specWith(nil), triple(pub, malleated, msg)))
}

func TestSignature_SmallOrderForgeryRejected(t *testing.T) {
	identity := bytesOf(0, 32)
	identity[0] = 1
	forged := append(append([]byte{}, identity...), bytesOf(0, 32)...)

	assert.Equal(t, Fail, Check(Signature, specWith(nil), triple(identity, forged, []byte("any message"))))
}
