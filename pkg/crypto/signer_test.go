package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_Integrity(t *testing.T) {
	signer, err := NewEd25519Signer("key-1")
	if err != nil {
		t.Fatalf("Failed to create signer: %v", err)
	}

	payload := []byte(`{"image_id":"sha256:00","journal_digest":"ab"}`)

	// 1. Sign
	sigHex, err := signer.Sign(payload)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if sigHex == "" {
		t.Error("Signature empty")
	}

	// 2. Verify Valid
	valid, err := Verify(signer.PublicKey(), sigHex, payload)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !valid {
		t.Error("Valid payload rejected")
	}

	// 3. Verify Tampered
	tampered := bytes.Replace(payload, []byte("ab"), []byte("cd"), 1)
	valid, _ = Verify(signer.PublicKey(), sigHex, tampered)
	if valid {
		t.Error("Tampered payload accepted")
	}
}

func TestSignerFromSeed_Deterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, 32)
	a, err := NewEd25519SignerFromSeed(seed, "a")
	require.NoError(t, err)
	b, err := NewEd25519SignerFromHexSeed(hex.EncodeToString(seed), "b")
	require.NoError(t, err)

	assert.Equal(t, a.PublicKey(), b.PublicKey())
	assert.Equal(t, a.SignBytes([]byte("m")), b.SignBytes([]byte("m")))
	assert.Equal(t, seed, a.Seed())

	_, err = NewEd25519SignerFromSeed(seed[:31], "short")
	require.Error(t, err)
	_, err = NewEd25519SignerFromHexSeed("zz", "bad")
	require.Error(t, err)
}

func TestVerify_RejectsMalformedHex(t *testing.T) {
	_, err := Verify("not-hex", "00", nil)
	require.Error(t, err)
	_, err = Verify(hex.EncodeToString(make([]byte, 32)), "xyz", nil)
	require.Error(t, err)
	_, err = Verify("0011", "00", nil)
	require.Error(t, err)
}
