package evidence

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/fuse/pkg/canonicalize"
	"github.com/Mindburn-Labs/fuse/pkg/checker"
	"github.com/Mindburn-Labs/fuse/pkg/spec"
)

func TestMockSignatureEvidence(t *testing.T) {
	a := MockSignatureEvidence()
	b := MockSignatureEvidence()
	assert.Equal(t, a, b, "mock evidence must be deterministic")

	pub, err := hex.DecodeString(a.PublicKey)
	require.NoError(t, err)
	assert.Len(t, pub, 32)
	sig, err := hex.DecodeString(a.Signature)
	require.NoError(t, err)
	assert.Len(t, sig, 64)
	msg, err := hex.DecodeString(a.Message)
	require.NoError(t, err)
	assert.Len(t, msg, 2580)

	s := spec.New("C2PA claim signature is valid", "asset-1", nil, "", "1", time.Now().Add(time.Hour))
	assert.Equal(t, checker.Pass, checker.Check(checker.Signature, s, a.SystemData()))

	kind, err := checker.ParseKind("c2pa")
	require.NoError(t, err)
	assert.Equal(t, checker.Pass, checker.Check(kind, s, a.SystemData()))
}

func TestMockSignatureEvidence_TamperedFails(t *testing.T) {
	e := MockSignatureEvidence()
	msg, _ := hex.DecodeString(e.Message)
	msg[len(msg)-1] ^= 0x01
	e.Message = hex.EncodeToString(msg)

	s := spec.New("claim", "asset-1", nil, "", "1", time.Now().Add(time.Hour))
	assert.Equal(t, checker.Fail, checker.Check(checker.Signature, s, e.SystemData()))
}

func TestParseSystemData(t *testing.T) {
	d, err := ParseSystemData([]byte(`{"access_logs":[{"authorized":true}]}`))
	require.NoError(t, err)
	assert.Len(t, d["access_logs"], 1)

	_, err = ParseSystemData([]byte(`{"a":1,"a":2}`))
	require.ErrorIs(t, err, canonicalize.ErrDuplicateKey)

	_, err = ParseSystemData([]byte(`[1]`))
	require.Error(t, err)
}

func TestLoadSystemData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"b":2,"a":1}`), 0o600))

	d, err := LoadSystemData(path)
	require.NoError(t, err)
	assert.Contains(t, d, "a")

	_, err = LoadSystemData(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestFingerprint_OrderIndependent(t *testing.T) {
	a, err := ParseSystemData([]byte(`{"b":[1,2],"a":{"y":1,"x":2}}`))
	require.NoError(t, err)
	b, err := ParseSystemData([]byte("{\n  \"a\": {\"x\": 2, \"y\": 1},\n  \"b\": [1, 2]\n}"))
	require.NoError(t, err)

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
	assert.Contains(t, fa, "sha256:")
}
