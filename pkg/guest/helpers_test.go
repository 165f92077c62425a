package guest

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/fuse/pkg/spec"
)

func specJSON(t *testing.T, s *spec.ComplianceSpec) string {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return string(b)
}

func replaceChecker(t *testing.T, input []byte, name string) []byte {
	t.Helper()
	out := strings.Replace(string(input), `"checker":"signature"`, `"checker":"`+name+`"`, 1)
	require.NotEqual(t, string(input), out)
	return []byte(out)
}
