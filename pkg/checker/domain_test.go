package checker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/blake2b"
)

func TestSOC2(t *testing.T) {
	tests := []struct {
		name        string
		constraints map[string]string
		data        string
		want        Result
	}{
		{"all authorized", nil, `{"access_logs":[{"authorized":true},{"authorized":true}]}`, Pass},
		{"one unauthorized", nil, `{"access_logs":[{"authorized":true},{"authorized":false}]}`, Fail},
		{"within threshold", map[string]string{"max_unauthorized": "1"}, `{"access_logs":[{"authorized":false}]}`, Pass},
		{"too few events", map[string]string{"min_events": "3"}, `{"access_logs":[{"authorized":true}]}`, Fail},
		{"empty log", nil, `{"access_logs":[]}`, Pass},
		{"missing log", nil, `{}`, Fail},
		{"non-bool flag", nil, `{"access_logs":[{"authorized":"yes"}]}`, Fail},
		{"bad constraint", map[string]string{"max_unauthorized": "many"}, `{"access_logs":[]}`, Fail},
		{"negative constraint", map[string]string{"max_unauthorized": "-1"}, `{"access_logs":[]}`, Fail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Check(SOC2, specWith(tt.constraints), decode(t, tt.data)))
		})
	}
}

func TestGDPR(t *testing.T) {
	tests := []struct {
		name        string
		constraints map[string]string
		data        string
		want        Result
	}{
		{"lawful", nil, `{"processing_activities":[{"lawful_basis":"CONSENT","retention_days":30}]}`, Pass},
		{"case-insensitive basis", nil, `{"processing_activities":[{"lawful_basis":"legitimate_interest","retention_days":0}]}`, Pass},
		{"unknown basis", nil, `{"processing_activities":[{"lawful_basis":"VIBES","retention_days":30}]}`, Fail},
		{"negative retention", nil, `{"processing_activities":[{"lawful_basis":"CONTRACT","retention_days":-1}]}`, Fail},
		{"fractional retention", nil, `{"processing_activities":[{"lawful_basis":"CONTRACT","retention_days":1.5}]}`, Fail},
		{"retention over max", map[string]string{"max_retention_days": "90"}, `{"processing_activities":[{"lawful_basis":"CONTRACT","retention_days":91}]}`, Fail},
		{"retention at max", map[string]string{"max_retention_days": "90"}, `{"processing_activities":[{"lawful_basis":"CONTRACT","retention_days":90}]}`, Pass},
		{"transfer without basis", nil, `{"processing_activities":[{"lawful_basis":"CONSENT","retention_days":1,"cross_border":true}]}`, Fail},
		{"transfer with SCCs", nil, `{"processing_activities":[{"lawful_basis":"CONSENT","retention_days":1,"cross_border":true,"transfer_basis":"SCC"}]}`, Pass},
		{"dpo required", map[string]string{"require_dpo": "true"}, `{"processing_activities":[],"dpo_appointed":false}`, Fail},
		{"dpo present", map[string]string{"require_dpo": "true"}, `{"processing_activities":[],"dpo_appointed":true}`, Pass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Check(GDPR, specWith(tt.constraints), decode(t, tt.data)))
		})
	}
}

func TestSupplyChain(t *testing.T) {
	digest := "sha256:" + strings.Repeat("ab", 32)
	component := func(name, version, builder string) string {
		return fmt.Sprintf(`{"name":%q,"version":%q,"digest":%q,"provenance":{"builder":%q}}`, name, version, digest, builder)
	}
	data := func(components ...string) string {
		return `{"components":[` + strings.Join(components, ",") + `]}`
	}

	tests := []struct {
		name        string
		constraints map[string]string
		data        string
		want        Result
	}{
		{"valid", nil, data(component("openssl", "3.0.13", "gh")), Pass},
		{"v prefix", nil, data(component("openssl", "v3.0.13", "gh")), Pass},
		{"bad semver", nil, data(component("openssl", "three", "gh")), Fail},
		{"empty list", nil, data(), Fail},
		{"duplicate component", nil, data(component("a", "1.0.0", "gh"), component("a", "1.0.1", "gh")), Fail},
		{"constraint met", map[string]string{"version:openssl": ">= 3.0.7"}, data(component("openssl", "3.0.13", "gh")), Pass},
		{"constraint violated", map[string]string{"version:openssl": ">= 3.1"}, data(component("openssl", "3.0.13", "gh")), Fail},
		{"constrained component missing", map[string]string{"version:zlib": "^1.3"}, data(component("openssl", "3.0.13", "gh")), Fail},
		{"malformed constraint", map[string]string{"version:openssl": ">>>"}, data(component("openssl", "3.0.13", "gh")), Fail},
		{"builder pinned", map[string]string{"required_builder": "gh"}, data(component("a", "1.0.0", "gh")), Pass},
		{"builder mismatch", map[string]string{"required_builder": "gh"}, data(component("a", "1.0.0", "laptop")), Fail},
		{"bad digest", nil, `{"components":[{"name":"a","version":"1.0.0","digest":"md5:abc"}]}`, Fail},
		{"uppercase digest", nil, `{"components":[{"name":"a","version":"1.0.0","digest":"sha256:` + strings.Repeat("AB", 32) + `"}]}`, Fail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Check(SupplyChain, specWith(tt.constraints), decode(t, tt.data)))
		})
	}
}

func modelRoot(algorithm string, files map[string]string) string {
	var lines []string
	for p, d := range files {
		lines = append(lines, p+":"+d+"\n")
	}
	sort.Strings(lines)
	joined := []byte(strings.Join(lines, ""))
	if algorithm == "blake2b" {
		sum := blake2b.Sum256(joined)
		return hex.EncodeToString(sum[:])
	}
	sum := sha256.Sum256(joined)
	return hex.EncodeToString(sum[:])
}

func TestMLModel(t *testing.T) {
	files := map[string]string{
		"weights/layer0.bin": strings.Repeat("11", 32),
		"config.json":        strings.Repeat("22", 32),
	}
	filesJSON := `[{"path":"weights/layer0.bin","digest":"` + files["weights/layer0.bin"] + `"},{"path":"config.json","digest":"` + files["config.json"] + `"}]`

	for _, alg := range []string{"sha256", "blake2b"} {
		t.Run(alg, func(t *testing.T) {
			root := modelRoot(alg, files)
			data := decode(t, `{"algorithm":"`+alg+`","files":`+filesJSON+`,"metrics":{"accuracy":0.93}}`)

			assert.Equal(t, Pass, Check(MLModel, specWith(map[string]string{"model_digest": root}), data))
			assert.Equal(t, Pass, Check(MLModel, specWith(map[string]string{"model_digest": root, "min_accuracy": "0.9"}), data))
			assert.Equal(t, Fail, Check(MLModel, specWith(map[string]string{"model_digest": root, "min_accuracy": "0.95"}), data))
			assert.Equal(t, Fail, Check(MLModel, specWith(map[string]string{"model_digest": root, "min_f1": "0.5"}), data))
			assert.Equal(t, Fail, Check(MLModel, specWith(map[string]string{"model_digest": strings.Repeat("0", 64)}), data))
			assert.Equal(t, Fail, Check(MLModel, specWith(nil), data))
		})
	}

	// The two algorithms are not interchangeable.
	root := modelRoot("sha256", files)
	data := decode(t, `{"algorithm":"blake2b","files":`+filesJSON+`}`)
	assert.Equal(t, Fail, Check(MLModel, specWith(map[string]string{"model_digest": root}), data))

	dup := decode(t, `{"algorithm":"sha256","files":[{"path":"a","digest":"`+files["config.json"]+`"},{"path":"a","digest":"`+files["config.json"]+`"}]}`)
	assert.Equal(t, Fail, Check(MLModel, specWith(map[string]string{"model_digest": root}), dup))

	unknown := decode(t, `{"algorithm":"md5","files":`+filesJSON+`}`)
	assert.Equal(t, Fail, Check(MLModel, specWith(map[string]string{"model_digest": root}), unknown))
}

func TestPolicy(t *testing.T) {
	data := decode(t, `{"encryption":{"at_rest":true,"algorithm":"AES-256-GCM"},"open_ports":[443],"uptime":99.95}`)

	tests := []struct {
		name string
		expr string
		want Result
	}{
		{"true", `data.encryption.at_rest == true`, Pass},
		{"false", `data.encryption.algorithm == "DES"`, Fail},
		{"int list", `data.open_ports.all(p, p == 443)`, Pass},
		{"double", `data.uptime >= 99.9`, Pass},
		{"uses constraints", `constraints.region == "EU"`, Pass},
		{"non-bool", `data.open_ports`, Fail},
		{"missing key", `data.nope == 1`, Fail},
		{"syntax error", `data.(`, Fail},
		{"clock", `now() > timestamp("2020-01-01T00:00:00Z")`, Fail},
		{"empty", ``, Fail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := specWith(map[string]string{"expression": tt.expr, "region": "EU"})
			assert.Equal(t, tt.want, Check(Policy, s, data))
		})
	}

	assert.NoError(t, ValidatePolicyExpression(`data.x == 1`))
	assert.Error(t, ValidatePolicyExpression(`duration("1h") > duration("1m")`))
	assert.Error(t, ValidatePolicyExpression(`data.(`))
}
