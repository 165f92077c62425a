package checker

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/Mindburn-Labs/fuse/pkg/spec"
)

const metricConstraintPrefix = "min_"

// checkMLModel recomputes a model's root digest from its per-file digests and
// compares it with the model_digest constraint. The root is the chosen
// algorithm over the sorted "path:digest\n" lines. Constraints named
// min_<metric> require metrics.<metric> to be at least the given value.
func checkMLModel(s *spec.ComplianceSpec, data SystemData) Result {
	expected, ok := s.Constraints["model_digest"]
	if !ok {
		return Fail
	}

	algorithm, ok := stringField(data, "algorithm")
	if !ok {
		return Fail
	}
	newHash := hasherFor(algorithm)
	if newHash == nil {
		return Fail
	}

	files, ok := arrayField(data, "files")
	if !ok || len(files) == 0 {
		return Fail
	}

	lines := make([]string, 0, len(files))
	seen := make(map[string]bool, len(files))
	for _, entry := range files {
		file, ok := asObject(entry)
		if !ok {
			return Fail
		}
		path, ok := stringField(file, "path")
		if !ok || path == "" || seen[path] || strings.ContainsAny(path, ":\n") {
			return Fail
		}
		digest, ok := stringField(file, "digest")
		if !ok || !validHexDigest(digest, 32) {
			return Fail
		}
		seen[path] = true
		lines = append(lines, path+":"+strings.ToLower(digest)+"\n")
	}
	sort.Strings(lines)

	h := newHash()
	for _, line := range lines {
		h.Write([]byte(line))
	}
	if hex.EncodeToString(h.Sum(nil)) != strings.ToLower(expected) {
		return Fail
	}

	return checkMetrics(s, data)
}

func checkMetrics(s *spec.ComplianceSpec, data SystemData) Result {
	metrics, hasMetrics := objectField(data, "metrics")
	for key, raw := range s.Constraints {
		name, found := strings.CutPrefix(key, metricConstraintPrefix)
		if !found {
			continue
		}
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil || !hasMetrics {
			return Fail
		}
		got, ok := floatValue(metrics[name])
		if !ok || got < threshold {
			return Fail
		}
	}
	return Pass
}

func hasherFor(algorithm string) func() hash.Hash {
	switch strings.ToLower(algorithm) {
	case "sha256":
		return sha256.New
	case "blake2b":
		return func() hash.Hash {
			h, _ := blake2b.New256(nil)
			return h
		}
	default:
		return nil
	}
}

func validHexDigest(d string, size int) bool {
	b, err := hex.DecodeString(d)
	return err == nil && len(b) == size
}
