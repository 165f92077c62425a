// Package guest is the program the trusted executor runs. It decodes one
// request, invokes exactly one checker and emits the canonical journal. It
// uses no clock, randomness, filesystem or network, and it never panics: any
// failure yields a Fail journal.
package guest

import (
	"github.com/Mindburn-Labs/fuse/pkg/canonicalize"
	"github.com/Mindburn-Labs/fuse/pkg/checker"
	"github.com/Mindburn-Labs/fuse/pkg/proof"
	"github.com/Mindburn-Labs/fuse/pkg/spec"
)

// NativeImageID identifies this package compiled into the host process.
// Only the in-process sandbox runs it; it is not a reproducible artifact.
const NativeImageID = "native:fuse-guest/v1"

// Input is the request sent across the execution boundary.
type Input struct {
	Checker    checker.Kind         `json:"checker"`
	Spec       *spec.ComplianceSpec `json:"spec"`
	SystemData checker.SystemData   `json:"system_data"`
}

// EncodeInput serialises a request canonically.
func EncodeInput(kind checker.Kind, s *spec.ComplianceSpec, data checker.SystemData) ([]byte, error) {
	if data == nil {
		data = checker.SystemData{}
	}
	return canonicalize.JCS(Input{Checker: kind, Spec: s, SystemData: data})
}

// Run executes one request and returns the journal bytes.
func Run(input []byte) (out []byte) {
	defer func() {
		if recover() != nil {
			out = failJournal("")
		}
	}()

	obj, err := canonicalize.ParseObject(input)
	if err != nil {
		return failJournal("")
	}

	s := decodeSpec(obj["spec"])
	if s == nil {
		return failJournal("")
	}
	specHash := s.Hash()

	name, ok := obj["checker"].(string)
	if !ok {
		return failJournal(specHash)
	}
	kind, err := checker.ParseKind(name)
	if err != nil {
		return failJournal(specHash)
	}
	data, ok := obj["system_data"].(map[string]any)
	if !ok {
		return failJournal(specHash)
	}

	return journal(specHash, checker.Check(kind, s, checker.SystemData(data)))
}

func decodeSpec(v any) *spec.ComplianceSpec {
	if _, ok := v.(map[string]any); !ok {
		return nil
	}
	raw, err := canonicalize.JCS(v)
	if err != nil {
		return nil
	}
	s, err := spec.Parse(raw)
	if err != nil {
		return nil
	}
	return s
}

func failJournal(specHash string) []byte {
	return journal(specHash, checker.Fail)
}

func journal(specHash string, result checker.Result) []byte {
	b, err := proof.Journal{SpecHash: specHash, Result: result}.Encode()
	if err != nil {
		// Encode only fails on an invalid result; both callers pass Pass or Fail.
		return []byte(`{"result":"Fail","spec_hash":""}`)
	}
	return b
}
