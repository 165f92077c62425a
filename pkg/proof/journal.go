package proof

import (
	"bytes"
	"fmt"

	"github.com/Mindburn-Labs/fuse/pkg/canonicalize"
	"github.com/Mindburn-Labs/fuse/pkg/checker"
)

// Journal is the public output committed by the trusted executor. Verifiers
// trust only what is in it.
type Journal struct {
	SpecHash string         `json:"spec_hash"`
	Result   checker.Result `json:"result"`
}

// Encode returns the canonical journal bytes.
func (j Journal) Encode() ([]byte, error) {
	if !j.Result.Valid() {
		return nil, &VerifyError{Code: CodeMalformed, Message: fmt.Sprintf("journal result %q", j.Result)}
	}
	return canonicalize.JCS(j)
}

// Digest returns the hex SHA-256 of the encoded journal.
func (j Journal) Digest() (string, error) {
	b, err := j.Encode()
	if err != nil {
		return "", err
	}
	return canonicalize.HashBytes(b), nil
}

// DecodeJournal parses committed journal bytes. Only the canonical encoding
// of exactly {spec_hash, result} is accepted, so a journal has one byte form.
func DecodeJournal(data []byte) (Journal, error) {
	obj, err := canonicalize.ParseObject(data)
	if err != nil {
		return Journal{}, &VerifyError{Code: CodeMalformed, Message: "journal is not a JSON object", Err: err}
	}
	if len(obj) != 2 {
		return Journal{}, &VerifyError{Code: CodeMalformed, Message: fmt.Sprintf("journal has %d fields, want 2", len(obj))}
	}

	specHash, ok := obj["spec_hash"].(string)
	if !ok {
		return Journal{}, &VerifyError{Code: CodeMalformed, Message: "journal spec_hash missing"}
	}
	rawResult, ok := obj["result"].(string)
	if !ok {
		return Journal{}, &VerifyError{Code: CodeMalformed, Message: "journal result missing"}
	}
	result, err := checker.ParseResult(rawResult)
	if err != nil {
		return Journal{}, &VerifyError{Code: CodeMalformed, Err: err}
	}

	j := Journal{SpecHash: specHash, Result: result}
	canonical, err := j.Encode()
	if err != nil {
		return Journal{}, err
	}
	if !bytes.Equal(canonical, data) {
		return Journal{}, &VerifyError{Code: CodeMalformed, Message: "journal is not canonically encoded"}
	}
	return j, nil
}
