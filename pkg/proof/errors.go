package proof

import "fmt"

// Verification error codes.
const (
	CodeSpecHashMismatch = "PROOF_SPEC_HASH_MISMATCH"
	CodeNoTrustAnchor    = "PROOF_NO_TRUST_ANCHOR"
	CodeExecutorMismatch = "PROOF_EXECUTOR_MISMATCH"
	CodeRejected         = "PROOF_REJECTED"
	CodeMalformed        = "PROOF_MALFORMED"
)

// Sentinels for errors.Is matching by code.
var (
	ErrSpecHashMismatch = &VerifyError{Code: CodeSpecHashMismatch}
	ErrNoTrustAnchor    = &VerifyError{Code: CodeNoTrustAnchor}
	ErrExecutorMismatch = &VerifyError{Code: CodeExecutorMismatch}
	ErrRejected         = &VerifyError{Code: CodeRejected}
	ErrMalformed        = &VerifyError{Code: CodeMalformed}
)

// VerifyError is returned when a proof cannot be trusted.
type VerifyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *VerifyError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *VerifyError) Unwrap() error { return e.Err }

func (e *VerifyError) ErrorCode() string { return e.Code }

func (e *VerifyError) Is(target error) bool {
	t, ok := target.(*VerifyError)
	return ok && t.Code == e.Code
}
