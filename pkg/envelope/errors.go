package envelope

import "fmt"

// Envelope error codes. Each is distinct from a Fail result: it means the
// attestation itself cannot be relied upon.
const (
	CodeMalformed           = "ENVELOPE_MALFORMED"
	CodeBindingMismatch     = "ENVELOPE_BINDING_MISMATCH"
	CodeSpecExpired         = "ENVELOPE_SPEC_EXPIRED"
	CodeProofInvalid        = "ENVELOPE_PROOF_INVALID"
	CodePlaceholderRejected = "ENVELOPE_PLACEHOLDER_REJECTED"
)

// Sentinels for errors.Is matching by code.
var (
	ErrMalformed           = &Error{Code: CodeMalformed}
	ErrBindingMismatch     = &Error{Code: CodeBindingMismatch}
	ErrSpecExpired         = &Error{Code: CodeSpecExpired}
	ErrProofInvalid        = &Error{Code: CodeProofInvalid}
	ErrPlaceholderRejected = &Error{Code: CodePlaceholderRejected}
)

// Error is a structural or cryptographic envelope failure.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode returns the stable error code.
func (e *Error) ErrorCode() string { return e.Code }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}
