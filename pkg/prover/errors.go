package prover

import (
	"errors"
	"fmt"
)

// Backend error codes. None of these is ever turned into a Fail result:
// they mean the check could not be attested at all.
const (
	CodeExecutorNotFound = "BACKEND_EXECUTOR_NOT_FOUND"
	CodeMalformedInput   = "BACKEND_MALFORMED_INPUT"
	CodeComputeFailed    = "BACKEND_COMPUTE_FAILED"
	CodeVerifyMismatch   = "BACKEND_VERIFY_MISMATCH"
	CodeTimeout          = "BACKEND_TIMEOUT"
	CodeJournalMismatch  = "BACKEND_JOURNAL_MISMATCH"
)

// Sentinels for errors.Is matching by code.
var (
	ErrExecutorNotFound = &BackendError{Code: CodeExecutorNotFound}
	ErrMalformedInput   = &BackendError{Code: CodeMalformedInput}
	ErrComputeFailed    = &BackendError{Code: CodeComputeFailed}
	ErrVerifyMismatch   = &BackendError{Code: CodeVerifyMismatch}
	ErrTimeout          = &BackendError{Code: CodeTimeout}
	ErrJournalMismatch  = &BackendError{Code: CodeJournalMismatch}
)

// BackendError is a typed failure of the proving backend.
type BackendError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *BackendError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) ErrorCode() string { return e.Code }

func (e *BackendError) Is(target error) bool {
	var t *BackendError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}
