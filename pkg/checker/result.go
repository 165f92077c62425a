package checker

import (
	"encoding/json"
	"fmt"
)

// Result is the two-valued outcome of a check.
type Result string

const (
	Pass Result = "Pass"
	Fail Result = "Fail"
)

// ParseResult accepts exactly "Pass" or "Fail".
func ParseResult(s string) (Result, error) {
	switch Result(s) {
	case Pass, Fail:
		return Result(s), nil
	default:
		return "", fmt.Errorf("invalid compliance result %q", s)
	}
}

// Valid reports whether r is Pass or Fail.
func (r Result) Valid() bool {
	return r == Pass || r == Fail
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("compliance result must be a string: %w", err)
	}
	parsed, err := ParseResult(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func resultOf(ok bool) Result {
	if ok {
		return Pass
	}
	return Fail
}
