package canonicalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// MaxDepth bounds object/array nesting accepted by Parse. Inputs come from
// untrusted parties, so recursion must stay bounded.
const MaxDepth = 128

// Deterministic decode error codes.
const (
	CodeSyntax       = "DECODE_SYNTAX"
	CodeDepth        = "DECODE_DEPTH"
	CodeDuplicateKey = "DECODE_DUPLICATE_KEY"
	CodeTrailingData = "DECODE_TRAILING_DATA"
	CodeInvalidUTF8  = "DECODE_INVALID_UTF8"
)

// Sentinels for errors.Is matching by code.
var (
	ErrSyntax       = &DecodeError{Code: CodeSyntax}
	ErrDepth        = &DecodeError{Code: CodeDepth}
	ErrDuplicateKey = &DecodeError{Code: CodeDuplicateKey}
	ErrTrailingData = &DecodeError{Code: CodeTrailingData}
	ErrInvalidUTF8  = &DecodeError{Code: CodeInvalidUTF8}
)

// DecodeError is a typed, deterministic decode failure.
type DecodeError struct {
	Code    string `json:"code"`
	Offset  int64  `json:"offset"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *DecodeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s at offset %d", e.Code, e.Offset)
	}
	return fmt.Sprintf("%s at offset %d: %s", e.Code, e.Offset, e.Message)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrorCode returns the stable error code.
func (e *DecodeError) ErrorCode() string { return e.Code }

// Is matches any *DecodeError carrying the same code.
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	return ok && t.Code == e.Code
}

// Parse decodes a single JSON value into a generic tree of map[string]any,
// []any, string, json.Number, bool and nil.
//
// Unlike json.Unmarshal it rejects duplicate object keys, trailing data,
// invalid UTF-8 and nesting deeper than MaxDepth. It never panics; every
// failure is a *DecodeError.
func Parse(data []byte) (any, error) {
	if !utf8.Valid(data) {
		return nil, &DecodeError{Code: CodeInvalidUTF8, Offset: int64(firstInvalidUTF8(data)), Message: "input is not valid UTF-8"}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseValue(dec, 0)
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &DecodeError{Code: CodeTrailingData, Offset: dec.InputOffset(), Message: "unexpected data after top-level value"}
	}
	return v, nil
}

// ParseObject is Parse restricted to a top-level JSON object.
func ParseObject(data []byte) (map[string]any, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &DecodeError{Code: CodeSyntax, Message: fmt.Sprintf("expected object, got %s", kindOf(v))}
	}
	return obj, nil
}

func parseValue(dec *json.Decoder, depth int) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, syntaxError(dec, err)
	}

	switch t := tok.(type) {
	case json.Delim:
		if depth+1 > MaxDepth {
			return nil, &DecodeError{Code: CodeDepth, Offset: dec.InputOffset(), Message: fmt.Sprintf("nesting exceeds %d", MaxDepth)}
		}
		switch t {
		case '{':
			return parseObject(dec, depth+1)
		case '[':
			return parseArray(dec, depth+1)
		default:
			return nil, &DecodeError{Code: CodeSyntax, Offset: dec.InputOffset(), Message: fmt.Sprintf("unexpected delimiter %q", t)}
		}
	case string, json.Number, bool, nil:
		return t, nil
	default:
		return nil, &DecodeError{Code: CodeSyntax, Offset: dec.InputOffset(), Message: fmt.Sprintf("unexpected token %T", tok)}
	}
}

func parseObject(dec *json.Decoder, depth int) (map[string]any, error) {
	obj := make(map[string]any)
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, syntaxError(dec, err)
		}
		key, ok := kt.(string)
		if !ok {
			return nil, &DecodeError{Code: CodeSyntax, Offset: dec.InputOffset(), Message: "object key is not a string"}
		}
		if _, dup := obj[key]; dup {
			return nil, &DecodeError{Code: CodeDuplicateKey, Offset: dec.InputOffset(), Message: fmt.Sprintf("duplicate key %q", key)}
		}
		val, err := parseValue(dec, depth)
		if err != nil {
			return nil, err
		}
		obj[key] = val
	}
	if _, err := dec.Token(); err != nil {
		return nil, syntaxError(dec, err)
	}
	return obj, nil
}

func parseArray(dec *json.Decoder, depth int) ([]any, error) {
	arr := make([]any, 0)
	for dec.More() {
		val, err := parseValue(dec, depth)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, syntaxError(dec, err)
	}
	return arr, nil
}

func syntaxError(dec *json.Decoder, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return de
	}
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return &DecodeError{Code: CodeSyntax, Offset: dec.InputOffset(), Message: err.Error(), Err: err}
}

func firstInvalidUTF8(data []byte) int {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(data)
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	default:
		return "value"
	}
}
