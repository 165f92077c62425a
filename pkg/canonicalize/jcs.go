// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme) style
// serialization for deterministic hashing of specs and evidence.
//
// Two inputs that differ only in key insertion order or insignificant
// whitespace produce byte-identical output. Strings are escaped as RFC 8785
// specifies: only quote, backslash and control characters are escaped, and
// U+2028/U+2029 stay literal. Number formatting is governed by
// a NumberPolicy; string normalisation is opt-in.
package canonicalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"
)

// NumberPolicy selects how numeric literals are rendered.
type NumberPolicy int

const (
	// NumbersPreserve keeps the exact textual form of every number, so 1.0 and 1
	// canonicalize differently.
	NumbersPreserve NumberPolicy = iota
	// NumbersRFC8785 renders numbers with the ECMAScript algorithm required by
	// RFC 8785, so 1.0 and 1 canonicalize identically. Object keys are then
	// ordered by UTF-16 code units as the RFC requires.
	NumbersRFC8785
)

// Options tunes canonicalization. The zero value is the default profile.
type Options struct {
	Numbers NumberPolicy
	// NormalizeStrings applies Unicode NFC to every key and string value.
	NormalizeStrings bool
}

// JCS returns the canonical JSON representation of v with default options.
//
// Key features:
// 1. Map keys are sorted lexicographically by UTF-8 bytes.
// 2. HTML escaping is DISABLED (unlike standard json.Marshal).
// 3. Numbers are preserved exactly as they were produced by json.Marshal or json.Number.
func JCS(v any) ([]byte, error) {
	return JCSWith(v, Options{})
}

// JCSWith returns the canonical JSON representation of v using opts.
func JCSWith(v any, opts Options) ([]byte, error) {
	// Marshal to intermediate JSON first so struct tags are honoured, then
	// re-encode the generic tree with our own ordering and escaping rules.
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jcs: pre-marshal failed: %w", err)
	}
	generic, err := Parse(intermediate)
	if err != nil {
		return nil, fmt.Errorf("jcs: intermediate decode failed: %w", err)
	}
	return encodeTree(generic, opts)
}

// Canonicalize parses raw JSON bytes and returns their canonical form.
// Malformed input yields a *DecodeError.
func Canonicalize(data []byte, opts Options) ([]byte, error) {
	generic, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return encodeTree(generic, opts)
}

// CanonicalHash returns the SHA-256 hex digest of the canonical JSON representation of v.
func CanonicalHash(v any) (string, error) {
	return CanonicalHashWith(v, Options{})
}

// CanonicalHashWith is CanonicalHash with explicit options.
func CanonicalHashWith(v any, opts Options) (string, error) {
	b, err := JCSWith(v, opts)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes SHA-256 hash of raw bytes and returns hex string
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Fingerprint returns the "sha256:"-prefixed digest of the canonical form of
// raw JSON evidence.
func Fingerprint(data []byte) (string, error) {
	b, err := Canonicalize(data, Options{})
	if err != nil {
		return "", err
	}
	return "sha256:" + HashBytes(b), nil
}

// JCSString returns the JCS canonical form as a string
func JCSString(v any) (string, error) {
	data, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func encodeTree(v any, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v, opts); err != nil {
		return nil, err
	}
	if opts.Numbers == NumbersRFC8785 {
		out, err := jcs.Transform(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("jcs: rfc8785 transform failed: %w", err)
		}
		return out, nil
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v any, opts Options) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(t.String())
	case string:
		return writeString(buf, t, opts)
	case []any:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, elem, opts); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		return writeObject(buf, t, opts)
	default:
		return fmt.Errorf("jcs: unsupported value type %T", v)
	}
	return nil
}

func writeObject(buf *bytes.Buffer, obj map[string]any, opts Options) error {
	keys := make([]string, 0, len(obj))
	byKey := make(map[string]string, len(obj))
	for k := range obj {
		nk := k
		if opts.NormalizeStrings {
			nk = norm.NFC.String(k)
		}
		if _, dup := byKey[nk]; dup {
			return &DecodeError{Code: CodeDuplicateKey, Message: fmt.Sprintf("key %q collides after NFC normalisation", nk)}
		}
		byKey[nk] = k
		keys = append(keys, nk)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, k, Options{}); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeValue(buf, obj[byKey[k]], opts); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeString(buf *bytes.Buffer, s string, opts Options) error {
	if opts.NormalizeStrings {
		s = norm.NFC.String(s)
	}
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false) // CRITICAL: RFC 8785 requires no HTML escaping
	if err := enc.Encode(s); err != nil {
		return err
	}
	// json.Encoder adds a newline, we must trim it
	writeLineSeparators(buf, bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}

// writeLineSeparators copies an encoded JSON string, turning the \u2028 and
// \u2029 escapes encoding/json always emits back into the literal characters
// RFC 8785 requires. Escapes are walked pairwise so an escaped backslash
// followed by "u2028" is left alone.
func writeLineSeparators(buf *bytes.Buffer, enc []byte) {
	for i := 0; i < len(enc); i++ {
		c := enc[i]
		if c != '\\' || i+1 >= len(enc) {
			buf.WriteByte(c)
			continue
		}
		if enc[i+1] == 'u' && i+6 <= len(enc) {
			switch string(enc[i+2 : i+6]) {
			case "2028":
				buf.WriteRune('\u2028')
				i += 5
				continue
			case "2029":
				buf.WriteRune('\u2029')
				i += 5
				continue
			}
		}
		buf.WriteByte(c)
		buf.WriteByte(enc[i+1])
		i++
	}
}
