package spec

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/fuse/pkg/canonicalize"
)

const schemaURL = "https://fuse.mindburn.dev/schemas/compliance-spec.schema.json"

//go:embed spec.schema.json
var schemaJSON string

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true
	if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add spec schema: %w", err)
	}
	return c.Compile(schemaURL)
})

// ErrInvalid matches every *ValidationError.
var ErrInvalid = &ValidationError{}

// ValidationError reports a spec that is well-formed JSON but not a valid claim.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid spec: " + e.Message
	}
	return fmt.Sprintf("invalid spec: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// Validate checks the semantic requirements JSON shape alone cannot express.
func (s *ComplianceSpec) Validate() error {
	if s == nil {
		return &ValidationError{Message: "spec is nil"}
	}
	if strings.TrimSpace(s.Claim) == "" {
		return &ValidationError{Field: FieldClaim, Message: "must not be empty"}
	}
	if strings.TrimSpace(s.SystemHash) == "" {
		return &ValidationError{Field: FieldSystemHash, Message: "must not be empty"}
	}
	if strings.TrimSpace(s.Version) == "" {
		return &ValidationError{Field: FieldVersion, Message: "must not be empty"}
	}
	if s.Expiry.IsZero() {
		return &ValidationError{Field: FieldExpiry, Message: "must be set"}
	}

	seen := make(map[string]string, len(s.Constraints))
	for k := range s.Constraints {
		if k == "" {
			return &ValidationError{Field: FieldConstraints, Message: "constraint names must not be empty"}
		}
		nk := norm.NFC.String(k)
		if other, dup := seen[nk]; dup {
			return &ValidationError{Field: FieldConstraints, Message: fmt.Sprintf("constraint names %q and %q are equal after normalisation", other, k)}
		}
		seen[nk] = k
	}

	for _, f := range s.DisclosedFields {
		if !slices.Contains(disclosableFields, f) {
			return &ValidationError{Field: FieldDisclosedFields, Message: fmt.Sprintf("unknown field %q", f)}
		}
	}
	return nil
}

// Parse decodes a spec from its JSON wire form. The input is strictly decoded
// (no duplicate keys, bounded depth), checked against the spec schema and
// then validated.
func Parse(data []byte) (*ComplianceSpec, error) {
	generic, err := canonicalize.ParseObject(data)
	if err != nil {
		return nil, err
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(generic); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			leaf := leafCause(ve)
			return nil, &ValidationError{Field: strings.TrimPrefix(leaf.InstanceLocation, "/"), Message: leaf.Message, Err: err}
		}
		return nil, &ValidationError{Message: err.Error(), Err: err}
	}

	var s ComplianceSpec
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&s); err != nil {
		return nil, &ValidationError{Message: "decode failed", Err: err}
	}
	if s.Constraints == nil {
		s.Constraints = map[string]string{}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func leafCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

// LoadFile reads a spec from a .json, .yaml or .yml file.
func LoadFile(path string) (*ComplianceSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse spec %s: %w", path, err)
		}
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load spec %s: %w", path, err)
	}
	return s, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}
