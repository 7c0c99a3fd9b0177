package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chorizite/plugin-index/pkg/index"
	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v6"
)

// Schemas returns the JSON schema documents of the published files, keyed by
// file name.
func (a *Assembler) Schemas() (map[string][]byte, error) {
	docs := map[string]any{
		index.IndexSchemaFile:            &index.GlobalIndex{},
		index.PluginDetailsSchemaFile:    &index.PluginDetails{},
		index.PlatformReleasesSchemaFile: &index.PlatformReleases{},
	}
	ret := make(map[string][]byte, len(docs))
	for name, v := range docs {
		r := &jsonschema.Reflector{}
		s := r.Reflect(v)
		s.ID = jsonschema.ID(a.SchemaURL(name))
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode schema %s: %w", name, err)
		}
		ret[name] = append(data, '\n')
	}
	return ret, nil
}

type ValidationError struct {
	Document string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s does not match its schema: %v", e.Document, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validator checks documents against compiled schemas.
type Validator struct {
	schemas map[string]*validator.Schema
}

// NewValidator compiles the given schema documents keyed by file name.
func NewValidator(schemas map[string][]byte) (*Validator, error) {
	c := validator.NewCompiler()
	locations := make(map[string]string, len(schemas))
	for name, data := range schemas {
		doc, err := validator.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode schema %s: %w", name, err)
		}
		loc := name
		if m, ok := doc.(map[string]any); ok {
			if id, ok := m["$id"].(string); ok && id != "" {
				loc = id
			}
		}
		if err := c.AddResource(loc, doc); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
		}
		locations[name] = loc
	}
	v := &Validator{schemas: make(map[string]*validator.Schema, len(schemas))}
	for name, loc := range locations {
		s, err := c.Compile(loc)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		v.schemas[name] = s
	}
	return v, nil
}

// Validate checks the JSON document named document against schema.
func (v *Validator) Validate(schema, document string, data []byte) error {
	s, ok := v.schemas[schema]
	if !ok {
		return &ValidationError{Document: document, Err: fmt.Errorf("unknown schema %s", schema)}
	}
	inst, err := validator.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return &ValidationError{Document: document, Err: err}
	}
	if err := s.Validate(inst); err != nil {
		return &ValidationError{Document: document, Err: err}
	}
	return nil
}

// ValidateFiles checks every JSON file that has a schema.
func (v *Validator) ValidateFiles(files Files) error {
	var errs []error
	for _, f := range files {
		if f.Schema == "" {
			continue
		}
		if err := v.Validate(f.Schema, f.Path, f.Data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
