// Package schemas validates model responses against the embedded JSON Schemas.
package schemas

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	schemafiles "github.com/jonathan/talent-sourcer/schemas"
)

// Schema names.
const (
	Compatibility   = "compatibility"
	Classification  = "classification"
	Topics          = "topics"
	TeamReasoning   = "team_reasoning"
	JobRequirements = "job_requirements"
)

const suffix = ".schema.json"

// ErrUnknownSchema is returned for a name with no embedded schema.
var ErrUnknownSchema = errors.New("unknown schema")

// Violation is one failed constraint. Field is "(root)" for document-level failures.
type Violation struct {
	Field   string
	Message string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// ValidationError lists every constraint a document broke.
type ValidationError struct {
	Schema     string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%s validation failed: %s", e.Schema, strings.Join(parts, "; "))
}

var (
	compileOnce sync.Once
	compiled    map[string]*gojsonschema.Schema
	compileErr  error
)

func registry() (map[string]*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled, compileErr = compileAll(schemafiles.FS)
	})
	return compiled, compileErr
}

// compileAll compiles every *.schema.json file at the root of fsys, keyed by name.
func compileAll(fsys fs.FS) (map[string]*gojsonschema.Schema, error) {
	files, err := fs.Glob(fsys, "*"+suffix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*gojsonschema.Schema, len(files))
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", file, err)
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", file, err)
		}
		out[strings.TrimSuffix(path.Base(file), suffix)] = s
	}
	return out, nil
}

// Names lists the embedded schemas in sorted order.
func Names() []string {
	reg, err := registry()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(reg))
	for name := range reg {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load returns the compiled schema for name.
func Load(name string) (*gojsonschema.Schema, error) {
	reg, err := registry()
	if err != nil {
		return nil, err
	}
	s, ok := reg[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}
	return s, nil
}

// Validate checks a JSON document against the named schema. Constraint failures come back
// as a *ValidationError.
func Validate(name, document string) error {
	s, err := Load(name)
	if err != nil {
		return err
	}
	result, err := s.Validate(gojsonschema.NewStringLoader(document))
	if err != nil {
		return fmt.Errorf("failed to parse %s document: %w", name, err)
	}
	if result.Valid() {
		return nil
	}
	ve := &ValidationError{Schema: name, Violations: make([]Violation, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		ve.Violations = append(ve.Violations, Violation{Field: field, Message: desc.Description()})
	}
	return ve
}
