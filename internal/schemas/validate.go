// Package schemas provides the JSON Schemas that constrain provider responses and the
// validation helpers used on provider output and CLI artifacts.
package schemas

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ResolveSchemaPath finds a repo-relative schema file from the working
// directory or up to two parents, so commands and tests resolve the same file.
// Returns "" when nothing matches.
func ResolveSchemaPath(relativePath string) string {
	for _, candidate := range []string{
		relativePath,
		filepath.Join("..", relativePath),
		filepath.Join("..", "..", relativePath),
	} {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err == nil {
			return abs
		}
	}
	return ""
}

// FieldError is one failed constraint. Field is the dotted path, "(root)" for the document.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every constraint a document failed.
type ValidationError struct {
	Errors []FieldError
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, fe := range ve.Errors {
		fmt.Fprintf(&sb, "  %d. %s: %s\n", i+1, fe.Field, fe.Message)
	}
	return sb.String()
}

// SchemaLoadError means the schema itself could not be read or compiled.
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// ValidateDocument validates jsonContent against an in-memory schema document.
func ValidateDocument(schema map[string]any, jsonContent string) error {
	return validate("(document schema)", gojsonschema.NewGoLoader(schema), jsonContent)
}

// ValidateJSONString validates jsonContent against a schema given as JSON text.
func ValidateJSONString(schemaContent, jsonContent string) error {
	return validate("(string schema)", gojsonschema.NewStringLoader(schemaContent), jsonContent)
}

// ValidateJSON validates the JSON file at jsonPath against the schema file at schemaPath.
func ValidateJSON(schemaPath, jsonPath string) error {
	schemaContent, err := readFile("schema", schemaPath)
	if err != nil {
		return err
	}
	jsonContent, err := readFile("JSON", jsonPath)
	if err != nil {
		return err
	}
	return validate(schemaPath, gojsonschema.NewStringLoader(schemaContent), jsonContent)
}

func readFile(kind, path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s file not found: %s", kind, path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s file %s: %w", kind, path, err)
	}
	return string(data), nil
}

// validate compiles the schema first so a broken schema is reported as a
// SchemaLoadError and a broken document as a plain error.
func validate(label string, schemaLoader gojsonschema.JSONLoader, jsonContent string) error {
	schema, err := gojsonschema.NewSchema(schemaLoader)
	if err != nil {
		return &SchemaLoadError{Path: label, Message: "failed to compile schema", Cause: err}
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(jsonContent))
	if err != nil {
		return fmt.Errorf("failed to load JSON document: %w", err)
	}
	return resultError(result)
}

// resultError converts a failed result into a *ValidationError, or nil when valid.
func resultError(result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}
	ve := &ValidationError{Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		ve.Errors = append(ve.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return ve
}
