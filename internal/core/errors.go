package core

import "fmt"

// errKind discriminates the four leaf error types into a closed set. It is
// unexported: callers distinguish error kinds with errors.As against the
// concrete type, never by comparing errKind values directly.
type errKind int

const (
	kindParse errKind = iota
	kindValidation
	kindCompilation
	kindProfileConfig
)

// ErrorResponse is the wire-shape every leaf error collapses to when
// surfaced to a caller: a stable machine-readable Code, a human Message,
// and an optional Details bag for structured context (paths, field names,
// offending values).
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ParseError reports a malformed QueryPlan JSON document: a value at Path
// did not match Expected.
type ParseError struct {
	kind     errKind
	Code     string
	Path     string
	Got      string
	Expected string
	Message  string
}

func (e *ParseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("parse error at %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("parse error at %s: got %s, expected %s", e.Path, e.Got, e.Expected)
}

// ToErrorResponse renders the error as the wire-shape ErrorResponse.
func (e *ParseError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Code:    e.Code,
		Message: e.Error(),
		Details: map[string]any{
			"path":     e.Path,
			"got":      e.Got,
			"expected": e.Expected,
		},
	}
}

// NewParseError builds a ParseError with the given code, path, and
// got/expected pair.
func NewParseError(code, path, got, expected string) *ParseError {
	return &ParseError{kind: kindParse, Code: code, Path: path, Got: got, Expected: expected}
}

// ValidationError reports a QueryPlan that is well-formed JSON but violates
// a schema, dialect, or semantic invariant. Entity/Name/Field identify the
// offending plan fragment the way the teacher's ValidationError identifies
// an offending schema fragment.
type ValidationError struct {
	kind    errKind
	Code    string
	Entity  string
	Name    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Entity != "" && e.Field != "":
		return fmt.Sprintf("validation error [%s] on %s %q field %q: %s", e.Code, e.Entity, e.Name, e.Field, e.Message)
	case e.Entity != "":
		return fmt.Sprintf("validation error [%s] on %s %q: %s", e.Code, e.Entity, e.Name, e.Message)
	default:
		return fmt.Sprintf("validation error [%s]: %s", e.Code, e.Message)
	}
}

// ToErrorResponse renders the error as the wire-shape ErrorResponse.
func (e *ValidationError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Code:    e.Code,
		Message: e.Error(),
		Details: map[string]any{
			"entity": e.Entity,
			"name":   e.Name,
			"field":  e.Field,
		},
	}
}

// NewValidationError builds a ValidationError with the given code and
// offending entity/name/field triple.
func NewValidationError(code, entity, name, field, message string) *ValidationError {
	return &ValidationError{kind: kindValidation, Code: code, Entity: entity, Name: name, Field: field, Message: message}
}

// CompilationError reports a failure turning a validated, policy-applied
// QueryPlan into SQL: an unsupported dialect capability, a runtime
// parameter mismatch, or an internal compiler invariant violation.
type CompilationError struct {
	kind    errKind
	Code    string
	Message string
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("compilation error [%s]: %s", e.Code, e.Message)
}

// ToErrorResponse renders the error as the wire-shape ErrorResponse.
func (e *CompilationError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{Code: e.Code, Message: e.Error()}
}

// NewCompilationError builds a CompilationError with the given code.
func NewCompilationError(code, message string) *CompilationError {
	return &CompilationError{kind: kindCompilation, Code: code, Message: message}
}

// ProfileConfigError reports an invalid DialectProfile: a capability
// declared without the capabilities it depends on.
type ProfileConfigError struct {
	kind       errKind
	Code       string
	Capability string
	Message    string
}

func (e *ProfileConfigError) Error() string {
	return fmt.Sprintf("profile config error [%s] on capability %q: %s", e.Code, e.Capability, e.Message)
}

// ToErrorResponse renders the error as the wire-shape ErrorResponse.
func (e *ProfileConfigError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Code:    e.Code,
		Message: e.Error(),
		Details: map[string]any{"capability": e.Capability},
	}
}

// NewProfileConfigError builds a ProfileConfigError for the given capability.
func NewProfileConfigError(code, capability, message string) *ProfileConfigError {
	return &ProfileConfigError{kind: kindProfileConfig, Code: code, Capability: capability, Message: message}
}
