package diag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of non-diagnostic errors.
type ErrorType string

const (
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeBuild    ErrorType = "build"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeGenerate ErrorType = "generate"
	ErrorTypeInternal ErrorType = "internal"
)

// KilnError is a structured error for failures outside template
// diagnostics: unreadable files, broken configuration, gofmt failures.
type KilnError struct {
	Type      ErrorType
	Code      string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Component string
	FilePath  string
	Line      int
	Column    int
}

// Error implements the error interface.
func (e *KilnError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}
	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}
	return result
}

// Unwrap returns the underlying cause error.
func (e *KilnError) Unwrap() error {
	return e.Cause
}

// Is matches errors with the same type and code.
func (e *KilnError) Is(target error) bool {
	var t *KilnError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// WithContext adds context information to the error.
func (e *KilnError) WithContext(key string, value interface{}) *KilnError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithLocation adds file location information.
func (e *KilnError) WithLocation(filePath string, line, column int) *KilnError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column
	return e
}

// WithComponent adds component context.
func (e *KilnError) WithComponent(component string) *KilnError {
	e.Component = component
	return e
}

// NewIOError creates an IO error.
func NewIOError(code, message string, cause error) *KilnError {
	return &KilnError{Type: ErrorTypeIO, Code: code, Message: message, Cause: cause}
}

// NewBuildError creates a build error.
func NewBuildError(code, message string, cause error) *KilnError {
	return &KilnError{Type: ErrorTypeBuild, Code: code, Message: message, Cause: cause}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *KilnError {
	return &KilnError{Type: ErrorTypeConfig, Code: code, Message: message, Cause: cause}
}

// NewGenerateError creates a code generation error.
func NewGenerateError(code, message string, cause error) *KilnError {
	return &KilnError{Type: ErrorTypeGenerate, Code: code, Message: message, Cause: cause}
}

// Error codes
const (
	ErrCodeFileRead      = "ERR_FILE_READ"
	ErrCodeFileWrite     = "ERR_FILE_WRITE"
	ErrCodeGoParse       = "ERR_GO_PARSE"
	ErrCodeFormat        = "ERR_GO_FORMAT"
	ErrCodeDirective     = "ERR_DIRECTIVE"
	ErrCodeInvalidConfig = "ERR_INVALID_CONFIG"
	ErrCodeCompile       = "ERR_COMPILE"
)

// GetKilnError extracts a KilnError from an error chain.
func GetKilnError(err error) (*KilnError, bool) {
	var ke *KilnError
	ok := errors.As(err, &ke)
	return ke, ok
}
