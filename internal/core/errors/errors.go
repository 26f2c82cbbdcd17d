package errors

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
	CodeNotSupported    ErrorCode = "NOT_SUPPORTED"

	// Conversion taxonomy. Only CodeParseInput and CodeEmptyGroup ever fail a
	// group; the others are resolved locally and surfaced as diagnostics.
	CodeUnresolvedReference     ErrorCode = "UNRESOLVED_REFERENCE"
	CodeConflict                ErrorCode = "CONFLICT"
	CodeParseInput              ErrorCode = "PARSE_INPUT"
	CodeClassificationAmbiguity ErrorCode = "CLASSIFICATION_AMBIGUITY"
	CodeEmptyGroup              ErrorCode = "EMPTY_GROUP"
)

type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

const (
	CtxPath      = "path"
	CtxOperation = "operation"
	CtxLanguage  = "language"
	CtxSymbol    = "symbol"
	CtxGroup     = "group"
	CtxFile      = "file"
	CtxLine      = "line"
)

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" %v", e.Context)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// UnresolvedReference builds the error raised for a use site that matches no
// declaration. The site is excluded from rewriting, never fatal.
func UnresolvedReference(file, name string, line int, reason string) error {
	de := &DomainError{Code: CodeUnresolvedReference, Message: fmt.Sprintf("unresolved reference %q", name)}
	de.WithContext(CtxFile, file).WithContext(CtxLine, line)
	if reason != "" {
		de.WithContext("reason", reason)
	}
	return de
}

// ParseInput marks a file the front-end could not turn into an annotated tree.
func ParseInput(file string, err error) error {
	de := &DomainError{Code: CodeParseInput, Message: "cannot build annotated tree", Err: err}
	return de.WithContext(CtxFile, file)
}

// AddContext attaches a context value, wrapping foreign errors as internal.
func AddContext(err error, key string, value interface{}) error {
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return de
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost DomainError, or CodeInternal.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
