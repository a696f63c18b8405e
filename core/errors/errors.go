// Package errors provides standardized error types and helpers for the ndu codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the core failure taxonomy
var (
	// ErrFormat indicates malformed binary data (header, section, offset)
	ErrFormat = errors.New("malformed data")
	// ErrGrammar indicates a text grammar violation (NDUGFF, recipes)
	ErrGrammar = errors.New("grammar violation")
	// ErrRange indicates a numeric literal or id outside its legal bounds
	ErrRange = errors.New("value out of range")
	// ErrReference indicates an unresolved selection or duplicate id
	ErrReference = errors.New("unresolved reference")
	// ErrKindMismatch indicates a value shape that does not match its declared kind
	ErrKindMismatch = errors.New("kind mismatch")
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
)

// FormatError represents malformed binary input with context
type FormatError struct {
	Format  string // Format being decoded (e.g., "GFF", "ERF", "KEY", "BIF")
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed %s data: %s", e.Format, e.Message)
}

func (e *FormatError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrFormat
}

// GrammarError represents a text syntax violation with its source line
type GrammarError struct {
	Format  string // Grammar being parsed (e.g., "NDUGFF", "recipes")
	Line    int    // 1-based line number of the offending line (0 if unknown)
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *GrammarError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s syntax error at line %d: %s", e.Format, e.Line, e.Message)
	}
	return fmt.Sprintf("%s syntax error: %s", e.Format, e.Message)
}

func (e *GrammarError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrGrammar
}

// RangeError represents a numeric value outside the legal bounds of its kind
type RangeError struct {
	Kind  string // Target kind or field (e.g., "gff.Byte", "source id")
	Value string // Offending value as written
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("value %s out of range for %s", e.Value, e.Kind)
}

func (e *RangeError) Unwrap() error {
	return ErrRange
}

// ReferenceError represents a duplicate or unresolvable id
type ReferenceError struct {
	Resource string // Resource kind (e.g., "source", "recipe")
	ID       int    // Offending id
	Message  string // Error details
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Resource, e.ID, e.Message)
}

func (e *ReferenceError) Unwrap() error {
	return ErrReference
}

// KindMismatchError represents a JSON shape that does not match its declared kind
type KindMismatchError struct {
	Field   string // Field name, if known
	Kind    string // Declared kind
	Message string // Error details
}

func (e *KindMismatchError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("field %q: %s value %s", e.Field, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s value %s", e.Kind, e.Message)
}

func (e *KindMismatchError) Unwrap() error {
	return ErrKindMismatch
}

// Helper functions for creating common errors

// NewFormat creates a FormatError
func NewFormat(format, message string) *FormatError {
	return &FormatError{Format: format, Message: message}
}

// NewFormatf creates a FormatError with a formatted message
func NewFormatf(format, msg string, args ...interface{}) *FormatError {
	return &FormatError{Format: format, Message: fmt.Sprintf(msg, args...)}
}

// NewGrammar creates a GrammarError
func NewGrammar(format string, line int, message string) *GrammarError {
	return &GrammarError{Format: format, Line: line, Message: message}
}

// NewGrammarf creates a GrammarError with a formatted message
func NewGrammarf(format string, line int, msg string, args ...interface{}) *GrammarError {
	return &GrammarError{Format: format, Line: line, Message: fmt.Sprintf(msg, args...)}
}

// NewRange creates a RangeError
func NewRange(kind, value string) *RangeError {
	return &RangeError{Kind: kind, Value: value}
}

// NewReference creates a ReferenceError
func NewReference(resource string, id int, message string) *ReferenceError {
	return &ReferenceError{Resource: resource, ID: id, Message: message}
}

// NewKindMismatch creates a KindMismatchError
func NewKindMismatch(field, kind, message string) *KindMismatchError {
	return &KindMismatchError{Field: field, Kind: kind, Message: message}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
