// Package errors provides centralized error handling with component and
// category metadata for structured logging and HTTP status mapping.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryValidation    ErrorCategory = "validation"
	CategoryDatabase      ErrorCategory = "database"
	CategoryNetwork       ErrorCategory = "network"
	CategoryModelInit     ErrorCategory = "model-initialization"
	CategoryModelLoad     ErrorCategory = "model-loading"
	CategoryImageFetch    ErrorCategory = "image-fetch"
	CategoryImageDecode   ErrorCategory = "image-decode"
	CategoryInference     ErrorCategory = "inference"
	CategoryMissingInput  ErrorCategory = "missing-input"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryGeneric       ErrorCategory = "generic"
)

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error          // Original error
	Component string         // Component where the error occurred
	Category  ErrorCategory  // Error category for grouping
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches on category when the target is also an EnhancedError,
// otherwise defers to the wrapped error chain.
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return stderrors.Is(ee.Err, target)
}

// LogAttrs returns the metadata as alternating key/value pairs for slog.
func (ee *EnhancedError) LogAttrs() []any {
	attrs := []any{
		"component", ee.Component,
		"category", string(ee.Category),
	}
	for k, v := range ee.Context {
		attrs = append(attrs, k, v)
	}
	return attrs
}

// ErrorBuilder provides a fluent interface for building enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New creates an ErrorBuilder wrapping the given error.
// Wrapping an already enhanced error preserves its metadata unless overridden.
func New(err error) *ErrorBuilder {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		ctx := maps.Clone(ee.Context)
		if ctx == nil {
			ctx = make(map[string]any)
		}
		return &ErrorBuilder{
			err:       err,
			component: ee.Component,
			category:  ee.Category,
			context:   ctx,
		}
	}
	return &ErrorBuilder{
		err:      err,
		category: CategoryGeneric,
		context:  make(map[string]any),
	}
}

// Newf creates an ErrorBuilder from a formatted message.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context adds a key-value pair to the error context
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// Build creates the final EnhancedError
func (eb *ErrorBuilder) Build() error {
	return &EnhancedError{
		Err:       eb.err,
		Component: eb.component,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
}

// CategoryOf returns the category of an error, or CategoryGeneric for
// errors that carry no metadata.
func CategoryOf(err error) ErrorCategory {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.Category
	}
	return CategoryGeneric
}

// HasCategory reports whether any error in the chain carries the category.
func HasCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.Category == category
	}
	return false
}

// Standard library passthroughs so callers only import this package.

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join returns an error wrapping the given errors.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
