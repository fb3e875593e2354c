// Package errors wraps the standard library errors package with categorised,
// component-tagged errors. Callers import it in place of "errors" so that
// Is/As/Join keep working while errors also carry a Category the engine and the
// API can branch on.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sort"
	"strings"
)

// Category classifies an error for counting, metrics and HTTP mapping.
type Category string

const (
	CategoryGeneric           Category = "generic"
	CategoryValidation        Category = "validation"
	CategoryTransientIO       Category = "transient-io"
	CategoryConflict          Category = "conflict"
	CategoryNotFound          Category = "not-found"
	CategoryInvalidTransition Category = "invalid-transition"
	CategoryDatabase          Category = "database"
	CategoryConfiguration     Category = "configuration"
	CategoryCancelled         Category = "cancelled"
)

// EnhancedError is an error annotated with component, category and context.
type EnhancedError struct {
	Err       error
	component string
	category  Category
	context   map[string]any
}

func (e *EnhancedError) Error() string {
	if len(e.context) == 0 {
		return e.Err.Error()
	}
	keys := make([]string, 0, len(e.context))
	for k := range e.context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.context[k]))
	}
	return fmt.Sprintf("%s [%s]", e.Err.Error(), strings.Join(parts, " "))
}

func (e *EnhancedError) Unwrap() error { return e.Err }

// Component returns the component that raised the error.
func (e *EnhancedError) Component() string { return e.component }

// Category returns the error category.
func (e *EnhancedError) Category() Category { return e.category }

// Context returns a copy of the attached context values.
func (e *EnhancedError) Context() map[string]any {
	return maps.Clone(e.context)
}

// ErrorBuilder assembles an EnhancedError.
type ErrorBuilder struct {
	err *EnhancedError
}

// New starts a builder around err.
func New(err error) *ErrorBuilder {
	if err == nil {
		err = stderrors.New("unknown error")
	}
	return &ErrorBuilder{err: &EnhancedError{Err: err, category: CategoryGeneric}}
}

// Newf starts a builder around a formatted message. %w is honoured.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

func (b *ErrorBuilder) Component(name string) *ErrorBuilder {
	b.err.component = name
	return b
}

func (b *ErrorBuilder) Category(c Category) *ErrorBuilder {
	b.err.category = c
	return b
}

func (b *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if b.err.context == nil {
		b.err.context = make(map[string]any)
	}
	b.err.context[key] = value
	return b
}

// Build returns the finished error.
func (b *ErrorBuilder) Build() *EnhancedError {
	return b.err
}

// CategoryOf reports the category of the outermost EnhancedError in the chain,
// or CategoryGeneric when none is present.
func CategoryOf(err error) Category {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.category
	}
	return CategoryGeneric
}

// IsCategory reports whether any EnhancedError in the chain has category c.
func IsCategory(err error, c Category) bool {
	for err != nil {
		if ee, ok := err.(*EnhancedError); ok && ee.category == c {
			return true
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				if IsCategory(e, c) {
					return true
				}
			}
			return false
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Standard library passthroughs.

func Is(err, target error) bool    { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }
func Unwrap(err error) error        { return stderrors.Unwrap(err) }
func Join(errs ...error) error      { return stderrors.Join(errs...) }

// NewStd creates a plain sentinel error.
func NewStd(text string) error { return stderrors.New(text) }
