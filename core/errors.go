package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var (
	ErrNotAuthorized = errors.New("not authorized")
	ErrNotFound      = errors.New("not found")
	ErrDuplicate     = errors.New("duplicate") // returned by stores when a unique constraint is violated
)

// NotFoundError is returned when a reference can't be resolved.
type NotFoundError struct {
	Kind string // "group", "package", "revision", "user"
	Ref  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Ref)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// FieldError annotates a single form field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationError collects one or more FieldErrors. It is recoverable: the caller can show the form again.
type ValidationError struct {
	multi *multierror.Error
}

func (e *ValidationError) Error() string {
	return e.multi.Error()
}

// Unwrap returns the FieldErrors.
func (e *ValidationError) Unwrap() []error {
	return e.multi.WrappedErrors()
}

// Fields returns field name -> message. If a field has several errors, the first one wins.
func (e *ValidationError) Fields() map[string]string {
	var fields = make(map[string]string)
	for _, err := range e.multi.Errors {
		var fe *FieldError
		if errors.As(err, &fe) {
			if _, ok := fields[fe.Field]; !ok {
				fields[fe.Field] = fe.Message
			}
		}
	}
	return fields
}

// validation accumulates FieldErrors.
type validation struct {
	result *multierror.Error
}

func (v *validation) add(field, format string, args ...interface{}) {
	v.result = multierror.Append(v.result, &FieldError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// err returns nil or a *ValidationError.
func (v *validation) err() error {
	if v.result == nil || len(v.result.Errors) == 0 {
		return nil
	}
	return &ValidationError{multi: v.result}
}

func fieldError(field, format string, args ...interface{}) error {
	var v validation
	v.add(field, format, args...)
	return v.err()
}

// IntegrityError means that the request itself is malformed, for example it contains unknown parameters.
// Unlike a ValidationError, it is not recoverable by showing the form again.
type IntegrityError struct {
	Params []string
}

func (e *IntegrityError) Error() string {
	var params = append([]string(nil), e.Params...)
	sort.Strings(params)
	return "integrity error: unexpected parameters: " + strings.Join(params, ", ")
}
