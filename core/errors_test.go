package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorFields(t *testing.T) {

	var v validation
	assert.NoError(t, v.err())

	v.add("name", "first")
	v.add("name", "second")
	v.add("title", "too long")

	err := fmt.Errorf("creating: %w", v.err())

	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{"name": "first", "title": "too long"}, verr.Fields())
	assert.Len(t, verr.Unwrap(), 3)
	assert.Contains(t, err.Error(), "name: second")

	var fe *FieldError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, "name", fe.Field)
}

func TestIntegrityErrorMessage(t *testing.T) {
	var err = &IntegrityError{Params: []string{"zeta", "alpha"}}
	assert.Equal(t, "integrity error: unexpected parameters: alpha, zeta", err.Error())
	assert.Equal(t, []string{"zeta", "alpha"}, err.Params)
}

func TestNotFoundErrorIs(t *testing.T) {
	var err error = &NotFoundError{Kind: "group", Ref: "david"}
	assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", err), ErrNotFound))
	assert.Equal(t, "group not found: david", err.Error())
}

func TestAttrsCheck(t *testing.T) {
	assert.NoError(t, Attrs{"name": "x", "log_message": "hi"}.check(groupFields))

	err := Attrs{"name": "x", "foo": "bar"}.check(groupFields)
	var ierr *IntegrityError
	assert.True(t, errors.As(err, &ierr))
	assert.Equal(t, []string{"foo"}, ierr.Params)

	assert.Equal(t, "hi", Attrs{"log_message": " hi "}.message())
}
