package errors

import (
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type codedError struct{ code string }

func (e *codedError) Error() string { return e.code }

func TestAsType(t *testing.T) {
	err := Wrap(&codedError{code: "TOKEN_EXPIRED"}, "consume setup token")

	coded, ok := AsType[*codedError](err)
	assert.True(t, ok)
	assert.Equal(t, "TOKEN_EXPIRED", coded.code)

	_, ok = AsType[*codedError](pkgerrors.New("plain"))
	assert.False(t, ok)
}

func TestWrapKeepsCauseAndStack(t *testing.T) {
	sentinel := pkgerrors.New("boom")
	err := Wrapf(sentinel, "merchant %s", "m-1")

	assert.True(t, Is(err, sentinel))
	assert.Equal(t, "merchant m-1: boom", err.Error())
	assert.Contains(t, fmt.Sprintf("%+v", err), "TestWrapKeepsCauseAndStack")
	assert.NoError(t, Wrap(nil, "ignored"))
}
