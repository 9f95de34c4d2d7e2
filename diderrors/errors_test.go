package diderrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorf(t *testing.T) {
	err := Errorf(ErrMalformedDocument, "missing %s", "expires")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedDocument)
	assert.Equal(t, "malformed DID document: missing expires", err.Error())
}

func TestKindErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{name: "already signed", err: ErrAlreadySigned, kind: ErrIllegalState},
		{name: "already sealed", err: ErrAlreadySealed, kind: ErrIllegalState},
		{name: "no effective controller", err: ErrNoEffectiveController, kind: ErrIllegalState},
		{name: "not controller", err: ErrNotController, kind: ErrIllegalArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("failed to seal ticket: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.err)
			assert.ErrorIs(t, wrapped, tt.kind)
		})
	}

	assert.False(t, errors.Is(ErrNotController, ErrIllegalState))
}

func TestServerError(t *testing.T) {
	err := fmt.Errorf("failed to resolve: %w", &ServerError{Code: -32602, Message: "invalid params"})

	assert.ErrorIs(t, err, ErrDIDBackend)

	var serr *ServerError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, -32602, serr.Code)
	assert.Contains(t, err.Error(), "invalid params")
}

func TestTransient(t *testing.T) {
	base := errors.New("connection reset")

	assert.False(t, IsTransient(base))
	assert.True(t, IsTransient(NewTransient(base)))
	assert.True(t, IsTransient(fmt.Errorf("post failed: %w", NewTransient(base))))
	assert.ErrorIs(t, NewTransient(base), base)
}
