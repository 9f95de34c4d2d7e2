// Package diderrors defines the error taxonomy shared by the DID packages.
//
// Callers classify failures with errors.Is against the sentinels below; every
// package wraps them with fmt.Errorf("...: %w", ...) so the message keeps the
// context of where the failure happened.
package diderrors

import (
	"errors"
	"fmt"
)

// Grammar violations.
var (
	ErrMalformedDID    = errors.New("malformed DID")
	ErrMalformedDIDURL = errors.New("malformed DIDURL")
)

// Structural or semantic violations found when sanitizing parsed objects.
var (
	ErrMalformedDocument        = errors.New("malformed DID document")
	ErrMalformedCredential      = errors.New("malformed credential")
	ErrMalformedPresentation    = errors.New("malformed presentation")
	ErrMalformedIDChainRequest  = errors.New("malformed ID chain request")
	ErrMalformedTransaction     = errors.New("malformed ID chain transaction")
	ErrMalformedTransferTicket  = errors.New("malformed transfer ticket")
	ErrMalformedResolveResult   = errors.New("malformed resolve result")
	ErrMalformedResolveResponse = errors.New("malformed resolve response")
	ErrMalformedResolveRequest  = errors.New("malformed resolve request")
)

// Usage errors.
var (
	ErrInvalidKey           = errors.New("invalid key")
	ErrIllegalState         = errors.New("illegal state")
	ErrIllegalArgument      = errors.New("illegal argument")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrWrongPassword        = errors.New("wrong password")
)

// Resolution and backend errors.
var (
	ErrDIDResolve       = errors.New("DID resolve error")
	ErrDIDBackend       = errors.New("DID backend error")
	ErrDIDNotFound      = errors.New("DID not found")
	ErrDIDDeactivated   = errors.New("DID deactivated")
	ErrRecursiveResolve = errors.New("recursive resolve")
)

// Ticket and controller errors. They are states of the illegal-state and
// illegal-argument families and match those sentinels with errors.Is as well.
var (
	ErrAlreadySigned         = &kindError{msg: "already signed", kind: ErrIllegalState}
	ErrAlreadySealed         = &kindError{msg: "already sealed", kind: ErrIllegalState}
	ErrNoEffectiveController = &kindError{msg: "no effective controller", kind: ErrIllegalState}
	ErrNotController         = &kindError{msg: "not a controller", kind: ErrIllegalArgument}
	ErrNotCustomizedDID      = &kindError{msg: "not a customized DID", kind: ErrIllegalState}
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// Errorf wraps sentinel with a formatted message.
func Errorf(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// ServerError is an error reported by the resolver in a JSON-RPC error object.
type ServerError struct {
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: code: %d, message: %s", e.Code, e.Message)
}

// Unwrap classifies server errors as backend errors.
func (e *ServerError) Unwrap() error { return ErrDIDBackend }

type transientError struct {
	err error
}

// NewTransient marks err as transient: the same call may succeed if retried.
func NewTransient(err error) error {
	return &transientError{err: err}
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

// IsTransient reports whether err, or any error it wraps, is transient.
func IsTransient(err error) bool {
	var terr *transientError
	return errors.As(err, &terr)
}
