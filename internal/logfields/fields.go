package logfields

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Log Fields.
const (
	FieldDID          = "did"
	FieldID           = "id"
	FieldKeyID        = "key-id"
	FieldMethod       = "method"
	FieldRequestID    = "request-id"
	FieldRequestURL   = "request-url"
	FieldOperation    = "operation"
	FieldStatus       = "status"
	FieldTxID         = "txid"
	FieldHTTPStatus   = "http-status"
	FieldAttempt      = "attempt"
	FieldDuration     = "duration"
	FieldSize         = "size"
	FieldCount        = "count"
	FieldController   = "controller"
	FieldContractAddr = "contract-address"
	FieldPath         = "path"
	FieldValid        = "valid"
)

// WithDID sets the did field.
func WithDID(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldDID, value)
}

// WithID sets the id field.
func WithID(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldID, value)
}

// WithKeyID sets the key-id field.
func WithKeyID(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldKeyID, value)
}

// WithMethod sets the method field.
func WithMethod(value string) zap.Field {
	return zap.String(FieldMethod, value)
}

// WithRequestID sets the request-id field.
func WithRequestID(value string) zap.Field {
	return zap.String(FieldRequestID, value)
}

// WithRequestURL sets the request-url field.
func WithRequestURL(value string) zap.Field {
	return zap.String(FieldRequestURL, value)
}

// WithOperation sets the operation field.
func WithOperation(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldOperation, value)
}

// WithStatus sets the status field.
func WithStatus(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldStatus, value)
}

// WithTxID sets the txid field.
func WithTxID(value string) zap.Field {
	return zap.String(FieldTxID, value)
}

// WithHTTPStatus sets the http-status field.
func WithHTTPStatus(value int) zap.Field {
	return zap.Int(FieldHTTPStatus, value)
}

// WithAttempt sets the attempt field.
func WithAttempt(value int) zap.Field {
	return zap.Int(FieldAttempt, value)
}

// WithDuration sets the duration field.
func WithDuration(value time.Duration) zap.Field {
	return zap.Duration(FieldDuration, value)
}

// WithSize sets the size field.
func WithSize(value int) zap.Field {
	return zap.Int(FieldSize, value)
}

// WithCount sets the count field.
func WithCount(value int) zap.Field {
	return zap.Int(FieldCount, value)
}

// WithController sets the controller field.
func WithController(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldController, value)
}

// WithContractAddress sets the contract-address field.
func WithContractAddress(value string) zap.Field {
	return zap.String(FieldContractAddr, value)
}

// WithPath sets the path field.
func WithPath(value string) zap.Field {
	return zap.String(FieldPath, value)
}

// WithValid sets the valid field.
func WithValid(value bool) zap.Field {
	return zap.Bool(FieldValid, value)
}
