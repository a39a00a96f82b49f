package mapper

import (
	"errors"
	"fmt"
)

// Schema defects. A record type that fails validation fails the same way, with the same
// message, from every entry point.
var (
	ErrNotRecord                    = errors.New("type does not implement mapper.Record")
	ErrNoEmptyConstructor           = errors.New("record type has no zero-argument constructor")
	ErrEmptyConstructorInaccessible = errors.New("record type's zero-argument constructor is inaccessible")
	ErrInvalidTag                   = errors.New("malformed litetable tag")
	ErrFieldsMappedToSameColumn     = errors.New("fields are mapped to the same column")
	ErrUnsupportedFieldType         = errors.New("field type is not supported for column mapping")
	ErrMappedColumnCantBePrimitive  = errors.New("mapped column can't be a non-nilable scalar")
	ErrMappedColumnCantBeStatic     = errors.New("mapped column can't be a blank field")
	ErrMappedColumnCantBeTransient  = errors.New("mapped column can't be an unexported field")
	ErrMissingColumnFields          = errors.New("record type has no fields mapped to a column")
	ErrMissingRowKeyFields          = errors.New("record type has no fields mapped to the row key")
	ErrTableNameFailed              = errors.New("record type's table name could not be resolved")
)

// Row key failures.
var (
	ErrRowKeyCantBeEmpty      = errors.New("row key can't be empty")
	ErrRowKeyCantBeComposed   = errors.New("row key can't be composed")
	ErrRowKeyCouldNotBeParsed = errors.New("row key could not be parsed")
)

var (
	// ErrObjectNotInstantiatable is returned when a fresh record could not be initialized for
	// decoding.
	ErrObjectNotInstantiatable = errors.New("record could not be instantiated")
	// ErrColumnNotEncodable is returned when a field value is rejected by its codec.
	ErrColumnNotEncodable = errors.New("column value could not be encoded")
	// ErrColumnNotDecodable is returned when a stored cell is not a valid encoding of its field.
	ErrColumnNotDecodable = errors.New("column value could not be decoded")
	// ErrMixedRowKeys is returned when cells handed over as a single row belong to several rows.
	ErrMixedRowKeys = errors.New("cells belong to more than one row")
	// ErrNilArgument reports a caller bug: a required argument was nil.
	ErrNilArgument = errors.New("required argument is nil")
)

// Error wraps a sentinel error with additional context and the failure that caused it
type Error struct {
	Err     error  // The underlying sentinel error
	Context string // Additional error context
	Cause   error  // The triggering failure, if any
}

// Error satisfies the error interface
func (e *Error) Error() string {
	msg := e.Err.Error()
	if e.Context != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Context)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes both the sentinel and the cause to errors.Is/As
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// newError creates a new mapper error with context
func newError(err error, format string, args ...interface{}) *Error {
	return &Error{
		Err:     err,
		Context: fmt.Sprintf(format, args...),
	}
}

// wrapError creates a new mapper error with context around a cause
func wrapError(err, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Err:     err,
		Context: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}
