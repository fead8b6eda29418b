package helpers

import (
	"errors"
	"fmt"
)

// ErrCoercion is wrapped by every value coercion failure.
var ErrCoercion = errors.New("zcl value coercion failed")

// CoercionError reports a raw value that could not be interpreted as a field type.
type CoercionError struct {
	Field  string // empty when coercing a single value
	Type   string
	Value  interface{}
	Reason string
}

func (e *CoercionError) Error() string {
	msg := fmt.Sprintf("cannot convert %#v to %s", e.Value, e.Type)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Field != "" {
		msg = fmt.Sprintf("field %q: %s", e.Field, msg)
	}
	return msg
}

func (e *CoercionError) Unwrap() error {
	return ErrCoercion
}

func coercionErr(value interface{}, typeName, format string, args ...interface{}) *CoercionError {
	return &CoercionError{Type: typeName, Value: value, Reason: fmt.Sprintf(format, args...)}
}
