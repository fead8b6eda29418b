package zcl

import (
	"errors"
	"fmt"
)

// ErrMissingField is returned when a command payload lacks a field it needs.
var ErrMissingField = errors.New("missing field")

// EncodeCommand serializes already-typed field values in schema order.
// A required field must be present; the payload ends at the first absent
// optional field, so optional fields after it are not sent either.
func EncodeCommand(schema Schema, fields map[string]interface{}) ([]byte, error) {
	var payload []byte
	for i, f := range schema {
		val, ok := fields[f.Name]
		if !ok {
			if !f.Optional {
				return nil, fmt.Errorf("zcl: %w: required field %q", ErrMissingField, f.Name)
			}
			for _, rest := range schema[i+1:] {
				if _, set := fields[rest.Name]; set {
					return nil, fmt.Errorf("zcl: field %q set but preceding optional field %q: %w", rest.Name, f.Name, ErrMissingField)
				}
			}
			break
		}
		if f.Type == nil {
			return nil, fmt.Errorf("zcl: field %q has no type", f.Name)
		}
		data, err := EncodeValue(f.Type.ID, val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		payload = append(payload, data...)
	}
	return payload, nil
}
