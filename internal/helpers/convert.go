// Package helpers converts user input into typed ZCL values and matches
// bindable clusters between devices.
package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"zha-go/internal/zcl"
)

// ConvertZCLValue coerces a raw value (string, number, bytes or list) into
// the Go representation of ft. The strategy is chosen by ft.Category.
//
//	bytes    -> []byte
//	enum     -> zcl.EnumValue
//	flag     -> zcl.Bitmap
//	integer  -> uint8..uint64 / int8..int64, matching the wire width
//	fallback -> float32, float64, bool or string
func ConvertZCLValue(value interface{}, ft *zcl.FieldType) (interface{}, error) {
	if ft == nil {
		return nil, &CoercionError{Type: "<nil>", Value: value, Reason: "no field type"}
	}
	switch ft.Category {
	case zcl.CategoryBytes:
		return convertBytes(value, ft)
	case zcl.CategoryEnum:
		return convertEnum(value, ft)
	case zcl.CategoryFlag:
		return convertFlag(value, ft)
	case zcl.CategoryInteger:
		return convertInteger(value, ft)
	case zcl.CategoryFallback:
		return convertFallback(value, ft)
	default:
		return nil, coercionErr(value, ft.Name, "unknown category %s", ft.Category)
	}
}

// ConvertToZCLValues coerces every declared field present in fields.
// Names the schema does not declare are ignored; declared fields missing
// from fields are left out of the result.
func ConvertToZCLValues(fields map[string]interface{}, schema zcl.Schema) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(schema))
	for _, f := range schema {
		raw, ok := fields[f.Name]
		if !ok {
			continue
		}
		v, err := ConvertZCLValue(raw, f.Type)
		if err != nil {
			var ce *CoercionError
			if errors.As(err, &ce) {
				ce.Field = f.Name
				return nil, ce
			}
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

func convertBytes(value interface{}, ft *zcl.FieldType) (interface{}, error) {
	switch v := value.(type) {
	case []byte:
		return append([]byte(nil), v...), nil
	case string:
		data, err := parseBytes(v)
		if err != nil {
			return nil, coercionErr(value, ft.Name, "%v", err)
		}
		return data, nil
	}
	return nil, coercionErr(value, ft.Name, "unsupported input %T", value)
}

func convertEnum(value interface{}, ft *zcl.FieldType) (interface{}, error) {
	enum := func(m zcl.Member) zcl.EnumValue {
		return zcl.EnumValue{Type: ft.Name, Name: m.Name, Value: m.Value}
	}

	if ev, ok := value.(zcl.EnumValue); ok {
		if ev.Type != ft.Name {
			return nil, coercionErr(value, ft.Name, "member of %s", ev.Type)
		}
		value = ev.Name
	}

	if s, ok := value.(string); ok {
		m, err := lookupMember(ft, s)
		if err != nil {
			return nil, coercionErr(value, ft.Name, "%v", err)
		}
		return enum(m), nil
	}

	n, ok := toInteger(value)
	if !ok {
		return nil, coercionErr(value, ft.Name, "unsupported input %T", value)
	}
	if n.neg {
		return nil, coercionErr(value, ft.Name, "negative value")
	}
	m, found := ft.MemberByValue(n.mag)
	if !found {
		return nil, coercionErr(value, ft.Name, "0x%X is not a member", n.mag)
	}
	return enum(m), nil
}

func convertFlag(value interface{}, ft *zcl.FieldType) (interface{}, error) {
	bits, err := flagBits(value, ft)
	if err != nil {
		return nil, coercionErr(value, ft.Name, "%v", err)
	}
	if _, hi := zcl.IntRange(ft.ID); bits > hi {
		return nil, coercionErr(value, ft.Name, "0x%X exceeds %s", bits, zcl.TypeName(ft.ID))
	}
	return zcl.Bitmap{Type: ft.Name, Value: bits}, nil
}

func flagBits(value interface{}, ft *zcl.FieldType) (uint64, error) {
	switch v := value.(type) {
	case zcl.Bitmap:
		if v.Type != ft.Name {
			return 0, fmt.Errorf("bitmap of %s", v.Type)
		}
		return v.Value, nil
	case string:
		return flagExpression(v, ft)
	case []string:
		var bits uint64
		for _, s := range v {
			b, err := flagExpression(s, ft)
			if err != nil {
				return 0, err
			}
			bits |= b
		}
		return bits, nil
	case []interface{}:
		var bits uint64
		for _, item := range v {
			b, err := flagBits(item, ft)
			if err != nil {
				return 0, err
			}
			bits |= b
		}
		return bits, nil
	case []int:
		var bits uint64
		for _, item := range v {
			if item < 0 {
				return 0, fmt.Errorf("negative bit value %d", item)
			}
			bits |= uint64(item)
		}
		return bits, nil
	}

	n, ok := toInteger(value)
	if !ok {
		return 0, fmt.Errorf("unsupported input %T", value)
	}
	if n.neg {
		return 0, fmt.Errorf("negative bit value")
	}
	return n.mag, nil
}

// flagExpression resolves "a", "Type.a" and "Type.a|b|Type.c". A space
// inside a name stands for an underscore ("flag 1" is flag_1), so it never
// separates names.
func flagExpression(expr string, ft *zcl.FieldType) (uint64, error) {
	var bits uint64
	for _, token := range strings.Split(expr, "|") {
		token = strings.TrimSpace(token)
		if token == "" {
			return 0, fmt.Errorf("empty flag name in %q", expr)
		}
		m, err := lookupMember(ft, token)
		if err != nil {
			return 0, err
		}
		bits |= m.Value
	}
	return bits, nil
}

// lookupMember resolves a member by canonical name, spaced name,
// qualified name or numeric literal.
func lookupMember(ft *zcl.FieldType, s string) (zcl.Member, error) {
	name := s
	if prefix, rest, ok := strings.Cut(s, "."); ok {
		if prefix != ft.Name {
			return zcl.Member{}, fmt.Errorf("%q is not qualified by %s", s, ft.Name)
		}
		name = rest
	}
	if m, ok := ft.MemberByName(name); ok {
		return m, nil
	}
	if m, ok := ft.MemberByName(strings.ReplaceAll(name, " ", "_")); ok {
		return m, nil
	}
	if n, ok := parseInteger(name); ok && !n.neg {
		if m, ok := ft.MemberByValue(n.mag); ok {
			return m, nil
		}
	}
	return zcl.Member{}, fmt.Errorf("no member named %q", name)
}

func convertInteger(value interface{}, ft *zcl.FieldType) (interface{}, error) {
	n, ok := toInteger(value)
	if !ok {
		if _, isString := value.(string); isString {
			return nil, coercionErr(value, ft.Name, "not an integer")
		}
		return nil, coercionErr(value, ft.Name, "unsupported input %T", value)
	}

	lo, hi := zcl.IntRange(ft.ID)
	if hi == 0 {
		return nil, coercionErr(value, ft.Name, "wire type %s is not an integer", zcl.TypeName(ft.ID))
	}
	if n.neg {
		if lo == 0 {
			return nil, coercionErr(value, ft.Name, "negative value for unsigned type")
		}
		if n.mag > uint64(-(lo+1))+1 {
			return nil, coercionErr(value, ft.Name, "below minimum %d", lo)
		}
	} else if n.mag > hi {
		return nil, coercionErr(value, ft.Name, "above maximum %d", hi)
	}

	size := zcl.TypeSize(ft.ID)
	if zcl.IsSigned(ft.ID) {
		i := int64(n.mag)
		if n.neg {
			i = -i
		}
		switch {
		case size == 1:
			return int8(i), nil
		case size == 2:
			return int16(i), nil
		case size <= 4:
			return int32(i), nil
		default:
			return i, nil
		}
	}
	switch {
	case size == 1:
		return uint8(n.mag), nil
	case size == 2:
		return uint16(n.mag), nil
	case size <= 4:
		return uint32(n.mag), nil
	default:
		return n.mag, nil
	}
}

func convertFallback(value interface{}, ft *zcl.FieldType) (interface{}, error) {
	switch ft.ID {
	case zcl.TypeFloat32:
		f, err := toFloat(value, 32)
		if err != nil {
			return nil, coercionErr(value, ft.Name, "%v", err)
		}
		return float32(f), nil
	case zcl.TypeFloat64:
		f, err := toFloat(value, 64)
		if err != nil {
			return nil, coercionErr(value, ft.Name, "%v", err)
		}
		return f, nil
	case zcl.TypeBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, coercionErr(value, ft.Name, "not a boolean")
			}
			return b, nil
		}
		if n, ok := toInteger(value); ok && !n.neg && n.mag <= 1 {
			return n.mag == 1, nil
		}
		return nil, coercionErr(value, ft.Name, "not a boolean")
	case zcl.TypeCharStr, zcl.TypeCharStr16:
		switch v := value.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		case json.Number:
			return nil, coercionErr(value, ft.Name, "unsupported input number")
		case fmt.Stringer:
			return v.String(), nil
		}
		return nil, coercionErr(value, ft.Name, "unsupported input %T", value)
	}
	return nil, coercionErr(value, ft.Name, "no conversion for wire type %s", zcl.TypeName(ft.ID))
}

func toFloat(value interface{}, bitSize int) (float64, error) {
	var f float64
	switch v := value.(type) {
	case float32:
		f = float64(v)
	case float64:
		f = v
	case json.Number:
		return toFloat(string(v), bitSize)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), bitSize)
		if err != nil {
			return 0, fmt.Errorf("not a number")
		}
		return parsed, nil
	default:
		n, ok := toInteger(value)
		if !ok {
			return 0, fmt.Errorf("unsupported input %T", value)
		}
		f = float64(n.mag)
		if n.neg {
			f = -f
		}
	}
	if bitSize == 32 && !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
		return 0, fmt.Errorf("out of single precision range")
	}
	return f, nil
}

// integer is a whole number held as sign and magnitude so every Go integer
// width fits without overflow.
type integer struct {
	neg bool
	mag uint64
}

func toInteger(value interface{}) (integer, bool) {
	switch v := value.(type) {
	case int:
		return signed(int64(v)), true
	case int8:
		return signed(int64(v)), true
	case int16:
		return signed(int64(v)), true
	case int32:
		return signed(int64(v)), true
	case int64:
		return signed(v), true
	case uint:
		return integer{mag: uint64(v)}, true
	case uint8:
		return integer{mag: uint64(v)}, true
	case uint16:
		return integer{mag: uint64(v)}, true
	case uint32:
		return integer{mag: uint64(v)}, true
	case uint64:
		return integer{mag: v}, true
	case float32:
		return fromFloat(float64(v))
	case float64:
		return fromFloat(v)
	case json.Number:
		if n, ok := parseInteger(string(v)); ok {
			return n, true
		}
		// "1.0" or "1e3"; larger values would lose precision as a float
		f, err := v.Float64()
		if err != nil || math.Abs(f) > 1<<53 {
			return integer{}, false
		}
		return fromFloat(f)
	case string:
		return parseInteger(v)
	}
	return integer{}, false
}

func signed(i int64) integer {
	if i < 0 {
		return integer{neg: true, mag: uint64(-(i + 1)) + 1}
	}
	return integer{mag: uint64(i)}
}

func fromFloat(f float64) (integer, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) >= math.MaxUint64 {
		return integer{}, false
	}
	if f < 0 {
		return integer{neg: true, mag: uint64(-f)}, true
	}
	return integer{mag: uint64(f)}, true
}

// parseInteger accepts decimal and 0x-prefixed hex, with an optional sign.
func parseInteger(s string) (integer, bool) {
	s = strings.TrimSpace(s)
	var n integer
	switch {
	case strings.HasPrefix(s, "-"):
		n.neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	var err error
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		n.mag, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		n.mag, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return integer{}, false
	}
	if n.mag == 0 {
		n.neg = false
	}
	return n, true
}
