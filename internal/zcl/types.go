package zcl

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ZCL data type IDs
const (
	TypeNoData     uint8 = 0x00
	TypeBool       uint8 = 0x10
	TypeBitmap8    uint8 = 0x18
	TypeBitmap16   uint8 = 0x19
	TypeBitmap24   uint8 = 0x1A
	TypeBitmap32   uint8 = 0x1B
	TypeUint8      uint8 = 0x20
	TypeUint16     uint8 = 0x21
	TypeUint24     uint8 = 0x22
	TypeUint32     uint8 = 0x23
	TypeUint40     uint8 = 0x24
	TypeUint48     uint8 = 0x25
	TypeUint64     uint8 = 0x27
	TypeInt8       uint8 = 0x28
	TypeInt16      uint8 = 0x29
	TypeInt24      uint8 = 0x2A
	TypeInt32      uint8 = 0x2B
	TypeInt64      uint8 = 0x2F
	TypeEnum8      uint8 = 0x30
	TypeEnum16     uint8 = 0x31
	TypeFloat32    uint8 = 0x39
	TypeFloat64    uint8 = 0x3A
	TypeOctetStr   uint8 = 0x41
	TypeCharStr    uint8 = 0x42
	TypeOctetStr16 uint8 = 0x43
	TypeCharStr16  uint8 = 0x44
	TypeClusterID  uint8 = 0xE8
	TypeAttrID     uint8 = 0xE9
	TypeEUI64      uint8 = 0xF0
)

// TypeSize returns the fixed size in bytes of a ZCL type, or -1 for variable-length types.
func TypeSize(typeID uint8) int {
	switch typeID {
	case TypeNoData:
		return 0
	case TypeBool, TypeUint8, TypeInt8, TypeEnum8, TypeBitmap8:
		return 1
	case TypeUint16, TypeInt16, TypeEnum16, TypeBitmap16, TypeClusterID, TypeAttrID:
		return 2
	case TypeUint24, TypeInt24, TypeBitmap24:
		return 3
	case TypeUint32, TypeInt32, TypeBitmap32, TypeFloat32:
		return 4
	case TypeUint40:
		return 5
	case TypeUint48:
		return 6
	case TypeUint64, TypeInt64, TypeFloat64, TypeEUI64:
		return 8
	default:
		return -1
	}
}

// IsSigned reports whether the type is a two's complement integer.
func IsSigned(typeID uint8) bool {
	switch typeID {
	case TypeInt8, TypeInt16, TypeInt24, TypeInt32, TypeInt64:
		return true
	}
	return false
}

// TypeName returns a human-readable name for a ZCL type.
func TypeName(typeID uint8) string {
	switch typeID {
	case TypeNoData:
		return "nodata"
	case TypeBool:
		return "bool"
	case TypeBitmap8:
		return "map8"
	case TypeBitmap16:
		return "map16"
	case TypeBitmap24:
		return "map24"
	case TypeBitmap32:
		return "map32"
	case TypeUint8:
		return "uint8"
	case TypeUint16:
		return "uint16"
	case TypeUint24:
		return "uint24"
	case TypeUint32:
		return "uint32"
	case TypeUint40:
		return "uint40"
	case TypeUint48:
		return "uint48"
	case TypeUint64:
		return "uint64"
	case TypeInt8:
		return "int8"
	case TypeInt16:
		return "int16"
	case TypeInt24:
		return "int24"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeEnum8:
		return "enum8"
	case TypeEnum16:
		return "enum16"
	case TypeFloat32:
		return "single"
	case TypeFloat64:
		return "double"
	case TypeOctetStr:
		return "octstr"
	case TypeCharStr:
		return "string"
	case TypeOctetStr16:
		return "octstr16"
	case TypeCharStr16:
		return "string16"
	case TypeClusterID:
		return "clusterId"
	case TypeAttrID:
		return "attribId"
	case TypeEUI64:
		return "EUI64"
	default:
		return fmt.Sprintf("0x%02X", typeID)
	}
}

// IntRange returns the legal range of an integer-like type.
// Signed types report the bounds in min/max; unsigned types report min=0.
func IntRange(typeID uint8) (min int64, max uint64) {
	size := TypeSize(typeID)
	if size <= 0 {
		return 0, 0
	}
	bits := uint(size * 8)
	if IsSigned(typeID) {
		return -1 << (bits - 1), 1<<(bits-1) - 1
	}
	if bits == 64 {
		return 0, math.MaxUint64
	}
	return 0, 1<<bits - 1
}

// EncodeValue encodes a Go value into ZCL wire format.
func EncodeValue(typeID uint8, val interface{}) ([]byte, error) {
	switch typeID {
	case TypeNoData:
		return nil, nil

	case TypeBool:
		v, ok := val.(bool)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to bool", val)
		}
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case TypeFloat32:
		v, ok := toFloat64(val)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to single", val)
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
		return buf, nil

	case TypeFloat64:
		v, ok := toFloat64(val)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to double", val)
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		return buf, nil

	case TypeCharStr, TypeOctetStr, TypeCharStr16, TypeOctetStr16:
		return encodeString(typeID, val)

	case TypeEUI64:
		if a, ok := val.([8]byte); ok {
			b := make([]byte, 8)
			copy(b, a[:])
			return b, nil
		}
	}

	size := TypeSize(typeID)
	if size <= 0 {
		return nil, fmt.Errorf("zcl: encode not implemented for type 0x%02X", typeID)
	}

	var u uint64
	if IsSigned(typeID) {
		v, ok := toInt64(val)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to %s", val, TypeName(typeID))
		}
		lo, hi := IntRange(typeID)
		if v < lo || (v > 0 && uint64(v) > hi) {
			return nil, fmt.Errorf("zcl: value %d overflows %s (range %d..%d)", v, TypeName(typeID), lo, hi)
		}
		u = uint64(v)
	} else {
		v, ok := toUint64(val)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to %s", val, TypeName(typeID))
		}
		if _, hi := IntRange(typeID); v > hi {
			return nil, fmt.Errorf("zcl: value %d overflows %s (max %d)", v, TypeName(typeID), hi)
		}
		u = v
	}

	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(u >> (8 * i))
	}
	return buf, nil
}

func encodeString(typeID uint8, val interface{}) ([]byte, error) {
	var data []byte
	switch v := val.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return nil, fmt.Errorf("zcl: cannot convert %T to %s", val, TypeName(typeID))
	}

	if typeID == TypeCharStr || typeID == TypeOctetStr {
		if len(data) > 254 {
			return nil, fmt.Errorf("zcl: data too long for %s: %d (max 254)", TypeName(typeID), len(data))
		}
		buf := make([]byte, 1+len(data))
		buf[0] = uint8(len(data))
		copy(buf[1:], data)
		return buf, nil
	}

	if len(data) > 65534 {
		return nil, fmt.Errorf("zcl: data too long for %s: %d (max 65534)", TypeName(typeID), len(data))
	}
	buf := make([]byte, 2+len(data))
	binary.LittleEndian.PutUint16(buf[:2], uint16(len(data)))
	copy(buf[2:], data)
	return buf, nil
}

func toUint64(v interface{}) (uint64, bool) {
	switch val := v.(type) {
	case EnumValue:
		return val.Value, true
	case Bitmap:
		return val.Value, true
	case uint8:
		return uint64(val), true
	case uint16:
		return uint64(val), true
	case uint32:
		return uint64(val), true
	case uint64:
		return val, true
	case uint:
		return uint64(val), true
	case int, int8, int16, int32, int64:
		i, _ := toInt64(val)
		if i < 0 {
			return 0, false
		}
		return uint64(i), true
	case float64:
		if val < 0 || val != math.Trunc(val) || val > math.MaxUint64 {
			return 0, false
		}
		return uint64(val), true
	}
	return 0, false
}

func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case int:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case EnumValue:
		return toInt64(val.Value)
	case float64:
		if val > math.MaxInt64 || val < math.MinInt64 || val != math.Trunc(val) {
			return 0, false
		}
		return int64(val), true
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	}
	return 0, false
}
