package zcl

import (
	"fmt"
	"strings"
)

// Category selects how raw user input is coerced into a field type.
type Category uint8

const (
	CategoryFallback Category = iota
	CategoryBytes
	CategoryEnum
	CategoryFlag
	CategoryInteger
)

var categoryNames = map[Category]string{
	CategoryFallback: "fallback",
	CategoryBytes:    "bytes",
	CategoryEnum:     "enum",
	CategoryFlag:     "flag",
	CategoryInteger:  "integer",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) (Category, error) {
	for c, name := range categoryNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("zcl: unknown field category %q", s)
}

// Member is a named value of an enum or flag type.
type Member struct {
	Name  string `json:"name"`
	Value uint64 `json:"value"`
}

// FieldType describes the declared type of a command field.
// ID is the wire type; Members is only set for enum and flag types.
type FieldType struct {
	Name     string   `json:"name"`
	ID       uint8    `json:"id"`
	Category Category `json:"category"`
	Members  []Member `json:"members,omitempty"`
}

// MemberByName looks up a member by its canonical name.
func (ft *FieldType) MemberByName(name string) (Member, bool) {
	for _, m := range ft.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// MemberByValue looks up the first member declared with value v.
func (ft *FieldType) MemberByValue(v uint64) (Member, bool) {
	for _, m := range ft.Members {
		if m.Value == v {
			return m, true
		}
	}
	return Member{}, false
}

func (ft *FieldType) String() string {
	return ft.Name
}

// NewEnum declares an enumeration over an enum8/enum16 wire type.
func NewEnum(name string, id uint8, members ...Member) *FieldType {
	return &FieldType{Name: name, ID: id, Category: CategoryEnum, Members: members}
}

// NewFlag declares a bitmap whose members are single bits or bit groups.
func NewFlag(name string, id uint8, members ...Member) *FieldType {
	return &FieldType{Name: name, ID: id, Category: CategoryFlag, Members: members}
}

// Built-in field types.
var (
	Uint8       = &FieldType{Name: "uint8", ID: TypeUint8, Category: CategoryInteger}
	Uint16      = &FieldType{Name: "uint16", ID: TypeUint16, Category: CategoryInteger}
	Uint24      = &FieldType{Name: "uint24", ID: TypeUint24, Category: CategoryInteger}
	Uint32      = &FieldType{Name: "uint32", ID: TypeUint32, Category: CategoryInteger}
	Uint48      = &FieldType{Name: "uint48", ID: TypeUint48, Category: CategoryInteger}
	Uint64      = &FieldType{Name: "uint64", ID: TypeUint64, Category: CategoryInteger}
	Int8        = &FieldType{Name: "int8", ID: TypeInt8, Category: CategoryInteger}
	Int16       = &FieldType{Name: "int16", ID: TypeInt16, Category: CategoryInteger}
	Int24       = &FieldType{Name: "int24", ID: TypeInt24, Category: CategoryInteger}
	Int32       = &FieldType{Name: "int32", ID: TypeInt32, Category: CategoryInteger}
	Int64       = &FieldType{Name: "int64", ID: TypeInt64, Category: CategoryInteger}
	Enum8       = &FieldType{Name: "enum8", ID: TypeEnum8, Category: CategoryInteger}
	Enum16      = &FieldType{Name: "enum16", ID: TypeEnum16, Category: CategoryInteger}
	Bitmap8     = &FieldType{Name: "map8", ID: TypeBitmap8, Category: CategoryInteger}
	Bitmap16    = &FieldType{Name: "map16", ID: TypeBitmap16, Category: CategoryInteger}
	Bitmap32    = &FieldType{Name: "map32", ID: TypeBitmap32, Category: CategoryInteger}
	EUI64       = &FieldType{Name: "EUI64", ID: TypeEUI64, Category: CategoryInteger}
	Single      = &FieldType{Name: "single", ID: TypeFloat32, Category: CategoryFallback}
	Double      = &FieldType{Name: "double", ID: TypeFloat64, Category: CategoryFallback}
	Bool        = &FieldType{Name: "bool", ID: TypeBool, Category: CategoryFallback}
	CharString  = &FieldType{Name: "string", ID: TypeCharStr, Category: CategoryFallback}
	OctetString = &FieldType{Name: "octstr", ID: TypeOctetStr, Category: CategoryBytes}
	LongOctets  = &FieldType{Name: "octstr16", ID: TypeOctetStr16, Category: CategoryBytes}
)

func builtinTypes() []*FieldType {
	return []*FieldType{
		Uint8, Uint16, Uint24, Uint32, Uint48, Uint64,
		Int8, Int16, Int24, Int32, Int64,
		Enum8, Enum16, Bitmap8, Bitmap16, Bitmap32, EUI64,
		Single, Double, Bool, CharString, OctetString, LongOctets,
	}
}

// EnumValue is a coerced enumeration member.
type EnumValue struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value uint64 `json:"value"`
}

func (e EnumValue) String() string {
	return e.Type + "." + e.Name
}

// Bitmap is a coerced flag combination.
type Bitmap struct {
	Type  string `json:"type"`
	Value uint64 `json:"value"`
}

// Names returns the members fully contained in the bitmap, in declaration order.
func (b Bitmap) Names(ft *FieldType) []string {
	var names []string
	for _, m := range ft.Members {
		if m.Value != 0 && b.Value&m.Value == m.Value {
			names = append(names, m.Name)
		}
	}
	return names
}

// Format renders the bitmap as a `Type.a|b` expression.
func (b Bitmap) Format(ft *FieldType) string {
	names := b.Names(ft)
	if len(names) == 0 {
		return fmt.Sprintf("%s(0x%X)", b.Type, b.Value)
	}
	return b.Type + "." + strings.Join(names, "|")
}
