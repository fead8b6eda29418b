package zcl

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryText(t *testing.T) {
	for _, c := range []Category{CategoryFallback, CategoryBytes, CategoryEnum, CategoryFlag, CategoryInteger} {
		parsed, err := ParseCategory(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
	_, err := ParseCategory("struct")
	assert.Error(t, err)

	var ft FieldType
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Mode","id":48,"category":"enum","members":[{"name":"a","value":1}]}`), &ft))
	assert.Equal(t, CategoryEnum, ft.Category)
	assert.Equal(t, TypeEnum8, ft.ID)
}

func TestFieldTypeMembers(t *testing.T) {
	ft := NewEnum("SomeEnum", TypeEnum8,
		Member{Name: "foo", Value: 0x12},
		Member{Name: "bar", Value: 0x34},
	)
	m, ok := ft.MemberByName("bar")
	require.True(t, ok)
	assert.Equal(t, uint64(0x34), m.Value)

	m, ok = ft.MemberByValue(0x12)
	require.True(t, ok)
	assert.Equal(t, "foo", m.Name)

	_, ok = ft.MemberByName("BAR")
	assert.False(t, ok)
}

func TestBitmapFormat(t *testing.T) {
	ft := NewFlag("SomeFlag", TypeBitmap8,
		Member{Name: "foo", Value: 1},
		Member{Name: "bar", Value: 2},
		Member{Name: "baz", Value: 4},
	)
	b := Bitmap{Type: "SomeFlag", Value: 5}
	assert.Equal(t, []string{"foo", "baz"}, b.Names(ft))
	assert.Equal(t, "SomeFlag.foo|baz", b.Format(ft))
	assert.Equal(t, "SomeFlag(0x0)", Bitmap{Type: "SomeFlag"}.Format(ft))

	assert.Equal(t, "SomeEnum.bar", EnumValue{Type: "SomeEnum", Name: "bar", Value: 0x34}.String())
}
