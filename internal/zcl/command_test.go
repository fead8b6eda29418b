package zcl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCommand(t *testing.T) {
	mode := NewEnum("MoveMode", TypeEnum8, Member{Name: "Up", Value: 0}, Member{Name: "Down", Value: 1})
	opts := NewFlag("Options", TypeBitmap8, Member{Name: "Execute_if_off", Value: 1})
	schema := Schema{
		{Name: "move_mode", Type: mode},
		{Name: "rate", Type: Uint8},
		{Name: "options_mask", Type: opts, Optional: true},
		{Name: "options_override", Type: opts, Optional: true},
	}

	t.Run("required only", func(t *testing.T) {
		got, err := EncodeCommand(schema, map[string]interface{}{
			"move_mode": EnumValue{Type: "MoveMode", Name: "Down", Value: 1},
			"rate":      uint8(50),
		})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x01, 0x32}, got)
	})

	t.Run("with optionals", func(t *testing.T) {
		got, err := EncodeCommand(schema, map[string]interface{}{
			"move_mode":        EnumValue{Type: "MoveMode", Name: "Up", Value: 0},
			"rate":             uint8(10),
			"options_mask":     Bitmap{Type: "Options", Value: 1},
			"options_override": Bitmap{Type: "Options", Value: 0},
		})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00, 0x0A, 0x01, 0x00}, got)
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := EncodeCommand(schema, map[string]interface{}{"move_mode": uint8(0)})
		assert.ErrorIs(t, err, ErrMissingField)
		assert.ErrorContains(t, err, `"rate"`)
	})

	t.Run("gap in optionals", func(t *testing.T) {
		_, err := EncodeCommand(schema, map[string]interface{}{
			"move_mode":        uint8(0),
			"rate":             uint8(1),
			"options_override": uint8(1),
		})
		assert.ErrorIs(t, err, ErrMissingField)
		assert.ErrorContains(t, err, "options_mask")
	})

	t.Run("bad value", func(t *testing.T) {
		_, err := EncodeCommand(schema, map[string]interface{}{
			"move_mode": uint8(0),
			"rate":      300,
		})
		assert.ErrorContains(t, err, `field "rate"`)
	})

	t.Run("empty schema", func(t *testing.T) {
		got, err := EncodeCommand(nil, map[string]interface{}{"ignored": 1})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
