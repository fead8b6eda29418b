package zcl

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(ClusterDef{
		ID:       0x0006,
		Name:     "On/Off",
		Bindable: true,
		Commands: []CommandDef{
			{ID: 0x01, Name: "on", Direction: DirectionToServer},
		},
	})

	got := r.Get(0x0006)
	require.NotNil(t, got)
	assert.Equal(t, "On/Off", got.Name)
	assert.Len(t, got.Commands, 1)
	assert.True(t, r.IsBindable(0x0006))
	assert.False(t, r.IsBindable(0x0008))
	assert.Nil(t, r.Get(0x0008))
}

func TestRegistryMerge(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(ClusterDef{
		ID:   0x0006,
		Name: "On/Off",
		Commands: []CommandDef{
			{ID: 0x00, Name: "off", Direction: DirectionToServer},
		},
	})
	r.Register(ClusterDef{
		ID:       0x0006,
		Name:     "ignored",
		Bindable: true,
		Commands: []CommandDef{
			{ID: 0x00, Name: "duplicate", Direction: DirectionToServer},
			{ID: 0xFD, Name: "tuya_action", Direction: DirectionToServer},
		},
	})

	got := r.Get(0x0006)
	require.NotNil(t, got)
	assert.Equal(t, "On/Off", got.Name)
	assert.True(t, got.Bindable)
	require.Len(t, got.Commands, 2)
	assert.Equal(t, "off", got.FindCommand(0x00, DirectionToServer).Name)
	assert.Equal(t, "tuya_action", got.FindCommand(0xFD, DirectionToServer).Name)
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(ClusterDef{
		ID: 0x0003,
		Commands: []CommandDef{
			{ID: 0x00, Name: "identify", Direction: DirectionToServer, Schema: Schema{
				{Name: "identify_time", Type: Uint16},
			}},
		},
	})

	c := r.Get(0x0003)
	c.Commands[0].Schema[0].Name = "mutated"
	c.Commands = append(c.Commands, CommandDef{ID: 0x01})

	again := r.Get(0x0003)
	assert.Len(t, again.Commands, 1)
	assert.Equal(t, "identify_time", again.Commands[0].Schema[0].Name)
}

func TestRegistryFindCommand(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(ClusterDef{
		ID:   0x0003,
		Name: "Identify",
		Commands: []CommandDef{
			{ID: 0x00, Name: "identify", Direction: DirectionToServer},
			{ID: 0x00, Name: "identify_query_response", Direction: DirectionToClient},
		},
	})

	cmd, err := r.FindCommand(0x0003, "Identify", DirectionToServer)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x00), cmd.ID)

	_, err = r.FindCommand(0x0003, "identify_query_response", DirectionToServer)
	assert.Error(t, err)

	_, err = r.FindCommand(0x0999, "identify", DirectionToServer)
	assert.ErrorContains(t, err, "unknown cluster 0x0999")
}

func TestRegistryTypes(t *testing.T) {
	r := NewRegistry(testLogger())

	ft, ok := r.Type("uint16")
	require.True(t, ok)
	assert.Same(t, Uint16, ft)

	mode := NewEnum("Mode", TypeEnum8, Member{Name: "a", Value: 1})
	r.Register(ClusterDef{
		ID: 0xFC00,
		Commands: []CommandDef{
			{ID: 0x00, Name: "set", Direction: DirectionToServer, Schema: Schema{{Name: "mode", Type: mode}}},
		},
	})
	ft, ok = r.Type("Mode")
	require.True(t, ok)
	assert.Same(t, mode, ft)
	assert.Contains(t, r.Types(), "Mode")

	_, ok = r.Type("missing")
	assert.False(t, ok)
}

func TestRegistryAllSorted(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(ClusterDef{ID: 0x0300})
	r.Register(ClusterDef{ID: 0x0006})
	r.Register(ClusterDef{ID: 0x0102})

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, []uint16{0x0006, 0x0102, 0x0300}, []uint16{all[0].ID, all[1].ID, all[2].ID})
}
