package clusters

import "zha-go/internal/zcl"

var MoveMode = zcl.NewEnum("MoveMode", zcl.TypeEnum8,
	zcl.Member{Name: "Up", Value: 0x00},
	zcl.Member{Name: "Down", Value: 0x01},
)

var StepMode = zcl.NewEnum("StepMode", zcl.TypeEnum8,
	zcl.Member{Name: "Up", Value: 0x00},
	zcl.Member{Name: "Down", Value: 0x01},
)

// Options is shared by the level and color commands that take an options mask/override pair.
var Options = zcl.NewFlag("Options", zcl.TypeBitmap8,
	zcl.Member{Name: "Execute_if_off", Value: 0x01},
	zcl.Member{Name: "Couple_color_temp_to_level", Value: 0x02},
)

func withOptions(s zcl.Schema) zcl.Schema {
	return append(s,
		zcl.FieldDef{Name: "options_mask", Type: Options, Optional: true},
		zcl.FieldDef{Name: "options_override", Type: Options, Optional: true},
	)
}

var LevelControl = zcl.ClusterDef{
	ID:       0x0008,
	Name:     "Level Control",
	Bindable: true,
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "move_to_level", Direction: zcl.DirectionToServer, Schema: withOptions(zcl.Schema{
			{Name: "level", Type: zcl.Uint8},
			{Name: "transition_time", Type: zcl.Uint16},
		})},
		{ID: 0x01, Name: "move", Direction: zcl.DirectionToServer, Schema: withOptions(zcl.Schema{
			{Name: "move_mode", Type: MoveMode},
			{Name: "rate", Type: zcl.Uint8},
		})},
		{ID: 0x02, Name: "step", Direction: zcl.DirectionToServer, Schema: withOptions(zcl.Schema{
			{Name: "step_mode", Type: StepMode},
			{Name: "step_size", Type: zcl.Uint8},
			{Name: "transition_time", Type: zcl.Uint16},
		})},
		{ID: 0x03, Name: "stop", Direction: zcl.DirectionToServer, Schema: withOptions(nil)},
		{ID: 0x04, Name: "move_to_level_with_on_off", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "level", Type: zcl.Uint8},
			{Name: "transition_time", Type: zcl.Uint16},
		}},
		{ID: 0x05, Name: "move_with_on_off", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "move_mode", Type: MoveMode},
			{Name: "rate", Type: zcl.Uint8},
		}},
		{ID: 0x06, Name: "step_with_on_off", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "step_mode", Type: StepMode},
			{Name: "step_size", Type: zcl.Uint8},
			{Name: "transition_time", Type: zcl.Uint16},
		}},
		{ID: 0x07, Name: "stop_with_on_off", Direction: zcl.DirectionToServer},
	},
}
