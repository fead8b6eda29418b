package clusters

import "zha-go/internal/zcl"

var HueDirection = zcl.NewEnum("Direction", zcl.TypeEnum8,
	zcl.Member{Name: "Shortest_distance", Value: 0x00},
	zcl.Member{Name: "Longest_distance", Value: 0x01},
	zcl.Member{Name: "Up", Value: 0x02},
	zcl.Member{Name: "Down", Value: 0x03},
)

var HueMoveMode = zcl.NewEnum("HueMoveMode", zcl.TypeEnum8,
	zcl.Member{Name: "Stop", Value: 0x00},
	zcl.Member{Name: "Up", Value: 0x01},
	zcl.Member{Name: "Down", Value: 0x03},
)

var HueStepMode = zcl.NewEnum("HueStepMode", zcl.TypeEnum8,
	zcl.Member{Name: "Up", Value: 0x01},
	zcl.Member{Name: "Down", Value: 0x03},
)

var ColorControl = zcl.ClusterDef{
	ID:       0x0300,
	Name:     "Color Control",
	Bindable: true,
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "move_to_hue", Direction: zcl.DirectionToServer, Schema: withOptions(zcl.Schema{
			{Name: "hue", Type: zcl.Uint8},
			{Name: "direction", Type: HueDirection},
			{Name: "transition_time", Type: zcl.Uint16},
		})},
		{ID: 0x01, Name: "move_hue", Direction: zcl.DirectionToServer, Schema: withOptions(zcl.Schema{
			{Name: "move_mode", Type: HueMoveMode},
			{Name: "rate", Type: zcl.Uint8},
		})},
		{ID: 0x02, Name: "step_hue", Direction: zcl.DirectionToServer, Schema: withOptions(zcl.Schema{
			{Name: "step_mode", Type: HueStepMode},
			{Name: "step_size", Type: zcl.Uint8},
			{Name: "transition_time", Type: zcl.Uint8},
		})},
		{ID: 0x03, Name: "move_to_saturation", Direction: zcl.DirectionToServer, Schema: withOptions(zcl.Schema{
			{Name: "saturation", Type: zcl.Uint8},
			{Name: "transition_time", Type: zcl.Uint16},
		})},
		{ID: 0x06, Name: "move_to_hue_and_saturation", Direction: zcl.DirectionToServer, Schema: withOptions(zcl.Schema{
			{Name: "hue", Type: zcl.Uint8},
			{Name: "saturation", Type: zcl.Uint8},
			{Name: "transition_time", Type: zcl.Uint16},
		})},
		{ID: 0x07, Name: "move_to_color", Direction: zcl.DirectionToServer, Schema: withOptions(zcl.Schema{
			{Name: "color_x", Type: zcl.Uint16},
			{Name: "color_y", Type: zcl.Uint16},
			{Name: "transition_time", Type: zcl.Uint16},
		})},
		{ID: 0x0A, Name: "move_to_color_temp", Direction: zcl.DirectionToServer, Schema: withOptions(zcl.Schema{
			{Name: "color_temp_mireds", Type: zcl.Uint16},
			{Name: "transition_time", Type: zcl.Uint16},
		})},
		{ID: 0x47, Name: "stop_move_step", Direction: zcl.DirectionToServer, Schema: withOptions(nil)},
	},
}
