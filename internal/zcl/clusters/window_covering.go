package clusters

import "zha-go/internal/zcl"

var WindowCovering = zcl.ClusterDef{
	ID:       0x0102,
	Name:     "Window Covering",
	Bindable: true,
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "up_open", Direction: zcl.DirectionToServer},
		{ID: 0x01, Name: "down_close", Direction: zcl.DirectionToServer},
		{ID: 0x02, Name: "stop", Direction: zcl.DirectionToServer},
		{ID: 0x04, Name: "go_to_lift_value", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "lift_value", Type: zcl.Uint16},
		}},
		{ID: 0x05, Name: "go_to_lift_percentage", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "percentage_lift_value", Type: zcl.Uint8},
		}},
		{ID: 0x07, Name: "go_to_tilt_value", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "tilt_value", Type: zcl.Uint16},
		}},
		{ID: 0x08, Name: "go_to_tilt_percentage", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "percentage_tilt_value", Type: zcl.Uint8},
		}},
	},
}
