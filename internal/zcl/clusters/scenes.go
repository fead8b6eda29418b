package clusters

import "zha-go/internal/zcl"

var Scenes = zcl.ClusterDef{
	ID:   0x0005,
	Name: "Scenes",
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "add", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "group_id", Type: zcl.Uint16},
			{Name: "scene_id", Type: zcl.Uint8},
			{Name: "transition_time", Type: zcl.Uint16},
			{Name: "scene_name", Type: zcl.CharString},
		}},
		{ID: 0x01, Name: "view", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "group_id", Type: zcl.Uint16},
			{Name: "scene_id", Type: zcl.Uint8},
		}},
		{ID: 0x02, Name: "remove", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "group_id", Type: zcl.Uint16},
			{Name: "scene_id", Type: zcl.Uint8},
		}},
		{ID: 0x03, Name: "remove_all", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "group_id", Type: zcl.Uint16},
		}},
		{ID: 0x04, Name: "store", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "group_id", Type: zcl.Uint16},
			{Name: "scene_id", Type: zcl.Uint8},
		}},
		{ID: 0x05, Name: "recall", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "group_id", Type: zcl.Uint16},
			{Name: "scene_id", Type: zcl.Uint8},
			{Name: "transition_time", Type: zcl.Uint16, Optional: true},
		}},
		{ID: 0x06, Name: "get_scene_membership", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "group_id", Type: zcl.Uint16},
		}},
	},
}
