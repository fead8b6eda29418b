package clusters

import "zha-go/internal/zcl"

var Groups = zcl.ClusterDef{
	ID:   0x0004,
	Name: "Groups",
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "add", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "group_id", Type: zcl.Uint16},
			{Name: "group_name", Type: zcl.CharString},
		}},
		{ID: 0x01, Name: "view", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "group_id", Type: zcl.Uint16},
		}},
		{ID: 0x03, Name: "remove", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "group_id", Type: zcl.Uint16},
		}},
		{ID: 0x04, Name: "remove_all", Direction: zcl.DirectionToServer},
		{ID: 0x05, Name: "add_if_identifying", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "group_id", Type: zcl.Uint16},
			{Name: "group_name", Type: zcl.CharString},
		}},
	},
}
