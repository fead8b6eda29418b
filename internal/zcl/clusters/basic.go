package clusters

import "zha-go/internal/zcl"

var Basic = zcl.ClusterDef{
	ID:   0x0000,
	Name: "Basic",
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "reset_fact_default", Direction: zcl.DirectionToServer},
	},
}
