package clusters

import "zha-go/internal/zcl"

var EffectIdentifier = zcl.NewEnum("EffectIdentifier", zcl.TypeEnum8,
	zcl.Member{Name: "Blink", Value: 0x00},
	zcl.Member{Name: "Breathe", Value: 0x01},
	zcl.Member{Name: "Okay", Value: 0x02},
	zcl.Member{Name: "Channel_change", Value: 0x0B},
	zcl.Member{Name: "Finish_effect", Value: 0xFE},
	zcl.Member{Name: "Stop_effect", Value: 0xFF},
)

var EffectVariant = zcl.NewEnum("EffectVariant", zcl.TypeEnum8,
	zcl.Member{Name: "Default", Value: 0x00},
)

var Identify = zcl.ClusterDef{
	ID:   0x0003,
	Name: "Identify",
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "identify", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "identify_time", Type: zcl.Uint16},
		}},
		{ID: 0x01, Name: "identify_query", Direction: zcl.DirectionToServer},
		{ID: 0x40, Name: "trigger_effect", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "effect_id", Type: EffectIdentifier},
			{Name: "effect_variant", Type: EffectVariant},
		}},
		{ID: 0x00, Name: "identify_query_response", Direction: zcl.DirectionToClient, Schema: zcl.Schema{
			{Name: "timeout", Type: zcl.Uint16},
		}},
	},
}
