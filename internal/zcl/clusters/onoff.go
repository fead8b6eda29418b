package clusters

import "zha-go/internal/zcl"

var OffEffectIdentifier = zcl.NewEnum("OffEffectIdentifier", zcl.TypeEnum8,
	zcl.Member{Name: "Delayed_All_Off", Value: 0x00},
	zcl.Member{Name: "Dying_Light", Value: 0x01},
)

// OnOffControl is the control field of on_with_timed_off.
var OnOffControl = zcl.NewFlag("OnOffControl", zcl.TypeBitmap8,
	zcl.Member{Name: "Accept_Only_When_On", Value: 0x01},
)

var OnOff = zcl.ClusterDef{
	ID:       0x0006,
	Name:     "On/Off",
	Bindable: true,
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "off", Direction: zcl.DirectionToServer},
		{ID: 0x01, Name: "on", Direction: zcl.DirectionToServer},
		{ID: 0x02, Name: "toggle", Direction: zcl.DirectionToServer},
		{ID: 0x40, Name: "off_with_effect", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "effect_id", Type: OffEffectIdentifier},
			{Name: "effect_variant", Type: zcl.Uint8},
		}},
		{ID: 0x41, Name: "on_with_recall_global_scene", Direction: zcl.DirectionToServer},
		{ID: 0x42, Name: "on_with_timed_off", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "on_off_control", Type: OnOffControl},
			{Name: "on_time", Type: zcl.Uint16},
			{Name: "off_wait_time", Type: zcl.Uint16},
		}},
	},
}
