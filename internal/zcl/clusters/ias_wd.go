package clusters

import "zha-go/internal/zcl"

// Warning packs mode (bits 4-7), strobe (bits 2-3) and siren level (bits 0-1).
var Warning = zcl.NewFlag("Warning", zcl.TypeBitmap8,
	zcl.Member{Name: "Siren_medium", Value: 0x01},
	zcl.Member{Name: "Siren_high", Value: 0x02},
	zcl.Member{Name: "Strobe", Value: 0x04},
	zcl.Member{Name: "Burglar", Value: 0x10},
	zcl.Member{Name: "Fire", Value: 0x20},
	zcl.Member{Name: "Emergency", Value: 0x30},
)

var Squawk = zcl.NewFlag("Squawk", zcl.TypeBitmap8,
	zcl.Member{Name: "Level_medium", Value: 0x01},
	zcl.Member{Name: "Level_high", Value: 0x02},
	zcl.Member{Name: "Strobe", Value: 0x08},
	zcl.Member{Name: "Disarmed", Value: 0x10},
)

var StrobeLevel = zcl.NewEnum("StrobeLevel", zcl.TypeEnum8,
	zcl.Member{Name: "Low", Value: 0x00},
	zcl.Member{Name: "Medium", Value: 0x01},
	zcl.Member{Name: "High", Value: 0x02},
	zcl.Member{Name: "Very_high", Value: 0x03},
)

var IASWD = zcl.ClusterDef{
	ID:   0x0502,
	Name: "IAS WD",
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "start_warning", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "warning", Type: Warning},
			{Name: "warning_duration", Type: zcl.Uint16},
			{Name: "strobe_duty_cycle", Type: zcl.Uint8, Optional: true},
			{Name: "stobe_level", Type: StrobeLevel, Optional: true},
		}},
		{ID: 0x01, Name: "squawk", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "squawk", Type: Squawk},
		}},
	},
}
