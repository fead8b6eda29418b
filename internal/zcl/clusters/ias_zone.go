package clusters

import "zha-go/internal/zcl"

var EnrollResponse = zcl.NewEnum("EnrollResponse", zcl.TypeEnum8,
	zcl.Member{Name: "Success", Value: 0x00},
	zcl.Member{Name: "Not_supported", Value: 0x01},
	zcl.Member{Name: "No_enroll_permit", Value: 0x02},
	zcl.Member{Name: "Too_many_zones", Value: 0x03},
)

var ZoneStatus = zcl.NewFlag("ZoneStatus", zcl.TypeBitmap16,
	zcl.Member{Name: "Alarm_1", Value: 0x0001},
	zcl.Member{Name: "Alarm_2", Value: 0x0002},
	zcl.Member{Name: "Tamper", Value: 0x0004},
	zcl.Member{Name: "Battery", Value: 0x0008},
	zcl.Member{Name: "Supervision_reports", Value: 0x0010},
	zcl.Member{Name: "Restore_reports", Value: 0x0020},
	zcl.Member{Name: "Trouble", Value: 0x0040},
	zcl.Member{Name: "AC_mains", Value: 0x0080},
	zcl.Member{Name: "Test", Value: 0x0100},
	zcl.Member{Name: "Battery_Defect", Value: 0x0200},
)

var ZoneType = zcl.NewEnum("ZoneType", zcl.TypeEnum16,
	zcl.Member{Name: "Standard_CIE", Value: 0x0000},
	zcl.Member{Name: "Motion_Sensor", Value: 0x000D},
	zcl.Member{Name: "Contact_Switch", Value: 0x0015},
	zcl.Member{Name: "Fire_Sensor", Value: 0x0028},
	zcl.Member{Name: "Water_Sensor", Value: 0x002A},
	zcl.Member{Name: "Carbon_Monoxide_Sensor", Value: 0x002B},
	zcl.Member{Name: "Remote_Control", Value: 0x010F},
	zcl.Member{Name: "Keypad", Value: 0x021D},
	zcl.Member{Name: "Standard_Warning_Device", Value: 0x0225},
)

var IASZone = zcl.ClusterDef{
	ID:   0x0500,
	Name: "IAS Zone",
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "enroll_response", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "enroll_response_code", Type: EnrollResponse},
			{Name: "zone_id", Type: zcl.Uint8},
		}},
		{ID: 0x01, Name: "init_normal_op_mode", Direction: zcl.DirectionToServer},
		{ID: 0x02, Name: "init_test_mode", Direction: zcl.DirectionToServer, Schema: zcl.Schema{
			{Name: "test_mode_duration", Type: zcl.Uint8},
			{Name: "current_zone_sensitivity_level", Type: zcl.Uint8},
		}},
		{ID: 0x00, Name: "status_change_notification", Direction: zcl.DirectionToClient, Schema: zcl.Schema{
			{Name: "zone_status", Type: ZoneStatus},
			{Name: "extended_status", Type: zcl.Bitmap8},
			{Name: "zone_id", Type: zcl.Uint8},
			{Name: "delay", Type: zcl.Uint16},
		}},
		{ID: 0x01, Name: "enroll", Direction: zcl.DirectionToClient, Schema: zcl.Schema{
			{Name: "zone_type", Type: ZoneType},
			{Name: "manufacturer_code", Type: zcl.Uint16},
		}},
	},
}
